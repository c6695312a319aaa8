package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/gateway"
	"credit-service/internal/models"
	"credit-service/internal/util"

	"go.uber.org/zap"
)

// PaymentService bridges the external gateway and the ledger: gateway
// outcomes become payment status transitions, and the credit grant for a
// successful charge commits atomically with the completed status.
type PaymentService struct {
	store         PaymentStore
	gateway       gateway.Gateway
	events        Notifier
	webhookSecret string
	currency      string
	packages      []models.CreditPackage
	logger        *zap.Logger
}

// NewPaymentService creates a new payment service. All gateway
// configuration is injected here; there is no package-level gateway
// state.
func NewPaymentService(
	paymentStore PaymentStore,
	gw gateway.Gateway,
	events Notifier,
	webhookSecret string,
	currency string,
	packages []models.CreditPackage,
) *PaymentService {
	return &PaymentService{
		store:         paymentStore,
		gateway:       gw,
		events:        events,
		webhookSecret: webhookSecret,
		currency:      currency,
		packages:      packages,
		logger:        util.GetLogger(),
	}
}

// Packages returns the purchasable credit bundles.
func (ps *PaymentService) Packages() []models.CreditPackage {
	return ps.packages
}

// InitiateParams describes a purchase attempt: either a catalogued
// package by ID, or an explicit credits/price pair.
type InitiateParams struct {
	UserID        int64
	PackageID     string
	Credits       int64
	AmountCents   int64
	PaymentMethod string
}

// Initiate records a purchase attempt in pending status. No credits are
// granted until the gateway confirms the charge.
func (ps *PaymentService) Initiate(ctx context.Context, p InitiateParams) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initiate")
	defer span.End()

	credits, amountCents := p.Credits, p.AmountCents
	if p.PackageID != "" {
		var pkg *models.CreditPackage
		for i := range ps.packages {
			if ps.packages[i].ID == p.PackageID {
				pkg = &ps.packages[i]
				break
			}
		}
		if pkg == nil {
			return nil, models.ErrUnknownPackage
		}
		credits, amountCents = pkg.Credits, pkg.PriceCents
	}
	if credits <= 0 || amountCents <= 0 {
		return nil, models.ErrInvalidAmount
	}

	payment := &models.Payment{
		UserID:           p.UserID,
		AmountCents:      amountCents,
		Currency:         ps.currency,
		CreditsRequested: credits,
		PaymentMethod:    p.PaymentMethod,
		Status:           models.PaymentStatusPending,
	}

	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	util.PaymentsInitiatedTotal.Inc()
	ps.logger.Info("Payment initiated",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("user_id", p.UserID),
		zap.String("package", p.PackageID),
		zap.Int64("credits", credits))

	return payment, nil
}

// Authorize runs the gateway charge for a pending payment. On success the
// payment completes and credits are granted in one atomic unit; on
// decline or gateway failure the payment moves to failed and nothing else
// changes. Authorizing an already-completed payment is a no-op.
func (ps *PaymentService) Authorize(ctx context.Context, paymentID int64, token string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Authorize")
	defer span.End()

	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		return payment, nil
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, models.ErrInvalidTransition
	}

	start := time.Now()
	result, err := ps.gateway.AuthorizeCharge(ctx, gateway.ChargeRequest{
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Token:       token,
		Description: fmt.Sprintf("Purchase of %d credits", payment.CreditsRequested),
	})
	util.GatewayLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		return ps.failAuthorization(ctx, payment, err)
	}

	completed, err := ps.store.CompletePaymentTx(ctx, payment.ID, result.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	util.PaymentsCompletedTotal.Inc()
	ps.logger.Info("Payment completed",
		zap.Int64("payment_id", completed.ID),
		zap.String("gateway_reference", result.Reference))

	event := &models.PaymentCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentCompleted),
		PaymentID: completed.ID,
		UserID:    completed.UserID,
		Credits:   completed.CreditsRequested,
		GatewayID: result.Reference,
	}
	if err := ps.events.PublishPaymentCompleted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
	}

	return completed, nil
}

func (ps *PaymentService) failAuthorization(ctx context.Context, payment *models.Payment, cause error) (*models.Payment, error) {
	reason := "charge declined"
	metric := "declined"
	if errors.Is(cause, models.ErrGatewayUnreachable) {
		reason = "gateway unreachable"
		metric = "unreachable"
	}

	if err := ps.store.FailPayment(ctx, payment.ID, reason); err != nil {
		ps.logger.Error("Failed to mark payment failed",
			zap.Int64("payment_id", payment.ID), zap.Error(err))
	}

	util.PaymentsFailedTotal.WithLabelValues(metric).Inc()
	ps.logger.Warn("Payment authorization failed",
		zap.Int64("payment_id", payment.ID),
		zap.String("reason", reason))

	event := &models.PaymentFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Reason:    reason,
	}
	if err := ps.events.PublishPaymentFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}

	return nil, cause
}

// Refund reverses a completed payment. The money-side refund goes
// through the gateway first; then the payment record moves to refunded
// and the ledger attempts to claw the credits back. If the user already
// spent them the clawback is skipped and the refund still stands.
func (ps *PaymentService) Refund(ctx context.Context, paymentID int64, reason string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Refund")
	defer span.End()

	payment, err := ps.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusRefunded {
		return payment, nil
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, models.ErrInvalidTransition
	}

	if err := ps.gateway.RefundCharge(ctx, payment.GatewayReference, payment.AmountCents); err != nil {
		return nil, fmt.Errorf("gateway refund failed: %w", err)
	}

	refunded, clawedBack, err := ps.store.RefundPaymentTx(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	util.PaymentsRefundedTotal.Inc()
	ps.logger.Info("Payment refunded",
		zap.Int64("payment_id", refunded.ID),
		zap.Bool("credits_clawed_back", clawedBack),
		zap.String("reason", reason))

	event := &models.PaymentRefundedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePaymentRefunded),
		PaymentID:  refunded.ID,
		UserID:     refunded.UserID,
		Credits:    refunded.CreditsRequested,
		ClawedBack: clawedBack,
	}
	if err := ps.events.PublishPaymentRefunded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentRefunded event", zap.Error(err))
	}

	return refunded, nil
}

// GetPayment retrieves a payment by ID
func (ps *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	return ps.store.GetPaymentByID(ctx, paymentID)
}

// ListPayments retrieves a user's purchase attempts
func (ps *PaymentService) ListPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	return ps.store.ListPaymentsForUser(ctx, userID)
}

// HandleWebhook applies an asynchronous gateway notification. The
// signature is verified before the payload is interpreted, duplicate
// deliveries are skipped via the processed-events log, and every
// transition it drives shares the idempotency rules of the synchronous
// paths.
func (ps *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*gateway.WebhookEvent, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := gateway.ConstructVerifiedEvent(payload, signature, ps.webhookSecret)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSignature) {
			util.WebhooksRejectedTotal.Inc()
			ps.logger.Warn("Rejected webhook with invalid signature")
		}
		return nil, err
	}

	processed, err := ps.store.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		util.WebhooksDuplicateTotal.Inc()
		ps.logger.Info("Webhook already processed", zap.String("event_id", event.ID))
		return event, nil
	}

	switch event.Type {
	case gateway.EventChargeSucceeded:
		completed, err := ps.store.CompletePaymentTx(ctx, event.PaymentID, event.Reference)
		if err != nil {
			return nil, err
		}
		util.PaymentsCompletedTotal.Inc()
		pubErr := ps.events.PublishPaymentCompleted(ctx, &models.PaymentCompletedEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentCompleted),
			PaymentID: completed.ID,
			UserID:    completed.UserID,
			Credits:   completed.CreditsRequested,
			GatewayID: event.Reference,
		})
		if pubErr != nil {
			ps.logger.Error("Failed to publish PaymentCompleted event", zap.Error(pubErr))
		}

	case gateway.EventChargeFailed:
		if err := ps.store.FailPayment(ctx, event.PaymentID, event.Reason); err != nil {
			return nil, err
		}
		util.PaymentsFailedTotal.WithLabelValues("declined").Inc()

	case gateway.EventChargeRefunded:
		refunded, clawedBack, err := ps.store.RefundPaymentTx(ctx, event.PaymentID)
		if err != nil {
			return nil, err
		}
		util.PaymentsRefundedTotal.Inc()
		pubErr := ps.events.PublishPaymentRefunded(ctx, &models.PaymentRefundedEvent{
			BaseEvent:  newBaseEvent(models.EventTypePaymentRefunded),
			PaymentID:  refunded.ID,
			UserID:     refunded.UserID,
			Credits:    refunded.CreditsRequested,
			ClawedBack: clawedBack,
		})
		if pubErr != nil {
			ps.logger.Error("Failed to publish PaymentRefunded event", zap.Error(pubErr))
		}

	default:
		ps.logger.Info("Ignoring webhook event type", zap.String("type", event.Type))
	}

	if err := ps.store.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
		ps.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	return event, nil
}
