package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"credit-service/internal/gateway"
	"credit-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

var testPackages = []models.CreditPackage{
	{ID: "starter", Credits: 10, PriceCents: 499},
	{ID: "standard", Credits: 50, PriceCents: 999},
}

func newPaymentServiceForTest(gw gateway.Gateway) (*PaymentService, *memStore, *noopNotifier) {
	ms := newMemStore()
	notifier := newNoopNotifier()
	svc := NewPaymentService(ms, gw, notifier, testWebhookSecret, "USD", testPackages)
	return svc, ms, notifier
}

func starterPurchase() InitiateParams {
	return InitiateParams{UserID: 7, PackageID: "starter", PaymentMethod: "card"}
}

func TestInitiateRejectsUnknownPackage(t *testing.T) {
	svc, _, _ := newPaymentServiceForTest(&stubGateway{})

	_, err := svc.Initiate(context.Background(), InitiateParams{UserID: 7, PackageID: "jumbo", PaymentMethod: "card"})
	assert.ErrorIs(t, err, models.ErrUnknownPackage)
}

func TestInitiateAcceptsRawAmount(t *testing.T) {
	svc, _, _ := newPaymentServiceForTest(&stubGateway{})
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, InitiateParams{
		UserID:        7,
		Credits:       25,
		AmountCents:   750,
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), payment.CreditsRequested)
	assert.Equal(t, int64(750), payment.AmountCents)

	// no package and no explicit pair is rejected
	_, err = svc.Initiate(ctx, InitiateParams{UserID: 7, PaymentMethod: "card"})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestAuthorizeGrantsCreditsOnce(t *testing.T) {
	gw := &stubGateway{}
	svc, ms, notifier := newPaymentServiceForTest(gw)
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, int64(499), payment.AmountCents)
	assert.Equal(t, int64(10), payment.CreditsRequested)

	completed, err := svc.Authorize(ctx, payment.ID, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, completed.Status)
	assert.Equal(t, "ch_stub_1", completed.GatewayReference)
	assert.Equal(t, 1, notifier.count(models.EventTypePaymentCompleted))

	account, err := ms.GetAccountByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), account.Balance)

	// a second Authorize is a no-op and grants nothing
	again, err := svc.Authorize(ctx, payment.ID, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, again.Status)
	assert.Equal(t, 1, gw.charges)

	account, err = ms.GetAccountByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), account.Balance)
}

func TestAuthorizeDeclinedLeavesBalanceUntouched(t *testing.T) {
	gw := &stubGateway{declineErr: fmt.Errorf("%w: card_declined", models.ErrGatewayDeclined)}
	svc, ms, notifier := newPaymentServiceForTest(gw)
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)

	_, err = svc.Authorize(ctx, payment.ID, "tok_bad")
	assert.ErrorIs(t, err, models.ErrGatewayDeclined)
	assert.Equal(t, 1, notifier.count(models.EventTypePaymentFailed))

	failed, err := svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "charge declined", failed.FailureReason)

	_, err = ms.GetAccountByUserID(ctx, 7)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	// failed is terminal
	_, err = svc.Authorize(ctx, payment.ID, "tok_retry")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAuthorizeUnreachableGateway(t *testing.T) {
	gw := &stubGateway{declineErr: fmt.Errorf("%w: connection refused", models.ErrGatewayUnreachable)}
	svc, _, _ := newPaymentServiceForTest(gw)
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)

	_, err = svc.Authorize(ctx, payment.ID, "tok_visa")
	assert.ErrorIs(t, err, models.ErrGatewayUnreachable)

	failed, err := svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "gateway unreachable", failed.FailureReason)
}

func TestRefundClawsBackCredits(t *testing.T) {
	svc, ms, notifier := newPaymentServiceForTest(&stubGateway{})
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, payment.ID, "tok_visa")
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, payment.ID, "requested by user")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, 1, notifier.count(models.EventTypePaymentRefunded))

	account, err := ms.GetAccountByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	// refunding again is a no-op
	again, err := svc.Refund(ctx, payment.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, again.Status)
	assert.Equal(t, 1, notifier.count(models.EventTypePaymentRefunded))
}

func TestRefundSkipsClawbackWhenCreditsSpent(t *testing.T) {
	svc, ms, _ := newPaymentServiceForTest(&stubGateway{})
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, payment.ID, "tok_visa")
	require.NoError(t, err)

	// spend most of the purchased credits before the refund lands
	balanceSvc := NewBalanceService(ms, nil, newNoopNotifier(), 0)
	_, err = balanceSvc.Debit(ctx, 7, 8, models.KindBookingSpend, "meetings", "", nil)
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, payment.ID, "dispute")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)

	// clawback skipped: refund stands, remaining balance untouched
	account, err := ms.GetAccountByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.Balance)
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	svc, _, _ := newPaymentServiceForTest(&stubGateway{})
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)

	_, err = svc.Refund(ctx, payment.ID, "too early")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func signedWebhook(t *testing.T, event gateway.WebhookEvent) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload, gateway.SignPayload(payload, testWebhookSecret)
}

func TestHandleWebhookCompletesPayment(t *testing.T) {
	svc, ms, _ := newPaymentServiceForTest(&stubGateway{})
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)

	payload, sig := signedWebhook(t, gateway.WebhookEvent{
		ID:        "evt_1",
		Type:      gateway.EventChargeSucceeded,
		PaymentID: payment.ID,
		Reference: "ch_async_1",
	})

	_, err = svc.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)

	completed, err := svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, completed.Status)
	assert.Equal(t, "ch_async_1", completed.GatewayReference)

	account, err := ms.GetAccountByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), account.Balance)

	// duplicate delivery of the same event grants nothing
	_, err = svc.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)

	account, err = ms.GetAccountByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), account.Balance)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc, _, _ := newPaymentServiceForTest(&stubGateway{})
	ctx := context.Background()

	payment, err := svc.Initiate(ctx, starterPurchase())
	require.NoError(t, err)

	payload, _ := signedWebhook(t, gateway.WebhookEvent{
		ID:        "evt_2",
		Type:      gateway.EventChargeSucceeded,
		PaymentID: payment.ID,
	})

	_, err = svc.HandleWebhook(ctx, payload, "deadbeef")
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	pending, err := svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, pending.Status)
}
