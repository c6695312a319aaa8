package store

import (
	"context"
	"database/sql"
	"fmt"

	"credit-service/internal/models"
)

// CreatePayment records a new purchase attempt in pending status
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, amount_cents, currency, credits_requested, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.UserID, payment.AmountCents, payment.Currency,
		payment.CreditsRequested, payment.PaymentMethod, payment.Status)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListPaymentsForUser retrieves a user's purchase attempts, newest first
func (s *Store) ListPaymentsForUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return payments, err
}

// CompletePaymentTx moves a pending payment to completed and grants the
// purchased credits in the same transaction, so a recorded gateway success
// without credits (or the reverse) can never be observed. Completing an
// already-completed payment is a no-op, which makes duplicate gateway
// notifications safe.
func (s *Store) CompletePaymentTx(ctx context.Context, paymentID int64, gatewayRef string) (*models.Payment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var payment models.Payment
	err = tx.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", paymentID)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}

	if payment.Status == models.PaymentStatusCompleted {
		return &payment, nil
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, models.ErrInvalidTransition
	}

	refID := payment.ID
	_, err = s.applyEntryTx(ctx, tx, EntryParams{
		UserID:        payment.UserID,
		Amount:        payment.CreditsRequested,
		Kind:          models.KindPurchase,
		Description:   fmt.Sprintf("Purchased %d credits", payment.CreditsRequested),
		ReferenceType: models.ReferencePayment,
		ReferenceID:   &refID,
	})
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &payment,
		`UPDATE payments SET status = $1, gateway_reference = $2, updated_at = NOW()
		 WHERE id = $3 RETURNING *`,
		models.PaymentStatusCompleted, gatewayRef, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FailPayment moves a pending payment to failed. Failing an
// already-failed payment is a no-op.
func (s *Store) FailPayment(ctx context.Context, paymentID int64, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, failure_reason = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		models.PaymentStatusFailed, reason, paymentID, models.PaymentStatusPending)
	if err != nil {
		return err
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated > 0 {
		return nil
	}

	payment, err := s.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentStatusFailed {
		return nil
	}
	return models.ErrInvalidTransition
}

// RefundPaymentTx moves a completed payment to refunded and attempts to
// claw back the granted credits. When the user has already spent them the
// clawback is skipped and the refund still proceeds: the money-side refund
// and the credit clawback are deliberately decoupled. The returned bool
// reports whether the clawback debit was written.
func (s *Store) RefundPaymentTx(ctx context.Context, paymentID int64) (*models.Payment, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var payment models.Payment
	err = tx.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", paymentID)
	if err == sql.ErrNoRows {
		return nil, false, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock payment: %w", err)
	}

	if payment.Status == models.PaymentStatusRefunded {
		return &payment, false, nil
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, false, models.ErrInvalidTransition
	}

	clawedBack := true
	refID := payment.ID
	_, err = s.applyEntryTx(ctx, tx, EntryParams{
		UserID:        payment.UserID,
		Amount:        -payment.CreditsRequested,
		Kind:          models.KindRefund,
		Description:   fmt.Sprintf("Clawback of %d credits for refunded payment", payment.CreditsRequested),
		ReferenceType: models.ReferencePayment,
		ReferenceID:   &refID,
	})
	if err == models.ErrInsufficientBalance {
		// Credits already spent; refund the payment record anyway.
		clawedBack = false
	} else if err != nil {
		return nil, false, err
	}

	err = tx.GetContext(ctx, &payment,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING *`,
		models.PaymentStatusRefunded, paymentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &payment, clawedBack, nil
}
