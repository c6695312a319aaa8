package store

import (
	"context"
	"fmt"
	"time"

	"credit-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// EntryParams describes one signed ledger entry. Amount > 0 credits the
// account, amount < 0 debits it.
type EntryParams struct {
	UserID        int64
	Amount        int64
	Kind          string
	Description   string
	ReferenceType string
	ReferenceID   *int64
}

// TransactionFilter narrows a transaction history query.
type TransactionFilter struct {
	Kind   string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// applyEntryTx is the single write path for account balances. Inside the
// caller's transaction it locks the account row (creating it first if
// missing), verifies the balance cannot go negative, updates balance and
// lifetime counters, and appends the paired transaction row. The row lock
// serializes concurrent debits against the same account: two debits whose
// sum exceeds the balance cannot both pass the check.
func (s *Store) applyEntryTx(ctx context.Context, tx *sqlx.Tx, p EntryParams) (*models.Transaction, error) {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}

	var acct models.Account
	err = tx.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE user_id = $1 FOR UPDATE", p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	newBalance := acct.Balance + p.Amount
	if newBalance < 0 {
		return nil, models.ErrInsufficientBalance
	}

	// Refund clawbacks adjust the balance without counting as earning or
	// spending; everything else feeds the lifetime counters.
	var earned, spent int64
	if p.Kind != models.KindRefund {
		if p.Amount > 0 {
			earned = p.Amount
		} else {
			spent = -p.Amount
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts
		 SET balance = $1,
		     lifetime_earned = lifetime_earned + $2,
		     lifetime_spent = lifetime_spent + $3,
		     updated_at = NOW()
		 WHERE id = $4`,
		newBalance, earned, spent, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := models.Transaction{
		UserID:        p.UserID,
		Amount:        p.Amount,
		Kind:          p.Kind,
		BalanceAfter:  newBalance,
		Description:   p.Description,
		ReferenceType: p.ReferenceType,
		ReferenceID:   p.ReferenceID,
	}

	err = tx.GetContext(ctx, &entry,
		`INSERT INTO credit_transactions
		     (user_id, amount, kind, balance_after, description, reference_type, reference_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		entry.UserID, entry.Amount, entry.Kind, entry.BalanceAfter,
		entry.Description, entry.ReferenceType, entry.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	return &entry, nil
}

// ApplyEntry applies one ledger entry in its own transaction. The balance
// check, balance write and transaction insert commit together or not at
// all, so a balance change without its audit row can never be observed.
func (s *Store) ApplyEntry(ctx context.Context, p EntryParams) (*models.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.applyEntryTx(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyEntryPair applies a debit and a credit as one atomic unit. Accounts
// are locked in user-id order so two concurrent pairs touching the same
// accounts cannot deadlock. If the debit side lacks funds, neither entry
// is written.
func (s *Store) ApplyEntryPair(ctx context.Context, debit, credit EntryParams) (*models.Transaction, *models.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	debitEntry, creditEntry, err := s.applyEntryPairTx(ctx, tx, debit, credit)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return debitEntry, creditEntry, nil
}

func (s *Store) applyEntryPairTx(ctx context.Context, tx *sqlx.Tx, debit, credit EntryParams) (*models.Transaction, *models.Transaction, error) {
	var debitEntry, creditEntry *models.Transaction
	var err error

	if debit.UserID <= credit.UserID {
		if debitEntry, err = s.applyEntryTx(ctx, tx, debit); err != nil {
			return nil, nil, err
		}
		if creditEntry, err = s.applyEntryTx(ctx, tx, credit); err != nil {
			return nil, nil, err
		}
	} else {
		if creditEntry, err = s.applyEntryTx(ctx, tx, credit); err != nil {
			return nil, nil, err
		}
		if debitEntry, err = s.applyEntryTx(ctx, tx, debit); err != nil {
			return nil, nil, err
		}
	}

	return debitEntry, creditEntry, nil
}

// ListTransactions retrieves a user's ledger history, newest first
func (s *Store) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]models.Transaction, error) {
	query := "SELECT * FROM credit_transactions WHERE user_id = $1"
	args := []interface{}{userID}

	if f.Kind != "" {
		args = append(args, f.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var entries []models.Transaction
	err := s.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

// SumTransactions returns the signed sum of all entries for a user, used
// by the balance consistency self-check.
func (s *Store) SumTransactions(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1", userID)
	return sum, err
}

// LatestTransaction returns the newest entry for a user, or nil when the
// ledger is empty.
func (s *Store) LatestTransaction(ctx context.Context, userID int64) (*models.Transaction, error) {
	var entries []models.Transaction
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1", userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
