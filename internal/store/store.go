package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"credit-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAccountByUserID retrieves the credit account owned by a user
func (s *Store) GetAccountByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	var acct models.Account
	err := s.db.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetOrCreateAccount returns the user's account, creating it with a zero
// balance if it does not exist. The returned bool reports whether the row
// was created by this call. A configured signup bonus is granted only on
// the created branch, inside the same transaction as the row insert, so a
// second call can never grant a second bonus.
func (s *Store) GetOrCreateAccount(ctx context.Context, userID int64, signupBonus int64) (*models.Account, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert account: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	created := inserted > 0

	if created && signupBonus > 0 {
		_, err := s.applyEntryTx(ctx, tx, EntryParams{
			UserID:      userID,
			Amount:      signupBonus,
			Kind:        models.KindBonus,
			Description: "Welcome bonus for new account",
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to grant signup bonus: %w", err)
		}
	}

	var acct models.Account
	if err := tx.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE user_id = $1", userID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &acct, created, nil
}

// IsEventProcessed checks if an external event has already been applied
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records an external event as applied
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
