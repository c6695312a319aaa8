package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/models"
	"credit-service/internal/store"
	"credit-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceService is the sole authority over account balances. Every
// balance delta flows through Credit, Debit or Adjust, each of which
// commits exactly one paired transaction row with the balance write.
type BalanceService struct {
	store       LedgerStore
	cache       BalanceCache
	events      Notifier
	signupBonus int64
	logger      *zap.Logger
}

// NewBalanceService creates a new balance service. cache may be nil when
// Redis is not configured.
func NewBalanceService(ledger LedgerStore, cache BalanceCache, events Notifier, signupBonus int64) *BalanceService {
	return &BalanceService{
		store:       ledger,
		cache:       cache,
		events:      events,
		signupBonus: signupBonus,
		logger:      util.GetLogger(),
	}
}

// GetOrCreate returns the user's account, creating it on first use. The
// returned bool distinguishes Created from Existing so callers can react
// to first-time accounts deterministically. The signup bonus is granted
// only on the created branch, atomically with the row insert.
func (s *BalanceService) GetOrCreate(ctx context.Context, userID int64) (*models.Account, bool, error) {
	ctx, span := util.StartSpan(ctx, "BalanceService.GetOrCreate")
	defer span.End()

	account, created, err := s.store.GetOrCreateAccount(ctx, userID, s.signupBonus)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create account: %w", err)
	}

	if created {
		util.AccountsCreatedTotal.Inc()
		s.logger.Info("Account created",
			zap.Int64("user_id", userID),
			zap.Int64("signup_bonus", s.signupBonus))
	}

	s.cacheBalance(ctx, userID, account.Balance)
	return account, created, nil
}

// GetAccount returns the user's account from the ledger, refreshing the
// balance cache along the way.
func (s *BalanceService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	account, err := s.store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheBalance(ctx, userID, account.Balance)
	return account, nil
}

// QuickBalance returns a possibly cached balance for non-binding checks.
// It never substitutes for the in-transaction balance check.
func (s *BalanceService) QuickBalance(ctx context.Context, userID int64) (int64, error) {
	if s.cache != nil {
		balance, ok, err := s.cache.GetBalance(ctx, userID)
		if err == nil && ok {
			return balance, nil
		}
	}

	account, err := s.store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cacheBalance(ctx, userID, account.Balance)
	return account.Balance, nil
}

// Credit adds amount credits to the user's account.
func (s *BalanceService) Credit(ctx context.Context, userID, amount int64, kind, description string, refType string, refID *int64) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "BalanceService.Credit")
	defer span.End()

	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	entry, err := s.store.ApplyEntry(ctx, store.EntryParams{
		UserID:        userID,
		Amount:        amount,
		Kind:          kind,
		Description:   description,
		ReferenceType: refType,
		ReferenceID:   refID,
	})
	if err != nil {
		return nil, err
	}

	util.CreditsGrantedTotal.WithLabelValues(kind).Add(float64(amount))
	s.cacheBalance(ctx, userID, entry.BalanceAfter)
	return entry, nil
}

// Debit removes amount credits from the user's account. The balance
// check and the write happen in the same atomic unit, so two concurrent
// debits can never jointly overdraw the account.
func (s *BalanceService) Debit(ctx context.Context, userID, amount int64, kind, description string, refType string, refID *int64) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "BalanceService.Debit")
	defer span.End()

	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	entry, err := s.store.ApplyEntry(ctx, store.EntryParams{
		UserID:        userID,
		Amount:        -amount,
		Kind:          kind,
		Description:   description,
		ReferenceType: refType,
		ReferenceID:   refID,
	})
	if errors.Is(err, models.ErrInsufficientBalance) {
		util.InsufficientBalanceTotal.Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	util.CreditsDebitedTotal.WithLabelValues(kind).Add(float64(amount))
	s.cacheBalance(ctx, userID, entry.BalanceAfter)
	return entry, nil
}

// Adjust applies an admin manual correction, positive or negative. The
// audit description is mandatory.
func (s *BalanceService) Adjust(ctx context.Context, userID, amount int64, description string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "BalanceService.Adjust")
	defer span.End()

	if amount == 0 {
		return nil, models.ErrInvalidAmount
	}
	if description == "" {
		return nil, models.ErrEmptyDescription
	}

	var entry *models.Transaction
	var err error
	if amount > 0 {
		entry, err = s.Credit(ctx, userID, amount, models.KindAdjustment, description, "", nil)
	} else {
		entry, err = s.Debit(ctx, userID, -amount, models.KindAdjustment, description, "", nil)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Manual adjustment applied",
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("description", description))

	event := &models.CreditsAdjustedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeCreditsAdjusted),
		UserID:      userID,
		Amount:      amount,
		Description: description,
	}
	if err := s.events.PublishCreditsAdjusted(ctx, event); err != nil {
		s.logger.Error("Failed to publish CreditsAdjusted event", zap.Error(err))
	}

	return entry, nil
}

// Transfer moves amount credits between two users as one atomic unit,
// recorded as a transfer pair referencing the meeting.
func (s *BalanceService) Transfer(ctx context.Context, fromUserID, toUserID, amount, meetingID int64) (*models.Transaction, *models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "BalanceService.Transfer")
	defer span.End()

	if amount <= 0 {
		return nil, nil, models.ErrInvalidAmount
	}

	refID := meetingID
	debit := store.EntryParams{
		UserID:        fromUserID,
		Amount:        -amount,
		Kind:          models.KindTransfer,
		Description:   fmt.Sprintf("Transferred %d credit(s) to user %d", amount, toUserID),
		ReferenceType: models.ReferenceMeeting,
		ReferenceID:   &refID,
	}
	credit := store.EntryParams{
		UserID:        toUserID,
		Amount:        amount,
		Kind:          models.KindTransfer,
		Description:   fmt.Sprintf("Received %d credit(s) from user %d", amount, fromUserID),
		ReferenceType: models.ReferenceMeeting,
		ReferenceID:   &refID,
	}

	debitEntry, creditEntry, err := s.store.ApplyEntryPair(ctx, debit, credit)
	if errors.Is(err, models.ErrInsufficientBalance) {
		util.InsufficientBalanceTotal.Inc()
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	util.CreditsDebitedTotal.WithLabelValues(models.KindTransfer).Add(float64(amount))
	util.CreditsGrantedTotal.WithLabelValues(models.KindTransfer).Add(float64(amount))
	s.cacheBalance(ctx, fromUserID, debitEntry.BalanceAfter)
	s.cacheBalance(ctx, toUserID, creditEntry.BalanceAfter)
	return debitEntry, creditEntry, nil
}

// History returns the user's ledger entries, newest first.
func (s *BalanceService) History(ctx context.Context, userID int64, filter store.TransactionFilter) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, filter)
}

// VerifyBalance replays the user's transaction log and checks it against
// the stored balance: the signed sum of all entries must equal the
// balance, and the newest entry's snapshot must match it.
func (s *BalanceService) VerifyBalance(ctx context.Context, userID int64) error {
	account, err := s.store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return err
	}

	sum, err := s.store.SumTransactions(ctx, userID)
	if err != nil {
		return err
	}
	if sum != account.Balance {
		return fmt.Errorf("ledger inconsistency for user %d: balance=%d, entry sum=%d",
			userID, account.Balance, sum)
	}

	latest, err := s.store.LatestTransaction(ctx, userID)
	if err != nil {
		return err
	}
	if latest != nil && latest.BalanceAfter != account.Balance {
		return fmt.Errorf("ledger inconsistency for user %d: balance=%d, latest snapshot=%d",
			userID, account.Balance, latest.BalanceAfter)
	}

	return nil
}

// InvalidateCachedBalance drops a user's cached balance after mutations
// performed outside this service.
func (s *BalanceService) InvalidateCachedBalance(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBalance(ctx, userID); err != nil {
		s.logger.Warn("Failed to invalidate cached balance",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *BalanceService) cacheBalance(ctx context.Context, userID, balance int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetBalance(ctx, userID, balance); err != nil {
		s.logger.Warn("Failed to cache balance",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
