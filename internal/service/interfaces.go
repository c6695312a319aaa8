package service

import (
	"context"
	"time"

	"credit-service/internal/models"
	"credit-service/internal/store"
)

// LedgerStore is the persistence contract for accounts and their
// transaction log. Implementations must make every ApplyEntry* call an
// atomic unit: the balance precondition, the balance write and the
// transaction insert commit together or not at all, serialized per
// account.
type LedgerStore interface {
	GetOrCreateAccount(ctx context.Context, userID int64, signupBonus int64) (*models.Account, bool, error)
	GetAccountByUserID(ctx context.Context, userID int64) (*models.Account, error)
	ApplyEntry(ctx context.Context, p store.EntryParams) (*models.Transaction, error)
	ApplyEntryPair(ctx context.Context, debit, credit store.EntryParams) (*models.Transaction, *models.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, f store.TransactionFilter) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, userID int64) (int64, error)
	LatestTransaction(ctx context.Context, userID int64) (*models.Transaction, error)
}

// PaymentStore is the persistence contract for purchase attempts and
// webhook dedupe. CompletePaymentTx must grant credits and flip the
// status in one atomic unit, and be a no-op on already-completed rows.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	ListPaymentsForUser(ctx context.Context, userID int64) ([]models.Payment, error)
	CompletePaymentTx(ctx context.Context, paymentID int64, gatewayRef string) (*models.Payment, error)
	FailPayment(ctx context.Context, paymentID int64, reason string) error
	RefundPaymentTx(ctx context.Context, paymentID int64) (*models.Payment, bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// MeetingStore is the persistence contract for meetings.
// SettleMeetingTx must perform the debit, credit and status flip as one
// atomic unit, guarded against double settlement.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, meeting *models.Meeting) error
	GetMeetingByID(ctx context.Context, id int64) (*models.Meeting, error)
	ListMeetingsForUser(ctx context.Context, userID int64, status string) ([]models.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, meetingID int64, from []string, to string) (*models.Meeting, error)
	SettleMeetingTx(ctx context.Context, meetingID int64, cost int64) (*models.Meeting, error)
}

// Notifier delivers fire-and-forget domain events. A failed publish is
// logged and swallowed, never rolled into the ledger outcome.
type Notifier interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error
	PublishMeetingRequested(ctx context.Context, event *models.MeetingRequestedEvent) error
	PublishMeetingConfirmed(ctx context.Context, event *models.MeetingConfirmedEvent) error
	PublishMeetingCancelled(ctx context.Context, event *models.MeetingCancelledEvent) error
	PublishMeetingCompleted(ctx context.Context, event *models.MeetingCompletedEvent) error
	PublishCreditsAdjusted(ctx context.Context, event *models.CreditsAdjustedEvent) error
}

// Locker is a best-effort distributed mutex. The database's conditional
// writes stay authoritative; the lock only narrows contention windows.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// BalanceCache is a read-side cache of account balances, used for
// non-binding checks. Entries may lag the ledger by the cache TTL.
type BalanceCache interface {
	SetBalance(ctx context.Context, userID, balance int64) error
	GetBalance(ctx context.Context, userID int64) (int64, bool, error)
	InvalidateBalance(ctx context.Context, userID int64) error
}
