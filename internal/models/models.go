package models

import "time"

// Account holds a user's credit balance. One row per user, created lazily
// the first time the ledger needs it.
type Account struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Balance        int64     `db:"balance" json:"balance"`
	LifetimeEarned int64     `db:"lifetime_earned" json:"lifetime_earned"`
	LifetimeSpent  int64     `db:"lifetime_spent" json:"lifetime_spent"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one immutable ledger entry. Amount is signed: positive
// entries credit the account, negative entries debit it. BalanceAfter
// snapshots the account balance at commit time, so the history is
// self-auditing.
type Transaction struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	Amount        int64     `db:"amount" json:"amount"`
	Kind          string    `db:"kind" json:"kind"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	Description   string    `db:"description" json:"description"`
	ReferenceType string    `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *int64    `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Transaction kinds
const (
	KindPurchase     = "purchase"
	KindBookingSpend = "booking_spend"
	KindBookingEarn  = "booking_earn"
	KindRefund       = "refund"
	KindBonus        = "bonus"
	KindAdjustment   = "adjustment"
	KindTransfer     = "transfer"
)

// Transaction reference types
const (
	ReferencePayment = "payment"
	ReferenceMeeting = "meeting"
)

// Payment represents one attempt to buy credits with real money through
// the external gateway.
type Payment struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	AmountCents      int64     `db:"amount_cents" json:"amount_cents"`
	Currency         string    `db:"currency" json:"currency"`
	CreditsRequested int64     `db:"credits_requested" json:"credits_requested"`
	PaymentMethod    string    `db:"payment_method" json:"payment_method"`
	Status           string    `db:"status" json:"status"`
	GatewayReference string    `db:"gateway_reference" json:"gateway_reference,omitempty"`
	FailureReason    string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Payment statuses. Legal transitions: pending -> completed,
// pending -> failed, completed -> refunded. Nothing ever moves backwards.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Meeting is a scheduled consultation between a requester and an expert.
// Completing a confirmed meeting settles the credit transfer exactly once.
type Meeting struct {
	ID             int64     `db:"id" json:"id"`
	RequesterID    int64     `db:"requester_id" json:"requester_id"`
	ExpertID       int64     `db:"expert_id" json:"expert_id"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description,omitempty"`
	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time `db:"scheduled_end" json:"scheduled_end"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Meeting statuses. completed, cancelled and no_show are terminal.
const (
	MeetingStatusPending   = "pending"
	MeetingStatusConfirmed = "confirmed"
	MeetingStatusCompleted = "completed"
	MeetingStatusCancelled = "cancelled"
	MeetingStatusNoShow    = "no_show"
)

// IsParticipant reports whether userID is either side of the meeting.
func (m *Meeting) IsParticipant(userID int64) bool {
	return userID == m.RequesterID || userID == m.ExpertID
}

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	ID         string `json:"id"`
	Credits    int64  `json:"credits"`
	PriceCents int64  `json:"price_cents"`
}

// ProcessedEvent records externally delivered events (gateway webhooks)
// that have already been applied, for at-least-once delivery dedupe.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
