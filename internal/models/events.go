package models

import "time"

// Event types published to the notification topic
const (
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypePaymentRefunded  = "PAYMENT_REFUNDED"
	EventTypeMeetingRequested = "MEETING_REQUESTED"
	EventTypeMeetingConfirmed = "MEETING_CONFIRMED"
	EventTypeMeetingCancelled = "MEETING_CANCELLED"
	EventTypeMeetingCompleted = "MEETING_COMPLETED"
	EventTypeCreditsAdjusted  = "CREDITS_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent published when a gateway charge succeeds and
// credits are granted
type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID int64  `json:"payment_id"`
	UserID    int64  `json:"user_id"`
	Credits   int64  `json:"credits"`
	GatewayID string `json:"gateway_id"`
}

// PaymentFailedEvent published when a gateway charge is declined or the
// gateway is unreachable
type PaymentFailedEvent struct {
	BaseEvent
	PaymentID int64  `json:"payment_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
}

// PaymentRefundedEvent published when a completed payment is refunded
type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID  int64 `json:"payment_id"`
	UserID     int64 `json:"user_id"`
	Credits    int64 `json:"credits"`
	ClawedBack bool  `json:"clawed_back"`
}

// MeetingRequestedEvent published when a requester books a new meeting,
// so the expert can be notified
type MeetingRequestedEvent struct {
	BaseEvent
	MeetingID   int64  `json:"meeting_id"`
	RequesterID int64  `json:"requester_id"`
	ExpertID    int64  `json:"expert_id"`
	Title       string `json:"title"`
}

// MeetingConfirmedEvent published when the expert confirms a meeting
type MeetingConfirmedEvent struct {
	BaseEvent
	MeetingID   int64 `json:"meeting_id"`
	RequesterID int64 `json:"requester_id"`
	ExpertID    int64 `json:"expert_id"`
}

// MeetingCancelledEvent published when either party cancels, or on no-show
type MeetingCancelledEvent struct {
	BaseEvent
	MeetingID   int64  `json:"meeting_id"`
	CancelledBy int64  `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

// MeetingCompletedEvent published after the settlement transfer commits
type MeetingCompletedEvent struct {
	BaseEvent
	MeetingID   int64 `json:"meeting_id"`
	RequesterID int64 `json:"requester_id"`
	ExpertID    int64 `json:"expert_id"`
	Credits     int64 `json:"credits"`
}

// CreditsAdjustedEvent published after an admin manual adjustment
type CreditsAdjustedEvent struct {
	BaseEvent
	UserID      int64  `json:"user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}
