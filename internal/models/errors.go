package models

import "errors"

// Domain errors. Handlers map these to HTTP statuses with errors.Is;
// everything else surfaces as an internal error.
var (
	// ErrInvalidAmount rejects a non-positive credit/debit amount before
	// any mutation.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance rejects a debit that would drive the balance
	// negative. Nothing is written when it fires.
	ErrInsufficientBalance = errors.New("insufficient credit balance")

	ErrAccountNotFound = errors.New("account not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrInvalidTransition means the requested status change is not legal
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotParticipant means the acting user has no role on the meeting,
	// or the wrong role for the transition.
	ErrNotParticipant = errors.New("actor is not permitted for this meeting")

	ErrSameParticipant  = errors.New("requester and expert must differ")
	ErrInvalidWindow    = errors.New("scheduled end must be after start")
	ErrUnknownPackage   = errors.New("unknown credit package")
	ErrEmptyDescription = errors.New("audit description is required")

	// ErrGatewayDeclined is a definitive charge rejection from the
	// payment gateway.
	ErrGatewayDeclined = errors.New("payment gateway declined the charge")

	// ErrGatewayUnreachable covers timeouts and transport failures talking
	// to the gateway. The attempt is failed, never left pending.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")

	// ErrInvalidSignature rejects a webhook whose signature does not
	// verify. Processing fails closed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
