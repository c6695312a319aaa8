package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"credit-service/internal/models"
)

// Webhook event types delivered by the processor
const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
	EventChargeRefunded  = "charge.refunded"
)

// WebhookEvent is an asynchronous notification from the processor about a
// charge the service initiated earlier.
type WebhookEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	PaymentID int64  `json:"payment_id"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// ConstructVerifiedEvent authenticates a webhook payload against its
// signature (hex HMAC-SHA256 over the raw body with the shared secret)
// before parsing it. An invalid signature fails closed: the payload is
// never interpreted.
func ConstructVerifiedEvent(payload []byte, signature, secret string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, models.ErrInvalidSignature
	}
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return nil, models.ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("webhook payload missing id or type")
	}

	return &event, nil
}

// SignPayload produces the signature the processor attaches to a payload.
// Exported for tests and the sandbox replayer.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
