package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"credit-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes domain events to the notification topic.
// Publishing is fire-and-forget from the ledger's point of view: a
// publish failure is logged by the caller and never rolls back a
// committed mutation.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPaymentCompleted publishes PaymentCompleted
func (ep *EventPublisher) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishPaymentFailed publishes PaymentFailed
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishPaymentRefunded publishes PaymentRefunded
func (ep *EventPublisher) PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishMeetingRequested publishes MeetingRequested
func (ep *EventPublisher) PublishMeetingRequested(ctx context.Context, event *models.MeetingRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, meetingKey(event.MeetingID), event)
}

// PublishMeetingConfirmed publishes MeetingConfirmed
func (ep *EventPublisher) PublishMeetingConfirmed(ctx context.Context, event *models.MeetingConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, meetingKey(event.MeetingID), event)
}

// PublishMeetingCancelled publishes MeetingCancelled
func (ep *EventPublisher) PublishMeetingCancelled(ctx context.Context, event *models.MeetingCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, meetingKey(event.MeetingID), event)
}

// PublishMeetingCompleted publishes MeetingCompleted
func (ep *EventPublisher) PublishMeetingCompleted(ctx context.Context, event *models.MeetingCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, meetingKey(event.MeetingID), event)
}

// PublishCreditsAdjusted publishes CreditsAdjusted
func (ep *EventPublisher) PublishCreditsAdjusted(ctx context.Context, event *models.CreditsAdjustedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("user-%d", event.UserID), event)
}

func paymentKey(id int64) string {
	return fmt.Sprintf("payment-%d", id)
}

func meetingKey(id int64) string {
	return fmt.Sprintf("meeting-%d", id)
}

// EventHandler routes consumed notification events to registered
// callbacks keyed by event type.
type EventHandler struct {
	handlers map[string]func(ctx context.Context, eventType string, payload []byte) error
	fallback func(ctx context.Context, eventType string, payload []byte) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]func(ctx context.Context, eventType string, payload []byte) error),
	}
}

// On registers a handler for one event type
func (eh *EventHandler) On(eventType string, handler func(ctx context.Context, eventType string, payload []byte) error) {
	eh.handlers[eventType] = handler
}

// OnAny registers a fallback handler for event types with no specific one
func (eh *EventHandler) OnAny(handler func(ctx context.Context, eventType string, payload []byte) error) {
	eh.fallback = handler
}

// HandleMessage routes messages to the appropriate handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	if handler, ok := eh.handlers[base.EventType]; ok {
		return handler(ctx, base.EventType, msg.Value)
	}
	if eh.fallback != nil {
		return eh.fallback(ctx, base.EventType, msg.Value)
	}

	log.Printf("Unhandled event type: %s", base.EventType)
	return nil
}
