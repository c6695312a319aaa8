package worker

import (
	"context"
	"encoding/json"
	"log"

	"credit-service/internal/broker"
	"credit-service/internal/models"
	"credit-service/internal/util"
)

// NotificationWorker consumes credit events and fans them out to users.
// Delivery is a log line here; the real channels (email, push) hang off
// the same handler.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.On(models.EventTypePaymentCompleted, notifyPaymentCompleted)
	eventHandler.On(models.EventTypePaymentFailed, notifyPaymentFailed)
	eventHandler.On(models.EventTypePaymentRefunded, notifyPaymentRefunded)
	eventHandler.On(models.EventTypeMeetingRequested, notifyMeetingRequested)
	eventHandler.On(models.EventTypeMeetingConfirmed, notifyMeetingConfirmed)
	eventHandler.On(models.EventTypeMeetingCancelled, notifyMeetingCancelled)
	eventHandler.On(models.EventTypeMeetingCompleted, notifyMeetingCompleted)

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func notifyPaymentCompleted(ctx context.Context, eventType string, payload []byte) error {
	var event models.PaymentCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify user %d: payment %d completed, %d credits added", event.UserID, event.PaymentID, event.Credits)
	return nil
}

func notifyPaymentFailed(ctx context.Context, eventType string, payload []byte) error {
	var event models.PaymentFailedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify user %d: payment %d failed: %s", event.UserID, event.PaymentID, event.Reason)
	return nil
}

func notifyPaymentRefunded(ctx context.Context, eventType string, payload []byte) error {
	var event models.PaymentRefundedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify user %d: payment %d refunded (credits reclaimed: %t)", event.UserID, event.PaymentID, event.ClawedBack)
	return nil
}

func notifyMeetingRequested(ctx context.Context, eventType string, payload []byte) error {
	var event models.MeetingRequestedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify expert %d: new meeting request %d from user %d", event.ExpertID, event.MeetingID, event.RequesterID)
	return nil
}

func notifyMeetingConfirmed(ctx context.Context, eventType string, payload []byte) error {
	var event models.MeetingConfirmedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify user %d: meeting %d confirmed by expert %d", event.RequesterID, event.MeetingID, event.ExpertID)
	return nil
}

func notifyMeetingCancelled(ctx context.Context, eventType string, payload []byte) error {
	var event models.MeetingCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify participants of meeting %d: cancelled by user %d", event.MeetingID, event.CancelledBy)
	return nil
}

func notifyMeetingCompleted(ctx context.Context, eventType string, payload []byte) error {
	var event models.MeetingCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventType, err)
		return err
	}

	util.NotificationsConsumedTotal.WithLabelValues(eventType).Inc()
	log.Printf("Notify participants of meeting %d: completed, %d credits settled to expert %d", event.MeetingID, event.Credits, event.ExpertID)
	return nil
}
