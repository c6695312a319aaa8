package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/models"
	"credit-service/internal/util"

	"go.uber.org/zap"
)

const settlementLockTTL = 10 * time.Second

// MeetingService drives a meeting through its lifecycle and triggers the
// one-time credit settlement when a confirmed meeting completes.
type MeetingService struct {
	store   MeetingStore
	balance *BalanceService
	locker  Locker
	events  Notifier
	cost    int64
	logger  *zap.Logger
}

// NewMeetingService creates a new meeting service. locker may be nil
// when Redis is not configured; settlement then relies solely on the
// store's conditional transition.
func NewMeetingService(
	meetingStore MeetingStore,
	balance *BalanceService,
	locker Locker,
	events Notifier,
	meetingCost int64,
) *MeetingService {
	return &MeetingService{
		store:   meetingStore,
		balance: balance,
		locker:  locker,
		events:  events,
		cost:    meetingCost,
		logger:  util.GetLogger(),
	}
}

// CreateMeetingRequest represents a request to book a meeting
type CreateMeetingRequest struct {
	RequesterID    int64     `json:"requester_id" binding:"required"`
	ExpertID       int64     `json:"expert_id" binding:"required"`
	Title          string    `json:"title" binding:"required"`
	Description    string    `json:"description"`
	ScheduledStart time.Time `json:"scheduled_start" binding:"required"`
	ScheduledEnd   time.Time `json:"scheduled_end" binding:"required"`
}

// Create books a meeting in pending status. The requester's balance is
// checked up front as an early, user-facing hint; the authoritative debit
// happens only at completion, so a concurrent spend can still fail the
// settlement later.
func (ms *MeetingService) Create(ctx context.Context, req *CreateMeetingRequest) (*models.Meeting, error) {
	ctx, span := util.StartSpan(ctx, "MeetingService.Create")
	defer span.End()

	if req.RequesterID == req.ExpertID {
		return nil, models.ErrSameParticipant
	}
	if !req.ScheduledEnd.After(req.ScheduledStart) {
		return nil, models.ErrInvalidWindow
	}

	if _, _, err := ms.balance.GetOrCreate(ctx, req.RequesterID); err != nil {
		return nil, err
	}
	balance, err := ms.balance.QuickBalance(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}
	if balance < ms.cost {
		return nil, models.ErrInsufficientBalance
	}

	meeting := &models.Meeting{
		RequesterID:    req.RequesterID,
		ExpertID:       req.ExpertID,
		Title:          req.Title,
		Description:    req.Description,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		Status:         models.MeetingStatusPending,
	}

	if err := ms.store.CreateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	util.MeetingsCreatedTotal.Inc()
	ms.logger.Info("Meeting created",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("requester_id", meeting.RequesterID),
		zap.Int64("expert_id", meeting.ExpertID))

	event := &models.MeetingRequestedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeMeetingRequested),
		MeetingID:   meeting.ID,
		RequesterID: meeting.RequesterID,
		ExpertID:    meeting.ExpertID,
		Title:       meeting.Title,
	}
	if err := ms.events.PublishMeetingRequested(ctx, event); err != nil {
		ms.logger.Error("Failed to publish MeetingRequested event", zap.Error(err))
	}

	return meeting, nil
}

// Confirm transitions a pending meeting to confirmed. Only the expert
// may confirm.
func (ms *MeetingService) Confirm(ctx context.Context, meetingID, actorID int64) (*models.Meeting, error) {
	ctx, span := util.StartSpan(ctx, "MeetingService.Confirm")
	defer span.End()

	meeting, err := ms.store.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if actorID != meeting.ExpertID {
		return nil, models.ErrNotParticipant
	}

	confirmed, err := ms.store.UpdateMeetingStatus(ctx, meetingID,
		[]string{models.MeetingStatusPending}, models.MeetingStatusConfirmed)
	if err != nil {
		return nil, err
	}

	event := &models.MeetingConfirmedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeMeetingConfirmed),
		MeetingID:   confirmed.ID,
		RequesterID: confirmed.RequesterID,
		ExpertID:    confirmed.ExpertID,
	}
	if err := ms.events.PublishMeetingConfirmed(ctx, event); err != nil {
		ms.logger.Error("Failed to publish MeetingConfirmed event", zap.Error(err))
	}

	return confirmed, nil
}

// Cancel transitions a pending or confirmed meeting to cancelled. Either
// participant may cancel; no credits move.
func (ms *MeetingService) Cancel(ctx context.Context, meetingID, actorID int64) (*models.Meeting, error) {
	ctx, span := util.StartSpan(ctx, "MeetingService.Cancel")
	defer span.End()

	meeting, err := ms.store.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !meeting.IsParticipant(actorID) {
		return nil, models.ErrNotParticipant
	}

	cancelled, err := ms.store.UpdateMeetingStatus(ctx, meetingID,
		[]string{models.MeetingStatusPending, models.MeetingStatusConfirmed},
		models.MeetingStatusCancelled)
	if err != nil {
		return nil, err
	}

	util.MeetingsCancelledTotal.WithLabelValues("cancelled").Inc()

	event := &models.MeetingCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeMeetingCancelled),
		MeetingID:   cancelled.ID,
		CancelledBy: actorID,
		Reason:      "cancelled",
	}
	if err := ms.events.PublishMeetingCancelled(ctx, event); err != nil {
		ms.logger.Error("Failed to publish MeetingCancelled event", zap.Error(err))
	}

	return cancelled, nil
}

// MarkNoShow transitions a pending or confirmed meeting to no_show.
// Settlement never runs: a no-show moves no credits, same as a cancel.
func (ms *MeetingService) MarkNoShow(ctx context.Context, meetingID int64) (*models.Meeting, error) {
	ctx, span := util.StartSpan(ctx, "MeetingService.MarkNoShow")
	defer span.End()

	meeting, err := ms.store.UpdateMeetingStatus(ctx, meetingID,
		[]string{models.MeetingStatusPending, models.MeetingStatusConfirmed},
		models.MeetingStatusNoShow)
	if err != nil {
		return nil, err
	}

	util.MeetingsCancelledTotal.WithLabelValues("no_show").Inc()

	event := &models.MeetingCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeMeetingCancelled),
		MeetingID: meeting.ID,
		Reason:    "no_show",
	}
	if err := ms.events.PublishMeetingCancelled(ctx, event); err != nil {
		ms.logger.Error("Failed to publish MeetingCancelled event", zap.Error(err))
	}

	return meeting, nil
}

// Complete settles a confirmed meeting: debit the requester, credit the
// expert and mark the meeting completed, all in one atomic unit. Either
// participant may trigger it. A second completion is a no-op, and an
// insufficient requester balance fails the transition with the meeting
// left confirmed.
func (ms *MeetingService) Complete(ctx context.Context, meetingID, actorID int64) (*models.Meeting, error) {
	ctx, span := util.StartSpan(ctx, "MeetingService.Complete")
	defer span.End()

	meeting, err := ms.store.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !meeting.IsParticipant(actorID) {
		return nil, models.ErrNotParticipant
	}
	if meeting.Status == models.MeetingStatusCompleted {
		return meeting, nil
	}
	if meeting.Status != models.MeetingStatusConfirmed {
		return nil, models.ErrInvalidTransition
	}

	// Best-effort serialization; the settlement transaction's row lock
	// and conditional transition remain the authoritative guard.
	if ms.locker != nil {
		key := fmt.Sprintf("meeting:%d", meetingID)
		token, ok, lockErr := ms.locker.AcquireLock(ctx, key, settlementLockTTL)
		if lockErr != nil {
			ms.logger.Warn("Settlement lock unavailable, proceeding",
				zap.Int64("meeting_id", meetingID), zap.Error(lockErr))
		} else if ok {
			defer func() {
				if err := ms.locker.ReleaseLock(ctx, key, token); err != nil {
					ms.logger.Warn("Failed to release settlement lock",
						zap.Int64("meeting_id", meetingID), zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	settled, err := ms.store.SettleMeetingTx(ctx, meetingID, ms.cost)
	util.SettlementLatency.Observe(time.Since(start).Seconds())

	if errors.Is(err, models.ErrInsufficientBalance) {
		util.SettlementFailedTotal.WithLabelValues("insufficient_balance").Inc()
		ms.logger.Warn("Settlement blocked: requester cannot cover cost",
			zap.Int64("meeting_id", meetingID),
			zap.Int64("requester_id", meeting.RequesterID))
		return nil, err
	}
	if err != nil {
		util.SettlementFailedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	util.MeetingsCompletedTotal.Inc()
	ms.balance.InvalidateCachedBalance(ctx, settled.RequesterID)
	ms.balance.InvalidateCachedBalance(ctx, settled.ExpertID)

	ms.logger.Info("Meeting completed and settled",
		zap.Int64("meeting_id", settled.ID),
		zap.Int64("credits", ms.cost))

	event := &models.MeetingCompletedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeMeetingCompleted),
		MeetingID:   settled.ID,
		RequesterID: settled.RequesterID,
		ExpertID:    settled.ExpertID,
		Credits:     ms.cost,
	}
	if err := ms.events.PublishMeetingCompleted(ctx, event); err != nil {
		ms.logger.Error("Failed to publish MeetingCompleted event", zap.Error(err))
	}

	return settled, nil
}

// TransferCredits moves extra credits from the requester to the expert
// of a completed meeting, e.g. a tip on top of the settled cost. Only
// the requester may initiate it.
func (ms *MeetingService) TransferCredits(ctx context.Context, meetingID, actorID, amount int64) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "MeetingService.TransferCredits")
	defer span.End()

	meeting, err := ms.store.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingStatusCompleted {
		return nil, models.ErrInvalidTransition
	}
	if actorID != meeting.RequesterID {
		return nil, models.ErrNotParticipant
	}

	debitEntry, _, err := ms.balance.Transfer(ctx, meeting.RequesterID, meeting.ExpertID, amount, meeting.ID)
	if err != nil {
		return nil, err
	}
	return debitEntry, nil
}

// Get retrieves a meeting by ID
func (ms *MeetingService) Get(ctx context.Context, meetingID int64) (*models.Meeting, error) {
	return ms.store.GetMeetingByID(ctx, meetingID)
}

// ListForUser retrieves meetings where the user participates
func (ms *MeetingService) ListForUser(ctx context.Context, userID int64, status string) ([]models.Meeting, error) {
	return ms.store.ListMeetingsForUser(ctx, userID, status)
}
