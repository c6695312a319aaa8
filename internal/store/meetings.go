package store

import (
	"context"
	"database/sql"
	"fmt"

	"credit-service/internal/models"

	"github.com/lib/pq"
)

// CreateMeeting creates a new meeting in pending status
func (s *Store) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	query := `
		INSERT INTO meetings (requester_id, expert_id, title, description, scheduled_start, scheduled_end, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, meeting, query,
		meeting.RequesterID, meeting.ExpertID, meeting.Title, meeting.Description,
		meeting.ScheduledStart, meeting.ScheduledEnd, meeting.Status)
}

// GetMeetingByID retrieves a meeting by ID
func (s *Store) GetMeetingByID(ctx context.Context, id int64) (*models.Meeting, error) {
	var meeting models.Meeting
	err := s.db.GetContext(ctx, &meeting, "SELECT * FROM meetings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrMeetingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

// ListMeetingsForUser retrieves meetings where the user is requester or
// expert, optionally filtered by status, newest scheduled first
func (s *Store) ListMeetingsForUser(ctx context.Context, userID int64, status string) ([]models.Meeting, error) {
	query := "SELECT * FROM meetings WHERE (requester_id = $1 OR expert_id = $1)"
	args := []interface{}{userID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY scheduled_start DESC"

	var meetings []models.Meeting
	err := s.db.SelectContext(ctx, &meetings, query, args...)
	return meetings, err
}

// UpdateMeetingStatus transitions a meeting to a new status only if its
// current status is one of from. The conditional write makes concurrent
// transitions race-safe: the loser sees zero rows updated.
func (s *Store) UpdateMeetingStatus(ctx context.Context, meetingID int64, from []string, to string) (*models.Meeting, error) {
	var meeting models.Meeting
	err := s.db.GetContext(ctx, &meeting,
		`UPDATE meetings SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = ANY($3) RETURNING *`,
		to, meetingID, pq.Array(from))
	if err == sql.ErrNoRows {
		if _, getErr := s.GetMeetingByID(ctx, meetingID); getErr != nil {
			return nil, getErr
		}
		return nil, models.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

// SettleMeetingTx completes a confirmed meeting and performs the one-time
// credit transfer as a single atomic unit: debit the requester, credit the
// expert, mark the meeting completed. The meeting row lock serializes
// concurrent completions, and a booking-spend entry already referencing
// the meeting makes the call a no-op. If the requester cannot cover the
// cost the whole unit rolls back and the meeting stays confirmed.
func (s *Store) SettleMeetingTx(ctx context.Context, meetingID int64, cost int64) (*models.Meeting, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var meeting models.Meeting
	err = tx.GetContext(ctx, &meeting, "SELECT * FROM meetings WHERE id = $1 FOR UPDATE", meetingID)
	if err == sql.ErrNoRows {
		return nil, models.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock meeting: %w", err)
	}

	if meeting.Status == models.MeetingStatusCompleted {
		return &meeting, nil
	}
	if meeting.Status != models.MeetingStatusConfirmed {
		return nil, models.ErrInvalidTransition
	}

	var settled bool
	err = tx.GetContext(ctx, &settled,
		`SELECT EXISTS(SELECT 1 FROM credit_transactions
		  WHERE kind = $1 AND reference_type = $2 AND reference_id = $3)`,
		models.KindBookingSpend, models.ReferenceMeeting, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior settlement: %w", err)
	}

	if !settled {
		refID := meeting.ID
		debit := EntryParams{
			UserID:        meeting.RequesterID,
			Amount:        -cost,
			Kind:          models.KindBookingSpend,
			Description:   fmt.Sprintf("Spent %d credit(s) on meeting %q", cost, meeting.Title),
			ReferenceType: models.ReferenceMeeting,
			ReferenceID:   &refID,
		}
		credit := EntryParams{
			UserID:        meeting.ExpertID,
			Amount:        cost,
			Kind:          models.KindBookingEarn,
			Description:   fmt.Sprintf("Earned %d credit(s) from meeting %q", cost, meeting.Title),
			ReferenceType: models.ReferenceMeeting,
			ReferenceID:   &refID,
		}

		if _, _, err := s.applyEntryPairTx(ctx, tx, debit, credit); err != nil {
			return nil, err
		}
	}

	err = tx.GetContext(ctx, &meeting,
		`UPDATE meetings SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING *`,
		models.MeetingStatusCompleted, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark meeting completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &meeting, nil
}
