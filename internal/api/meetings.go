package api

import (
	"context"
	"net/http"

	"credit-service/internal/models"
	"credit-service/internal/service"

	"github.com/gin-gonic/gin"
)

// createMeeting books a meeting
func (h *Handler) createMeeting(c *gin.Context) {
	var req service.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	meeting, err := h.meetingService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"meeting": meeting})
}

// getMeeting returns a meeting by ID
func (h *Handler) getMeeting(c *gin.Context) {
	meetingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	meeting, err := h.meetingService.Get(c.Request.Context(), meetingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"meeting": meeting})
}

// listMeetings returns meetings where the user participates
func (h *Handler) listMeetings(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	meetings, err := h.meetingService.ListForUser(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

// actorRequest identifies who is driving a transition. Identity comes
// from the user directory upstream; this service only checks roles.
type actorRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
}

// confirmMeeting lets the expert confirm a pending meeting
func (h *Handler) confirmMeeting(c *gin.Context) {
	h.transition(c, h.meetingService.Confirm)
}

// cancelMeeting lets either participant cancel
func (h *Handler) cancelMeeting(c *gin.Context) {
	h.transition(c, h.meetingService.Cancel)
}

// completeMeeting triggers settlement
func (h *Handler) completeMeeting(c *gin.Context) {
	h.transition(c, h.meetingService.Complete)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, meetingID, actorID int64) (*models.Meeting, error)) {
	meetingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	meeting, err := fn(c.Request.Context(), meetingID, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"meeting": meeting})
}

// noShowMeeting marks a meeting as a no-show; no credits move
func (h *Handler) noShowMeeting(c *gin.Context) {
	meetingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	meeting, err := h.meetingService.MarkNoShow(c.Request.Context(), meetingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"meeting": meeting})
}

// transferRequest moves extra credits on a completed meeting
type transferRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
	Amount  int64 `json:"amount"`
}

// transferCredits moves extra credits from requester to expert on a
// completed meeting; amount defaults to 1
func (h *Handler) transferCredits(c *gin.Context) {
	meetingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	entry, err := h.meetingService.TransferCredits(c.Request.Context(), meetingID, req.ActorID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}
