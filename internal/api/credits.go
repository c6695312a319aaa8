package api

import (
	"net/http"
	"strconv"
	"time"

	"credit-service/internal/store"

	"github.com/gin-gonic/gin"
)

// getBalance returns the user's account, creating it on first access
func (h *Handler) getBalance(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	account, created, err := h.balanceService.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"created": created,
	})
}

// listTransactions returns the user's ledger history, newest first,
// filterable by kind and date range
func (h *Handler) listTransactions(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	filter := store.TransactionFilter{
		Kind: c.Query("kind"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": "invalid from timestamp"})
			return
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": "invalid to timestamp"})
			return
		}
		filter.To = t
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.balanceService.History(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": entries,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// adjustRequest is an admin manual correction
type adjustRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// adminAdjust applies an admin credit or debit with a mandatory audit
// description
func (h *Handler) adminAdjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	entry, err := h.balanceService.Adjust(c.Request.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}
