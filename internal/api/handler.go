package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"credit-service/internal/models"
	"credit-service/internal/service"
	"credit-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	balanceService *service.BalanceService
	paymentService *service.PaymentService
	meetingService *service.MeetingService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	balanceService *service.BalanceService,
	paymentService *service.PaymentService,
	meetingService *service.MeetingService,
) *Handler {
	return &Handler{
		balanceService: balanceService,
		paymentService: paymentService,
		meetingService: meetingService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/users/:user_id/balance", h.getBalance)
		v1.GET("/users/:user_id/transactions", h.listTransactions)
		v1.GET("/users/:user_id/meetings", h.listMeetings)
		v1.GET("/users/:user_id/payments", h.listPayments)

		v1.GET("/packages", h.listPackages)
		v1.POST("/payments", h.initiatePayment)
		v1.GET("/payments/:id", h.getPayment)
		v1.POST("/payments/:id/authorize", h.authorizePayment)
		v1.POST("/payments/:id/refund", h.refundPayment)
		v1.POST("/payments/webhook", h.paymentWebhook)

		v1.POST("/meetings", h.createMeeting)
		v1.GET("/meetings/:id", h.getMeeting)
		v1.POST("/meetings/:id/confirm", h.confirmMeeting)
		v1.POST("/meetings/:id/cancel", h.cancelMeeting)
		v1.POST("/meetings/:id/complete", h.completeMeeting)
		v1.POST("/meetings/:id/no-show", h.noShowMeeting)
		v1.POST("/meetings/:id/transfer", h.transferCredits)

		v1.POST("/admin/adjustments", h.adminAdjust)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps domain errors to structured HTTP rejections. Raw
// gateway details never reach the client beyond a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrSameParticipant),
		errors.Is(err, models.ErrInvalidWindow),
		errors.Is(err, models.ErrUnknownPackage),
		errors.Is(err, models.ErrEmptyDescription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})

	case errors.Is(err, models.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "insufficient_balance",
			"details": "Insufficient credits. Please purchase more credits.",
		})

	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrMeetingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "details": err.Error()})

	case errors.Is(err, models.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "details": err.Error()})

	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "details": err.Error()})

	case errors.Is(err, models.ErrGatewayDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "payment_declined",
			"details": "The payment could not be processed.",
		})

	case errors.Is(err, models.ErrGatewayUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "payment_unavailable",
			"details": "The payment provider is temporarily unavailable.",
		})

	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": "invalid " + name})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
