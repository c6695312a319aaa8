package api

import (
	"io"
	"net/http"

	"credit-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listPackages returns the purchasable credit bundles
func (h *Handler) listPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": h.paymentService.Packages()})
}

// initiatePaymentRequest starts a credit purchase, either by catalogue
// package ID or by an explicit credits/price pair
type initiatePaymentRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	PackageID     string `json:"package_id"`
	Credits       int64  `json:"credits"`
	AmountCents   int64  `json:"amount_cents"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// initiatePayment creates a pending purchase attempt
func (h *Handler) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	payment, err := h.paymentService.Initiate(c.Request.Context(), service.InitiateParams{
		UserID:        req.UserID,
		PackageID:     req.PackageID,
		Credits:       req.Credits,
		AmountCents:   req.AmountCents,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// getPayment returns a payment's current status
func (h *Handler) getPayment(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// listPayments returns a user's purchase attempts
func (h *Handler) listPayments(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPayments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// authorizeRequest carries the gateway token for a charge
type authorizeRequest struct {
	GatewayToken string `json:"gateway_token" binding:"required"`
}

// authorizePayment runs the gateway charge for a pending payment
func (h *Handler) authorizePayment(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	payment, err := h.paymentService.Authorize(c.Request.Context(), paymentID, req.GatewayToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// refundRequest carries the reason for a refund
type refundRequest struct {
	Reason string `json:"reason"`
}

// refundPayment refunds a completed payment
func (h *Handler) refundPayment(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req refundRequest
	_ = c.ShouldBindJSON(&req)

	payment, err := h.paymentService.Refund(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// paymentWebhook applies an asynchronous gateway notification. The raw
// body is read before parsing because the signature covers the exact
// bytes delivered.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	signature := c.GetHeader("X-Gateway-Signature")
	event, err := h.paymentService.HandleWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "event_id": event.ID})
}
