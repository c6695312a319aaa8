package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credit-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeChargeSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(499), req.AmountCents)
		assert.Equal(t, "tok_visa", req.Token)

		json.NewEncoder(w).Encode(chargeResponse{Status: "succeeded", Reference: "ch_123"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	result, err := client.AuthorizeCharge(context.Background(), ChargeRequest{
		AmountCents: 499,
		Currency:    "USD",
		Token:       "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch_123", result.Reference)
}

func TestAuthorizeChargeDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chargeResponse{Status: "failed", Error: "card_declined"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	_, err := client.AuthorizeCharge(context.Background(), ChargeRequest{AmountCents: 499, Token: "tok_bad"})
	assert.ErrorIs(t, err, models.ErrGatewayDeclined)
}

func TestAuthorizeChargeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // no listener left behind the URL

	client := NewClient(srv.URL, "sk_test", time.Second)
	_, err := client.AuthorizeCharge(context.Background(), ChargeRequest{AmountCents: 499})
	assert.ErrorIs(t, err, models.ErrGatewayUnreachable)
}

func TestRefundCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		json.NewEncoder(w).Encode(chargeResponse{Status: "succeeded"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	assert.NoError(t, client.RefundCharge(context.Background(), "ch_123", 499))
}

func TestConstructVerifiedEvent(t *testing.T) {
	secret := "whsec_test"
	payload, err := json.Marshal(WebhookEvent{
		ID:        "evt_1",
		Type:      EventChargeSucceeded,
		PaymentID: 7,
		Reference: "ch_123",
	})
	require.NoError(t, err)

	event, err := ConstructVerifiedEvent(payload, SignPayload(payload, secret), secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventChargeSucceeded, event.Type)
	assert.Equal(t, int64(7), event.PaymentID)
}

func TestConstructVerifiedEventRejectsTampering(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","payment_id":7}`)
	sig := SignPayload(payload, secret)

	// wrong secret
	_, err := ConstructVerifiedEvent(payload, SignPayload(payload, "other"), secret)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	// modified payload
	tampered := []byte(`{"id":"evt_1","type":"charge.succeeded","payment_id":8}`)
	_, err = ConstructVerifiedEvent(tampered, sig, secret)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	// signature that is not even hex
	_, err = ConstructVerifiedEvent(payload, "not-hex", secret)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestConstructVerifiedEventRequiresIDAndType(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"payment_id":7}`)

	_, err := ConstructVerifiedEvent(payload, SignPayload(payload, secret), secret)
	assert.Error(t, err)
}
