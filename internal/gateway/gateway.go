// Package gateway wraps the external payment processor behind an opaque
// authorize/refund capability plus webhook verification. The service
// layer treats the processor as a black box: a charge either yields a
// reference or a definitive failure, within a bounded timeout.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"credit-service/internal/models"
)

// ChargeRequest describes one charge authorization attempt.
type ChargeRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Token       string `json:"token"`
	Description string `json:"description"`
}

// ChargeResult is a successful authorization.
type ChargeResult struct {
	Reference string `json:"reference"`
}

// Gateway is the external payment capability. Implementations must return
// models.ErrGatewayDeclined for definitive rejections and
// models.ErrGatewayUnreachable for transport failures or timeouts; a
// charge is never left in limbo.
type Gateway interface {
	AuthorizeCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	RefundCharge(ctx context.Context, reference string, amountCents int64) error
}

// Client talks to the processor's HTTP API. Configuration is injected at
// construction; there is no process-wide gateway state.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a gateway client with a bounded per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type chargeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Error     string `json:"error"`
}

// AuthorizeCharge asks the processor to capture the amount.
func (c *Client) AuthorizeCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var resp chargeResponse
	if err := c.post(ctx, "/v1/charges", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnreachable, err)
	}

	if resp.Status != "succeeded" {
		return nil, fmt.Errorf("%w: %s", models.ErrGatewayDeclined, resp.Error)
	}
	return &ChargeResult{Reference: resp.Reference}, nil
}

// RefundCharge asks the processor to return the money for a prior charge.
func (c *Client) RefundCharge(ctx context.Context, reference string, amountCents int64) error {
	body := map[string]interface{}{
		"reference":    reference,
		"amount_cents": amountCents,
	}

	var resp chargeResponse
	if err := c.post(ctx, "/v1/refunds", body, &resp); err != nil {
		return fmt.Errorf("%w: %v", models.ErrGatewayUnreachable, err)
	}

	if resp.Status != "succeeded" {
		return fmt.Errorf("%w: %s", models.ErrGatewayDeclined, resp.Error)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
