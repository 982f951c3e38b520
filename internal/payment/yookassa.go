// Package payment is the adapter for the external YooKassa-compatible
// gateway: it creates checkouts and polls their status. It never retries on
// its own; every re-check is user-triggered.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Status values reported by the gateway, normalized for callers.
type Status string

const (
	StatusPending        Status = "pending"
	StatusSucceeded      Status = "succeeded"
	StatusCanceled       Status = "canceled"
	StatusWaitingCapture Status = "waiting_for_capture"
	StatusNotFound       Status = "not_found"
)

// DefaultBaseURL is the production gateway endpoint.
const DefaultBaseURL = "https://api.yookassa.ru/v3"

// Client talks to the payment gateway over its REST API.
type Client struct {
	BaseURL   string
	ShopID    string
	SecretKey string
	ReturnURL string
	HTTP      *http.Client
}

// New creates a gateway client. An empty baseURL selects production.
func New(baseURL, shopID, secretKey, returnURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   baseURL,
		ShopID:    shopID,
		SecretKey: secretKey,
		ReturnURL: returnURL,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Checkout is a freshly created payment at the gateway.
type Checkout struct {
	PaymentID       string
	ConfirmationURL string
}

type createRequest struct {
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Capture     bool              `json:"capture"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreateCheckout initiates a redirect-style payment. Each attempt carries a
// fresh idempotency key, so a retried call creates a new payment rather than
// replaying an old one.
func (c *Client) CreateCheckout(ctx context.Context, userID int64, amount float64, plan, description string) (*Checkout, error) {
	var req createRequest
	req.Amount.Value = fmt.Sprintf("%.2f", amount)
	req.Amount.Currency = "RUB"
	req.Confirmation.Type = "redirect"
	req.Confirmation.ReturnURL = c.ReturnURL
	req.Capture = true
	req.Description = description
	req.Metadata = map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"plan":    plan,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())
	httpReq.SetBasicAuth(c.ShopID, c.SecretKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway checkout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway checkout: status %d", resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if pr.ID == "" || pr.Confirmation.ConfirmationURL == "" {
		return nil, fmt.Errorf("gateway checkout: incomplete response")
	}

	return &Checkout{
		PaymentID:       pr.ID,
		ConfirmationURL: pr.Confirmation.ConfirmationURL,
	}, nil
}

// GetStatus polls a payment's status. Unknown ids map to StatusNotFound;
// unrecognized gateway statuses come back verbatim so callers can treat them
// as "not yet successful, re-checkable".
func (c *Client) GetStatus(ctx context.Context, paymentID string) (Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	httpReq.SetBasicAuth(c.ShopID, c.SecretKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StatusNotFound, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway status: status %d", resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}
	if pr.Status == "" {
		return "", fmt.Errorf("gateway status: empty status")
	}
	return Status(pr.Status), nil
}
