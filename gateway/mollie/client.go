// Package mollie implements gateway.Client against the Mollie v2 REST API.
package mollie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/payment"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.mollie.com"

// Mollie payment statuses.
const (
	StatusOpen       = "open"
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
	StatusExpired    = "expired"
)

var _ gateway.Client = (*Client)(nil)

// Client talks to the Mollie API with a bearer API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Mollie client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// GetPayment fetches GET /v2/payments/{id}.
func (c *Client) GetPayment(ctx context.Context, gatewayPaymentID string) (*gateway.Payment, error) {
	if c.apiKey == "" {
		return nil, remit.ErrGatewayNotConfigured
	}
	if gatewayPaymentID == "" {
		return nil, fmt.Errorf("mollie: get payment: %w", remit.ErrMissingPaymentID)
	}

	endpoint := fmt.Sprintf("%s/v2/payments/%s", c.baseURL, url.PathEscape(gatewayPaymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mollie: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: mollie: %v", remit.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: mollie: read body: %v", remit.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(gatewayPaymentID, resp.StatusCode, body)
	}

	var p gateway.Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("mollie: decode payment %s: %w", gatewayPaymentID, err)
	}

	c.logger.Debug("mollie payment fetched",
		"gateway_payment_id", p.ID,
		"status", p.Status,
	)
	return &p, nil
}

func (c *Client) statusError(gatewayPaymentID string, status int, body []byte) error {
	var apiErr apiError
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
		detail = apiErr.Detail
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", remit.ErrGatewayPaymentNotFound, gatewayPaymentID, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: mollie rejected credentials: %s", remit.ErrGatewayNotConfigured, detail)
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: mollie status %d: %s", remit.ErrGatewayUnavailable, status, detail)
	default:
		return errors.New("mollie: unexpected status " + http.StatusText(status) + ": " + detail)
	}
}

// InternalStatus maps Mollie statuses onto payment statuses. Unknown
// statuses are treated as still pending.
func (c *Client) InternalStatus(status string) payment.Status {
	switch status {
	case StatusPaid:
		return payment.StatusPaid
	case StatusAuthorized:
		return payment.StatusAuthorized
	case StatusFailed:
		return payment.StatusFailed
	case StatusCanceled:
		return payment.StatusCancelled
	case StatusExpired:
		return payment.StatusExpired
	default:
		return payment.StatusPending
	}
}

// IsPaymentSuccessful reports a paid payment that has not been refunded in full.
func (c *Client) IsPaymentSuccessful(p *gateway.Payment) bool {
	if p == nil || p.Status != StatusPaid {
		return false
	}
	if p.AmountRefunded == nil {
		return true
	}
	refunded, err := p.AmountRefunded.Money()
	if err != nil {
		return true
	}
	total, err := p.Amount.Money()
	if err != nil {
		return true
	}
	return refunded.Amount < total.Amount
}

// IsPaymentFailed reports failed, canceled and expired payments.
func (c *Client) IsPaymentFailed(p *gateway.Payment) bool {
	if p == nil {
		return false
	}
	switch p.Status {
	case StatusFailed, StatusCanceled, StatusExpired:
		return true
	}
	return false
}
