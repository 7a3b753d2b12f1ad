// Package webhook exposes the payment gateway webhook endpoint as an
// http.Handler. It checks the signature header, extracts the payment id,
// hands the delivery to the reconciliation engine and maps the outcome to
// the HTTP status the gateway acts on: 2xx stops gateway retries, anything
// else makes the gateway deliver again.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/xraph/remit"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/reconcile"
)

// DefaultSignatureHeader is the header the gateway signs deliveries with.
const DefaultSignatureHeader = "mollie-signature"

// Reconciler processes a delivery. *reconcile.Engine implements it.
type Reconciler interface {
	ProcessWebhook(ctx context.Context, gatewayPaymentID string) (*reconcile.Result, error)
}

// Config configures the endpoint.
type Config struct {
	// Secret enables the signature check when non-empty.
	Secret string `json:"secret" mapstructure:"secret" yaml:"secret"`
	// SignatureHeader names the signature header.
	SignatureHeader string `json:"signature_header" mapstructure:"signature_header" yaml:"signature_header"`
	// MaxBodyBytes caps the request body.
	MaxBodyBytes int64 `json:"max_body_bytes" mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// DefaultConfig returns the endpoint defaults.
func DefaultConfig() Config {
	return Config{
		SignatureHeader: DefaultSignatureHeader,
		MaxBodyBytes:    64 << 10,
	}
}

// Handler is the webhook endpoint.
type Handler struct {
	engine  Reconciler
	cfg     Config
	paylog  *paylog.Logger
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithConfig sets the endpoint configuration.
func WithConfig(cfg Config) Option {
	return func(h *Handler) {
		d := DefaultConfig()
		if cfg.SignatureHeader == "" {
			cfg.SignatureHeader = d.SignatureHeader
		}
		if cfg.MaxBodyBytes <= 0 {
			cfg.MaxBodyBytes = d.MaxBodyBytes
		}
		h.cfg = cfg
	}
}

// WithSecret enables the signature check.
func WithSecret(secret string) Option {
	return func(h *Handler) { h.cfg.Secret = secret }
}

// WithPaymentLog sets the payment event logger.
func WithPaymentLog(l *paylog.Logger) Option {
	return func(h *Handler) { h.paylog = l }
}

// WithPlugins sets the plugin registry.
func WithPlugins(r *plugin.Registry) Option {
	return func(h *Handler) { h.plugins = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler. The payment log and plugin registry default to
// the engine's when it exposes them.
func New(engine Reconciler, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}

	if v, ok := engine.(interface{ PaymentLog() *paylog.Logger }); ok {
		h.paylog = v.PaymentLog()
	}
	if v, ok := engine.(interface{ Plugins() *plugin.Registry }); ok {
		h.plugins = v.Plugins()
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.paylog == nil {
		h.paylog = paylog.New(paylog.NewSlogSink(h.logger))
	}
	if h.plugins == nil {
		h.plugins = plugin.NewRegistry().WithLogger(h.logger)
	}

	return h
}

// Response is the body of a successful delivery.
type Response struct {
	Success          bool      `json:"success"`
	PaymentID        string    `json:"paymentId"`
	GatewayPaymentID string    `json:"gatewayPaymentId"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"paymentStatus"`
	SubscriptionID   string    `json:"subscriptionId,omitempty"`
	Action           string    `json:"action,omitempty"`
	DeliveryID       string    `json:"deliveryId"`
	ReceivedAt       time.Time `json:"receivedAt"`
	ProcessedAt      time.Time `json:"processedAt"`
	DurationMS       int64     `json:"duration_ms"`
}

// ErrorResponse is the body of a rejected or failed delivery.
type ErrorResponse struct {
	Error            string `json:"error"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
	DeliveryID       string `json:"deliveryId"`
	DurationMS       int64  `json:"duration_ms"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	delivery := id.NewDeliveryID().String()
	w.Header().Set("X-Delivery-Id", delivery)

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "payment webhook endpoint",
		})
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, POST")
		h.reject(w, start, delivery, "", http.StatusMethodNotAllowed,
			fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	ctx := r.Context()

	// TODO: verify the signature as an HMAC of the raw body under Secret once
	// the gateway publishes its signing scheme; only presence is checked now.
	if h.cfg.Secret != "" && r.Header.Get(h.cfg.SignatureHeader) == "" {
		h.fail(ctx, w, start, delivery, paylog.UnknownPaymentID, http.StatusUnauthorized, remit.ErrMissingSignature)
		return
	}

	gatewayPaymentID, err := h.paymentID(w, r)
	if err != nil {
		h.fail(ctx, w, start, delivery, paylog.UnknownPaymentID, http.StatusBadRequest, err)
		return
	}

	ref := paylog.Ref{GatewayPaymentID: gatewayPaymentID}
	h.paylog.Info(paylog.WebhookReceived, ref, "webhook received", paylog.Details{})
	h.plugins.EmitWebhookReceived(ctx, gatewayPaymentID)

	h.logger.Debug("webhook received",
		"delivery_id", delivery,
		"gateway_payment_id", gatewayPaymentID,
		"remote_addr", r.RemoteAddr,
	)

	res, err := h.engine.ProcessWebhook(ctx, gatewayPaymentID)
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusInternalServerError {
			h.fail(ctx, w, start, delivery, gatewayPaymentID, status, err)
			return
		}
		// The engine already recorded the failure for gateway and metadata errors.
		h.reject(w, start, delivery, gatewayPaymentID, status, err)
		h.plugins.EmitWebhookProcessed(ctx, gatewayPaymentID, status, h.now().Sub(start))
		return
	}

	processed := h.now()
	resp := Response{
		Success:          true,
		PaymentID:        res.PaymentID.String(),
		GatewayPaymentID: res.GatewayPaymentID,
		Status:           res.GatewayStatus,
		PaymentStatus:    string(res.Status),
		SubscriptionID:   res.SubscriptionID.String(),
		DeliveryID:       delivery,
		ReceivedAt:       start.UTC(),
		ProcessedAt:      processed.UTC(),
		DurationMS:       processed.Sub(start).Milliseconds(),
	}
	if res.Action == reconcile.ActionOrphanRecovered {
		resp.Action = string(res.Action)
	}

	writeJSON(w, http.StatusOK, resp)
	h.plugins.EmitWebhookProcessed(ctx, gatewayPaymentID, http.StatusOK, processed.Sub(start))
}

// StatusFor maps an engine error to the HTTP status returned to the gateway.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, remit.ErrMissingSignature):
		return http.StatusUnauthorized
	case errors.Is(err, remit.ErrGatewayPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, remit.ErrMissingMetadata), errors.Is(err, remit.ErrMissingPaymentID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// paymentID reads the payment id from a form-encoded or JSON body.
func (h *Handler) paymentID(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("%w: %v", remit.ErrMissingPaymentID, err)
		}
		return requireID(r.PostForm.Get("id"))
	}

	var body struct {
		ID string `json:"id"`
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return "", remit.ErrMissingPaymentID
		}
		return "", fmt.Errorf("%w: malformed body: %v", remit.ErrMissingPaymentID, err)
	}
	return requireID(body.ID)
}

func requireID(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", remit.ErrMissingPaymentID
	}
	return v, nil
}

// fail records a WEBHOOK_FAILED entry and responds with status.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, start time.Time, delivery, gatewayPaymentID string, status int, err error) {
	h.paylog.Error(paylog.WebhookFailed, paylog.Ref{GatewayPaymentID: gatewayPaymentID},
		"webhook rejected", err, paylog.Details{HTTPStatus: status, Duration: h.now().Sub(start)})
	h.reject(w, start, delivery, gatewayPaymentID, status, err)
	h.plugins.EmitWebhookProcessed(ctx, gatewayPaymentID, status, h.now().Sub(start))
}

func (h *Handler) reject(w http.ResponseWriter, start time.Time, delivery, gatewayPaymentID string, status int, err error) {
	if gatewayPaymentID == paylog.UnknownPaymentID {
		gatewayPaymentID = ""
	}
	h.logger.Warn("webhook not processed",
		"delivery_id", delivery,
		"gateway_payment_id", gatewayPaymentID,
		"status", status,
		"error", err,
	)
	writeJSON(w, status, ErrorResponse{
		Error:            err.Error(),
		GatewayPaymentID: gatewayPaymentID,
		DeliveryID:       delivery,
		DurationMS:       h.now().Sub(start).Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client went away
}
