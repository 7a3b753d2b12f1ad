package paylog

import (
	"context"
	"log/slog"
)

// SlogSink writes entries as structured slog records.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(e Entry) {
	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs, slog.String("event", string(e.Kind)))

	if !e.Ref.PaymentID.IsNil() {
		attrs = append(attrs, slog.String("payment_id", e.Ref.PaymentID.String()))
	}
	if e.Ref.GatewayPaymentID != "" {
		attrs = append(attrs, slog.String("gateway_payment_id", e.Ref.GatewayPaymentID))
	}
	if !e.Ref.SubscriptionID.IsNil() {
		attrs = append(attrs, slog.String("subscription_id", e.Ref.SubscriptionID.String()))
	}
	if e.Ref.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", e.Ref.TenantID))
	}

	d := e.Details
	if d.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", d.Attempt))
	}
	if d.MaxAttempts > 0 {
		attrs = append(attrs, slog.Int("max_attempts", d.MaxAttempts))
	}
	if d.GatewayStatus != "" {
		attrs = append(attrs, slog.String("gateway_status", d.GatewayStatus))
	}
	if d.InternalStatus != "" {
		attrs = append(attrs, slog.String("internal_status", d.InternalStatus))
	}
	if d.LocalStatus != "" {
		attrs = append(attrs, slog.String("local_status", d.LocalStatus))
	}
	if d.Action != "" {
		attrs = append(attrs, slog.String("action", d.Action))
	}
	if d.HTTPStatus != 0 {
		attrs = append(attrs, slog.Int("http_status", d.HTTPStatus))
	}
	if d.Duration > 0 {
		attrs = append(attrs, slog.Int64("duration_ms", d.Duration.Milliseconds()))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	s.logger.LogAttrs(context.Background(), slogLevel(e.Level), e.Message, attrs...)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
