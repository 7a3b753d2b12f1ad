// Package paylog records the payment reconciliation trail: a closed set of
// event kinds, typed entries, and pluggable sinks. Every webhook delivery,
// gateway fetch, reconciliation and subscription transition is reported
// through a Logger so operators can follow a single payment end to end.
package paylog

import (
	"time"

	"github.com/xraph/remit/id"
)

// Level is the severity of an entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Kind classifies an entry. The set is closed.
type Kind string

const (
	PaymentCreated        Kind = "PAYMENT_CREATED"
	WebhookReceived       Kind = "WEBHOOK_RECEIVED"
	WebhookProcessed      Kind = "WEBHOOK_PROCESSED"
	WebhookFailed         Kind = "WEBHOOK_FAILED"
	WebhookMissing        Kind = "WEBHOOK_MISSING"
	ReconciliationStarted Kind = "RECONCILIATION_STARTED"
	ReconciliationSuccess Kind = "RECONCILIATION_SUCCESS"
	ReconciliationFailed  Kind = "RECONCILIATION_FAILED"
	PaymentTimeout        Kind = "PAYMENT_TIMEOUT"
	StatusMismatch        Kind = "STATUS_MISMATCH"
	SubscriptionActivated Kind = "SUBSCRIPTION_ACTIVATED"
	SubscriptionFailed    Kind = "SUBSCRIPTION_FAILED"
)

// Kinds returns every event kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		PaymentCreated,
		WebhookReceived,
		WebhookProcessed,
		WebhookFailed,
		WebhookMissing,
		ReconciliationStarted,
		ReconciliationSuccess,
		ReconciliationFailed,
		PaymentTimeout,
		StatusMismatch,
		SubscriptionActivated,
		SubscriptionFailed,
	}
}

// Valid reports whether k belongs to the taxonomy.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// UnknownPaymentID is recorded when a delivery carries no payment id.
const UnknownPaymentID = "unknown"

// Ref correlates an entry with the records it concerns. Any field may be empty.
type Ref struct {
	PaymentID        id.PaymentID      `json:"payment_id,omitempty"`
	GatewayPaymentID string            `json:"gateway_payment_id,omitempty"`
	SubscriptionID   id.SubscriptionID `json:"subscription_id,omitempty"`
	TenantID         string            `json:"tenant_id,omitempty"`
}

// Details carries the optional structured fields of an entry.
type Details struct {
	Attempt        int           `json:"attempt,omitempty"`
	MaxAttempts    int           `json:"max_attempts,omitempty"`
	GatewayStatus  string        `json:"gateway_status,omitempty"`
	InternalStatus string        `json:"internal_status,omitempty"`
	LocalStatus    string        `json:"local_status,omitempty"`
	Action         string        `json:"action,omitempty"`
	HTTPStatus     int           `json:"http_status,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
}

// Entry is a single reconciliation event.
type Entry struct {
	Time    time.Time `json:"timestamp"`
	Level   Level     `json:"level"`
	Kind    Kind      `json:"kind"`
	Ref     Ref       `json:"ref"`
	Message string    `json:"message"`
	Details Details   `json:"details"`
	Err     error     `json:"-"`
}

// ErrorMessage returns the error text, or "" when the entry has no error.
func (e Entry) ErrorMessage() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Sink receives entries. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Entry)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Entry)

// Emit calls f(e).
func (f SinkFunc) Emit(e Entry) { f(e) }

// Multi fans entries out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return multiSink(filtered)
}

type multiSink []Sink

func (m multiSink) Emit(e Entry) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Logger stamps and forwards entries to a sink.
type Logger struct {
	sink Sink
	now  func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New returns a Logger writing to sink. A nil sink discards entries.
func New(sink Sink, opts ...Option) *Logger {
	if sink == nil {
		sink = SinkFunc(func(Entry) {})
	}
	l := &Logger{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Nop returns a Logger that discards everything.
func Nop() *Logger { return New(nil) }

// Log emits e, filling in the timestamp when unset.
func (l *Logger) Log(e Entry) {
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	l.sink.Emit(e)
}

func (l *Logger) Debug(kind Kind, ref Ref, msg string, d Details) {
	l.Log(Entry{Level: LevelDebug, Kind: kind, Ref: ref, Message: msg, Details: d})
}

func (l *Logger) Info(kind Kind, ref Ref, msg string, d Details) {
	l.Log(Entry{Level: LevelInfo, Kind: kind, Ref: ref, Message: msg, Details: d})
}

func (l *Logger) Warn(kind Kind, ref Ref, msg string, d Details) {
	l.Log(Entry{Level: LevelWarn, Kind: kind, Ref: ref, Message: msg, Details: d})
}

func (l *Logger) Error(kind Kind, ref Ref, msg string, err error, d Details) {
	l.Log(Entry{Level: LevelError, Kind: kind, Ref: ref, Message: msg, Details: d, Err: err})
}
