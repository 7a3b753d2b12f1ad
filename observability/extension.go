// Package observability provides a metrics extension for Remit that records
// lifecycle and payment-log event counts via a MetricFactory.
package observability

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                      = (*MetricsExtension)(nil)
	_ plugin.OnInit                      = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated       = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCancelled     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCreated            = (*MetricsExtension)(nil)
	_ plugin.OnPaymentReconciled         = (*MetricsExtension)(nil)
	_ plugin.OnOrphanRecovered           = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived           = (*MetricsExtension)(nil)
	_ plugin.OnWebhookProcessed          = (*MetricsExtension)(nil)
	_ paylog.Sink                        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Remit plugin to track subscription and payment metrics,
// and add it to the payment-log sink chain to count every event kind.
type MetricsExtension struct {
	factory MetricFactory

	// Subscription metrics
	SubscriptionCreated   Counter
	SubscriptionActivated Counter
	SubscriptionUnpaid    Counter
	SubscriptionExpired   Counter
	SubscriptionCancelled Counter

	// Payment metrics
	PaymentCreated   Counter
	PaymentPaid      Counter
	PaymentFailed    Counter
	PaymentCancelled Counter
	PaymentExpired   Counter
	OrphanRecovered  Counter

	// Webhook metrics
	WebhookReceived  Counter
	WebhookProcessed Counter
	WebhookRejected  Counter
	WebhookLatency   Histogram

	// Payment log entries, one counter per kind
	LogEntries map[paylog.Kind]Counter
	LogErrors  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory or app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Subscription metrics
		SubscriptionCreated:   factory.Counter("remit.subscription.created"),
		SubscriptionActivated: factory.Counter("remit.subscription.activated"),
		SubscriptionUnpaid:    factory.Counter("remit.subscription.unpaid"),
		SubscriptionExpired:   factory.Counter("remit.subscription.expired"),
		SubscriptionCancelled: factory.Counter("remit.subscription.cancelled"),

		// Payment metrics
		PaymentCreated:   factory.Counter("remit.payment.created"),
		PaymentPaid:      factory.Counter("remit.payment.paid"),
		PaymentFailed:    factory.Counter("remit.payment.failed"),
		PaymentCancelled: factory.Counter("remit.payment.cancelled"),
		PaymentExpired:   factory.Counter("remit.payment.expired"),
		OrphanRecovered:  factory.Counter("remit.payment.orphan_recovered"),

		// Webhook metrics
		WebhookReceived:  factory.Counter("remit.webhook.received"),
		WebhookProcessed: factory.Counter("remit.webhook.processed"),
		WebhookRejected:  factory.Counter("remit.webhook.rejected"),
		WebhookLatency:   factory.Histogram("remit.webhook.latency_ms"),

		LogEntries: make(map[paylog.Kind]Counter, len(paylog.Kinds())),
		LogErrors:  factory.Counter("remit.paylog.errors"),
	}

	for _, k := range paylog.Kinds() {
		m.LogEntries[k] = factory.Counter("remit.paylog." + strings.ToLower(string(k)))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnSubscriptionStatusChanged implements plugin.OnSubscriptionStatusChanged.
func (m *MetricsExtension) OnSubscriptionStatusChanged(_ context.Context, sub *subscription.Subscription, from subscription.Status) error {
	if sub.Status == from {
		return nil
	}
	switch sub.Status {
	case subscription.StatusActive:
		m.SubscriptionActivated.Inc()
	case subscription.StatusUnpaid:
		m.SubscriptionUnpaid.Inc()
	case subscription.StatusExpired:
		m.SubscriptionExpired.Inc()
	}
	return nil
}

// OnSubscriptionCancelled implements plugin.OnSubscriptionCancelled.
func (m *MetricsExtension) OnSubscriptionCancelled(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (m *MetricsExtension) OnPaymentCreated(_ context.Context, _ *payment.Payment) error {
	m.PaymentCreated.Inc()
	return nil
}

// OnPaymentReconciled implements plugin.OnPaymentReconciled.
// Repeat deliveries for an already-settled payment are not counted again.
func (m *MetricsExtension) OnPaymentReconciled(_ context.Context, p *payment.Payment, from payment.Status) error {
	if p.Status == from {
		return nil
	}
	switch p.Status {
	case payment.StatusPaid:
		m.PaymentPaid.Inc()
	case payment.StatusFailed:
		m.PaymentFailed.Inc()
	case payment.StatusCancelled:
		m.PaymentCancelled.Inc()
	case payment.StatusExpired:
		m.PaymentExpired.Inc()
	}
	return nil
}

// OnOrphanRecovered implements plugin.OnOrphanRecovered.
func (m *MetricsExtension) OnOrphanRecovered(_ context.Context, _ *payment.Payment) error {
	m.OrphanRecovered.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _ string) error {
	m.WebhookReceived.Inc()
	return nil
}

// OnWebhookProcessed implements plugin.OnWebhookProcessed.
func (m *MetricsExtension) OnWebhookProcessed(_ context.Context, _ string, httpStatus int, elapsed time.Duration) error {
	if httpStatus >= 200 && httpStatus < 300 {
		m.WebhookProcessed.Inc()
	} else {
		m.WebhookRejected.Inc()
	}
	m.WebhookLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Payment log sink
// ──────────────────────────────────────────────────

// Emit implements paylog.Sink.
func (m *MetricsExtension) Emit(e paylog.Entry) {
	if c, ok := m.LogEntries[e.Kind]; ok {
		c.Inc()
	}
	if e.Level == paylog.LevelError {
		m.LogErrors.Inc()
	}
}
