package observability_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/remit/observability"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/subscription"
)

type counter struct {
	mu sync.Mutex
	n  float64
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(v float64) {
	c.mu.Lock()
	c.n += v
	c.mu.Unlock()
}

func (c *counter) value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type histogram struct {
	mu  sync.Mutex
	obs []float64
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	h.obs = append(h.obs, v)
	h.mu.Unlock()
}

type fakeFactory struct {
	counters   map[string]*counter
	histograms map[string]*histogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	c := &counter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	h := &histogram{}
	f.histograms[name] = h
	return h
}

func TestMetricsExtension_Hooks(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	sub := &subscription.Subscription{Status: subscription.StatusActive}
	require.NoError(t, m.OnSubscriptionCreated(ctx, sub))
	require.NoError(t, m.OnSubscriptionStatusChanged(ctx, sub, subscription.StatusTrial))
	require.NoError(t, m.OnSubscriptionStatusChanged(ctx, sub, subscription.StatusActive))

	sub.Status = subscription.StatusUnpaid
	require.NoError(t, m.OnSubscriptionStatusChanged(ctx, sub, subscription.StatusActive))

	p := &payment.Payment{Status: payment.StatusPaid}
	require.NoError(t, m.OnPaymentCreated(ctx, p))
	require.NoError(t, m.OnPaymentReconciled(ctx, p, payment.StatusPending))
	require.NoError(t, m.OnPaymentReconciled(ctx, p, payment.StatusPaid))
	require.NoError(t, m.OnOrphanRecovered(ctx, p))

	require.NoError(t, m.OnWebhookReceived(ctx, "tr_1"))
	require.NoError(t, m.OnWebhookProcessed(ctx, "tr_1", http.StatusOK, 12*time.Millisecond))
	require.NoError(t, m.OnWebhookProcessed(ctx, "tr_2", http.StatusNotFound, 3*time.Millisecond))

	assert.Equal(t, 1.0, f.counters["remit.subscription.created"].value())
	assert.Equal(t, 1.0, f.counters["remit.subscription.activated"].value())
	assert.Equal(t, 1.0, f.counters["remit.subscription.unpaid"].value())
	assert.Equal(t, 1.0, f.counters["remit.payment.created"].value())
	assert.Equal(t, 1.0, f.counters["remit.payment.paid"].value())
	assert.Equal(t, 1.0, f.counters["remit.payment.orphan_recovered"].value())
	assert.Equal(t, 1.0, f.counters["remit.webhook.received"].value())
	assert.Equal(t, 1.0, f.counters["remit.webhook.processed"].value())
	assert.Equal(t, 1.0, f.counters["remit.webhook.rejected"].value())
	assert.Equal(t, []float64{12, 3}, f.histograms["remit.webhook.latency_ms"].obs)
}

func TestMetricsExtension_PaymentLogSink(t *testing.T) {
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	for _, k := range paylog.Kinds() {
		_, ok := f.counters["remit.paylog."+strings.ToLower(string(k))]
		assert.True(t, ok, "missing counter for %s", k)
	}

	l := paylog.New(m)
	l.Info(paylog.WebhookReceived, paylog.Ref{GatewayPaymentID: "tr_1"}, "received", paylog.Details{})
	l.Info(paylog.WebhookReceived, paylog.Ref{GatewayPaymentID: "tr_2"}, "received", paylog.Details{})
	l.Error(paylog.WebhookFailed, paylog.Ref{GatewayPaymentID: "tr_2"}, "failed", assert.AnError, paylog.Details{})

	assert.Equal(t, 2.0, f.counters["remit.paylog.webhook_received"].value())
	assert.Equal(t, 1.0, f.counters["remit.paylog.webhook_failed"].value())
	assert.Equal(t, 1.0, f.counters["remit.paylog.errors"].value())
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)
	m := observability.NewMetricsExtension(f)

	require.NoError(t, m.OnWebhookReceived(context.Background(), "tr_1"))
	m.Emit(paylog.Entry{Kind: paylog.PaymentTimeout})

	// Asking again returns the registered collector instead of panicking.
	assert.Same(t, f.Counter("remit.webhook.received"), m.WebhookReceived)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] = c.GetValue()
			} else {
				values[mf.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 1.0, values["remit_webhook_received_total"])
	assert.Equal(t, 1.0, values["remit_paylog_payment_timeout_total"])
	assert.Equal(t, 0.0, values["remit_subscription_created_total"])
	assert.Contains(t, values, "remit_webhook_latency_ms")
}

func TestPrometheusFactory_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := observability.NewPrometheusFactory(reg)
	second := observability.NewPrometheusFactory(reg)

	first.Counter("remit.webhook.received").Inc()
	second.Counter("remit.webhook.received").Inc()

	assert.Same(t, first.Counter("remit.webhook.received"), second.Counter("remit.webhook.received"))
}
