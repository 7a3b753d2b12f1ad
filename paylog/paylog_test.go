package paylog_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/remit/paylog"
)

func TestKindsClosedSet(t *testing.T) {
	kinds := paylog.Kinds()
	if len(kinds) != 12 {
		t.Fatalf("expected 12 kinds, got %d", len(kinds))
	}
	seen := map[paylog.Kind]bool{}
	for _, k := range kinds {
		if seen[k] {
			t.Errorf("duplicate kind %s", k)
		}
		seen[k] = true
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if paylog.Kind("PAYMENT_REFUNDED").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestLoggerStampsEntries(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	h := paylog.NewHistory(10)
	l := paylog.New(h, paylog.WithClock(func() time.Time { return fixed }))

	ref := paylog.Ref{GatewayPaymentID: "tr_abc", TenantID: "tenant-1"}
	l.Info(paylog.WebhookReceived, ref, "webhook received", paylog.Details{})
	l.Warn(paylog.PaymentTimeout, ref, "no local record", paylog.Details{Attempt: 2})
	l.Error(paylog.WebhookFailed, ref, "boom", errors.New("db down"), paylog.Details{HTTPStatus: 500})
	l.Debug(paylog.StatusMismatch, ref, "mismatch", paylog.Details{LocalStatus: "pending", GatewayStatus: "paid"})

	entries := h.Entries(paylog.Filter{})
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	wantLevels := []paylog.Level{paylog.LevelInfo, paylog.LevelWarn, paylog.LevelError, paylog.LevelDebug}
	for i, e := range entries {
		if !e.Time.Equal(fixed) {
			t.Errorf("entry %d: time %v, want %v", i, e.Time, fixed)
		}
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d: level %s, want %s", i, e.Level, wantLevels[i])
		}
		if e.Ref.GatewayPaymentID != "tr_abc" {
			t.Errorf("entry %d: gateway id %q", i, e.Ref.GatewayPaymentID)
		}
	}
	if entries[2].ErrorMessage() != "db down" {
		t.Errorf("error message: got %q", entries[2].ErrorMessage())
	}
	if entries[0].ErrorMessage() != "" {
		t.Errorf("expected no error message, got %q", entries[0].ErrorMessage())
	}
}

func TestHistoryRingAndFilter(t *testing.T) {
	h := paylog.NewHistory(3)
	l := paylog.New(h)

	for _, gw := range []string{"tr_1", "tr_2", "tr_3", "tr_4"} {
		l.Info(paylog.WebhookReceived, paylog.Ref{GatewayPaymentID: gw}, "received", paylog.Details{})
	}

	if h.Len() != 3 {
		t.Fatalf("expected ring to hold 3, got %d", h.Len())
	}
	entries := h.Entries(paylog.Filter{})
	if entries[0].Ref.GatewayPaymentID != "tr_2" || entries[2].Ref.GatewayPaymentID != "tr_4" {
		t.Errorf("unexpected order: %s .. %s", entries[0].Ref.GatewayPaymentID, entries[2].Ref.GatewayPaymentID)
	}

	got := h.Entries(paylog.Filter{GatewayPaymentID: "tr_3"})
	if len(got) != 1 {
		t.Errorf("expected 1 entry for tr_3, got %d", len(got))
	}
	if len(h.Entries(paylog.Filter{GatewayPaymentID: "tr_1"})) != 0 {
		t.Error("tr_1 should have been evicted")
	}
	if len(h.Kinds(paylog.Filter{Kind: paylog.WebhookFailed})) != 0 {
		t.Error("no WEBHOOK_FAILED entries expected")
	}
}

func TestMultiSink(t *testing.T) {
	a := paylog.NewHistory(5)
	var count int
	b := paylog.SinkFunc(func(paylog.Entry) { count++ })

	l := paylog.New(paylog.Multi(a, nil, b))
	l.Info(paylog.PaymentCreated, paylog.Ref{}, "created", paylog.Details{})

	if a.Len() != 1 || count != 1 {
		t.Errorf("expected both sinks to receive the entry, got history=%d func=%d", a.Len(), count)
	}
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := paylog.New(paylog.NewSlogSink(logger))
	l.Error(paylog.SubscriptionFailed, paylog.Ref{GatewayPaymentID: "tr_x", TenantID: "t1"},
		"activation failed", errors.New("store offline"),
		paylog.Details{GatewayStatus: "paid", Duration: 1500 * time.Millisecond})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode slog output: %v (%s)", err, buf.String())
	}

	checks := map[string]any{
		"level":              "ERROR",
		"msg":                "activation failed",
		"event":              "SUBSCRIPTION_FAILED",
		"gateway_payment_id": "tr_x",
		"tenant_id":          "t1",
		"gateway_status":     "paid",
		"error":              "store offline",
		"duration_ms":        float64(1500),
	}
	for k, want := range checks {
		if rec[k] != want {
			t.Errorf("%s: got %v, want %v", k, rec[k], want)
		}
	}
	if _, ok := rec["payment_id"]; ok {
		t.Error("empty payment id should be omitted")
	}
}

func TestNopLogger(t *testing.T) {
	l := paylog.Nop()
	l.Info(paylog.WebhookReceived, paylog.Ref{}, strings.Repeat("x", 3), paylog.Details{})
}
