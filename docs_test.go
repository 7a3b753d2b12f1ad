package remit_test

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/gateway/gatewaytest"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/reconcile"
	"github.com/xraph/remit/store/memory"
	"github.com/xraph/remit/types"
	"github.com/xraph/remit/webhook"
)

// TestDocumentationExamples verifies that the examples in the documentation compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Keep the payment trail in memory as well as in the logs
		history := paylog.NewHistory(100)
		r := remit.New(store,
			remit.WithLogger(slog.Default()),
			remit.WithPaymentLog(paylog.New(paylog.Multi(
				paylog.NewSlogSink(slog.Default()),
				history,
			))),
		)

		ctx := context.Background()
		if err := r.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer r.Stop()

		p := &plan.Plan{
			Name:     plan.StarterName,
			Slug:     "starter",
			Price:    types.EUR(1900), // €19.00
			Interval: plan.IntervalMonthly,
			Features: []plan.Feature{
				{Key: "online_booking", Name: "Online booking", Type: plan.FeatureBoolean, Limit: 1},
				{Key: "staff", Name: "Staff members", Type: plan.FeatureLimit, Limit: 3},
				{Key: "appointments", Name: "Appointments", Type: plan.FeatureLimit, Limit: plan.Unlimited},
			},
		}
		if err := r.CreatePlan(ctx, p); err != nil {
			t.Fatal(err)
		}

		// Every new salon starts on a 14 day trial of the Starter plan
		trial, err := r.CreateTrialSubscription(ctx, "salon_123", id.Nil)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Trial ends %s\n", trial.TrialEnd.Format(time.DateOnly))

		// At checkout, re-arm the subscription and record the pending payment
		sub, err := r.UpdateSubscriptionWithPayment(ctx, trial.ID, p.ID, "cst_123")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := r.CreatePaymentRecord(ctx, sub.ID, p.Price, "tr_123"); err != nil {
			t.Fatal(err)
		}

		// Wire the gateway, the reconciliation engine and the webhook endpoint
		gw := gatewaytest.New() // mollie.New(apiKey) in production
		gw.Set(gateway.Payment{
			ID:         "tr_123",
			Status:     "paid",
			Amount:     gateway.AmountFrom(p.Price),
			CustomerID: "cst_123",
			Metadata:   gateway.Metadata{TenantID: "salon_123", PlanID: p.ID.String()},
		})

		engine := reconcile.New(gw, r)
		mux := http.NewServeMux()
		mux.Handle("/webhooks/mollie", webhook.New(engine))

		req := httptest.NewRequest(http.MethodPost, "/webhooks/mollie", strings.NewReader("id=tr_123"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook returned %d: %s", rec.Code, rec.Body.String())
		}

		status := r.SubscriptionStatus(ctx, "salon_123")
		if status == nil || !status.Active {
			t.Fatalf("expected active subscription, got %+v", status)
		}
		if !status.FeatureAvailable("online_booking") {
			t.Error("online booking should be available")
		}
		if !status.Unlimited("appointments") {
			t.Error("appointments should be unlimited")
		}
		log.Printf("Staff limit: %d\n", status.FeatureLimit("staff"))

		for _, e := range history.Entries(paylog.Filter{GatewayPaymentID: "tr_123"}) {
			log.Printf("%s %s %s\n", e.Level, e.Kind, e.Message)
		}
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		_ = types.EUR(2900)   // €29.00
		_ = types.USD(4900)   // $49.00
		_ = types.Zero("eur") // €0.00

		// Gateways send decimal strings
		m, err := types.ParseMajor("29.00", "EUR")
		if err != nil {
			t.Fatal(err)
		}
		if !m.Equal(types.EUR(2900)) {
			t.Errorf("ParseMajor: got %s", m)
		}

		_ = m.String()      // "€29.00"
		_ = m.FormatMajor() // "29.00"
	})
}
