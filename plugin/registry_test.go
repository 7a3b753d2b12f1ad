package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/subscription"
)

type recorder struct {
	name string
	mu   sync.Mutex
	got  []string
	fail bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	if r.fail {
		return errors.New("hook failed")
	}
	return nil
}

func (r *recorder) OnSubscriptionCreated(_ context.Context, sub *subscription.Subscription) error {
	return r.add("created:" + string(sub.Status))
}

func (r *recorder) OnPaymentReconciled(_ context.Context, p *payment.Payment, from payment.Status) error {
	return r.add("reconciled:" + string(from) + "->" + string(p.Status))
}

type blocker struct{ release chan struct{} }

func (blocker) Name() string { return "blocker" }

func (b blocker) OnWebhookReceived(context.Context, string) error {
	<-b.release
	return nil
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 plugin, got %d", r.Count())
	}
	if r.Get("a") == nil || r.Get("missing") != nil {
		t.Error("Get returned unexpected result")
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	_ = r.Register(rec)

	ctx := context.Background()
	r.EmitSubscriptionCreated(ctx, &subscription.Subscription{Status: subscription.StatusTrial})
	r.EmitPaymentReconciled(ctx, &payment.Payment{Status: payment.StatusPaid}, payment.StatusPending)
	r.EmitOrphanRecovered(ctx, &payment.Payment{})

	want := []string{"created:trial", "reconciled:pending->paid"}
	if len(rec.got) != len(want) {
		t.Fatalf("got %v, want %v", rec.got, want)
	}
	for i := range want {
		if rec.got[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, rec.got[i], want[i])
		}
	}
}

func TestHookErrorsAreSwallowed(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec", fail: true}
	_ = r.Register(rec)

	r.EmitSubscriptionCreated(context.Background(), &subscription.Subscription{Status: subscription.StatusUnpaid})
	if len(rec.got) != 1 {
		t.Errorf("expected the hook to run once, got %d", len(rec.got))
	}
}

func TestHookTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	b := blocker{release: make(chan struct{})}
	t.Cleanup(func() { close(b.release) })
	_ = r.Register(b)

	start := time.Now()
	r.EmitWebhookReceived(context.Background(), "tr_slow")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("emit blocked for %v", elapsed)
	}
}
