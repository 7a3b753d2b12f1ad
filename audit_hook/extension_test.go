package audithook_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/remit/audit_hook"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/subscription"
	"github.com/xraph/remit/types"
)

type recorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
	err    error
}

func (r *recorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

func fixtures() (*subscription.Subscription, *payment.Payment) {
	sub := &subscription.Subscription{
		ID:               id.NewSubscriptionID(),
		TenantID:         "salon-1",
		PlanID:           id.NewPlanID(),
		Status:           subscription.StatusActive,
		CurrentPeriodEnd: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	p := &payment.Payment{
		ID:               id.NewPaymentID(),
		SubscriptionID:   sub.ID,
		TenantID:         sub.TenantID,
		GatewayPaymentID: "tr_1",
		Amount:           types.EUR(2900),
		Status:           payment.StatusPaid,
	}
	return sub, p
}

func TestExtension_RecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	ext := audithook.New(rec)
	sub, p := fixtures()

	require.NoError(t, ext.OnSubscriptionCreated(ctx, sub))
	require.NoError(t, ext.OnSubscriptionStatusChanged(ctx, sub, subscription.StatusTrial))
	require.NoError(t, ext.OnPaymentCreated(ctx, p))
	require.NoError(t, ext.OnPaymentReconciled(ctx, p, payment.StatusPending))

	p.Status = payment.StatusFailed
	p.FailureReason = "insufficient_funds"
	require.NoError(t, ext.OnPaymentReconciled(ctx, p, payment.StatusPending))
	require.NoError(t, ext.OnOrphanRecovered(ctx, p))

	sub.Status = subscription.StatusCancelled
	require.NoError(t, ext.OnSubscriptionStatusChanged(ctx, sub, subscription.StatusActive))
	require.NoError(t, ext.OnSubscriptionCancelled(ctx, sub))

	assert.Equal(t, []string{
		audithook.ActionSubscriptionCreated,
		audithook.ActionSubscriptionActivated,
		audithook.ActionPaymentCreated,
		audithook.ActionPaymentReconciled,
		audithook.ActionPaymentFailed,
		audithook.ActionOrphanRecovered,
		audithook.ActionSubscriptionCancelled,
	}, rec.actions())

	failed := rec.events[4]
	assert.Equal(t, audithook.OutcomeFailure, failed.Outcome)
	assert.Equal(t, "salon-1", failed.TenantID)
	assert.Equal(t, p.ID.String(), failed.ResourceID)
	assert.Equal(t, "insufficient_funds", failed.Metadata["failure_reason"])
}

func TestExtension_Webhooks(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionWebhookReceived))

	require.NoError(t, ext.OnWebhookReceived(ctx, "tr_1"))
	require.NoError(t, ext.OnWebhookProcessed(ctx, "tr_1", http.StatusOK, time.Millisecond))
	require.NoError(t, ext.OnWebhookProcessed(ctx, "tr_2", http.StatusNotFound, time.Millisecond))
	require.NoError(t, ext.OnWebhookProcessed(ctx, "tr_3", http.StatusInternalServerError, time.Millisecond))

	require.Len(t, rec.events, 3)
	assert.Equal(t, audithook.ActionWebhookProcessed, rec.events[0].Action)
	assert.Equal(t, audithook.SeverityWarning, rec.events[1].Severity)
	assert.Equal(t, audithook.SeverityError, rec.events[2].Severity)
	assert.Equal(t, "webhook answered 500", rec.events[2].Reason)
}

func TestExtension_EnabledActions(t *testing.T) {
	rec := &recorder{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionOrphanRecovered))
	sub, p := fixtures()

	require.NoError(t, ext.OnSubscriptionCreated(context.Background(), sub))
	require.NoError(t, ext.OnOrphanRecovered(context.Background(), p))
	assert.Equal(t, []string{audithook.ActionOrphanRecovered}, rec.actions())
}

func TestExtension_RecorderErrorIsSwallowed(t *testing.T) {
	rec := &recorder{err: errors.New("chronicle down")}
	ext := audithook.New(rec)
	_, p := fixtures()

	assert.NoError(t, ext.OnPaymentCreated(context.Background(), p))
	assert.Len(t, rec.events, 1)
}
