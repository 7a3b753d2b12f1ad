package remit_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/remit"
	"github.com/xraph/remit/entitlement"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/store/memory"
	"github.com/xraph/remit/subscription"
	"github.com/xraph/remit/types"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRemit(t *testing.T, opts ...remit.Option) (*remit.Remit, *clock, *paylog.History) {
	t.Helper()

	c := &clock{now: epoch}
	history := paylog.NewHistory(0)
	base := []remit.Option{
		remit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		remit.WithClock(c.Now),
		remit.WithPaymentLog(paylog.New(history, paylog.WithClock(c.Now))),
	}
	r := remit.New(memory.New(), append(base, opts...)...)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Stop() })
	return r, c, history
}

func seedPlans(t *testing.T, r *remit.Remit) (starter, pro *plan.Plan) {
	t.Helper()
	ctx := context.Background()

	pro = &plan.Plan{
		Name:     "Professional",
		Slug:     "professional",
		Price:    types.EUR(4900),
		Interval: plan.IntervalMonthly,
		Features: []plan.Feature{
			{Key: "online_booking", Type: plan.FeatureBoolean, Limit: 1},
			{Key: "staff", Type: plan.FeatureLimit, Limit: plan.Unlimited},
		},
	}
	starter = &plan.Plan{
		Name:     plan.StarterName,
		Slug:     "starter",
		Price:    types.EUR(1900),
		Interval: plan.IntervalMonthly,
		Features: []plan.Feature{
			{Key: "online_booking", Type: plan.FeatureBoolean, Limit: 0},
			{Key: "staff", Type: plan.FeatureLimit, Limit: 3},
		},
	}
	require.NoError(t, r.CreatePlan(ctx, pro))
	require.NoError(t, r.CreatePlan(ctx, starter))

	archived := &plan.Plan{Name: "Legacy", Slug: "legacy", Price: types.EUR(900), Status: plan.StatusArchived}
	require.NoError(t, r.CreatePlan(ctx, archived))

	return starter, pro
}

func TestSubscriptionPlans(t *testing.T) {
	r, _, _ := newRemit(t)
	starter, pro := seedPlans(t, r)
	ctx := context.Background()

	plans, err := r.SubscriptionPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, starter.ID, plans[0].ID)
	assert.Equal(t, pro.ID, plans[1].ID)

	got, err := r.SubscriptionPlan(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, "Professional", got.Name)

	missing, err := r.SubscriptionPlan(ctx, id.NewPlanID())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreatePlan_RequiresName(t *testing.T) {
	r, _, _ := newRemit(t)

	err := r.CreatePlan(context.Background(), &plan.Plan{Slug: "nameless"})
	assert.ErrorIs(t, err, remit.ErrInvalidInput)
}

func TestCreateTrialSubscription(t *testing.T) {
	t.Run("defaults to starter", func(t *testing.T) {
		r, _, _ := newRemit(t)
		starter, _ := seedPlans(t, r)

		sub, err := r.CreateTrialSubscription(context.Background(), "salon-1", id.Nil)
		require.NoError(t, err)

		assert.Equal(t, starter.ID, sub.PlanID)
		assert.Equal(t, subscription.StatusTrial, sub.Status)
		assert.Equal(t, epoch, sub.CurrentPeriodStart)
		require.NotNil(t, sub.TrialEnd)
		assert.Equal(t, epoch.AddDate(0, 0, remit.DefaultTrialDays), *sub.TrialEnd)
		assert.Equal(t, *sub.TrialEnd, sub.CurrentPeriodEnd)
	})

	t.Run("explicit plan", func(t *testing.T) {
		r, _, _ := newRemit(t, remit.WithTrialDays(30))
		_, pro := seedPlans(t, r)

		sub, err := r.CreateTrialSubscription(context.Background(), "salon-2", pro.ID)
		require.NoError(t, err)
		assert.Equal(t, pro.ID, sub.PlanID)
		assert.Equal(t, epoch.AddDate(0, 0, 30), *sub.TrialEnd)
	})

	t.Run("no starter plan", func(t *testing.T) {
		r, _, _ := newRemit(t)
		ctx := context.Background()

		_, err := r.CreateTrialSubscription(ctx, "salon-3", id.Nil)
		assert.ErrorIs(t, err, remit.ErrNoPlanAvailable)

		_, err = r.LatestSubscription(ctx, "salon-3")
		assert.True(t, remit.IsNotFound(err))
	})

	t.Run("tenant required", func(t *testing.T) {
		r, _, _ := newRemit(t)
		_, err := r.CreateTrialSubscription(context.Background(), "", id.Nil)
		assert.ErrorIs(t, err, remit.ErrInvalidInput)
	})
}

func TestHasActiveSubscription(t *testing.T) {
	r, c, _ := newRemit(t)
	seedPlans(t, r)
	ctx := context.Background()

	assert.False(t, r.HasActiveSubscription(ctx, "salon-1"))

	_, err := r.CreateTrialSubscription(ctx, "salon-1", id.Nil)
	require.NoError(t, err)
	assert.True(t, r.HasActiveSubscription(ctx, "salon-1"))

	c.Advance(15 * 24 * time.Hour)
	assert.False(t, r.HasActiveSubscription(ctx, "salon-1"))
}

func TestHasActiveSubscription_FailsClosed(t *testing.T) {
	st := memory.New()
	r := remit.New(st, remit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, st.Close())

	assert.False(t, r.HasActiveSubscription(context.Background(), "salon-1"))
	assert.Nil(t, r.SubscriptionStatus(context.Background(), "salon-1"))
}

func TestPlanLookupErrorsKeepCause(t *testing.T) {
	st := memory.New()
	r := remit.New(st, remit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, st.Close())
	ctx := context.Background()

	_, err := r.SubscriptionPlans(ctx)
	assert.ErrorIs(t, err, remit.ErrConfiguration)
	assert.ErrorIs(t, err, remit.ErrStoreClosed)

	_, err = r.SubscriptionPlan(ctx, id.NewPlanID())
	assert.ErrorIs(t, err, remit.ErrConfiguration)
	assert.ErrorIs(t, err, remit.ErrStoreClosed)

	_, err = r.CreateTrialSubscription(ctx, "salon-1", id.Nil)
	assert.ErrorIs(t, err, remit.ErrConfiguration)
	assert.ErrorIs(t, err, remit.ErrStoreClosed)
}

func TestSubscriptionLifecycle(t *testing.T) {
	r, c, history := newRemit(t)
	_, pro := seedPlans(t, r)
	ctx := context.Background()

	trial, err := r.CreateTrialSubscription(ctx, "salon-1", id.Nil)
	require.NoError(t, err)

	c.Advance(time.Hour)
	sub, err := r.UpdateSubscriptionWithPayment(ctx, trial.ID, pro.ID, "cst_1")
	require.NoError(t, err)
	assert.Equal(t, trial.ID, sub.ID)
	assert.Equal(t, pro.ID, sub.PlanID)
	assert.Equal(t, subscription.StatusUnpaid, sub.Status)
	assert.Equal(t, "cst_1", sub.GatewayCustomerID)
	assert.Nil(t, sub.TrialEnd)
	assert.Equal(t, epoch.Add(time.Hour).AddDate(0, 1, 0), sub.CurrentPeriodEnd)

	p, err := r.CreatePaymentRecord(ctx, sub.ID, pro.Price, "tr_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Equal(t, "salon-1", p.TenantID)
	assert.Equal(t, 1, len(history.Entries(paylog.Filter{Kind: paylog.PaymentCreated})))

	end := epoch.AddDate(0, 2, 0)
	active, err := r.UpdateSubscriptionStatus(ctx, sub.ID, subscription.StatusActive, &remit.StatusUpdate{
		GatewaySubscriptionID: "sub_cst_1",
		CurrentPeriodEnd:      &end,
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, active.Status)
	assert.Equal(t, "sub_cst_1", active.GatewaySubscriptionID)
	assert.Equal(t, "cst_1", active.GatewayCustomerID)
	assert.Equal(t, end, active.CurrentPeriodEnd)

	c.Advance(time.Hour)
	cancelled, err := r.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
	first := *cancelled.CancelledAt

	c.Advance(time.Hour)
	again, err := r.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, again.CancelledAt.After(first))

	_, err = r.UpdateSubscriptionStatus(ctx, sub.ID, subscription.StatusActive, nil)
	assert.ErrorIs(t, err, remit.ErrInvalidTransition)
}

func TestCreateSubscription(t *testing.T) {
	r, _, _ := newRemit(t)
	_, pro := seedPlans(t, r)
	ctx := context.Background()

	sub, err := r.CreateSubscription(ctx, "salon-1", pro.ID, "cst_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusUnpaid, sub.Status)
	assert.Equal(t, epoch.AddDate(0, 1, 0), sub.CurrentPeriodEnd)
	assert.False(t, r.HasActiveSubscription(ctx, "salon-1"))

	_, err = r.CreateSubscription(ctx, "salon-1", id.Nil, "cst_1")
	assert.ErrorIs(t, err, remit.ErrInvalidInput)
}

func TestCreatePaymentRecord_Validation(t *testing.T) {
	r, _, _ := newRemit(t)
	_, pro := seedPlans(t, r)
	ctx := context.Background()

	sub, err := r.CreateSubscription(ctx, "salon-1", pro.ID, "cst_1")
	require.NoError(t, err)

	_, err = r.CreatePaymentRecord(ctx, sub.ID, pro.Price, "")
	assert.ErrorIs(t, err, remit.ErrInvalidInput)

	_, err = r.CreatePaymentRecord(ctx, sub.ID, types.Zero("eur"), "tr_1")
	assert.ErrorIs(t, err, remit.ErrInvalidInput)

	_, err = r.CreatePaymentRecord(ctx, id.NewSubscriptionID(), pro.Price, "tr_1")
	assert.ErrorIs(t, err, remit.ErrSubscriptionNotFound)
}

func TestSubscriptionStatus(t *testing.T) {
	r, c, _ := newRemit(t)
	_, pro := seedPlans(t, r)
	ctx := context.Background()

	assert.Nil(t, r.SubscriptionStatus(ctx, "salon-1"))

	_, err := r.CreateTrialSubscription(ctx, "salon-1", id.Nil)
	require.NoError(t, err)

	status := r.SubscriptionStatus(ctx, "salon-1")
	require.NotNil(t, status)
	assert.True(t, status.Active)
	assert.Equal(t, plan.StarterName, status.PlanName)
	assert.False(t, status.FeatureAvailable("online_booking"))
	assert.Equal(t, int64(3), status.FeatureLimit("staff"))
	assert.False(t, status.Unlimited("staff"))
	assert.False(t, status.ExpiringSoon(c.Now(), 7))
	assert.True(t, status.ExpiringSoon(c.Now(), 14))
	assert.True(t, status.Check("staff", 2).Allowed)
	assert.Equal(t, entitlement.ReasonLimitReached, status.Check("staff", 3).Reason)

	sub, err := r.CreateSubscription(ctx, "salon-2", pro.ID, "cst_2")
	require.NoError(t, err)
	_, err = r.UpdateSubscriptionStatus(ctx, sub.ID, subscription.StatusActive, nil)
	require.NoError(t, err)

	status = r.SubscriptionStatus(ctx, "salon-2")
	require.NotNil(t, status)
	assert.True(t, status.FeatureAvailable("online_booking"))
	assert.True(t, status.FeatureAvailable("staff"))
	assert.True(t, status.Unlimited("staff"))
	assert.Equal(t, plan.Unlimited, status.FeatureLimit("staff"))
	assert.Zero(t, status.FeatureLimit("sms_reminders"))
	assert.False(t, status.FeatureAvailable("sms_reminders"))

	c.Advance(40 * 24 * time.Hour)
	status = r.SubscriptionStatus(ctx, "salon-2")
	require.NotNil(t, status)
	assert.False(t, status.Active)
	assert.Equal(t, entitlement.ReasonNoSubscription, status.Check("staff", 0).Reason)
	assert.False(t, status.ExpiringSoon(c.Now(), 7))
}

func TestStatusProjection_NilSafe(t *testing.T) {
	var status *remit.StatusProjection

	assert.False(t, status.FeatureAvailable("staff"))
	assert.Zero(t, status.FeatureLimit("staff"))
	assert.False(t, status.Unlimited("staff"))
	assert.False(t, status.ExpiringSoon(time.Now(), 7))
	assert.False(t, status.Check("staff", 0).Allowed)
}

type lifecycleRecorder struct {
	mu      sync.Mutex
	created int
	changes []subscription.Status
	cancels int
	inits   int
}

func (l *lifecycleRecorder) Name() string { return "lifecycle-recorder" }

func (l *lifecycleRecorder) OnInit(context.Context, interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inits++
	return nil
}

func (l *lifecycleRecorder) OnSubscriptionCreated(context.Context, *subscription.Subscription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created++
	return nil
}

func (l *lifecycleRecorder) OnSubscriptionStatusChanged(_ context.Context, sub *subscription.Subscription, from subscription.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, from, sub.Status)
	return nil
}

func (l *lifecycleRecorder) OnSubscriptionCancelled(context.Context, *subscription.Subscription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels++
	return nil
}

func TestPluginsObserveLifecycle(t *testing.T) {
	rec := &lifecycleRecorder{}
	r, _, _ := newRemit(t, remit.WithPlugin(rec))
	seedPlans(t, r)
	ctx := context.Background()

	sub, err := r.CreateTrialSubscription(ctx, "salon-1", id.Nil)
	require.NoError(t, err)
	_, err = r.UpdateSubscriptionStatus(ctx, sub.ID, subscription.StatusActive, nil)
	require.NoError(t, err)
	_, err = r.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.inits)
	assert.Equal(t, 1, rec.created)
	assert.Equal(t, []subscription.Status{
		subscription.StatusTrial, subscription.StatusActive,
		subscription.StatusActive, subscription.StatusCancelled,
	}, rec.changes)
	assert.Equal(t, 1, rec.cancels)
}
