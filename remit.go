package remit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/remit/id"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plan"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/store"
	"github.com/xraph/remit/subscription"
	"github.com/xraph/remit/types"
)

// DefaultTrialDays is the length of a trial subscription.
const DefaultTrialDays = 14

// Remit is the subscription service: plan lookup, subscription lifecycle,
// payment record creation and status projection.
type Remit struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	paylog  *paylog.Logger
	now     func() time.Time

	trialDays int
}

// New creates a new Remit instance.
func New(s store.Store, opts ...Option) *Remit {
	r := &Remit{
		store:     s,
		plugins:   plugin.NewRegistry(),
		logger:    slog.Default(),
		now:       time.Now,
		trialDays: DefaultTrialDays,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.paylog == nil {
		r.paylog = paylog.New(paylog.NewSlogSink(r.logger), paylog.WithClock(r.now))
	}

	return r
}

// Option configures a Remit instance.
type Option func(*Remit)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Remit) {
		r.logger = logger
		r.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(r *Remit) {
		_ = r.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPaymentLog sets the payment event logger.
func WithPaymentLog(l *paylog.Logger) Option {
	return func(r *Remit) {
		r.paylog = l
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Remit) {
		r.now = now
	}
}

// WithTrialDays sets the trial length.
func WithTrialDays(days int) Option {
	return func(r *Remit) {
		if days > 0 {
			r.trialDays = days
		}
	}
}

// Store returns the underlying store.
func (r *Remit) Store() store.Store { return r.store }

// Plugins returns the plugin registry.
func (r *Remit) Plugins() *plugin.Registry { return r.plugins }

// PaymentLog returns the payment event logger.
func (r *Remit) PaymentLog() *paylog.Logger { return r.paylog }

// Logger returns the logger.
func (r *Remit) Logger() *slog.Logger { return r.logger }

// Now returns the current time from the configured clock, in UTC.
func (r *Remit) Now() time.Time { return r.now().UTC() }

// Start migrates the store and initializes plugins.
func (r *Remit) Start(ctx context.Context) error {
	if err := r.store.Migrate(ctx); err != nil {
		return fmt.Errorf("remit: migrate: %w", err)
	}

	r.plugins.EmitInit(ctx, r)

	r.logger.Info("remit started",
		"trial_days", r.trialDays,
		"plugins", r.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (r *Remit) Stop() error {
	r.plugins.EmitShutdown(context.Background())
	return r.store.Close()
}

// ──────────────────────────────────────────────────
// Plans
// ──────────────────────────────────────────────────

// CreatePlan stores a new plan.
func (r *Remit) CreatePlan(ctx context.Context, p *plan.Plan) error {
	if p.ID.IsNil() {
		p.ID = id.NewPlanID()
	}
	if p.Name == "" {
		return ValidationError{Field: "name", Message: "required"}
	}
	if p.Status == "" {
		p.Status = plan.StatusActive
	}
	p.Entity = types.NewEntityAt(r.Now())

	return r.store.CreatePlan(ctx, p)
}

// SubscriptionPlans lists active plans ordered by ascending price.
func (r *Remit) SubscriptionPlans(ctx context.Context) ([]*plan.Plan, error) {
	plans, err := r.store.ListPlans(ctx, plan.ListOpts{Status: plan.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("%w: list plans: %w", ErrConfiguration, err)
	}
	return plans, nil
}

// SubscriptionPlan returns the active plan with the given ID. It returns
// nil without an error when no active plan matches.
func (r *Remit) SubscriptionPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	p, err := r.store.GetPlan(ctx, planID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil //nolint:nilnil // absence is not an error here
		}
		return nil, fmt.Errorf("%w: get plan: %w", ErrConfiguration, err)
	}
	if p.Status != plan.StatusActive {
		return nil, nil //nolint:nilnil // inactive plans are invisible
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Subscription queries
// ──────────────────────────────────────────────────

// Subscription returns a subscription by ID.
func (r *Remit) Subscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return r.store.GetSubscription(ctx, subID)
}

// LatestSubscription returns the tenant's current subscription.
func (r *Remit) LatestSubscription(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	return r.store.GetLatestSubscription(ctx, tenantID)
}

// HasActiveSubscription reports whether the tenant has an active or trial
// subscription. Errors are logged and reported as false.
func (r *Remit) HasActiveSubscription(ctx context.Context, tenantID string) bool {
	ok, err := r.store.HasActiveSubscription(ctx, tenantID, r.Now())
	if err != nil {
		r.logger.Warn("active subscription check failed",
			"tenant_id", tenantID,
			"error", err,
		)
		return false
	}
	return ok
}

// SubscriptionStatus projects the tenant's current subscription with its
// plan features. It returns nil when the tenant has no subscription or the
// lookup fails; failures are logged.
func (r *Remit) SubscriptionStatus(ctx context.Context, tenantID string) *StatusProjection {
	sub, err := r.store.GetLatestSubscription(ctx, tenantID)
	if err != nil {
		if !IsNotFound(err) {
			r.logger.Error("subscription status lookup failed",
				"tenant_id", tenantID,
				"error", err,
			)
		}
		return nil
	}

	var p *plan.Plan
	if !sub.PlanID.IsNil() {
		p, err = r.store.GetPlan(ctx, sub.PlanID)
		if err != nil && !IsNotFound(err) {
			r.logger.Error("subscription plan lookup failed",
				"tenant_id", tenantID,
				"plan_id", sub.PlanID.String(),
				"error", err,
			)
			return nil
		}
	}

	return project(sub, p, r.Now())
}

// ──────────────────────────────────────────────────
// Subscription lifecycle
// ──────────────────────────────────────────────────

// CreateTrialSubscription starts a trial for the tenant. A nil plan ID
// selects the active Starter plan; ErrNoPlanAvailable is returned, and
// nothing is written, when there is none.
func (r *Remit) CreateTrialSubscription(ctx context.Context, tenantID string, planID id.PlanID) (*subscription.Subscription, error) {
	if tenantID == "" {
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}

	p, err := r.resolveTrialPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := r.Now()
	trialEnd := now.AddDate(0, 0, r.trialDays)
	sub := &subscription.Subscription{
		Entity:             types.NewEntityAt(now),
		ID:                 id.NewSubscriptionID(),
		TenantID:           tenantID,
		PlanID:             p.ID,
		Status:             subscription.StatusTrial,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   trialEnd,
		TrialEnd:           &trialEnd,
	}

	if err := r.createSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *Remit) resolveTrialPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	if !planID.IsNil() {
		p, err := r.store.GetPlan(ctx, planID)
		if err != nil {
			return nil, fmt.Errorf("remit: trial plan %s: %w", planID, err)
		}
		return p, nil
	}

	p, err := r.store.GetPlanByName(ctx, plan.StarterName)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNoPlanAvailable
		}
		return nil, fmt.Errorf("%w: find starter plan: %w", ErrConfiguration, err)
	}
	return p, nil
}

// CreateSubscription creates an unpaid subscription with a one-month period,
// awaiting its first payment.
func (r *Remit) CreateSubscription(ctx context.Context, tenantID string, planID id.PlanID, gatewayCustomerID string) (*subscription.Subscription, error) {
	if tenantID == "" {
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}
	if planID.IsNil() {
		return nil, ValidationError{Field: "plan_id", Message: "required"}
	}

	now := r.Now()
	sub := &subscription.Subscription{
		Entity:             types.NewEntityAt(now),
		ID:                 id.NewSubscriptionID(),
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             subscription.StatusUnpaid,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		GatewayCustomerID:  gatewayCustomerID,
	}

	if err := r.createSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *Remit) createSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := r.store.CreateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("remit: create subscription: %w", err)
	}

	r.logger.Info("subscription created",
		"subscription_id", sub.ID.String(),
		"tenant_id", sub.TenantID,
		"plan_id", sub.PlanID.String(),
		"status", string(sub.Status),
	)
	r.plugins.EmitSubscriptionCreated(ctx, sub)
	return nil
}

// UpdateSubscriptionWithPayment re-arms an existing subscription for a new
// billing attempt: new plan, gateway customer, unpaid status, and a fresh
// one-month period. Trial and cancellation stamps are cleared.
func (r *Remit) UpdateSubscriptionWithPayment(ctx context.Context, subID id.SubscriptionID, planID id.PlanID, gatewayCustomerID string) (*subscription.Subscription, error) {
	sub, err := r.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	from := sub.Status
	now := r.Now()
	sub.PlanID = planID
	sub.GatewayCustomerID = gatewayCustomerID
	sub.Status = subscription.StatusUnpaid
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = now.AddDate(0, 1, 0)
	sub.TrialEnd = nil
	sub.CancelledAt = nil
	sub.TouchAt(now)

	if err := r.saveSubscription(ctx, sub); err != nil {
		return nil, err
	}

	r.plugins.EmitSubscriptionStatusChanged(ctx, sub, from)
	return sub, nil
}

// StatusUpdate carries the optional fields merged by UpdateSubscriptionStatus.
type StatusUpdate struct {
	GatewaySubscriptionID string
	GatewayCustomerID     string
	// CurrentPeriodEnd only ever extends the period. An earlier end, such as
	// one carried by a redelivered webhook for an older payment, is ignored.
	CurrentPeriodEnd *time.Time
	CancelledAt      *time.Time
}

// UpdateSubscriptionStatus sets the status and merges any supplied fields.
// A cancelled subscription cannot leave the cancelled status.
func (r *Remit) UpdateSubscriptionStatus(ctx context.Context, subID id.SubscriptionID, status subscription.Status, update *StatusUpdate) (*subscription.Subscription, error) {
	sub, err := r.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	from := sub.Status
	if !subscription.CanTransition(from, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	now := r.Now()
	sub.Status = status
	if update != nil {
		if update.GatewaySubscriptionID != "" {
			sub.GatewaySubscriptionID = update.GatewaySubscriptionID
		}
		if update.GatewayCustomerID != "" {
			sub.GatewayCustomerID = update.GatewayCustomerID
		}
		if update.CurrentPeriodEnd != nil && update.CurrentPeriodEnd.After(sub.CurrentPeriodEnd) {
			sub.CurrentPeriodEnd = update.CurrentPeriodEnd.UTC()
		}
		if update.CancelledAt != nil {
			t := update.CancelledAt.UTC()
			sub.CancelledAt = &t
		}
	}
	if status == subscription.StatusCancelled && sub.CancelledAt == nil {
		sub.CancelledAt = &now
	}
	sub.TouchAt(now)

	if err := r.saveSubscription(ctx, sub); err != nil {
		return nil, err
	}

	r.plugins.EmitSubscriptionStatusChanged(ctx, sub, from)
	if status == subscription.StatusCancelled {
		r.plugins.EmitSubscriptionCancelled(ctx, sub)
	}
	return sub, nil
}

// CancelSubscription cancels a subscription effective now. Cancelling again
// re-stamps the cancellation time.
func (r *Remit) CancelSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	now := r.Now()
	return r.UpdateSubscriptionStatus(ctx, subID, subscription.StatusCancelled, &StatusUpdate{CancelledAt: &now})
}

func (r *Remit) saveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("remit: update subscription %s: %w", sub.ID, err)
	}

	r.logger.Debug("subscription updated",
		"subscription_id", sub.ID.String(),
		"status", string(sub.Status),
	)
	return nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// CreatePaymentRecord records a pending payment for the subscription's next
// one-month period, correlated by the gateway payment id.
func (r *Remit) CreatePaymentRecord(ctx context.Context, subID id.SubscriptionID, amount types.Money, gatewayPaymentID string) (*payment.Payment, error) {
	if gatewayPaymentID == "" {
		return nil, ValidationError{Field: "gateway_payment_id", Message: "required"}
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	sub, err := r.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	now := r.Now()
	p := &payment.Payment{
		Entity:           types.NewEntityAt(now),
		ID:               id.NewPaymentID(),
		SubscriptionID:   sub.ID,
		TenantID:         sub.TenantID,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           amount,
		Status:           payment.StatusPending,
		PeriodStart:      now,
		PeriodEnd:        now.AddDate(0, 1, 0),
	}

	if err := r.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("remit: create payment: %w", err)
	}

	r.paylog.Info(paylog.PaymentCreated, paylog.Ref{
		PaymentID:        p.ID,
		GatewayPaymentID: gatewayPaymentID,
		SubscriptionID:   sub.ID,
		TenantID:         sub.TenantID,
	}, "payment record created", paylog.Details{InternalStatus: string(p.Status)})
	r.plugins.EmitPaymentCreated(ctx, p)

	return p, nil
}

// Payments returns the payment record store.
func (r *Remit) Payments() payment.Store { return r.store }
