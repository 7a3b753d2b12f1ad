// Package reconcile turns a gateway webhook notification into local state:
// it fetches the authoritative payment from the gateway, correlates it with
// the local payment record, recovers orphaned payments, and moves the
// subscription to active or unpaid.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/id"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/subscription"
	"github.com/xraph/remit/types"
)

// Service is the subscription service the engine drives.
// *remit.Remit implements it.
type Service interface {
	Payments() payment.Store
	LatestSubscription(ctx context.Context, tenantID string) (*subscription.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, subID id.SubscriptionID, status subscription.Status, update *remit.StatusUpdate) (*subscription.Subscription, error)
}

// Action describes what a webhook delivery did.
type Action string

const (
	ActionProcessed       Action = "processed"
	ActionOrphanRecovered Action = "orphaned_payment_created"
)

// Result summarizes a processed webhook delivery.
type Result struct {
	PaymentID        id.PaymentID
	GatewayPaymentID string
	GatewayStatus    string
	Status           payment.Status
	SubscriptionID   id.SubscriptionID
	TenantID         string
	Action           Action
	// Reconciled is set on orphan recovery and reports whether the forced
	// reconciliation that followed succeeded.
	Reconciled bool
}

// Engine reconciles webhook deliveries. It holds no per-payment state, so a
// single Engine serves concurrent deliveries.
type Engine struct {
	gateway  gateway.Client
	svc      Service
	payments payment.Store
	cfg      Config

	paylog  *paylog.Logger
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine timings.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

// WithPaymentLog sets the payment event logger.
func WithPaymentLog(l *paylog.Logger) Option {
	return func(e *Engine) { e.paylog = l }
}

// WithPlugins sets the plugin registry notified of reconciliations.
func WithPlugins(r *plugin.Registry) Option {
	return func(e *Engine) { e.plugins = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. When svc also exposes PaymentLog, Plugins, Logger
// or Now (as *remit.Remit does) those are used unless overridden by options.
func New(gw gateway.Client, svc Service, opts ...Option) *Engine {
	e := &Engine{
		gateway:  gw,
		svc:      svc,
		payments: svc.Payments(),
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	if v, ok := svc.(interface{ PaymentLog() *paylog.Logger }); ok {
		e.paylog = v.PaymentLog()
	}
	if v, ok := svc.(interface{ Plugins() *plugin.Registry }); ok {
		e.plugins = v.Plugins()
	}
	if v, ok := svc.(interface{ Logger() *slog.Logger }); ok {
		e.logger = v.Logger()
	}
	if v, ok := svc.(interface{ Now() time.Time }); ok {
		e.now = v.Now
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.paylog == nil {
		e.paylog = paylog.New(paylog.NewSlogSink(e.logger))
	}
	if e.plugins == nil {
		e.plugins = plugin.NewRegistry().WithLogger(e.logger)
	}

	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// PaymentLog returns the payment event logger.
func (e *Engine) PaymentLog() *paylog.Logger { return e.paylog }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// ──────────────────────────────────────────────────
// Webhook processing
// ──────────────────────────────────────────────────

// ProcessWebhook reconciles a single delivery naming gatewayPaymentID.
//
// Errors wrap remit.ErrGatewayPaymentNotFound when the gateway could not
// produce the payment and remit.ErrMissingMetadata when the payment lacks
// tenant or plan metadata. Any other error is an internal failure.
func (e *Engine) ProcessWebhook(ctx context.Context, gatewayPaymentID string) (*Result, error) {
	start := e.now()
	ref := paylog.Ref{GatewayPaymentID: gatewayPaymentID}

	gp, err := e.fetch(ctx, gatewayPaymentID)
	if err != nil {
		e.paylog.Error(paylog.WebhookFailed, ref, "payment not retrievable from gateway", err,
			paylog.Details{MaxAttempts: e.cfg.GatewayAttempts})
		if !errors.Is(err, remit.ErrGatewayPaymentNotFound) {
			err = fmt.Errorf("%w: %w", remit.ErrGatewayPaymentNotFound, err)
		}
		return nil, err
	}

	ref.TenantID = gp.Metadata.TenantID
	if !gp.Metadata.Complete() {
		e.paylog.Error(paylog.WebhookFailed, ref, "payment metadata missing tenantId or planId",
			remit.ErrMissingMetadata, paylog.Details{GatewayStatus: gp.Status})
		return nil, fmt.Errorf("%w: payment %s", remit.ErrMissingMetadata, gatewayPaymentID)
	}

	rec, err := e.correlate(ctx, gatewayPaymentID, ref)
	if errors.Is(err, remit.ErrPaymentNotFound) {
		return e.recoverOrphan(ctx, gp, ref, start)
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile: look up payment %s: %w", gatewayPaymentID, err)
	}

	ref.PaymentID = rec.ID
	ref.SubscriptionID = rec.SubscriptionID

	if err := e.applyPayment(ctx, rec, gp); err != nil {
		return nil, err
	}
	if err := e.transitionSubscription(ctx, rec, gp, ref); err != nil {
		return nil, err
	}

	e.paylog.Info(paylog.WebhookProcessed, ref, "webhook processed", paylog.Details{
		GatewayStatus:  gp.Status,
		InternalStatus: string(rec.Status),
		Action:         string(ActionProcessed),
		Duration:       e.now().Sub(start),
	})

	return &Result{
		PaymentID:        rec.ID,
		GatewayPaymentID: gatewayPaymentID,
		GatewayStatus:    gp.Status,
		Status:           rec.Status,
		SubscriptionID:   rec.SubscriptionID,
		TenantID:         gp.Metadata.TenantID,
		Action:           ActionProcessed,
	}, nil
}

// fetch retrieves the payment with linear backoff between attempts.
func (e *Engine) fetch(ctx context.Context, gatewayPaymentID string) (*gateway.Payment, error) {
	attempt := 0
	op := func() (*gateway.Payment, error) {
		attempt++
		p, err := e.gateway.GetPayment(ctx, gatewayPaymentID)
		if err != nil {
			if errors.Is(err, remit.ErrGatewayNotConfigured) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return p, nil
	}

	notify := func(err error, next time.Duration) {
		e.logger.Warn("gateway fetch failed, retrying",
			"gateway_payment_id", gatewayPaymentID,
			"attempt", attempt,
			"max_attempts", e.cfg.GatewayAttempts,
			"next_in", next,
			"error", err,
		)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(newLinearBackOff(e.cfg.GatewayBackoff)),
		backoff.WithMaxTries(uint(e.cfg.GatewayAttempts)),
		backoff.WithNotify(notify),
	)
}

// correlate finds the local record, waiting once for a record that may not
// have been committed yet.
func (e *Engine) correlate(ctx context.Context, gatewayPaymentID string, ref paylog.Ref) (*payment.Payment, error) {
	rec, err := e.payments.GetPaymentByGatewayID(ctx, gatewayPaymentID)
	if err == nil || !remit.IsNotFound(err) {
		return rec, err
	}

	e.paylog.Debug(paylog.PaymentTimeout, ref, "local payment record not found, waiting before retry",
		paylog.Details{Attempt: 1, Duration: e.cfg.CorrelationDelay})

	if err := sleep(ctx, e.cfg.CorrelationDelay); err != nil {
		return nil, err
	}

	rec, err = e.payments.GetPaymentByGatewayID(ctx, gatewayPaymentID)
	if err != nil && remit.IsNotFound(err) {
		e.paylog.Warn(paylog.PaymentTimeout, ref, "local payment record still missing after wait",
			paylog.Details{Attempt: 2, Duration: e.cfg.CorrelationDelay})
		return nil, remit.ErrPaymentNotFound
	}
	return rec, err
}

// recoverOrphan creates the missing local record from gateway data and
// reconciles it immediately.
func (e *Engine) recoverOrphan(ctx context.Context, gp *gateway.Payment, ref paylog.Ref, start time.Time) (*Result, error) {
	now := e.now().UTC()

	amount, err := gp.Amount.Money()
	if err != nil {
		e.logger.Warn("orphaned payment has unparseable amount",
			"gateway_payment_id", gp.ID,
			"amount", gp.Amount.Value,
			"currency", gp.Amount.Currency,
			"error", err,
		)
		amount = types.Zero(gp.Amount.Currency)
	}

	rec := &payment.Payment{
		Entity:           types.NewEntityAt(now),
		ID:               id.NewPaymentID(),
		SubscriptionID:   e.orphanSubscription(ctx, gp),
		TenantID:         gp.Metadata.TenantID,
		GatewayPaymentID: gp.ID,
		Amount:           amount,
		Status:           e.gateway.InternalStatus(gp.Status),
		PeriodStart:      now,
		PeriodEnd:        now.AddDate(0, 1, 0),
		Orphaned:         true,
	}
	if e.gateway.IsPaymentSuccessful(gp) {
		rec.PaymentDate = &now
	}
	if e.gateway.IsPaymentFailed(gp) {
		rec.FailureReason = gp.FailureReason()
	}

	if err := e.payments.CreatePayment(ctx, rec); err != nil {
		return nil, fmt.Errorf("reconcile: create orphaned payment %s: %w", gp.ID, err)
	}

	ref.PaymentID = rec.ID
	ref.SubscriptionID = rec.SubscriptionID
	e.paylog.Warn(paylog.PaymentCreated, ref, "orphaned payment record created from gateway data", paylog.Details{
		GatewayStatus:  gp.Status,
		InternalStatus: string(rec.Status),
		Action:         string(ActionOrphanRecovered),
	})
	e.plugins.EmitOrphanRecovered(ctx, rec)

	reconciled := e.ForceReconcilePayment(ctx, gp.ID)

	e.paylog.Info(paylog.WebhookProcessed, ref, "webhook processed with orphan recovery", paylog.Details{
		GatewayStatus:  gp.Status,
		InternalStatus: string(rec.Status),
		Action:         string(ActionOrphanRecovered),
		Duration:       e.now().Sub(start),
	})

	return &Result{
		PaymentID:        rec.ID,
		GatewayPaymentID: gp.ID,
		GatewayStatus:    gp.Status,
		Status:           rec.Status,
		SubscriptionID:   rec.SubscriptionID,
		TenantID:         gp.Metadata.TenantID,
		Action:           ActionOrphanRecovered,
		Reconciled:       reconciled,
	}, nil
}

// orphanSubscription resolves the subscription an orphaned payment belongs
// to: the metadata's subscription id, else the tenant's latest subscription.
func (e *Engine) orphanSubscription(ctx context.Context, gp *gateway.Payment) id.SubscriptionID {
	if gp.Metadata.SubscriptionID != "" {
		if subID, err := id.ParseSubscriptionID(gp.Metadata.SubscriptionID); err == nil {
			return subID
		}
	}
	sub, err := e.svc.LatestSubscription(ctx, gp.Metadata.TenantID)
	if err != nil {
		return id.Nil
	}
	return sub.ID
}

// applyPayment projects the gateway status onto the local record and
// persists it. Payment date and failure reason follow the gateway's
// predicates; an existing payment date is kept so repeated deliveries
// converge on the same row.
func (e *Engine) applyPayment(ctx context.Context, rec *payment.Payment, gp *gateway.Payment) error {
	now := e.now().UTC()
	from := rec.Status

	rec.Status = e.gateway.InternalStatus(gp.Status)
	if e.gateway.IsPaymentSuccessful(gp) {
		if rec.PaymentDate == nil {
			rec.PaymentDate = &now
		}
	}
	if e.gateway.IsPaymentFailed(gp) {
		rec.FailureReason = gp.FailureReason()
	} else {
		rec.FailureReason = ""
	}
	rec.TouchAt(now)

	if err := e.payments.UpdatePayment(ctx, rec); err != nil {
		return fmt.Errorf("reconcile: update payment %s: %w", rec.ID, err)
	}

	e.plugins.EmitPaymentReconciled(ctx, rec, from)
	return nil
}

// transitionSubscription activates the subscription on success and marks
// it unpaid on failure. Activation failures are returned; downgrade
// failures are only logged.
func (e *Engine) transitionSubscription(ctx context.Context, rec *payment.Payment, gp *gateway.Payment, ref paylog.Ref) error {
	subID := rec.SubscriptionID
	if subID.IsNil() && gp.Metadata.SubscriptionID != "" {
		if parsed, err := id.ParseSubscriptionID(gp.Metadata.SubscriptionID); err == nil {
			subID = parsed
		}
	}
	ref.SubscriptionID = subID

	switch {
	case e.gateway.IsPaymentSuccessful(gp):
		if subID.IsNil() {
			err := fmt.Errorf("%w: payment %s has no subscription", remit.ErrSubscriptionNotFound, rec.ID)
			e.paylog.Error(paylog.SubscriptionFailed, ref, "cannot activate subscription", err,
				paylog.Details{GatewayStatus: gp.Status})
			return err
		}

		update := &remit.StatusUpdate{
			GatewayCustomerID:     gp.CustomerID,
			GatewaySubscriptionID: gp.GatewaySubscriptionID(),
		}
		if !rec.PeriodEnd.IsZero() {
			end := rec.PeriodEnd
			update.CurrentPeriodEnd = &end
		}

		_, err := e.svc.UpdateSubscriptionStatus(ctx, subID, subscription.StatusActive, update)
		if errors.Is(err, remit.ErrInvalidTransition) {
			e.paylog.Warn(paylog.StatusMismatch, ref, "payment succeeded for a cancelled subscription; not reactivated",
				paylog.Details{GatewayStatus: gp.Status, LocalStatus: string(subscription.StatusCancelled)})
			return nil
		}
		if err != nil {
			e.paylog.Error(paylog.SubscriptionFailed, ref, "subscription activation failed", err,
				paylog.Details{GatewayStatus: gp.Status})
			return fmt.Errorf("reconcile: activate subscription %s: %w", subID, err)
		}

		e.paylog.Info(paylog.SubscriptionActivated, ref, "subscription activated", paylog.Details{
			GatewayStatus:  gp.Status,
			InternalStatus: string(subscription.StatusActive),
		})

	case e.gateway.IsPaymentFailed(gp):
		if subID.IsNil() {
			return nil
		}
		if _, err := e.svc.UpdateSubscriptionStatus(ctx, subID, subscription.StatusUnpaid, nil); err != nil {
			e.paylog.Log(paylog.Entry{
				Level:   paylog.LevelWarn,
				Kind:    paylog.SubscriptionFailed,
				Ref:     ref,
				Message: "could not mark subscription unpaid after failed payment",
				Details: paylog.Details{GatewayStatus: gp.Status},
				Err:     err,
			})
			e.logger.Warn("subscription downgrade failed",
				"subscription_id", subID.String(),
				"error", err,
			)
		}
	}

	return nil
}

// ──────────────────────────────────────────────────
// Forced reconciliation
// ──────────────────────────────────────────────────

// ForceReconcilePayment re-fetches the payment from the gateway and applies
// it to the existing local record without waiting. It reports whether the
// payment and subscription were both brought in line.
func (e *Engine) ForceReconcilePayment(ctx context.Context, gatewayPaymentID string) bool {
	start := e.now()
	ref := paylog.Ref{GatewayPaymentID: gatewayPaymentID}
	e.paylog.Info(paylog.ReconciliationStarted, ref, "forced reconciliation started", paylog.Details{})

	gp, err := e.fetch(ctx, gatewayPaymentID)
	if err != nil {
		e.paylog.Error(paylog.ReconciliationFailed, ref, "payment not retrievable from gateway", err, paylog.Details{})
		return false
	}
	ref.TenantID = gp.Metadata.TenantID

	rec, err := e.payments.GetPaymentByGatewayID(ctx, gatewayPaymentID)
	if err != nil {
		e.paylog.Error(paylog.ReconciliationFailed, ref, "no local payment record", err,
			paylog.Details{GatewayStatus: gp.Status})
		return false
	}
	ref.PaymentID = rec.ID
	ref.SubscriptionID = rec.SubscriptionID

	if projected := e.gateway.InternalStatus(gp.Status); projected != rec.Status {
		e.paylog.Warn(paylog.StatusMismatch, ref, "local payment status differs from gateway", paylog.Details{
			LocalStatus:    string(rec.Status),
			GatewayStatus:  gp.Status,
			InternalStatus: string(projected),
		})
	}

	if err := e.applyPayment(ctx, rec, gp); err != nil {
		e.paylog.Error(paylog.ReconciliationFailed, ref, "payment update failed", err,
			paylog.Details{GatewayStatus: gp.Status})
		return false
	}
	if err := e.transitionSubscription(ctx, rec, gp, ref); err != nil {
		e.paylog.Error(paylog.ReconciliationFailed, ref, "subscription transition failed", err,
			paylog.Details{GatewayStatus: gp.Status})
		return false
	}

	e.paylog.Info(paylog.ReconciliationSuccess, ref, "forced reconciliation succeeded", paylog.Details{
		GatewayStatus:  gp.Status,
		InternalStatus: string(rec.Status),
		Duration:       e.now().Sub(start),
	})
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
