// Package audithook bridges Remit lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                      = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated       = (*Extension)(nil)
	_ plugin.OnSubscriptionStatusChanged = (*Extension)(nil)
	_ plugin.OnSubscriptionCancelled     = (*Extension)(nil)
	_ plugin.OnPaymentCreated            = (*Extension)(nil)
	_ plugin.OnPaymentReconciled         = (*Extension)(nil)
	_ plugin.OnOrphanRecovered           = (*Extension)(nil)
	_ plugin.OnWebhookReceived           = (*Extension)(nil)
	_ plugin.OnWebhookProcessed          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter but is defined locally; callers inject the
// concrete backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Remit lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), sub.TenantID, CategorySubscription, nil,
		"plan_id", sub.PlanID.String(),
		"status", string(sub.Status),
	)
}

// OnSubscriptionStatusChanged implements plugin.OnSubscriptionStatusChanged.
func (e *Extension) OnSubscriptionStatusChanged(ctx context.Context, sub *subscription.Subscription, from subscription.Status) error {
	action, severity := ActionSubscriptionChanged, SeverityInfo
	switch sub.Status {
	case subscription.StatusActive:
		action = ActionSubscriptionActivated
	case subscription.StatusUnpaid:
		action, severity = ActionSubscriptionUnpaid, SeverityWarning
	case subscription.StatusExpired:
		action, severity = ActionSubscriptionExpired, SeverityWarning
	case subscription.StatusCancelled:
		// Recorded by OnSubscriptionCancelled.
		return nil
	}

	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), sub.TenantID, CategorySubscription, nil,
		"from", string(from),
		"to", string(sub.Status),
		"period_end", sub.CurrentPeriodEnd.Format(time.RFC3339),
	)
}

// OnSubscriptionCancelled implements plugin.OnSubscriptionCancelled.
func (e *Extension) OnSubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCancelled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), sub.TenantID, CategorySubscription, nil,
		"plan_id", sub.PlanID.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (e *Extension) OnPaymentCreated(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentCreated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), p.TenantID, CategoryPayment, nil,
		"gateway_payment_id", p.GatewayPaymentID,
		"amount", p.Amount.String(),
	)
}

// OnPaymentReconciled implements plugin.OnPaymentReconciled.
func (e *Extension) OnPaymentReconciled(ctx context.Context, p *payment.Payment, from payment.Status) error {
	if p.Status.IsFailure() {
		return e.record(ctx, ActionPaymentFailed, SeverityWarning, OutcomeFailure,
			ResourcePayment, p.ID.String(), p.TenantID, CategoryPayment, nil,
			"gateway_payment_id", p.GatewayPaymentID,
			"from", string(from),
			"to", string(p.Status),
			"failure_reason", p.FailureReason,
		)
	}
	return e.record(ctx, ActionPaymentReconciled, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), p.TenantID, CategoryPayment, nil,
		"gateway_payment_id", p.GatewayPaymentID,
		"from", string(from),
		"to", string(p.Status),
	)
}

// OnOrphanRecovered implements plugin.OnOrphanRecovered.
func (e *Extension) OnOrphanRecovered(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionOrphanRecovered, SeverityWarning, OutcomeSuccess,
		ResourcePayment, p.ID.String(), p.TenantID, CategoryPayment, nil,
		"gateway_payment_id", p.GatewayPaymentID,
		"subscription_id", p.SubscriptionID.String(),
	)
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (e *Extension) OnWebhookReceived(ctx context.Context, gatewayPaymentID string) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, gatewayPaymentID, "", CategoryIntegration, nil,
	)
}

// OnWebhookProcessed implements plugin.OnWebhookProcessed.
func (e *Extension) OnWebhookProcessed(ctx context.Context, gatewayPaymentID string, httpStatus int, elapsed time.Duration) error {
	if httpStatus >= http.StatusBadRequest {
		severity := SeverityWarning
		if httpStatus >= http.StatusInternalServerError {
			severity = SeverityError
		}
		return e.record(ctx, ActionWebhookRejected, severity, OutcomeFailure,
			ResourceWebhook, gatewayPaymentID, "", CategoryIntegration,
			fmt.Errorf("webhook answered %d", httpStatus),
			"http_status", httpStatus,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	return e.record(ctx, ActionWebhookProcessed, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, gatewayPaymentID, "", CategoryIntegration, nil,
		"http_status", httpStatus,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never returned.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, tenantID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		TenantID:   tenantID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
