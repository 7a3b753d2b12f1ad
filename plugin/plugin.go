// Package plugin provides an extensible plugin system for Remit.
// Plugins hook into subscription, payment and webhook lifecycle events.
// Hooks run with a timeout and their errors are logged, never propagated.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized. r is the *remit.Remit
// instance that owns the registry.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, r interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a trial or paid subscription is created.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionStatusChanged is called after a status update is persisted.
type OnSubscriptionStatusChanged interface {
	Plugin
	OnSubscriptionStatusChanged(ctx context.Context, sub *subscription.Subscription, from subscription.Status) error
}

// OnSubscriptionCancelled is called when a subscription is cancelled.
type OnSubscriptionCancelled interface {
	Plugin
	OnSubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated is called when a payment record is created.
type OnPaymentCreated interface {
	Plugin
	OnPaymentCreated(ctx context.Context, p *payment.Payment) error
}

// OnPaymentReconciled is called after a payment row is updated from the gateway.
type OnPaymentReconciled interface {
	Plugin
	OnPaymentReconciled(ctx context.Context, p *payment.Payment, from payment.Status) error
}

// OnOrphanRecovered is called when a payment row is created from gateway
// data because no local record existed.
type OnOrphanRecovered interface {
	Plugin
	OnOrphanRecovered(ctx context.Context, p *payment.Payment) error
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called when a webhook delivery names a payment.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, gatewayPaymentID string) error
}

// OnWebhookProcessed is called once a delivery has been answered.
type OnWebhookProcessed interface {
	Plugin
	OnWebhookProcessed(ctx context.Context, gatewayPaymentID string, httpStatus int, elapsed time.Duration) error
}
