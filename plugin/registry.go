package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/remit/payment"
	"github.com/xraph/remit/subscription"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting only touches interested plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                      []OnInit
	onShutdown                  []OnShutdown
	onSubscriptionCreated       []OnSubscriptionCreated
	onSubscriptionStatusChanged []OnSubscriptionStatusChanged
	onSubscriptionCancelled     []OnSubscriptionCancelled
	onPaymentCreated            []OnPaymentCreated
	onPaymentReconciled         []OnPaymentReconciled
	onOrphanRecovered           []OnOrphanRecovered
	onWebhookReceived           []OnWebhookReceived
	onWebhookProcessed          []OnWebhookProcessed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionStatusChanged); ok {
		r.onSubscriptionStatusChanged = append(r.onSubscriptionStatusChanged, v)
	}
	if v, ok := p.(OnSubscriptionCancelled); ok {
		r.onSubscriptionCancelled = append(r.onSubscriptionCancelled, v)
	}
	if v, ok := p.(OnPaymentCreated); ok {
		r.onPaymentCreated = append(r.onPaymentCreated, v)
	}
	if v, ok := p.(OnPaymentReconciled); ok {
		r.onPaymentReconciled = append(r.onPaymentReconciled, v)
	}
	if v, ok := p.(OnOrphanRecovered); ok {
		r.onOrphanRecovered = append(r.onOrphanRecovered, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnWebhookProcessed); ok {
		r.onWebhookProcessed = append(r.onWebhookProcessed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

// implementedInterfaces returns the hook names the plugin implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnSubscriptionCreated)(nil)).Elem(), "OnSubscriptionCreated")
	checkInterface(reflect.TypeOf((*OnSubscriptionStatusChanged)(nil)).Elem(), "OnSubscriptionStatusChanged")
	checkInterface(reflect.TypeOf((*OnSubscriptionCancelled)(nil)).Elem(), "OnSubscriptionCancelled")
	checkInterface(reflect.TypeOf((*OnPaymentCreated)(nil)).Elem(), "OnPaymentCreated")
	checkInterface(reflect.TypeOf((*OnPaymentReconciled)(nil)).Elem(), "OnPaymentReconciled")
	checkInterface(reflect.TypeOf((*OnOrphanRecovered)(nil)).Elem(), "OnOrphanRecovered")
	checkInterface(reflect.TypeOf((*OnWebhookReceived)(nil)).Elem(), "OnWebhookReceived")
	checkInterface(reflect.TypeOf((*OnWebhookProcessed)(nil)).Elem(), "OnWebhookProcessed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, owner interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, owner)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	dispatch(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitSubscriptionCreated notifies OnSubscriptionCreated plugins.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCreated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSubscriptionCreated", plugins, func(p OnSubscriptionCreated) error {
		return p.OnSubscriptionCreated(ctx, sub)
	})
}

// EmitSubscriptionStatusChanged notifies OnSubscriptionStatusChanged plugins.
func (r *Registry) EmitSubscriptionStatusChanged(ctx context.Context, sub *subscription.Subscription, from subscription.Status) {
	r.mu.RLock()
	plugins := r.onSubscriptionStatusChanged
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSubscriptionStatusChanged", plugins, func(p OnSubscriptionStatusChanged) error {
		return p.OnSubscriptionStatusChanged(ctx, sub, from)
	})
}

// EmitSubscriptionCancelled notifies OnSubscriptionCancelled plugins.
func (r *Registry) EmitSubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCancelled
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSubscriptionCancelled", plugins, func(p OnSubscriptionCancelled) error {
		return p.OnSubscriptionCancelled(ctx, sub)
	})
}

// EmitPaymentCreated notifies OnPaymentCreated plugins.
func (r *Registry) EmitPaymentCreated(ctx context.Context, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentCreated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnPaymentCreated", plugins, func(p OnPaymentCreated) error {
		return p.OnPaymentCreated(ctx, pay)
	})
}

// EmitPaymentReconciled notifies OnPaymentReconciled plugins.
func (r *Registry) EmitPaymentReconciled(ctx context.Context, pay *payment.Payment, from payment.Status) {
	r.mu.RLock()
	plugins := r.onPaymentReconciled
	r.mu.RUnlock()

	dispatch(ctx, r, "OnPaymentReconciled", plugins, func(p OnPaymentReconciled) error {
		return p.OnPaymentReconciled(ctx, pay, from)
	})
}

// EmitOrphanRecovered notifies OnOrphanRecovered plugins.
func (r *Registry) EmitOrphanRecovered(ctx context.Context, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onOrphanRecovered
	r.mu.RUnlock()

	dispatch(ctx, r, "OnOrphanRecovered", plugins, func(p OnOrphanRecovered) error {
		return p.OnOrphanRecovered(ctx, pay)
	})
}

// EmitWebhookReceived notifies OnWebhookReceived plugins.
func (r *Registry) EmitWebhookReceived(ctx context.Context, gatewayPaymentID string) {
	r.mu.RLock()
	plugins := r.onWebhookReceived
	r.mu.RUnlock()

	dispatch(ctx, r, "OnWebhookReceived", plugins, func(p OnWebhookReceived) error {
		return p.OnWebhookReceived(ctx, gatewayPaymentID)
	})
}

// EmitWebhookProcessed notifies OnWebhookProcessed plugins.
func (r *Registry) EmitWebhookProcessed(ctx context.Context, gatewayPaymentID string, httpStatus int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onWebhookProcessed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnWebhookProcessed", plugins, func(p OnWebhookProcessed) error {
		return p.OnWebhookProcessed(ctx, gatewayPaymentID, httpStatus, elapsed)
	})
}

func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, call func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the reconciliation pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
