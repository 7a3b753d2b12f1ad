package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/observability"
	"github.com/xraph/remit/plugin"
	"github.com/xraph/remit/store"
)

// Option configures the Remit Forge extension.
type Option func(*Extension)

// WithStore sets the store directly, bypassing driver selection.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB supplies the database for the postgres, sqlite and mongo
// drivers. driver must be one of the Driver constants.
func WithGroveDB(driver string, db *grove.DB) Option {
	return func(e *Extension) {
		e.config.Driver = driver
		e.groveDB = db
	}
}

// WithGateway replaces the Mollie client built from config.
func WithGateway(gw gateway.Client) Option {
	return func(e *Extension) {
		e.gateway = gw
	}
}

// WithRemitOption passes a remit.Option through to the underlying service.
func WithRemitOption(opt remit.Option) Option {
	return func(e *Extension) {
		e.remitOpts = append(e.remitOpts, opt)
	}
}

// WithPlugin registers a remit plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.remitOpts = append(e.remitOpts, remit.WithPlugin(p))
	}
}

// WithMetricFactory sets the factory for the metrics plugin. The default is
// a Prometheus factory on the default registerer.
func WithMetricFactory(f observability.MetricFactory) Option {
	return func(e *Extension) { e.metrics = f }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableMetrics skips the metrics plugin.
func WithDisableMetrics() Option {
	return func(e *Extension) { e.config.DisableMetrics = true }
}

// WithMollieAPIKey sets the Mollie API key.
func WithMollieAPIKey(key string) Option {
	return func(e *Extension) { e.config.Mollie.APIKey = key }
}

// WithWebhookSecret enables the webhook signature check.
func WithWebhookSecret(secret string) Option {
	return func(e *Extension) { e.config.Webhook.Secret = secret }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
