package extension

import (
	"time"

	"github.com/xraph/remit/gateway/mollie"
	"github.com/xraph/remit/reconcile"
	"github.com/xraph/remit/webhook"
)

// Store drivers selectable by Config.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// MollieConfig configures the Mollie API client.
type MollieConfig struct {
	// APIKey is the live_ or test_ key. Gateway calls fail with a
	// configuration error while it is empty.
	APIKey string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`

	// BaseURL overrides the API root (default: https://api.mollie.com).
	BaseURL string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`

	// Timeout bounds a single gateway request (default: 10s).
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"`
}

// Config holds the Remit extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.remit" or "remit" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableMetrics skips registering the Prometheus metrics plugin.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// WebhookPath is the route Mount registers the webhook handler on
	// (default: "/webhooks/mollie"). The extension does not register routes
	// with the host router itself.
	WebhookPath string `json:"webhook_path" mapstructure:"webhook_path" yaml:"webhook_path"`

	// Driver names the store backend: memory, postgres, sqlite or mongo.
	// Every driver except memory needs a grove.DB supplied with WithGroveDB.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// TrialDays is the length of a new salon's trial (default: 14).
	TrialDays int `json:"trial_days" mapstructure:"trial_days" yaml:"trial_days"`

	Mollie    MollieConfig     `json:"mollie" mapstructure:"mollie" yaml:"mollie"`
	Webhook   webhook.Config   `json:"webhook" mapstructure:"webhook" yaml:"webhook"`
	Reconcile reconcile.Config `json:"reconcile" mapstructure:"reconcile" yaml:"reconcile"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WebhookPath: "/webhooks/mollie",
		Driver:      DriverMemory,
		TrialDays:   14,
		Mollie: MollieConfig{
			BaseURL: mollie.DefaultBaseURL,
			Timeout: 10 * time.Second,
		},
		Webhook:   webhook.DefaultConfig(),
		Reconcile: reconcile.DefaultConfig(),
	}
}
