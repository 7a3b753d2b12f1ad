// Package extension provides the Forge extension adapter for Remit.
//
// It implements the forge.Extension interface to integrate Remit
// into a Forge application with store selection, DI registration of the
// subscription service, the reconciliation engine and the webhook handler,
// and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.remit" or "remit" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/remit"
	"github.com/xraph/remit/gateway"
	"github.com/xraph/remit/gateway/mollie"
	"github.com/xraph/remit/observability"
	"github.com/xraph/remit/paylog"
	"github.com/xraph/remit/reconcile"
	"github.com/xraph/remit/store"
	"github.com/xraph/remit/store/memory"
	mongostore "github.com/xraph/remit/store/mongo"
	"github.com/xraph/remit/store/postgres"
	"github.com/xraph/remit/store/sqlite"
	"github.com/xraph/remit/webhook"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "remit"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Mollie payment reconciliation and subscription lifecycle"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Remit as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config    Config
	remit     *remit.Remit
	engine    *reconcile.Engine
	handler   *webhook.Handler
	store     store.Store
	groveDB   *grove.DB
	gateway   gateway.Client
	metrics   observability.MetricFactory
	remitOpts []remit.Option
}

// New creates a new Remit Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Remit returns the subscription service. Nil until Register is called.
func (e *Extension) Remit() *remit.Remit { return e.remit }

// Engine returns the reconciliation engine. Nil until Register is called.
func (e *Extension) Engine() *reconcile.Engine { return e.engine }

// Handler returns the webhook endpoint. The host application mounts it,
// either directly or through Mount.
func (e *Extension) Handler() http.Handler { return e.handler }

// Mount registers the webhook handler on mux for POST requests at
// Config().WebhookPath.
func (e *Extension) Mount(mux *http.ServeMux) {
	mux.Handle(http.MethodPost+" "+e.config.WebhookPath, e.handler)
}

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration, builds the
// store, service, engine and handler, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(slog.Default()); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*remit.Remit, error) {
		return e.remit, nil
	}); err != nil {
		return err
	}
	if err := vessel.Provide(fapp.Container(), func() (*reconcile.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*webhook.Handler, error) {
		return e.handler, nil
	})
}

// build wires the components from the resolved config.
func (e *Extension) build(logger *slog.Logger) error {
	if e.store == nil {
		s, err := openStore(e.config.Driver, e.groveDB)
		if err != nil {
			return err
		}
		e.store = s
	}

	if e.gateway == nil {
		if e.config.Mollie.APIKey == "" {
			logger.Warn("remit: mollie api key not configured; webhooks will fail until it is set")
		}
		e.gateway = mollie.New(e.config.Mollie.APIKey,
			mollie.WithBaseURL(e.config.Mollie.BaseURL),
			mollie.WithHTTPClient(&http.Client{Timeout: e.config.Mollie.Timeout}),
			mollie.WithLogger(logger),
		)
	}

	sinks := []paylog.Sink{paylog.NewSlogSink(logger)}
	opts := []remit.Option{
		remit.WithLogger(logger),
		remit.WithTrialDays(e.config.TrialDays),
	}

	if !e.config.DisableMetrics {
		if e.metrics == nil {
			e.metrics = observability.NewPrometheusFactory(prometheus.DefaultRegisterer)
		}
		m := observability.NewMetricsExtension(e.metrics)
		sinks = append(sinks, m)
		opts = append(opts, remit.WithPlugin(m))
	}

	opts = append(opts, remit.WithPaymentLog(paylog.New(paylog.Multi(sinks...))))
	opts = append(opts, e.remitOpts...)

	e.remit = remit.New(e.store, opts...)
	e.engine = reconcile.New(e.gateway, e.remit, reconcile.WithConfig(e.config.Reconcile))
	e.handler = webhook.New(e.engine,
		webhook.WithConfig(e.config.Webhook),
		webhook.WithLogger(logger),
	)
	return nil
}

// openStore constructs the store backend for driver.
func openStore(driver string, db *grove.DB) (store.Store, error) {
	if driver == "" || driver == DriverMemory {
		return memory.New(), nil
	}
	if db == nil {
		return nil, fmt.Errorf("%w: driver %q requires a grove database", remit.ErrConfiguration, driver)
	}

	switch driver {
	case DriverPostgres:
		return postgres.New(db), nil
	case DriverSQLite:
		return sqlite.New(db), nil
	case DriverMongo:
		return mongostore.New(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", remit.ErrConfiguration, driver)
	}
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.remit == nil {
		return errors.New("remit: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.remit.Start(ctx); err != nil {
			return err
		}
	}

	// The sweep outlives the start context.
	e.engine.Start(context.WithoutCancel(ctx))

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		e.engine.Stop()
	}
	if e.remit != nil {
		if err := e.remit.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("remit: store not initialized")
	}
	return e.store.Ping(ctx)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("remit: configuration is required but not found in config files; " +
				"ensure 'extensions.remit' or 'remit' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("remit: configuration loaded",
		forge.F("driver", e.config.Driver),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_metrics", e.config.DisableMetrics),
		forge.F("webhook_path", e.config.WebhookPath),
		forge.F("trial_days", e.config.TrialDays),
		forge.F("gateway_attempts", e.config.Reconcile.GatewayAttempts),
		forge.F("sweep_interval", e.config.Reconcile.SweepInterval),
		forge.F("signature_check", e.config.Webhook.Secret != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.remit", "remit"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("remit: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("remit: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = defaults.WebhookPath
	}
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.TrialDays == 0 {
		cfg.TrialDays = defaults.TrialDays
	}
	if cfg.Mollie.BaseURL == "" {
		cfg.Mollie.BaseURL = defaults.Mollie.BaseURL
	}
	if cfg.Mollie.Timeout == 0 {
		cfg.Mollie.Timeout = defaults.Mollie.Timeout
	}
	if cfg.Webhook.SignatureHeader == "" {
		cfg.Webhook.SignatureHeader = defaults.Webhook.SignatureHeader
	}
	if cfg.Webhook.MaxBodyBytes == 0 {
		cfg.Webhook.MaxBodyBytes = defaults.Webhook.MaxBodyBytes
	}
	if cfg.Reconcile.GatewayAttempts == 0 {
		cfg.Reconcile.GatewayAttempts = defaults.Reconcile.GatewayAttempts
	}
	if cfg.Reconcile.GatewayBackoff == 0 {
		cfg.Reconcile.GatewayBackoff = defaults.Reconcile.GatewayBackoff
	}
	if cfg.Reconcile.CorrelationDelay == 0 {
		cfg.Reconcile.CorrelationDelay = defaults.Reconcile.CorrelationDelay
	}
	if cfg.Reconcile.SweepStaleAfter == 0 {
		cfg.Reconcile.SweepStaleAfter = defaults.Reconcile.SweepStaleAfter
	}
	if cfg.Reconcile.SweepBatchSize == 0 {
		cfg.Reconcile.SweepBatchSize = defaults.Reconcile.SweepBatchSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableMetrics {
		yamlConfig.DisableMetrics = true
	}

	if yamlConfig.WebhookPath == "" {
		yamlConfig.WebhookPath = programmaticConfig.WebhookPath
	}
	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.TrialDays == 0 {
		yamlConfig.TrialDays = programmaticConfig.TrialDays
	}

	// Secrets are usually injected programmatically from the environment.
	if yamlConfig.Mollie.APIKey == "" {
		yamlConfig.Mollie.APIKey = programmaticConfig.Mollie.APIKey
	}
	if yamlConfig.Mollie.BaseURL == "" {
		yamlConfig.Mollie.BaseURL = programmaticConfig.Mollie.BaseURL
	}
	if yamlConfig.Mollie.Timeout == 0 {
		yamlConfig.Mollie.Timeout = programmaticConfig.Mollie.Timeout
	}
	if yamlConfig.Webhook.Secret == "" {
		yamlConfig.Webhook.Secret = programmaticConfig.Webhook.Secret
	}
	if yamlConfig.Webhook.SignatureHeader == "" {
		yamlConfig.Webhook.SignatureHeader = programmaticConfig.Webhook.SignatureHeader
	}
	if yamlConfig.Webhook.MaxBodyBytes == 0 {
		yamlConfig.Webhook.MaxBodyBytes = programmaticConfig.Webhook.MaxBodyBytes
	}

	if yamlConfig.Reconcile.GatewayAttempts == 0 {
		yamlConfig.Reconcile.GatewayAttempts = programmaticConfig.Reconcile.GatewayAttempts
	}
	if yamlConfig.Reconcile.GatewayBackoff == 0 {
		yamlConfig.Reconcile.GatewayBackoff = programmaticConfig.Reconcile.GatewayBackoff
	}
	if yamlConfig.Reconcile.CorrelationDelay == 0 {
		yamlConfig.Reconcile.CorrelationDelay = programmaticConfig.Reconcile.CorrelationDelay
	}
	if yamlConfig.Reconcile.SweepInterval == 0 {
		yamlConfig.Reconcile.SweepInterval = programmaticConfig.Reconcile.SweepInterval
	}
	if yamlConfig.Reconcile.SweepStaleAfter == 0 {
		yamlConfig.Reconcile.SweepStaleAfter = programmaticConfig.Reconcile.SweepStaleAfter
	}
	if yamlConfig.Reconcile.SweepBatchSize == 0 {
		yamlConfig.Reconcile.SweepBatchSize = programmaticConfig.Reconcile.SweepBatchSize
	}

	return mergeWithDefaults(yamlConfig)
}
