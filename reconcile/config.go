package reconcile

import "time"

// Config holds the engine's timing knobs.
type Config struct {
	// GatewayAttempts is the total number of gateway fetch attempts.
	GatewayAttempts int `json:"gateway_attempts" mapstructure:"gateway_attempts" yaml:"gateway_attempts"`
	// GatewayBackoff is the linear backoff step: attempt n waits n×step.
	GatewayBackoff time.Duration `json:"gateway_backoff" mapstructure:"gateway_backoff" yaml:"gateway_backoff"`
	// CorrelationDelay is the single wait before re-checking for a local
	// payment record that has not been committed yet.
	CorrelationDelay time.Duration `json:"correlation_delay" mapstructure:"correlation_delay" yaml:"correlation_delay"`

	// SweepInterval enables the stale pending payment sweep when positive.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`
	// SweepStaleAfter is how old a pending payment must be to be swept.
	SweepStaleAfter time.Duration `json:"sweep_stale_after" mapstructure:"sweep_stale_after" yaml:"sweep_stale_after"`
	// SweepBatchSize caps the payments reconciled per sweep.
	SweepBatchSize int `json:"sweep_batch_size" mapstructure:"sweep_batch_size" yaml:"sweep_batch_size"`
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		GatewayAttempts:  3,
		GatewayBackoff:   time.Second,
		CorrelationDelay: 2 * time.Second,
		SweepStaleAfter:  30 * time.Minute,
		SweepBatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GatewayAttempts <= 0 {
		c.GatewayAttempts = d.GatewayAttempts
	}
	if c.GatewayBackoff < 0 {
		c.GatewayBackoff = 0
	}
	if c.CorrelationDelay < 0 {
		c.CorrelationDelay = 0
	}
	if c.SweepStaleAfter <= 0 {
		c.SweepStaleAfter = d.SweepStaleAfter
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = d.SweepBatchSize
	}
	return c
}
