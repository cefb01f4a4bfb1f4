package engine

import (
	"time"

	"recon-matching-engine/pkg/errors"
)

// Config holds orchestration parameters.
type Config struct {
	// MaxRetries is how many times a failed lookup is retried before the run
	// fails fast.
	MaxRetries int `json:"max_retries"`

	// RetryBaseDelay is the first backoff interval; it doubles per attempt.
	RetryBaseDelay time.Duration `json:"retry_base_delay"`

	// RetryMaxDelay caps the backoff interval.
	RetryMaxDelay time.Duration `json:"retry_max_delay"`

	// Workers bounds concurrent candidate scoring per entry. Zero means one
	// worker per available CPU.
	Workers int `json:"workers"`
}

// DefaultConfig returns orchestration defaults: 3 retries starting at 100ms
// capped at 2s, scoring workers matched to available CPUs.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
		Workers:        0,
	}
}

// Validate checks the orchestration configuration.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.ConfigError("engine.max_retries", c.MaxRetries)
	}
	if c.RetryBaseDelay < 0 {
		return errors.ConfigError("engine.retry_base_delay", c.RetryBaseDelay.String())
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return errors.ConfigError("engine.retry_max_delay", c.RetryMaxDelay.String()).
			WithSuggestion("the retry cap must be at least the base delay")
	}
	if c.Workers < 0 {
		return errors.ConfigError("engine.workers", c.Workers)
	}
	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
