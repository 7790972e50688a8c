// Package resilience provides the generic retry-with-backoff policy used
// by the LLM orchestrator and other provider call sites (spec.md §4.10).
package resilience

import (
	"context"
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBaseDelay    = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2
)

// Config holds retry settings. MaxAttempts counts the total number of
// calls to fn, including the first (non-retry) attempt.
type Config struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool
}

func DefaultConfig(isRetryable func(error) bool) Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  isRetryable,
	}
}

// Do executes fn with exponential backoff, stopping as soon as fn
// succeeds, the error is non-retryable, or attempts are exhausted.
// Returns the number of calls made and the last error (nil on success).
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) (int, error) {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return attempt + 1, nil
		}

		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxAttempts-1 {
			return attempt + 1, lastErr
		}

		delay := backoffDelay(cfg, attempt)
		select {
		case <-ctx.Done():
			return attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}
	return cfg.MaxAttempts, lastErr
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay << attempt
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = func(error) bool { return true }
	}
	return c
}
