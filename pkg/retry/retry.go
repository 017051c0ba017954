// Package retry provides bounded exponential-backoff retries for calls to
// external collaborators (LLM endpoints, vector search).
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryableError lets error types advertise whether retrying can help,
// without this package importing them.
type RetryableError interface {
	IsRetryable() bool
}

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- fraction of the delay
}

// DefaultConfig returns defaults suited to LLM and vector-search calls:
// 2 retries, 200ms initial delay doubling up to 2s, 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Do executes fn, retrying on retryable errors until the budget is spent.
// Errors that do not implement RetryableError, or report IsRetryable()
// false, abort immediately. Respects context cancellation during waits.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == cfg.MaxRetries {
			return lastErr
		}

		select {
		case <-time.After(withJitter(delay, cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// DoWithResult executes fn and returns its result alongside the final error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

func isRetryable(err error) bool {
	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// withJitter spreads delays to avoid synchronized retries against a shared
// endpoint.
func withJitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	jitter := float64(delay) * factor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}
