// Package retry provides retry logic with exponential backoff and jitter.
// Every failure is retried identically; transient-versus-permanent
// classification is left to the layers above (the fetch pipeline classifies
// responses, the circuit breaker isolates persistently failing targets).
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"pagewatch/internal/fault"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxRetries is the total number of attempts, including the first.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Subsequent delays
	// double per attempt, each stretched by up to 10% random jitter.
	BaseDelay time.Duration
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// FetchConfig returns configuration tuned for page fetches: transient
// network hiccups recover quickly, so short initial delays win.
func FetchConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
	}
}

// Run executes fn up to cfg.MaxRetries times. Between attempts (never after
// the last) it waits BaseDelay * 2^attempt stretched by a random jitter
// factor in [1.0, 1.1). When all attempts fail, it returns an
// operation-exhausted fault wrapping the last error.
func Run(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt+1))
			}
			return nil
		}

		if attempt == cfg.MaxRetries-1 {
			break
		}

		delay := backoffDelay(cfg.BaseDelay, attempt)
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", cfg.MaxRetries),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return fault.Exhausted(cfg.MaxRetries, cfg.BaseDelay, lastErr)
}

// backoffDelay computes the wait before the retry following the given
// zero-based attempt: base * 2^attempt * jitter, jitter in [1.0, 1.1).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	// #nosec G404 -- math/rand is fine for backoff jitter; cryptographic
	// randomness is not required here.
	jitter := 1.0 + rand.Float64()*0.1
	return time.Duration(float64(delay) * jitter)
}
