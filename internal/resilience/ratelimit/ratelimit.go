// Package ratelimit provides a fixed-window per-key request limiter.
// The watcher uses it as a politeness policy per remote host, independent of
// caching, deduplication, and retry.
//
// Unlike the token-bucket limiter guarding notification webhooks
// (internal/infra/notifier), this limiter counts admissions against a fixed
// window and reports remaining quota and reset time to callers.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"pagewatch/internal/fault"
)

// Config holds the configuration for a Limiter.
type Config struct {
	// Window is the length of the fixed counting window.
	Window time.Duration

	// MaxRequests is the number of admissions allowed per key per window.
	MaxRequests int

	// RejectOnLimit controls Execute's behavior when a key is over quota:
	// when true Execute fails with a rate-limited fault, when false it
	// logs nothing and invokes the operation anyway (advisory mode).
	RejectOnLimit bool
}

// DefaultConfig returns a limiter allowing 30 admissions per key per minute,
// rejecting callers over quota.
func DefaultConfig() Config {
	return Config{
		Window:        time.Minute,
		MaxRequests:   30,
		RejectOnLimit: true,
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter counts admissions per key over a fixed window. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	config  Config

	now func() time.Time
}

// New creates a Limiter with the given configuration.
func New(config Config) *Limiter {
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = DefaultConfig().MaxRequests
	}
	return &Limiter{
		windows: make(map[string]*window),
		config:  config,
		now:     time.Now,
	}
}

// IsAllowed checks and consumes quota for key. Each call counts against the
// current window; once the window's quota is spent, further calls are denied
// until the window resets.
func (l *Limiter) IsAllowed(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.Window)}
		l.windows[key] = w
	}

	if w.count >= l.config.MaxRequests {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    w.resetAt,
			RetryAfter: w.resetAt.Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.config.MaxRequests - w.count,
		ResetAt:   w.resetAt,
	}
}

// Execute checks quota for key and then invokes fn. When the key is over
// quota and RejectOnLimit is set, fn is not invoked and a rate-limited fault
// carrying the retry-after hint is returned.
func (l *Limiter) Execute(key string, fn func() error) error {
	decision := l.IsAllowed(key)
	if !decision.Allowed && l.config.RejectOnLimit {
		return fault.RateLimited(
			fmt.Sprintf("rate limit exceeded for %q", key), decision.RetryAfter)
	}
	return fn()
}

// Reset clears the window for key. Intended for tests and manual resets.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// SetClock overrides the limiter's time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
