// Package dedup collapses concurrent executions for the same key into a
// single underlying operation. All callers waiting on a key observe the
// identical settled result of the one execution that actually ran.
package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config holds the configuration for a Deduplicator.
type Config struct {
	// MaxAge is how long a pending entry may live before the background
	// sweep removes it. This guards against leaked entries when an
	// operation never settles. Sweeping a still-running entry allows a
	// duplicate execution for that key to start; MaxAge should comfortably
	// exceed the worst-case operation duration.
	MaxAge time.Duration

	// CleanupInterval is the period of the background sweep started by
	// StartSweeper. Zero disables the sweep.
	CleanupInterval time.Duration
}

// DefaultConfig returns a deduplicator configuration with a sweep age well
// past any realistic fetch duration (per-attempt timeout times retries).
func DefaultConfig() Config {
	return Config{
		MaxAge:          5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// pending is one in-flight execution shared between callers.
type pending[T any] struct {
	done      chan struct{}
	result    T
	err       error
	startedAt time.Time
}

// Deduplicator tracks in-flight executions per key. Safe for concurrent use.
type Deduplicator[T any] struct {
	mu      sync.Mutex
	entries map[string]*pending[T]
	config  Config

	now func() time.Time
}

// New creates a Deduplicator with the given configuration.
func New[T any](config Config) *Deduplicator[T] {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultConfig().MaxAge
	}
	return &Deduplicator[T]{
		entries: make(map[string]*pending[T]),
		config:  config,
		now:     time.Now,
	}
}

// Execute runs op for key, unless an execution for the same key is already
// in flight, in which case it waits for that execution and returns its
// result. The entry is removed when the operation settles, so a later call
// starts a fresh execution.
//
// ctx cancels only this caller's wait: the shared operation keeps running
// and settles for the remaining waiters.
func (d *Deduplicator[T]) Execute(ctx context.Context, key string, op func() (T, error)) (T, error) {
	d.mu.Lock()
	if p, exists := d.entries[key]; exists {
		d.mu.Unlock()
		return d.wait(ctx, p)
	}

	p := &pending[T]{
		done:      make(chan struct{}),
		startedAt: d.now(),
	}
	d.entries[key] = p
	d.mu.Unlock()

	go func() {
		result, err := op()

		d.mu.Lock()
		// The sweep may have replaced the entry; only remove our own.
		if current, ok := d.entries[key]; ok && current == p {
			delete(d.entries, key)
		}
		d.mu.Unlock()

		p.result = result
		p.err = err
		close(p.done)
	}()

	return d.wait(ctx, p)
}

// wait blocks until the shared execution settles or ctx is cancelled.
func (d *Deduplicator[T]) wait(ctx context.Context, p *pending[T]) (T, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Pending returns the number of in-flight entries.
func (d *Deduplicator[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Sweep removes entries older than MaxAge regardless of completion state and
// returns how many were removed.
func (d *Deduplicator[T]) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.config.MaxAge)
	removed := 0
	for key, p := range d.entries {
		if p.startedAt.Before(cutoff) {
			delete(d.entries, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Warn("swept stale in-flight entries", slog.Int("count", removed))
	}
	return removed
}

// StartSweeper runs Sweep on the configured interval until ctx is cancelled.
// It returns immediately when CleanupInterval is zero.
func (d *Deduplicator[T]) StartSweeper(ctx context.Context) {
	if d.config.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(d.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// SetClock overrides the deduplicator's time source. Intended for tests.
func (d *Deduplicator[T]) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}
