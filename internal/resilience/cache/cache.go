// Package cache provides an in-memory key-value store with per-entry TTL,
// capacity-bounded LRU eviction, and optional stale-while-revalidate reads.
// It is the change-detection primitive for watchers: CompareAndSet reports
// whether a freshly computed value differs from the cached one.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Outcome is the result of a CompareAndSet call.
type Outcome string

const (
	// OutcomeInitial means no value was cached for the key before the call.
	OutcomeInitial Outcome = "initial"

	// OutcomeChanged means the new value differs from the cached one.
	OutcomeChanged Outcome = "changed"

	// OutcomeUnchanged means the new value is serialized-equal to the cached one.
	OutcomeUnchanged Outcome = "unchanged"
)

// Config holds the configuration for a Cache.
type Config struct {
	// TTL is the default time-to-live applied by Set when no explicit TTL
	// is given. Must be positive.
	TTL time.Duration

	// MaxSize bounds the number of entries kept after a cleanup pass.
	// When exceeded, entries are evicted in least-recently-accessed order.
	MaxSize int

	// StaleWhileRevalidate, when true, lets Get return an expired value once
	// while marking the entry as revalidating, instead of dropping it.
	// The caller that observes the stale read is expected to refresh the
	// entry via Set; the cache itself never triggers refreshes.
	StaleWhileRevalidate bool

	// CleanupInterval is the period of the background janitor started by
	// StartJanitor. Zero disables the janitor.
	CleanupInterval time.Duration

	// OnEvict, when non-nil, is invoked for every entry removed by cleanup
	// or LRU eviction. Panics in the callback are recovered and logged;
	// they never propagate into cache control flow.
	OnEvict func(key string, value any)
}

// DefaultConfig returns a cache configuration suitable for fetch results.
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		MaxSize:         1000,
		CleanupInterval: time.Minute,
	}
}

type entry[V any] struct {
	value          V
	expiresAt      time.Time
	lastAccessedAt time.Time
	revalidating   bool
}

// Cache is a TTL + LRU bounded in-memory store. It is safe for concurrent
// use; every read-modify-write sequence runs under a single mutex.
type Cache[V any] struct {
	mu     sync.Mutex
	store  map[string]*entry[V]
	config Config
	hits   uint64
	misses uint64

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Cache with the given configuration.
func New[V any](config Config) *Cache[V] {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultConfig().MaxSize
	}
	return &Cache[V]{
		store:  make(map[string]*entry[V]),
		config: config,
		now:    time.Now,
	}
}

// Get returns the value for key. The second return is false when the key is
// absent or expired. With stale-while-revalidate enabled, the first Get after
// expiry returns the stale value with ok=true and stale=true, marking the
// entry as revalidating so only one caller observes the stale read.
func (c *Cache[V]) Get(key string) (value V, ok bool, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.store[key]
	if !exists {
		c.misses++
		var zero V
		return zero, false, false
	}

	now := c.now()
	if now.After(e.expiresAt) {
		if !c.config.StaleWhileRevalidate {
			delete(c.store, key)
			c.misses++
			var zero V
			return zero, false, false
		}
		if e.revalidating {
			// A refresher is already on it; further readers miss.
			c.misses++
			var zero V
			return zero, false, false
		}
		e.revalidating = true
		e.lastAccessedAt = now
		c.hits++
		return e.value, true, true
	}

	e.lastAccessedAt = now
	c.hits++
	return e.value, true, false
}

// Set stores value under key with the default TTL, clearing any
// revalidating mark.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.config.TTL)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = &entry[V]{
		value:          value,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
}

// Delete removes key and reports whether an entry existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.store[key]
	delete(c.store, key)
	return existed
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*entry[V])
}

// Len returns the current number of entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// CompareAndSet stores newValue under key and reports how it relates to the
// previously cached value: OutcomeInitial when nothing was cached,
// OutcomeUnchanged when the JSON serialization matches the previous value,
// OutcomeChanged otherwise. Expired entries still participate in the
// comparison; change detection cares about the last observed value, not its
// freshness.
func (c *Cache[V]) CompareAndSet(key string, newValue V) (Outcome, error) {
	newJSON, err := json.Marshal(newValue)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.store[key]
	now := c.now()
	c.store[key] = &entry[V]{
		value:          newValue,
		expiresAt:      now.Add(c.config.TTL),
		lastAccessedAt: now,
	}

	if !exists {
		return OutcomeInitial, nil
	}
	prevJSON, err := json.Marshal(prev.value)
	if err != nil {
		return OutcomeChanged, nil
	}
	if string(prevJSON) == string(newJSON) {
		return OutcomeUnchanged, nil
	}
	return OutcomeChanged, nil
}

// Cleanup removes expired entries, then evicts least-recently-accessed
// entries until the store is back at MaxSize. It returns the number of
// removed entries.
func (c *Cache[V]) Cleanup() int {
	type evicted struct {
		key   string
		value any
	}
	var toNotify []evicted

	c.mu.Lock()
	now := c.now()
	removed := 0

	for key, e := range c.store {
		if !now.After(e.expiresAt) {
			continue
		}
		if c.config.StaleWhileRevalidate && e.revalidating {
			// A stale read was handed out; give the refresher a chance.
			continue
		}
		if c.config.OnEvict != nil {
			toNotify = append(toNotify, evicted{key, e.value})
		}
		delete(c.store, key)
		removed++
	}

	if len(c.store) > c.config.MaxSize {
		type aged struct {
			key        string
			accessedAt time.Time
		}
		ages := make([]aged, 0, len(c.store))
		for key, e := range c.store {
			ages = append(ages, aged{key, e.lastAccessedAt})
		}
		sort.Slice(ages, func(i, j int) bool {
			return ages[i].accessedAt.Before(ages[j].accessedAt)
		})
		for _, a := range ages {
			if len(c.store) <= c.config.MaxSize {
				break
			}
			if c.config.OnEvict != nil {
				toNotify = append(toNotify, evicted{a.key, c.store[a.key].value})
			}
			delete(c.store, a.key)
			removed++
		}
	}
	c.mu.Unlock()

	// Callbacks run outside the lock; each failure is isolated per entry.
	for _, ev := range toNotify {
		c.safeEvict(ev.key, ev.value)
	}
	return removed
}

func (c *Cache[V]) safeEvict(key string, value any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("cache eviction callback panicked",
				slog.String("key", key),
				slog.Any("panic", r))
		}
	}()
	c.config.OnEvict(key, value)
}

// StartJanitor runs Cleanup on the configured interval until ctx is
// cancelled. It returns immediately when CleanupInterval is zero.
func (c *Cache[V]) StartJanitor(ctx context.Context) {
	if c.config.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(c.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.store), Hits: c.hits, Misses: c.misses}
}

// SetClock overrides the cache's time source. Intended for tests.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
