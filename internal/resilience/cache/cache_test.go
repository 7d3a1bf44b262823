package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(cfg Config) (*Cache[string], *fakeClock) {
	c := New[string](cfg)
	clock := newFakeClock()
	c.SetClock(clock.Now)
	return c, clock
}

func TestGet_ReturnsValueBeforeTTL(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute, MaxSize: 10})

	c.Set("k", "v")

	got, ok, stale := c.Get("k")
	if !ok || stale {
		t.Fatalf("Get = (%q, %v, %v), want (v, true, false)", got, ok, stale)
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestGet_AbsentAfterExpiry(t *testing.T) {
	c, clock := newTestCache(Config{TTL: time.Minute, MaxSize: 10})

	c.Set("k", "v")
	clock.Advance(time.Minute + time.Second)

	if _, ok, _ := c.Get("k"); ok {
		t.Error("expected expired entry to be absent")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after expired read", c.Len())
	}
}

func TestGet_StaleWhileRevalidate(t *testing.T) {
	c, clock := newTestCache(Config{TTL: time.Minute, MaxSize: 10, StaleWhileRevalidate: true})

	c.Set("k", "v")
	clock.Advance(2 * time.Minute)

	got, ok, stale := c.Get("k")
	if !ok || !stale || got != "v" {
		t.Fatalf("first stale Get = (%q, %v, %v), want (v, true, true)", got, ok, stale)
	}

	// Second reader must not get another stale copy while a refresh is pending.
	if _, ok, _ := c.Get("k"); ok {
		t.Error("expected second stale read to miss while revalidating")
	}

	// A refresh clears staleness.
	c.Set("k", "v2")
	got, ok, stale = c.Get("k")
	if !ok || stale || got != "v2" {
		t.Errorf("Get after refresh = (%q, %v, %v), want (v2, true, false)", got, ok, stale)
	}
}

func TestCleanup_EvictsLRUOverCapacity(t *testing.T) {
	c, clock := newTestCache(Config{TTL: time.Hour, MaxSize: 3})

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
		clock.Advance(time.Second)
	}

	// Touch k0 so k1 becomes the least recently accessed.
	c.Get("k0")
	clock.Advance(time.Second)

	c.Set("k3", "v")
	c.Cleanup()

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3 after cleanup", c.Len())
	}
	if _, ok, _ := c.Get("k1"); ok {
		t.Error("expected k1 (least recently accessed) to be evicted")
	}
	if _, ok, _ := c.Get("k0"); !ok {
		t.Error("expected recently accessed k0 to survive eviction")
	}
}

func TestCleanup_RemovesExpiredFirst(t *testing.T) {
	c, clock := newTestCache(Config{TTL: time.Minute, MaxSize: 10})

	c.Set("old", "v")
	clock.Advance(2 * time.Minute)
	c.Set("fresh", "v")

	removed := c.Cleanup()
	if removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
	if _, ok, _ := c.Get("fresh"); !ok {
		t.Error("expected fresh entry to survive cleanup")
	}
}

func TestCleanup_OnEvictCallbackPanicIsolated(t *testing.T) {
	var evicted []string
	cfg := Config{
		TTL:     time.Minute,
		MaxSize: 10,
		OnEvict: func(key string, _ any) {
			evicted = append(evicted, key)
			panic("observer blew up")
		},
	}
	c, clock := newTestCache(cfg)

	c.Set("a", "v")
	c.Set("b", "v")
	clock.Advance(2 * time.Minute)

	// Must not panic, and both entries must still be removed.
	removed := c.Cleanup()
	if removed != 2 {
		t.Errorf("Cleanup removed %d, want 2", removed)
	}
	if len(evicted) != 2 {
		t.Errorf("OnEvict called %d times, want 2", len(evicted))
	}
}

func TestCompareAndSet_Semantics(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute, MaxSize: 10})

	out, err := c.CompareAndSet("k", "hash-1")
	if err != nil {
		t.Fatalf("CompareAndSet: %v", err)
	}
	if out != OutcomeInitial {
		t.Errorf("first call = %q, want %q", out, OutcomeInitial)
	}

	out, _ = c.CompareAndSet("k", "hash-1")
	if out != OutcomeUnchanged {
		t.Errorf("repeat call = %q, want %q", out, OutcomeUnchanged)
	}

	out, _ = c.CompareAndSet("k", "hash-2")
	if out != OutcomeChanged {
		t.Errorf("differing call = %q, want %q", out, OutcomeChanged)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute, MaxSize: 10})

	c.Set("k", "v")
	if !c.Delete("k") {
		t.Error("Delete existing key = false, want true")
	}
	if c.Delete("k") {
		t.Error("Delete absent key = true, want false")
	}

	c.Set("a", "v")
	c.Set("b", "v")
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestStats_CountsHitsAndMisses(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute, MaxSize: 10})

	c.Set("k", "v")
	c.Get("k")
	c.Get("absent")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss, size 1", stats)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](Config{TTL: time.Minute, MaxSize: 100})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, n)
				c.Get(key)
				if j%25 == 0 {
					c.Cleanup()
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 10 {
		t.Errorf("Len = %d, want at most 10 distinct keys", c.Len())
	}
}
