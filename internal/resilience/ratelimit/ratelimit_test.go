package ratelimit

import (
	"sync"
	"testing"
	"time"

	"pagewatch/internal/fault"
)

func newTestLimiter(cfg Config) (*Limiter, func(time.Duration)) {
	l := New(cfg)
	var mu sync.Mutex
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}
	return l, advance
}

func TestIsAllowed_ConsumesQuota(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 3, RejectOnLimit: true})

	for i := 0; i < 3; i++ {
		d := l.IsAllowed("host")
		if !d.Allowed {
			t.Fatalf("call %d denied, want allowed", i+1)
		}
		if want := 3 - (i + 1); d.Remaining != want {
			t.Errorf("call %d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d := l.IsAllowed("host")
	if d.Allowed {
		t.Error("4th call allowed, want denied")
	}
	if d.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("retry-after = %v, want within the window", d.RetryAfter)
	}
}

func TestIsAllowed_WindowResets(t *testing.T) {
	l, advance := newTestLimiter(Config{Window: time.Minute, MaxRequests: 1, RejectOnLimit: true})

	if d := l.IsAllowed("host"); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d := l.IsAllowed("host"); d.Allowed {
		t.Fatal("second call in same window allowed")
	}

	advance(time.Minute + time.Second)

	if d := l.IsAllowed("host"); !d.Allowed {
		t.Error("call after window reset denied")
	}
}

func TestIsAllowed_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 1, RejectOnLimit: true})

	l.IsAllowed("a")
	if d := l.IsAllowed("b"); !d.Allowed {
		t.Error("key b denied after key a consumed its quota")
	}
}

func TestExecute_RejectsOverLimit(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 1, RejectOnLimit: true})

	invoked := 0
	fn := func() error {
		invoked++
		return nil
	}

	if err := l.Execute("host", fn); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	err := l.Execute("host", fn)
	if !fault.IsKind(err, fault.KindRateLimited) {
		t.Fatalf("err = %v, want rate-limited fault", err)
	}
	if fault.RetryAfterOf(err) <= 0 {
		t.Error("rate-limited fault missing retry-after")
	}
	if invoked != 1 {
		t.Errorf("fn invoked %d times, want 1", invoked)
	}
}

func TestExecute_AdvisoryModeProceeds(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 1, RejectOnLimit: false})

	invoked := 0
	fn := func() error {
		invoked++
		return nil
	}

	_ = l.Execute("host", fn)
	if err := l.Execute("host", fn); err != nil {
		t.Fatalf("advisory Execute over limit: %v", err)
	}
	if invoked != 2 {
		t.Errorf("fn invoked %d times, want 2 in advisory mode", invoked)
	}
}

func TestReset_ClearsWindow(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 1, RejectOnLimit: true})

	l.IsAllowed("host")
	l.Reset("host")

	if d := l.IsAllowed("host"); !d.Allowed {
		t.Error("call after Reset denied")
	}
}
