// Package breaker provides a per-key circuit breaker for outbound checks.
// Each logical target tracks its own failure history, so one unhealthy
// target never blocks checks against the others sharing the breaker.
//
// Unlike the gobreaker-based database protection in internal/infra/db, this
// breaker keys state by target and reports a retry-after hint to callers
// while the circuit is open.
package breaker

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"pagewatch/internal/fault"
)

// Config holds the configuration for a Breaker.
type Config struct {
	// Timeout is how long a key stays open after tripping before calls are
	// let through again.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that trips the
	// circuit for a key.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes after the open
	// timeout that fully closes the circuit again.
	SuccessThreshold int
}

// DefaultConfig returns a breaker configuration tuned for periodic web checks:
// five consecutive failures open the circuit for a minute, two successes
// close it.
func DefaultConfig() Config {
	return Config{
		Timeout:          time.Minute,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}
}

// State is a snapshot of the circuit state for one key.
type State struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastFailureAt        *time.Time
	Open                 bool
}

type keyState struct {
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureAt        time.Time
	open                 bool
}

// Breaker tracks circuit state per key. Safe for concurrent use.
//
// Once the open timeout elapses, the circuit is cleared and every waiting
// caller is admitted at once; there is no single-trial gate. A burst of
// concurrent callers can therefore all probe a still-unhealthy target
// simultaneously, at which point the first failure re-opens the circuit.
type Breaker struct {
	mu     sync.Mutex
	states map[string]*keyState
	config Config

	now func() time.Time
}

// New creates a Breaker with the given configuration.
func New(config Config) *Breaker {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	return &Breaker{
		states: make(map[string]*keyState),
		config: config,
		now:    time.Now,
	}
}

// Execute runs op for key unless the circuit is open. While open and inside
// the timeout window it fails fast with a service-unavailable fault carrying
// the remaining wait rounded up to whole seconds; op is not invoked.
func (b *Breaker) Execute(key string, op func() (any, error)) (any, error) {
	if err := b.admit(key); err != nil {
		return nil, err
	}

	result, err := op()
	if err != nil {
		b.recordFailure(key)
		return nil, err
	}
	b.recordSuccess(key)
	return result, nil
}

// Do is Execute for operations without a result value.
func (b *Breaker) Do(key string, op func() error) error {
	_, err := b.Execute(key, func() (any, error) {
		return nil, op()
	})
	return err
}

// admit decides whether a call for key may proceed, transitioning an open
// circuit to the trial phase when the timeout has elapsed.
func (b *Breaker) admit(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(key)
	if !s.open {
		return nil
	}

	elapsed := b.now().Sub(s.lastFailureAt)
	if elapsed <= b.config.Timeout {
		retryAfter := time.Duration(math.Ceil((b.config.Timeout - elapsed).Seconds())) * time.Second
		return fault.ServiceUnavailable(
			fmt.Sprintf("circuit open for %q", key), retryAfter)
	}

	// Timeout elapsed: let callers through again. Successes now count
	// toward closing the circuit.
	s.open = false
	s.consecutiveSuccesses = 0
	slog.Info("circuit trial started", slog.String("key", key))
	return nil
}

func (b *Breaker) recordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(key)
	s.consecutiveFailures++
	s.consecutiveSuccesses = 0
	s.lastFailureAt = b.now()
	if !s.open && s.consecutiveFailures >= b.config.FailureThreshold {
		s.open = true
		slog.Warn("circuit opened",
			slog.String("key", key),
			slog.Int("consecutive_failures", s.consecutiveFailures))
	}
}

func (b *Breaker) recordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(key)
	s.consecutiveSuccesses++
	if s.consecutiveSuccesses >= b.config.SuccessThreshold {
		if s.consecutiveFailures > 0 || s.open {
			slog.Info("circuit closed", slog.String("key", key))
		}
		*s = keyState{}
	}
}

// state returns the tracked state for key, creating it lazily.
// Callers must hold b.mu.
func (b *Breaker) state(key string) *keyState {
	s, ok := b.states[key]
	if !ok {
		s = &keyState{}
		b.states[key] = s
	}
	return s
}

// GetState returns a snapshot of the circuit state for key.
func (b *Breaker) GetState(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(key)
	snap := State{
		ConsecutiveFailures:  s.consecutiveFailures,
		ConsecutiveSuccesses: s.consecutiveSuccesses,
		Open:                 s.open,
	}
	if !s.lastFailureAt.IsZero() {
		t := s.lastFailureAt
		snap.LastFailureAt = &t
	}
	return snap
}

// SetClock overrides the breaker's time source. Intended for tests.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
