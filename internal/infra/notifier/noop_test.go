package notifier

import (
	"context"
	"testing"
	"time"
)

func TestNoOpNotifier_NotifyChange(t *testing.T) {
	t.Run("TC-1: should return nil without error", func(t *testing.T) {
		notifier := NewNoOpNotifier()

		err := notifier.NotifyChange(context.Background(), testChange())
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("TC-2: should not make any HTTP requests", func(t *testing.T) {
		// This test verifies the no-op behavior by ensuring the method returns
		// immediately and doesn't trigger any side effects.
		notifier := NewNoOpNotifier()

		start := time.Now()
		err := notifier.NotifyChange(context.Background(), testChange())
		elapsed := time.Since(start)

		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}

		// Should complete immediately (< 1ms) since it does nothing
		if elapsed > time.Millisecond {
			t.Errorf("expected no-op to complete immediately, but took %v", elapsed)
		}
	})

	t.Run("TC-3: should work with nil change", func(t *testing.T) {
		notifier := NewNoOpNotifier()

		err := notifier.NotifyChange(context.Background(), nil)
		if err != nil {
			t.Errorf("expected nil error with nil change, got %v", err)
		}
	})

	t.Run("TC-4: should work with canceled context", func(t *testing.T) {
		notifier := NewNoOpNotifier()
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		err := notifier.NotifyChange(ctx, testChange())
		if err != nil {
			t.Errorf("expected nil error even with canceled context, got %v", err)
		}
	})
}

func TestNewNoOpNotifier(t *testing.T) {
	t.Run("should create a new NoOpNotifier instance", func(t *testing.T) {
		notifier := NewNoOpNotifier()
		if notifier == nil {
			t.Fatal("expected non-nil notifier")
		}
	})
}
