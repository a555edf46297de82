package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), DefaultConfig, func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
		err := Do(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("returns last error after exhaustion", func(t *testing.T) {
		want := errors.New("still broken")
		cfg := Config{MaxAttempts: 2, InitialDelay: time.Millisecond}
		err := Do(context.Background(), cfg, func() error { return want })
		if !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		fatal := errors.New("fatal")
		cfg := Config{
			MaxAttempts:  5,
			InitialDelay: time.Millisecond,
			ShouldRetry:  func(err error) bool { return !errors.Is(err, fatal) },
		}
		err := Do(context.Background(), cfg, func() error {
			calls++
			return fatal
		})
		if !errors.Is(err, fatal) {
			t.Errorf("expected fatal error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := Config{MaxAttempts: 3, InitialDelay: time.Hour}
		err := Do(ctx, cfg, func() error { return errors.New("transient") })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
