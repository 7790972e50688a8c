package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func alwaysRetryable(error) bool { return true }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	n, err := Do(context.Background(), DefaultConfig(alwaysRetryable), func(attempt int) error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 1 || n != 1 {
		t.Errorf("calls = %d, n = %d, want 1, 1", calls, n)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, IsRetryable: alwaysRetryable}
	calls := 0
	n, err := Do(context.Background(), cfg, func(attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 3 || n != 3 {
		t.Errorf("calls = %d, n = %d, want 3, 3", calls, n)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, IsRetryable: alwaysRetryable}
	calls := 0
	wantErr := errors.New("always fails")

	n, err := Do(context.Background(), cfg, func(attempt int) error {
		calls++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("Do() = %v, want %v", err, wantErr)
	}
	if calls != 2 || n != 2 {
		t.Errorf("calls = %d, n = %d, want 2, 2", calls, n)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, IsRetryable: func(error) bool { return false }}
	calls := 0
	wantErr := errors.New("permanent")

	_, err := Do(context.Background(), cfg, func(attempt int) error {
		calls++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("Do() = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, IsRetryable: alwaysRetryable}
	calls := 0

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, cfg, func(attempt int) error {
		calls++
		return errors.New("keep failing")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, JitterFactor: 0}

	d0 := backoffDelay(cfg, 0)
	d1 := backoffDelay(cfg, 1)
	d5 := backoffDelay(cfg, 5)

	if d0 != 100*time.Millisecond {
		t.Errorf("attempt 0 delay = %v, want 100ms", d0)
	}
	if d1 != 200*time.Millisecond {
		t.Errorf("attempt 1 delay = %v, want 200ms", d1)
	}
	if d5 != 300*time.Millisecond {
		t.Errorf("attempt 5 delay = %v, want 300ms (capped)", d5)
	}
}
