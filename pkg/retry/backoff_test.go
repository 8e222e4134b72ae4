package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 6 * time.Second},
		{1, 12 * time.Second},
		{2, 24 * time.Second},
		{3, 48 * time.Second},
	}

	for _, tt := range tests {
		delay := config.Backoff(tt.attempt)
		if delay != tt.expected {
			t.Errorf("Attempt %d: expected %v, got %v", tt.attempt, tt.expected, delay)
		}
	}
}

func TestDo_Success(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.InitialDelay = 10 * time.Millisecond
	ctx := context.Background()

	callCount := 0
	err := Do(ctx, config, func() error {
		callCount++
		return nil
	})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestDo_RetryAndSuccess(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.InitialDelay = 10 * time.Millisecond
	ctx := context.Background()

	callCount := 0
	err := Do(ctx, config, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("transient failure")
		}
		return nil
	})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()

	config := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}
	ctx := context.Background()

	lastErr := errors.New("persistent failure")
	callCount := 0
	err := Do(ctx, config, func() error {
		callCount++
		return lastErr
	})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("Expected wrapped last error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	config := Config{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2.0}
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, config, func() error {
		callCount++
		return errors.New("failure")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestDoWithResult(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.InitialDelay = time.Millisecond
	ctx := context.Background()

	callCount := 0
	result, err := DoWithResult(ctx, config, func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", errors.New("transient failure")
		}
		return "ok", nil
	})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result ok, got %q", result)
	}
}
