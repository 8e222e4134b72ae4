package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config holds retry configuration parameters
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialDelay is the delay after the first failed attempt
	InitialDelay time.Duration
	// Multiplier is the factor by which the delay increases each retry
	Multiplier float64
}

// DefaultConfig returns the default retry configuration: five attempts with
// delays of 6s, 12s, 24s and 48s between them
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 6 * time.Second,
		Multiplier:   2.0,
	}
}

// Backoff calculates the delay after the given failed attempt (zero-based)
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt)))
}

// Do executes a function with retry logic. The operation must be
// idempotent-safe from the caller's perspective; no deduplication is
// performed here. The last observed error is returned when all attempts
// are exhausted.
func Do(ctx context.Context, config Config, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(config.Backoff(attempt - 1)):
				// Continue with retry
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("all %d attempts failed: %w", config.MaxAttempts, lastErr)
}

// DoWithResult executes a function returning a value with retry logic
func DoWithResult[T any](ctx context.Context, config Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, config, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
