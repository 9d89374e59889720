package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/logx"
)

// Config holds retry strategy configuration.
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Nil retries every error.
	ShouldRetry func(error) bool
}

// DefaultConfig returns short backoffs suitable for request-scoped work.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// Retryable is a function that can be retried.
type Retryable[T any] func(ctx context.Context) (T, error)

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation '%s' failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do executes fn with exponential backoff. A non-retryable error is returned
// as is; running out of attempts yields an *ExhaustedError.
func Do[T any](ctx context.Context, cfg Config, op string, fn Retryable[T]) (T, error) {
	var zero T
	var lastErr error
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return zero, err
		}

		lastErr = err
		if attempt < attempts {
			backoff := calculateBackoff(attempt-1, cfg)
			logx.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Dur("backoff", backoff).
				Err(err).
				Msg("operation failed, retrying")

			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		}
	}

	return zero, &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

func calculateBackoff(attemptNum int, cfg Config) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	backoff := time.Duration(float64(cfg.InitialBackoff) * math.Pow(mult, float64(attemptNum)))
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}
