// Package resilience provides generic wrappers that harden fallible
// operations: retry with multiplicative backoff, and an error boundary
// that converts failures into logged fallbacks.
package resilience

import (
	"context"
	"log/slog"
	"time"

	"smartmsg/internal/common"
)

// RetryConfig tunes a Retry call.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the pause before the second attempt. Each further pause is
	// the previous one multiplied by Backoff.
	Delay time.Duration

	// Backoff multiplies the delay between attempts. Values below 1 are
	// treated as 1 (constant delay).
	Backoff float64

	// Logger, when set, records each failed attempt with its index.
	Logger *slog.Logger
}

// Retry invokes op up to cfg.MaxAttempts times. Structural errors (see
// common.IsPermanent) are returned immediately — retrying a caller bug can
// never succeed. Context cancellation during the inter-attempt pause aborts
// at once with ctx.Err(), consuming no further attempt. When all attempts
// fail, the last error is wrapped in RetryExhaustedError.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.Backoff
	if backoff < 1 {
		backoff = 1
	}
	delay := cfg.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if common.IsPermanent(err) {
			return zero, err
		}
		lastErr = err

		if cfg.Logger != nil {
			cfg.Logger.Warn("attempt failed",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err,
			)
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * backoff)
	}

	return zero, &common.RetryExhaustedError{Attempts: attempts, Err: lastErr}
}
