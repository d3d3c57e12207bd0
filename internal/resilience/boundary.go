package resilience

import (
	"context"
	"log/slog"
)

// BoundaryPolicy tunes a Guard call.
type BoundaryPolicy struct {
	// Label identifies the guarded operation in logs.
	Label string

	// Reraise returns the original error after logging instead of the
	// fallback value.
	Reraise bool

	// Logger receives the failure record. slog.Default() when nil.
	Logger *slog.Logger
}

// Guard invokes op and passes a success through untouched. On failure the
// error is logged exactly once under the policy label; with Reraise set the
// original error is returned, otherwise the fallback value is returned with
// a nil error. Useful as an opt-in outer layer around any operation,
// including a retry-wrapped one.
func Guard[T any](ctx context.Context, policy BoundaryPolicy, fallback T, op func(context.Context) (T, error)) (T, error) {
	value, err := op(ctx)
	if err == nil {
		return value, nil
	}

	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("guarded operation failed", "label", policy.Label, "error", err)

	if policy.Reraise {
		var zero T
		return zero, err
	}
	return fallback, nil
}
