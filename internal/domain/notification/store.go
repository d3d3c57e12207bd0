package notification

import (
	"context"
	"time"
)

// DispatchStore defines the contract for persisting dispatch records.
// Implementations live in infra/store/ (e.g., Supabase).
type DispatchStore interface {
	// Create inserts a new dispatch log record.
	Create(ctx context.Context, log *DispatchLog) error

	// GetByID retrieves a dispatch log by its ID.
	GetByID(ctx context.Context, id string) (*DispatchLog, error)

	// GetByIdempotencyKey retrieves a dispatch log by its idempotency key.
	// Returns nil, nil if no record is found.
	GetByIdempotencyKey(ctx context.Context, key string) (*DispatchLog, error)

	// UpdateStatus updates the status of a dispatch log. messageID is the
	// Telegram message id for successful dispatches, zero otherwise.
	UpdateStatus(ctx context.Context, id string, status DispatchStatus, messageID int, errMsg string) error

	// List retrieves dispatch logs with pagination and filtering.
	List(ctx context.Context, filter ListFilter) ([]*DispatchLog, int, error)

	// ListStale retrieves dispatch logs stuck in queued/processing for longer
	// than the given threshold. Used by the reaper for reconciliation.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*DispatchLog, error)
}
