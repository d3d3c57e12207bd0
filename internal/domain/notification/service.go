package notification

import (
	"context"
	"fmt"
	"log/slog"

	"smartmsg/internal/common"
)

// Enqueuer defines the contract for enqueuing dispatch tasks.
// This allows the service to be decoupled from the specific queue implementation.
type Enqueuer interface {
	EnqueueDispatch(logID string) error
}

// Service orchestrates dispatch business logic.
// In the async flow: validate → check idempotency → check rate limit → create log → enqueue.
type Service struct {
	store            DispatchStore
	enqueuer         Enqueuer
	rateLimiter      RecipientRateLimiter
	defaultModule    string
	defaultNamespace string
}

// NewService creates a new dispatch service. defaultModule and
// defaultNamespace fill in smart requests that omit them.
func NewService(store DispatchStore, enqueuer Enqueuer, rateLimiter RecipientRateLimiter, defaultModule, defaultNamespace string) *Service {
	return &Service{
		store:            store,
		enqueuer:         enqueuer,
		rateLimiter:      rateLimiter,
		defaultModule:    defaultModule,
		defaultNamespace: defaultNamespace,
	}
}

// Enqueue validates a dispatch request, checks idempotency and rate limits,
// creates a log record, and enqueues the task for async processing.
func (s *Service) Enqueue(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// Check idempotency — if a request with the same key already exists, return the existing result
	if req.IdempotencyKey != "" {
		existing, err := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			slog.Error("idempotency check failed", "key", req.IdempotencyKey, "error", err)
			// Don't fail the request — proceed without idempotency protection
		}
		if existing != nil {
			slog.Info("idempotent request — returning existing result",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.ID,
				"existing_status", existing.Status,
			)
			return &SendResponse{
				ID:             existing.ID,
				IdempotencyKey: existing.IdempotencyKey,
				ChatID:         existing.ChatID,
				Status:         string(existing.Status),
			}, nil
		}
	}

	// Check per-chat rate limit
	if s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, req.ChatID)
		if err != nil {
			slog.Error("rate limit check failed, proceeding without limit", "chat_id", req.ChatID, "error", err)
			// Fail open — don't block the request when Redis is down
		} else if !allowed {
			return nil, common.NewValidationError(fmt.Sprintf("rate limit exceeded for chat: %d", req.ChatID))
		}
	}

	// Create the dispatch log
	dispatchLog := &DispatchLog{
		IdempotencyKey: req.IdempotencyKey,
		ChatID:         req.ChatID,
		Text:           req.Text,
		Smart:          req.Smart,
		Status:         StatusQueued,
	}

	if err := s.store.Create(ctx, dispatchLog); err != nil {
		return nil, fmt.Errorf("creating dispatch log: %w", err)
	}

	// Enqueue the task for async processing
	if err := s.enqueuer.EnqueueDispatch(dispatchLog.ID); err != nil {
		// Update log status to failed since we couldn't enqueue
		_ = s.store.UpdateStatus(ctx, dispatchLog.ID, StatusFailed, 0, "failed to enqueue: "+err.Error())
		return nil, fmt.Errorf("enqueuing dispatch: %w", err)
	}

	slog.Info("dispatch enqueued",
		"id", dispatchLog.ID,
		"chat_id", req.ChatID,
		"smart", req.Smart != nil,
	)

	return &SendResponse{
		ID:             dispatchLog.ID,
		IdempotencyKey: dispatchLog.IdempotencyKey,
		ChatID:         req.ChatID,
		Status:         string(StatusQueued),
	}, nil
}

// validate checks the request shape and fills in smart defaults.
func (s *Service) validate(req *SendRequest) error {
	if req.ChatID == 0 {
		return common.NewValidationError("chat_id is required")
	}
	if req.Text == "" && req.Smart == nil {
		return common.NewValidationError("either text or smart must be provided")
	}
	if req.Smart != nil {
		smart := req.Smart
		if smart.Role == "" || smart.MenuFile == "" || smart.BlockKey == "" || smart.Lang == "" {
			return common.NewValidationError("smart requires role, menu_file, block_key, and lang")
		}
		if smart.Module == "" {
			smart.Module = s.defaultModule
		}
		if smart.Namespace == "" {
			smart.Namespace = s.defaultNamespace
		}
	}
	return nil
}

// GetDispatch retrieves a dispatch log by ID.
func (s *Service) GetDispatch(ctx context.Context, id string) (*DispatchLog, error) {
	dispatchLog, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching dispatch: %w", err)
	}
	if dispatchLog == nil {
		return nil, common.NewNotFoundError("dispatch", id)
	}
	return dispatchLog, nil
}

// ListDispatches retrieves dispatch logs with pagination and filtering.
func (s *Service) ListDispatches(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	logs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing dispatches: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	return &ListResponse{
		Dispatches: logs,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}
