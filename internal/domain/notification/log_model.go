package notification

import "time"

// DispatchStatus represents the delivery status of a dispatch.
type DispatchStatus string

const (
	StatusQueued     DispatchStatus = "queued"
	StatusProcessing DispatchStatus = "processing"
	StatusSent       DispatchStatus = "sent"
	StatusFailed     DispatchStatus = "failed"
)

// DispatchLog represents a persisted dispatch record. MessageID is the
// Telegram message id once the dispatch succeeds.
type DispatchLog struct {
	ID             string         `json:"id"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	ChatID         int64          `json:"chat_id"`
	Text           string         `json:"text,omitempty"`
	Smart          *SmartData     `json:"smart,omitempty"`
	MessageID      int            `json:"message_id,omitempty"`
	Status         DispatchStatus `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
}

// ListFilter defines pagination and filtering options for listing dispatch logs.
type ListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	ChatID   int64  `form:"chat_id"`
}

// ListResponse wraps a paginated list of dispatch logs.
type ListResponse struct {
	Dispatches []*DispatchLog `json:"dispatches"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
