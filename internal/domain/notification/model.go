package notification

// SmartData addresses a template block and its runtime context, mirroring
// the renderer's identifiers: role, namespace, menu file, block key, lang.
type SmartData struct {
	Module    string            `json:"module,omitempty"`
	Role      string            `json:"role" binding:"required"`
	Namespace string            `json:"namespace"`
	MenuFile  string            `json:"menu_file" binding:"required"`
	BlockKey  string            `json:"block_key" binding:"required"`
	Lang      string            `json:"lang" binding:"required"`
	Context   map[string]string `json:"context,omitempty"`
}

// SendRequest is the API request payload for dispatching a message.
// Exactly one mode applies: plain text, or a smart template block. When
// both are given, smart takes precedence.
type SendRequest struct {
	ChatID         int64      `json:"chat_id" binding:"required"`
	Text           string     `json:"text"`
	Smart          *SmartData `json:"smart"`
	IdempotencyKey string     `json:"idempotency_key"`
}

// SendResponse is the API response payload after a dispatch is enqueued.
type SendResponse struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	ChatID         int64  `json:"chat_id"`
	Status         string `json:"status"`
}
