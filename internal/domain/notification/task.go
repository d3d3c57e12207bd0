package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatch is the asynq task type for dispatching messages.
const TaskTypeDispatch = "dispatch:send"

// DispatchPayload is the serialized payload for a dispatch task.
type DispatchPayload struct {
	LogID string `json:"log_id"`
}

// NewDispatchTask creates a new asynq task for dispatching a message.
func NewDispatchTask(logID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchPayload{LogID: logID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDispatch, payload), nil
}

// ParseDispatchPayload deserializes the task payload.
func ParseDispatchPayload(data []byte) (*DispatchPayload, error) {
	var p DispatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	return &p, nil
}
