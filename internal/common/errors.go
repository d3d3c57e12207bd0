package common

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates invalid input data.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// TemplateNotFoundError indicates the requested template file or block key
// has no backing resource.
type TemplateNotFoundError struct {
	Path     string
	BlockKey string
}

func (e *TemplateNotFoundError) Error() string {
	if e.BlockKey != "" {
		return fmt.Sprintf("template block '%s' not found in %s", e.BlockKey, e.Path)
	}
	return fmt.Sprintf("template file not found: %s", e.Path)
}

// TemplateParseError indicates the backing resource exists but is malformed.
type TemplateParseError struct {
	Path   string
	Reason string
}

func (e *TemplateParseError) Error() string {
	return fmt.Sprintf("parsing template %s: %s", e.Path, e.Reason)
}

// MissingContextKeyError indicates a template placeholder had no value in
// the supplied context.
type MissingContextKeyError struct {
	Key string
}

func (e *MissingContextKeyError) Error() string {
	return fmt.Sprintf("no context value for placeholder '%s'", e.Key)
}

// UnsupportedControlTypeError indicates a button row references an
// unrecognized control variant.
type UnsupportedControlTypeError struct {
	Type string
}

func (e *UnsupportedControlTypeError) Error() string {
	return fmt.Sprintf("unsupported control type: %s", e.Type)
}

// NotEditableError indicates the transport rejected an in-place edit.
// SmartEditOrSend recovers from it by falling back to a fresh send.
type NotEditableError struct {
	ChatID    int64
	MessageID int
	Reason    string
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("message %d in chat %d cannot be edited: %s", e.MessageID, e.ChatID, e.Reason)
}

// DispatchError indicates the transport rejected a send/reply/document call
// for reasons other than editability. This is the only error class eligible
// for retry.
type DispatchError struct {
	Op      string
	ChatID  int64
	Message string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s to chat %d failed: %s", e.Op, e.ChatID, e.Message)
}

// RetryExhaustedError wraps the last underlying failure after all retry
// attempts are spent.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether an error is structural — a caller bug that
// retrying can never fix. Transport failures are the only transient class.
func IsPermanent(err error) bool {
	var (
		notFound    *TemplateNotFoundError
		parse       *TemplateParseError
		missingKey  *MissingContextKeyError
		unsupported *UnsupportedControlTypeError
		validation  *ValidationError
	)
	return errors.As(err, &notFound) ||
		errors.As(err, &parse) ||
		errors.As(err, &missingKey) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &validation)
}
