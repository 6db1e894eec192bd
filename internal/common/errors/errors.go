package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies an application error.
type ErrorCode string

const (
	// Business-rule rejections. The conversation stays alive in a safe
	// state and the user gets a specific message.
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeFull              ErrorCode = "FULL"
	ErrCodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"
	ErrCodeInactive          ErrorCode = "INACTIVE"
	ErrCodePermissionDenied  ErrorCode = "PERMISSION_DENIED"

	// Bad user input, recovered by re-prompting the same state.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// Transport delivery artifacts, resolved as lost conversation.
	ErrCodeStaleCallback ErrorCode = "STALE_CALLBACK"

	// Ad-hoc query tool.
	ErrCodeTimeout  ErrorCode = "TIMEOUT"
	ErrCodeRejected ErrorCode = "REJECTED"

	// Infrastructure. Logged in full, users see a generic retry prompt.
	ErrCodeStorage ErrorCode = "STORAGE_FAULT"
	ErrCodeGateway ErrorCode = "GATEWAY_ERROR"
)

// AppError is the typed error carried between the persistence gateway, the
// conversation engine and the scheduler.
type AppError struct {
	Code      ErrorCode         `json:"code"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	ActorID   int64             `json:"actor_id,omitempty"`
	Cause     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is makes two AppErrors match on code, so sentinel comparisons with
// errors.Is work across wrapping.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// IsBusinessRejection reports whether the error is a rule rejection the
// engine surfaces as a specific user-facing message.
func (e *AppError) IsBusinessRejection() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeFull, ErrCodeAlreadyRegistered, ErrCodeInactive, ErrCodePermissionDenied:
		return true
	}
	return false
}

// IsInternal reports whether the error must never reach an end user verbatim.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeStorage || e.Code == ErrCodeGateway
}

// WithContext attaches a key/value pair for admin-facing logs.
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithActor tags the error with the acting user.
func (e *AppError) WithActor(actorID int64) *AppError {
	e.ActorID = actorID
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Timestamp: time.Now()}
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf is Wrap with message formatting.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// NewValidationError creates a bad-input error for a named field.
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for %s: %s", field, reason)).
		WithContext("field", field)
}

// NewNotFoundError creates a missing-resource error.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("id", fmt.Sprint(id))
}

// NewPermissionDeniedError creates an authorization error.
func NewPermissionDeniedError(reason string) *AppError {
	return New(ErrCodePermissionDenied, "permission denied: "+reason)
}

// NewStorageError wraps a database failure.
func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, "storage operation failed: "+operation).
		WithContext("operation", operation)
}

// CodeOf extracts the code from any error, defaulting to STORAGE_FAULT for
// unclassified faults so they always take the internal-error path.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeStorage
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError casts err to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
