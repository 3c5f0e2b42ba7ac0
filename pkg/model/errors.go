package model

import "fmt"

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the status API.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a VALIDATION_ERROR APIError.
func NewValidationError(msg string) *APIError {
	return &APIError{Code: ErrValidation, Message: msg}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}

// ConfigError reports a malformed or conflicting startup setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvariantError describes corrupted scheduler state. It is raised with panic,
// never returned: continuing would starve or double-run a process.
type InvariantError struct {
	Op      string
	CPU     int
	Message string
}

func (e *InvariantError) Error() string {
	if e.CPU < 0 {
		return fmt.Sprintf("scheduler invariant violated in %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("scheduler invariant violated in %s (cpu %d): %s", e.Op, e.CPU, e.Message)
}

// Invariant panics with an InvariantError. cpu is -1 when no CPU is involved.
func Invariant(op string, cpu int, format string, args ...any) {
	panic(&InvariantError{Op: op, CPU: cpu, Message: fmt.Sprintf(format, args...)})
}
