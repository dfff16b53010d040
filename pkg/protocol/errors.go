package protocol

import "fmt"

// Error codes carried in HTTP and WebSocket error bodies.
const (
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrUnsupported       = "UNSUPPORTED_PROVIDER"
	ErrUnauthorized      = "UNAUTHORIZED"
	ErrResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrUpstream          = "UPSTREAM_ERROR"
	ErrInternal          = "INTERNAL"
)

// ValidationError reports a missing or malformed request or record field.
// It is always surfaced to the caller before any network call is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
