package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// The API layer maps them to HTTP status codes.
var (
	// ErrManagerClosed is returned once Shutdown has been called.
	ErrManagerClosed = errors.New("workspace manager is shut down")
)

// WorkspaceServiceError wraps errors from the workspace manager with context.
type WorkspaceServiceError struct {
	// Operation is the operation that failed (e.g., "open_workspace", "clear_workspace")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface.
func (e *WorkspaceServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workspace service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("workspace service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *WorkspaceServiceError) Unwrap() error {
	return e.Err
}

// NewWorkspaceServiceError creates a new WorkspaceServiceError.
func NewWorkspaceServiceError(operation, message string, err error) *WorkspaceServiceError {
	return &WorkspaceServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
