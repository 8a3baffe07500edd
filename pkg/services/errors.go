// Package services provides the application operations exposed over the API:
// workflow CRUD and lifecycle, execution inspection, and credential setup.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrCompanyIDRequired    = errors.New("company ID is required")
	ErrInvalidStatus        = errors.New("invalid workflow status")

	// Business logic conflicts (409 Conflict).
	ErrWorkflowNotDraft     = errors.New("workflow is not in draft status")
	ErrWorkflowNotActive    = errors.New("workflow is not active")
	ErrExecutionTerminal    = errors.New("execution already reached a terminal status")
	ErrActiveWorkflowDelete = errors.New("active workflow must be paused before deletion")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrCompanyIDRequired) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNotDraft) ||
		errors.Is(err, ErrWorkflowNotActive) ||
		errors.Is(err, ErrExecutionTerminal) ||
		errors.Is(err, ErrActiveWorkflowDelete)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
