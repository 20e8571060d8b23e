// Package services provides the business operations over flows and drafts.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrEmptyRoutingID    = errors.New("routing ID cannot be empty")
	ErrEmptyChangeSetID  = errors.New("change set ID cannot be empty")
	ErrEmptySegmentName  = errors.New("segment name cannot be empty")
	ErrNegativeOrder     = errors.New("segment order cannot be negative")
	ErrFlowNil           = errors.New("flow cannot be nil")
	ErrUnknownOperation  = errors.New("unknown batch operation type")
	ErrOperationNoTarget = errors.New("batch operation names no segment")

	// Business logic conflicts (409 Conflict).
	ErrDraftNotClean = errors.New("draft has validation errors and cannot be published")
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
		errors.Is(err, ErrEmptyRoutingID) ||
		errors.Is(err, ErrEmptyChangeSetID) ||
		errors.Is(err, ErrEmptySegmentName) ||
		errors.Is(err, ErrNegativeOrder) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, ErrOperationNoTarget)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDraftNotClean)
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
