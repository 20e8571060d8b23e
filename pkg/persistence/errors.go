// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates no flow exists in the requested scope.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowAlreadyExists indicates the scope already holds a flow.
	ErrFlowAlreadyExists = errors.New("flow already exists")

	// ErrChangeSetNotFound indicates no change set exists for the given identifiers.
	ErrChangeSetNotFound = errors.New("change set not found")

	// ErrChangeSetAlreadyExists indicates a change set with the same identifier already exists.
	ErrChangeSetAlreadyExists = errors.New("change set already exists")

	// ErrChangeSetNotDraft indicates the change set is published or discarded
	// and can no longer be edited, published or discarded.
	ErrChangeSetNotDraft = errors.New("change set is not a draft")

	// ErrSegmentNotFound indicates a batch operation addressed a missing segment.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrSegmentAlreadyExists indicates a create addressed an existing segment name.
	ErrSegmentAlreadyExists = errors.New("segment already exists")
)

// FlowError wraps flow-related errors with scope context.
type FlowError struct {
	Op          string // Operation being performed (e.g. "GetFlow", "ApplyBatch")
	RoutingID   string
	ChangeSetID string // Empty for the published scope
	Err         error
}

func (e *FlowError) Error() string {
	scope := e.RoutingID
	if e.ChangeSetID != "" {
		scope = fmt.Sprintf("%s@%s", e.RoutingID, e.ChangeSetID)
	}

	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, scope, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a flow error for one scope.
func NewFlowError(op string, scope Scope, err error) *FlowError {
	return &FlowError{
		Op:          op,
		RoutingID:   scope.RoutingID,
		ChangeSetID: scope.ChangeSetID,
		Err:         err,
	}
}

// ChangeSetError wraps change-set-related errors with context.
type ChangeSetError struct {
	Op          string
	RoutingID   string
	ChangeSetID string
	Err         error
}

func (e *ChangeSetError) Error() string {
	return fmt.Sprintf("%s operation failed for change set %s of routing %s: %v",
		e.Op, e.ChangeSetID, e.RoutingID, e.Err)
}

func (e *ChangeSetError) Unwrap() error {
	return e.Err
}

func (e *ChangeSetError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewChangeSetError creates a change-set error with context.
func NewChangeSetError(op, routingID, changeSetID string, err error) *ChangeSetError {
	return &ChangeSetError{
		Op:          op,
		RoutingID:   routingID,
		ChangeSetID: changeSetID,
		Err:         err,
	}
}

// IsFlowNotFound checks if an error indicates a missing flow.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsFlowAlreadyExists checks if an error indicates a duplicate flow scope.
func IsFlowAlreadyExists(err error) bool {
	return errors.Is(err, ErrFlowAlreadyExists)
}

// IsChangeSetNotFound checks if an error indicates a missing change set.
func IsChangeSetNotFound(err error) bool {
	return errors.Is(err, ErrChangeSetNotFound)
}

// IsChangeSetNotDraft checks if an error indicates a terminal change set.
func IsChangeSetNotDraft(err error) bool {
	return errors.Is(err, ErrChangeSetNotDraft)
}

// IsSegmentNotFound checks if an error indicates a missing segment.
func IsSegmentNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}

// IsSegmentAlreadyExists checks if an error indicates a duplicate segment name.
func IsSegmentAlreadyExists(err error) bool {
	return errors.Is(err, ErrSegmentAlreadyExists)
}

// IsChangeSetAlreadyExists checks if an error indicates a duplicate change set.
func IsChangeSetAlreadyExists(err error) bool {
	return errors.Is(err, ErrChangeSetAlreadyExists)
}
