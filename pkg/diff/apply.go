package diff

import (
	"errors"
	"fmt"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// Apply errors surfaced to persistence layers.
var (
	ErrSegmentExists   = errors.New("segment already exists")
	ErrSegmentNotFound = errors.New("segment not found")
)

// Apply mutates flow in place with the given operations, in order. It is
// the in-memory counterpart of the SQL batch: persistence backends
// without native partial updates load the flow, apply, and write back.
func Apply(flow *models.Flow, operations []Operation) error {
	if flow == nil {
		return ErrNilSnapshot
	}

	for _, operation := range operations {
		switch operation.Type {
		case OperationCreateSegment:
			if _, ok := flow.SegmentByName(operation.SegmentName); ok {
				return fmt.Errorf("create %s: %w", operation.SegmentName, ErrSegmentExists)
			}

			if operation.Segment == nil {
				return fmt.Errorf("create %s: operation carries no segment", operation.SegmentName)
			}

			flow.Segments = append(flow.Segments, operation.Segment.Clone())

		case OperationUpdateSegment:
			segment, ok := flow.SegmentByName(operation.SegmentName)
			if !ok {
				return fmt.Errorf("update %s: %w", operation.SegmentName, ErrSegmentNotFound)
			}

			applyUpdate(segment, operation)

		case OperationDeleteSegment:
			if !deleteSegment(flow, operation.SegmentName) {
				return fmt.Errorf("delete %s: %w", operation.SegmentName, ErrSegmentNotFound)
			}

		default:
			return fmt.Errorf("unknown operation type: %s", operation.Type)
		}
	}

	return nil
}

func applyUpdate(segment *models.Segment, operation Operation) {
	for _, field := range operation.Fields {
		switch field {
		case FieldGroupBasic:
			if operation.Basic != nil {
				segment.SegmentType = operation.Basic.SegmentType
				segment.DisplayName = operation.Basic.DisplayName
				segment.IsActive = operation.Basic.IsActive
				segment.IsTerminal = operation.Basic.IsTerminal
			}
		case FieldGroupConfig:
			segment.Config = cloneConfig(operation.Config)
		case FieldGroupTransitions:
			segment.Transitions = cloneTransitions(operation.Transitions)
		case FieldGroupHooks:
			segment.Hooks = operation.Hooks
		case FieldGroupUIState:
			segment.UIState = operation.UIState
		}
	}
}

func deleteSegment(flow *models.Flow, name string) bool {
	for i, segment := range flow.Segments {
		if segment.SegmentName == name {
			flow.Segments = append(flow.Segments[:i], flow.Segments[i+1:]...)

			return true
		}
	}

	return false
}
