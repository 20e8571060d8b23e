// Package diff computes minimal persistence operations between flow snapshots.
package diff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// OperationType discriminates batch operations.
type OperationType string

const (
	OperationCreateSegment OperationType = "create_segment"
	OperationUpdateSegment OperationType = "update_segment"
	OperationDeleteSegment OperationType = "delete_segment"
)

// FieldGroup identifies one independently diffable part of a segment, so
// a config edit never forces rewriting transitions.
type FieldGroup string

const (
	FieldGroupBasic       FieldGroup = "basic"
	FieldGroupConfig      FieldGroup = "config"
	FieldGroupTransitions FieldGroup = "transitions"
	FieldGroupHooks       FieldGroup = "hooks"
	FieldGroupUIState     FieldGroup = "ui_state"
)

// BasicInfo is the scalar field group of a segment.
type BasicInfo struct {
	SegmentType string `json:"segment_type"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
	IsTerminal  bool   `json:"is_terminal"`
}

// Operation is one persistence mutation scoped by segment name. Creates
// carry the full segment; updates carry only the changed field groups,
// preserving array order exactly as edited; deletes carry the name only.
type Operation struct {
	Type        OperationType       `json:"type"                  validate:"required,oneof=create_segment update_segment delete_segment"`
	SegmentName string              `json:"segment_name"          validate:"required"`
	Segment     *models.Segment     `json:"segment,omitempty"`
	Fields      []FieldGroup        `json:"fields,omitempty"`
	Basic       *BasicInfo          `json:"basic,omitempty"`
	Config      []models.ConfigItem `json:"config,omitempty"`
	Transitions []models.Transition `json:"transitions,omitempty"`
	Hooks       map[string]string   `json:"hooks,omitempty"`
	UIState     *models.UIState     `json:"ui_state,omitempty"`
}

// ErrNilSnapshot indicates a diff was requested without both snapshots.
var ErrNilSnapshot = errors.New("diff requires both original and current snapshots")

// Compute returns the minimal ordered operation list turning original
// into current. Segments only in current become creates, segments in
// both whose serialized form differs become per-field-group updates,
// and segments only in original become deletes (emitted last).
// Structurally equal snapshots yield an empty list.
func Compute(original, current *models.Flow) ([]Operation, error) {
	if original == nil || current == nil {
		return nil, ErrNilSnapshot
	}

	originalByName := make(map[string]*models.Segment, len(original.Segments))
	for _, segment := range original.Segments {
		originalByName[segment.SegmentName] = segment
	}

	operations := make([]Operation, 0)
	seen := make(map[string]bool, len(current.Segments))

	for _, segment := range current.Segments {
		seen[segment.SegmentName] = true

		before, exists := originalByName[segment.SegmentName]
		if !exists {
			operations = append(operations, Operation{
				Type:        OperationCreateSegment,
				SegmentName: segment.SegmentName,
				Segment:     segment.Clone(),
			})

			continue
		}

		update, changed, err := diffSegment(before, segment)
		if err != nil {
			return nil, err
		}

		if changed {
			operations = append(operations, update)
		}
	}

	for _, segment := range original.Segments {
		if !seen[segment.SegmentName] {
			operations = append(operations, Operation{
				Type:        OperationDeleteSegment,
				SegmentName: segment.SegmentName,
			})
		}
	}

	return operations, nil
}

func diffSegment(before, after *models.Segment) (Operation, bool, error) {
	operation := Operation{
		Type:        OperationUpdateSegment,
		SegmentName: after.SegmentName,
	}

	basicBefore := basicInfo(before)
	basicAfter := basicInfo(after)

	equal, err := equalJSON(basicBefore, basicAfter)
	if err != nil {
		return operation, false, err
	}

	if !equal {
		operation.Fields = append(operation.Fields, FieldGroupBasic)
		operation.Basic = &basicAfter
	}

	if equal, err = equalJSON(before.Config, after.Config); err != nil {
		return operation, false, err
	} else if !equal {
		operation.Fields = append(operation.Fields, FieldGroupConfig)
		operation.Config = cloneConfig(after.Config)
	}

	if equal, err = equalJSON(before.Transitions, after.Transitions); err != nil {
		return operation, false, err
	} else if !equal {
		operation.Fields = append(operation.Fields, FieldGroupTransitions)
		operation.Transitions = cloneTransitions(after.Transitions)
	}

	if equal, err = equalJSON(before.Hooks, after.Hooks); err != nil {
		return operation, false, err
	} else if !equal {
		operation.Fields = append(operation.Fields, FieldGroupHooks)
		operation.Hooks = after.Hooks
	}

	if equal, err = equalJSON(before.UIState, after.UIState); err != nil {
		return operation, false, err
	} else if !equal {
		operation.Fields = append(operation.Fields, FieldGroupUIState)
		operation.UIState = after.UIState
	}

	return operation, len(operation.Fields) > 0, nil
}

func basicInfo(segment *models.Segment) BasicInfo {
	return BasicInfo{
		SegmentType: segment.SegmentType,
		DisplayName: segment.DisplayName,
		IsActive:    segment.IsActive,
		IsTerminal:  segment.IsTerminal,
	}
}

// equalJSON compares two values by full serialization. Edits mutate
// copies, so reference equality is useless here; deep structural
// comparison is what decides "changed".
func equalJSON(a, b any) (bool, error) {
	left, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to serialize for comparison: %w", err)
	}

	right, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("failed to serialize for comparison: %w", err)
	}

	return bytes.Equal(left, right), nil
}

func cloneConfig(config []models.ConfigItem) []models.ConfigItem {
	if config == nil {
		return nil
	}

	clone := make([]models.ConfigItem, len(config))
	copy(clone, config)

	return clone
}

func cloneTransitions(transitions []models.Transition) []models.Transition {
	if transitions == nil {
		return nil
	}

	clone := make([]models.Transition, len(transitions))
	for i, transition := range transitions {
		clone[i] = transition.Clone()
	}

	return clone
}
