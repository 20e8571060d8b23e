package editor

import (
	"fmt"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// AddSegment appends a new segment of the given type. When the registry
// knows the type, its defaults seed the display name, terminal flag and
// default transitions.
func (s *Session) AddSegment(name, segmentType string) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	if _, exists := s.flow.SegmentByName(name); exists {
		return fmt.Errorf("%w: %s", ErrSegmentExists, name)
	}

	segment := &models.Segment{
		SegmentName:  name,
		SegmentType:  segmentType,
		DisplayName:  name,
		IsActive:     true,
		SegmentOrder: len(s.flow.Segments),
	}

	if s.registry != nil {
		if def, ok := s.registry.Definition(segmentType); ok {
			segment.IsTerminal = def.Terminal
			for _, resultName := range def.DefaultTransitions {
				segment.Transitions = append(segment.Transitions, models.Transition{
					ResultName: resultName,
					IsDefault:  resultName == models.DefaultResultName,
				})
			}
		}
	}

	s.flow.Segments = append(s.flow.Segments, segment)

	if s.flow.InitSegment == "" {
		s.flow.InitSegment = name
	}

	return s.markDirty()
}

// DuplicateSegment copies an existing segment under a new name. The copy
// keeps config, transitions and hooks but drops the pinned position, so
// the layout places it instead of stacking it on the source.
func (s *Session) DuplicateSegment(sourceName, newName string) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	source, ok := s.flow.SegmentByName(sourceName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSegmentNotFound, sourceName)
	}

	if _, exists := s.flow.SegmentByName(newName); exists {
		return fmt.Errorf("%w: %s", ErrSegmentExists, newName)
	}

	duplicate := source.Clone()
	duplicate.SegmentName = newName
	duplicate.DisplayName = source.DisplayName + " (copy)"
	duplicate.SegmentOrder = len(s.flow.Segments)
	duplicate.UIState = nil

	s.flow.Segments = append(s.flow.Segments, duplicate)

	return s.markDirty()
}

// DeleteSegment removes a segment and cascade-removes every transition
// that targets it, so no dangling reference is left behind. Deleting the
// init segment is refused outright.
func (s *Session) DeleteSegment(name string) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	if name == s.flow.InitSegment {
		return fmt.Errorf("%w: %s", ErrDeleteInitSegment, name)
	}

	index := -1
	for i, segment := range s.flow.Segments {
		if segment.SegmentName == name {
			index = i

			break
		}
	}

	if index < 0 {
		return fmt.Errorf("%w: %s", ErrSegmentNotFound, name)
	}

	s.flow.Segments = append(s.flow.Segments[:index], s.flow.Segments[index+1:]...)

	for _, segment := range s.flow.Segments {
		kept := segment.Transitions[:0]
		for _, transition := range segment.Transitions {
			if transition.Outcome.NextSegment != name {
				kept = append(kept, transition)
			}
		}

		segment.Transitions = kept
	}

	return s.markDirty()
}

// UpdateSegmentInfo changes a segment's scalar fields.
func (s *Session) UpdateSegmentInfo(name, displayName string, isActive, isTerminal bool) error {
	segment, err := s.segment(name)
	if err != nil {
		return err
	}

	segment.DisplayName = displayName
	segment.IsActive = isActive
	segment.IsTerminal = isTerminal

	return s.markDirty()
}

// SetConfig replaces a segment's config wholesale, preserving the given
// order exactly.
func (s *Session) SetConfig(name string, config []models.ConfigItem) error {
	segment, err := s.segment(name)
	if err != nil {
		return err
	}

	segment.Config = config

	return s.markDirty()
}

// SetHooks replaces a segment's hook overrides.
func (s *Session) SetHooks(name string, hooks map[string]string) error {
	segment, err := s.segment(name)
	if err != nil {
		return err
	}

	segment.Hooks = hooks

	return s.markDirty()
}

// AddTransition appends a transition to a segment. Result names are
// local keys: a duplicate is refused.
func (s *Session) AddTransition(segmentName string, transition models.Transition) error {
	segment, err := s.segment(segmentName)
	if err != nil {
		return err
	}

	if _, exists := segment.TransitionByResult(transition.ResultName); exists {
		return fmt.Errorf("%w: %s", ErrTransitionExists, transition.ResultName)
	}

	segment.Transitions = append(segment.Transitions, transition)

	return s.markDirty()
}

// UpdateTransition replaces the transition with the same result name.
func (s *Session) UpdateTransition(segmentName string, transition models.Transition) error {
	segment, err := s.segment(segmentName)
	if err != nil {
		return err
	}

	for i := range segment.Transitions {
		if segment.Transitions[i].ResultName == transition.ResultName {
			segment.Transitions[i] = transition

			return s.markDirty()
		}
	}

	return fmt.Errorf("%w: %s", ErrTransitionNotFound, transition.ResultName)
}

// RedirectTransition points an existing transition at a new target. An
// empty target makes the transition terminal within its context.
func (s *Session) RedirectTransition(segmentName, resultName, nextSegment string) error {
	segment, err := s.segment(segmentName)
	if err != nil {
		return err
	}

	transition, ok := segment.TransitionByResult(resultName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTransitionNotFound, resultName)
	}

	transition.Outcome.NextSegment = nextSegment

	return s.markDirty()
}

// RemoveTransition deletes a transition by result name.
func (s *Session) RemoveTransition(segmentName, resultName string) error {
	segment, err := s.segment(segmentName)
	if err != nil {
		return err
	}

	for i := range segment.Transitions {
		if segment.Transitions[i].ResultName == resultName {
			segment.Transitions = append(segment.Transitions[:i], segment.Transitions[i+1:]...)

			return s.markDirty()
		}
	}

	return fmt.Errorf("%w: %s", ErrTransitionNotFound, resultName)
}

// MoveSegment pins a segment at user-dragged coordinates. Pinned
// positions are absolute: the layout uses them verbatim.
func (s *Session) MoveSegment(name string, x, y float64) error {
	segment, err := s.segment(name)
	if err != nil {
		return err
	}

	if segment.UIState == nil {
		segment.UIState = &models.UIState{}
	}

	segment.UIState.PositionX = &x
	segment.UIState.PositionY = &y

	return s.markDirty()
}

// ToggleCollapsed flips a segment's collapsed state, which changes its
// rendered height.
func (s *Session) ToggleCollapsed(name string) error {
	segment, err := s.segment(name)
	if err != nil {
		return err
	}

	if segment.UIState == nil {
		segment.UIState = &models.UIState{}
	}

	segment.UIState.Collapsed = !segment.UIState.Collapsed

	return s.markDirty()
}

// ResetLayout drops every pinned position and forces pure algorithmic
// placement on the next render.
func (s *Session) ResetLayout() error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	for _, segment := range s.flow.Segments {
		if segment.UIState == nil {
			continue
		}

		segment.UIState.PositionX = nil
		segment.UIState.PositionY = nil
	}

	return s.markDirty()
}

func (s *Session) segment(name string) (*models.Segment, error) {
	if s.flow == nil {
		return nil, ErrNoFlowLoaded
	}

	segment, ok := s.flow.SegmentByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, name)
	}

	return segment, nil
}
