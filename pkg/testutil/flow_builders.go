// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// CreateTestSegment creates a segment with default values that can be
// overridden.
func CreateTestSegment(overrides ...func(*models.Segment)) *models.Segment {
	segment := &models.Segment{
		SegmentName: "segment-" + uuid.New().String()[:8],
		SegmentType: "announcement",
		DisplayName: "Test Segment",
		IsActive:    true,
		Config: []models.ConfigItem{
			{Key: "prompt", Value: "test.wav"},
		},
	}

	for _, override := range overrides {
		override(segment)
	}

	return segment
}

// WithSegmentName sets the segment name.
func WithSegmentName(name string) func(*models.Segment) {
	return func(s *models.Segment) {
		s.SegmentName = name
	}
}

// WithSegmentType sets the segment type.
func WithSegmentType(segmentType string) func(*models.Segment) {
	return func(s *models.Segment) {
		s.SegmentType = segmentType
	}
}

// WithTerminal marks the segment terminal.
func WithTerminal() func(*models.Segment) {
	return func(s *models.Segment) {
		s.IsTerminal = true
	}
}

// WithTransition appends a transition to the segment.
func WithTransition(resultName, nextSegment string) func(*models.Segment) {
	return func(s *models.Segment) {
		s.Transitions = append(s.Transitions, models.Transition{
			ResultName: resultName,
			IsDefault:  resultName == models.DefaultResultName,
			Outcome:    models.TransitionOutcome{NextSegment: nextSegment},
		})
	}
}

// WithContextTransition appends a context-keyed transition.
func WithContextTransition(resultName, nextSegment, contextKey string) func(*models.Segment) {
	return func(s *models.Segment) {
		s.Transitions = append(s.Transitions, models.Transition{
			ResultName: resultName,
			Outcome: models.TransitionOutcome{
				NextSegment: nextSegment,
				ContextKey:  contextKey,
			},
		})
	}
}

// WithPinnedPosition pins the segment at user-dragged coordinates.
func WithPinnedPosition(x, y float64) func(*models.Segment) {
	return func(s *models.Segment) {
		s.UIState = &models.UIState{PositionX: &x, PositionY: &y}
	}
}

// CreateTestFlow creates a published two-segment flow with default
// values that can be overridden.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	flow := &models.Flow{
		RoutingID:   "routing-" + uuid.New().String()[:8],
		InitSegment: "welcome",
		Segments: []*models.Segment{
			CreateTestSegment(WithSegmentName("welcome"), WithTransition("done", "goodbye")),
			CreateTestSegment(WithSegmentName("goodbye"), WithSegmentType("hangup"), WithTerminal()),
		},
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithRoutingID sets the routing id.
func WithRoutingID(routingID string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.RoutingID = routingID
	}
}

// WithChangeSetID puts the flow into a draft scope.
func WithChangeSetID(changeSetID string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.ChangeSetID = changeSetID
	}
}

// WithSegments replaces the flow's segments.
func WithSegments(segments ...*models.Segment) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Segments = segments
	}
}

// WithInitSegment sets the entry segment name.
func WithInitSegment(name string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.InitSegment = name
	}
}
