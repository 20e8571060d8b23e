package models

import "encoding/json"

// ConfigItem is one key/value entry of a segment's configuration. Config
// is an ordered list, never a map: order carries meaning for the editor
// and for evaluation priority, and must survive edits and persistence.
type ConfigItem struct {
	Key   string `json:"key"   validate:"required"`
	Value any    `json:"value"`
}

// UIState is the purely presentational state persisted per segment. A
// non-nil position means the user dragged the segment; the layout engine
// then uses the pinned coordinates verbatim.
type UIState struct {
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
	Collapsed bool     `json:"collapsed"`
}

// HasPosition reports whether both coordinates were pinned by the user.
func (u *UIState) HasPosition() bool {
	return u != nil && u.PositionX != nil && u.PositionY != nil
}

// Segment is a node of the call flow. SegmentName is its identity within
// one (routingID, changeSetID) scope and is stable across draft/publish.
type Segment struct {
	SegmentName  string            `json:"segment_name"           validate:"required"`
	SegmentType  string            `json:"segment_type"           validate:"required"`
	DisplayName  string            `json:"display_name"`
	Config       []ConfigItem      `json:"config"`
	Transitions  []Transition      `json:"transitions"`
	Hooks        map[string]string `json:"hooks,omitempty"`
	IsActive     bool              `json:"is_active"`
	IsTerminal   bool              `json:"is_terminal"`
	SegmentOrder int               `json:"segment_order"`
	UIState      *UIState          `json:"ui_state,omitempty"`
}

// TransitionByResult returns the transition with the given result name.
// Result names are local keys: at most one transition per (segment,
// resultName).
func (s *Segment) TransitionByResult(resultName string) (*Transition, bool) {
	for i := range s.Transitions {
		if s.Transitions[i].ResultName == resultName {
			return &s.Transitions[i], true
		}
	}

	return nil, false
}

// Clone returns a deep copy of the segment.
func (s *Segment) Clone() *Segment {
	if s == nil {
		return nil
	}

	clone := &Segment{
		SegmentName:  s.SegmentName,
		SegmentType:  s.SegmentType,
		DisplayName:  s.DisplayName,
		Hooks:        copyStringMap(s.Hooks),
		IsActive:     s.IsActive,
		IsTerminal:   s.IsTerminal,
		SegmentOrder: s.SegmentOrder,
	}

	if s.Config != nil {
		clone.Config = make([]ConfigItem, len(s.Config))
		for i, item := range s.Config {
			clone.Config[i] = ConfigItem{Key: item.Key, Value: copyValue(item.Value)}
		}
	}

	if s.Transitions != nil {
		clone.Transitions = make([]Transition, len(s.Transitions))
		for i, transition := range s.Transitions {
			clone.Transitions[i] = transition.Clone()
		}
	}

	if s.UIState != nil {
		state := UIState{Collapsed: s.UIState.Collapsed}
		if s.UIState.PositionX != nil {
			x := *s.UIState.PositionX
			state.PositionX = &x
		}

		if s.UIState.PositionY != nil {
			y := *s.UIState.PositionY
			state.PositionY = &y
		}

		clone.UIState = &state
	}

	return clone
}

// copyValue deep-copies a config value. Values come in from JSON, so
// composites are maps and slices; a JSON round trip detaches them from
// the original. Scalars pass through unchanged.
func copyValue(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, int, int64:
		return v
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}

	return out
}

// MergedHooks returns the flow-level hook defaults overridden by the
// segment's own hooks. The segment always wins.
func (s *Segment) MergedHooks(flowHooks map[string]string) map[string]string {
	merged := make(map[string]string, len(flowHooks)+len(s.Hooks))
	for k, v := range flowHooks {
		merged[k] = v
	}

	for k, v := range s.Hooks {
		merged[k] = v
	}

	return merged
}
