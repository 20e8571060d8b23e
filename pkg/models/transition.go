package models

// DefaultResultName is the distinguished result meaning "no other result
// matched". It renders as a dashed edge in the editor.
const DefaultResultName = "default"

// TransitionOutcome describes where a transition leads. NextSegment is a
// weak name reference, not an owning pointer: resolving it requires a
// scoped lookup and must tolerate the target being absent. An empty
// NextSegment is a valid "terminal within this context" outcome and
// produces no graph edge. ContextKey partitions transitions into parallel
// routing contexts so one segment can branch differently per context
// value without separate segment copies.
type TransitionOutcome struct {
	NextSegment string         `json:"next_segment,omitempty"`
	ContextKey  string         `json:"context_key,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// Transition is a directed, labeled edge owned by exactly one segment.
type Transition struct {
	ResultName string            `json:"result_name" validate:"required"`
	IsDefault  bool              `json:"is_default"`
	Outcome    TransitionOutcome `json:"outcome"`
}

// Clone returns a deep copy of the transition.
func (t Transition) Clone() Transition {
	clone := t
	clone.Outcome.Params = copyAnyMap(t.Outcome.Params)

	return clone
}
