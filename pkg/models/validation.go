package models

// Validation issue types reported by flow validation.
const (
	ValidationMissingInit        = "missing_init_segment"
	ValidationMissingTarget      = "missing_target"
	ValidationDuplicateResult    = "duplicate_result_name"
	ValidationUnreachable        = "unreachable_segment"
	ValidationCycle              = "cycle"
	ValidationInactiveSegment    = "inactive_segment"
	ValidationInvalidConfig      = "invalid_config"
	ValidationUnknownSegmentType = "unknown_segment_type"
)

// ValidationIssue is one finding of flow validation, attached to a
// segment where applicable.
type ValidationIssue struct {
	Segment string `json:"segment,omitempty"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FlowValidation is the result shape the engine consumes. The engine
// renders these results; it does not decide correctness itself.
type FlowValidation struct {
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// HasErrors reports whether any blocking issue was found. Publish is
// refused while this is true.
func (v *FlowValidation) HasErrors() bool {
	return v != nil && len(v.Errors) > 0
}

// Clone returns a copy of the validation result.
func (v *FlowValidation) Clone() *FlowValidation {
	if v == nil {
		return nil
	}

	clone := &FlowValidation{}
	if v.Errors != nil {
		clone.Errors = make([]ValidationIssue, len(v.Errors))
		copy(clone.Errors, v.Errors)
	}

	if v.Warnings != nil {
		clone.Warnings = make([]ValidationIssue, len(v.Warnings))
		copy(clone.Warnings, v.Warnings)
	}

	return clone
}
