// Package models defines the core domain models for versioned IVR call-flow authoring.
package models

import "time"

// Flow is the aggregate root for one routing: the full call-flow of a
// routing in either the published scope (empty ChangeSetID) or one draft
// scope. The published flow and its drafts are structurally independent
// copies that share RoutingID and segment names.
type Flow struct {
	RoutingID          string            `json:"routing_id"                    validate:"required"`
	ChangeSetID        string            `json:"change_set_id,omitempty"`
	InitSegment        string            `json:"init_segment"`
	Hooks              map[string]string `json:"hooks,omitempty"`
	SourceID           string            `json:"source_id,omitempty"`
	SupportedLanguages []string          `json:"supported_languages,omitempty"`
	DefaultLanguage    string            `json:"default_language,omitempty"`
	Segments           []*Segment        `json:"segments"`
	// Validation is the last computed validation result. It is not
	// authoritative and is recomputed on demand.
	Validation *FlowValidation `json:"validation,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IsDraft reports whether this flow belongs to a draft change set.
func (f *Flow) IsDraft() bool {
	return f.ChangeSetID != ""
}

// SegmentByName looks a segment up by its name. Transition targets are
// weak name references, so the segment may legitimately be absent.
func (f *Flow) SegmentByName(name string) (*Segment, bool) {
	for _, segment := range f.Segments {
		if segment.SegmentName == name {
			return segment, true
		}
	}

	return nil, false
}

// Clone returns a deep copy of the flow. Used to snapshot the "original"
// baseline the diff is computed against, so editor mutations never alias
// the snapshot.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}

	clone := &Flow{
		RoutingID:       f.RoutingID,
		ChangeSetID:     f.ChangeSetID,
		InitSegment:     f.InitSegment,
		Hooks:           copyStringMap(f.Hooks),
		SourceID:        f.SourceID,
		DefaultLanguage: f.DefaultLanguage,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}

	if f.SupportedLanguages != nil {
		clone.SupportedLanguages = make([]string, len(f.SupportedLanguages))
		copy(clone.SupportedLanguages, f.SupportedLanguages)
	}

	if f.Segments != nil {
		clone.Segments = make([]*Segment, len(f.Segments))
		for i, segment := range f.Segments {
			clone.Segments[i] = segment.Clone()
		}
	}

	if f.Validation != nil {
		clone.Validation = f.Validation.Clone()
	}

	return clone
}

func copyStringMap(original map[string]string) map[string]string {
	if original == nil {
		return nil
	}

	result := make(map[string]string, len(original))
	for k, v := range original {
		result[k] = v
	}

	return result
}

func copyAnyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	result := make(map[string]any, len(original))
	for k, v := range original {
		result[k] = v
	}

	return result
}
