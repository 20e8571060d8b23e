// Package validation performs the authoritative correctness check of a
// flow. The editor renders these results; it never re-derives them.
package validation

import (
	"fmt"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
)

// ValidateFlow checks a flow for structural problems. Blocking problems
// (missing init segment, dangling transition targets, duplicate result
// names, broken config) become errors; reachability and cycle findings
// are warnings because cycles are legal in the domain, retry loops being
// the common case. A nil registry skips segment-type checks.
func ValidateFlow(flow *models.Flow, reg *registry.Registry) *models.FlowValidation {
	result := &models.FlowValidation{
		Errors:   []models.ValidationIssue{},
		Warnings: []models.ValidationIssue{},
	}

	if flow == nil {
		result.Errors = append(result.Errors, models.ValidationIssue{
			Type:    models.ValidationMissingInit,
			Message: "no flow loaded",
		})

		return result
	}

	validateInitSegment(flow, result)

	for _, segment := range flow.Segments {
		validateResultNames(segment, result)
		validateTargets(flow, segment, result)

		if reg != nil {
			validateSegmentType(reg, segment, result)
		}
	}

	validateReachability(flow, result)
	validateCycles(flow, result)

	return result
}

func validateInitSegment(flow *models.Flow, result *models.FlowValidation) {
	if flow.InitSegment == "" {
		result.Errors = append(result.Errors, models.ValidationIssue{
			Type:    models.ValidationMissingInit,
			Message: "flow has no init segment",
		})

		return
	}

	if _, ok := flow.SegmentByName(flow.InitSegment); !ok {
		result.Errors = append(result.Errors, models.ValidationIssue{
			Segment: flow.InitSegment,
			Type:    models.ValidationMissingInit,
			Message: fmt.Sprintf("init segment %q does not exist", flow.InitSegment),
		})
	}
}

func validateResultNames(segment *models.Segment, result *models.FlowValidation) {
	seen := make(map[string]bool, len(segment.Transitions))

	for _, transition := range segment.Transitions {
		if seen[transition.ResultName] {
			result.Errors = append(result.Errors, models.ValidationIssue{
				Segment: segment.SegmentName,
				Type:    models.ValidationDuplicateResult,
				Message: fmt.Sprintf("duplicate result name %q", transition.ResultName),
			})

			continue
		}

		seen[transition.ResultName] = true
	}
}

func validateTargets(flow *models.Flow, segment *models.Segment, result *models.FlowValidation) {
	for _, transition := range segment.Transitions {
		target := transition.Outcome.NextSegment
		if target == "" {
			continue
		}

		if _, ok := flow.SegmentByName(target); !ok {
			result.Errors = append(result.Errors, models.ValidationIssue{
				Segment: segment.SegmentName,
				Type:    models.ValidationMissingTarget,
				Message: fmt.Sprintf("transition %q targets missing segment %q", transition.ResultName, target),
			})
		}
	}
}

func validateSegmentType(reg *registry.Registry, segment *models.Segment, result *models.FlowValidation) {
	if _, ok := reg.Definition(segment.SegmentType); !ok {
		result.Errors = append(result.Errors, models.ValidationIssue{
			Segment: segment.SegmentName,
			Type:    models.ValidationUnknownSegmentType,
			Message: fmt.Sprintf("unknown segment type %q", segment.SegmentType),
		})

		return
	}

	if err := reg.ValidateConfig(segment.SegmentType, segment.Config); err != nil {
		result.Errors = append(result.Errors, models.ValidationIssue{
			Segment: segment.SegmentName,
			Type:    models.ValidationInvalidConfig,
			Message: err.Error(),
		})
	}
}

// validateReachability walks the transition graph from the init segment
// across all routing contexts. Segments the walk never reaches get a
// warning, as does any reached segment that is inactive.
func validateReachability(flow *models.Flow, result *models.FlowValidation) {
	if flow.InitSegment == "" {
		return
	}

	if _, ok := flow.SegmentByName(flow.InitSegment); !ok {
		return
	}

	reached := make(map[string]bool, len(flow.Segments))
	queue := []string{flow.InitSegment}
	reached[flow.InitSegment] = true

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		segment, ok := flow.SegmentByName(name)
		if !ok {
			continue
		}

		for _, transition := range segment.Transitions {
			target := transition.Outcome.NextSegment
			if target == "" || reached[target] {
				continue
			}

			if _, ok := flow.SegmentByName(target); !ok {
				continue
			}

			reached[target] = true
			queue = append(queue, target)
		}
	}

	for _, segment := range flow.Segments {
		if !reached[segment.SegmentName] {
			result.Warnings = append(result.Warnings, models.ValidationIssue{
				Segment: segment.SegmentName,
				Type:    models.ValidationUnreachable,
				Message: fmt.Sprintf("segment %q is not reachable from the init segment", segment.SegmentName),
			})

			continue
		}

		if !segment.IsActive {
			result.Warnings = append(result.Warnings, models.ValidationIssue{
				Segment: segment.SegmentName,
				Type:    models.ValidationInactiveSegment,
				Message: fmt.Sprintf("segment %q is reachable but inactive", segment.SegmentName),
			})
		}
	}
}

// validateCycles reports each segment that closes a transition cycle, at
// most once per segment.
func validateCycles(flow *models.Flow, result *models.FlowValidation) {
	const (
		unvisited = 0
		onPath    = 1
		done      = 2
	)

	state := make(map[string]int, len(flow.Segments))
	reported := make(map[string]bool)

	var visit func(name string)

	visit = func(name string) {
		segment, ok := flow.SegmentByName(name)
		if !ok {
			return
		}

		state[name] = onPath

		for _, transition := range segment.Transitions {
			target := transition.Outcome.NextSegment
			if target == "" {
				continue
			}

			switch state[target] {
			case unvisited:
				visit(target)
			case onPath:
				if !reported[target] {
					reported[target] = true

					result.Warnings = append(result.Warnings, models.ValidationIssue{
						Segment: target,
						Type:    models.ValidationCycle,
						Message: fmt.Sprintf("segment %q is part of a transition cycle", target),
					})
				}
			}
		}

		state[name] = done
	}

	for _, segment := range flow.Segments {
		if state[segment.SegmentName] == unvisited {
			visit(segment.SegmentName)
		}
	}
}
