package flowgraph

import (
	"errors"
	"fmt"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// ErrNoFlow indicates the transform was called without a loaded flow.
// This is a caller-side contract breach, not a recoverable condition.
var ErrNoFlow = errors.New("no flow loaded")

const startResultName = "start"

// FlowToGraph converts a flow into a renderable directed graph.
//
// A synthetic start node (fixed id) is emitted when the flow has a
// routing id, connected to the init segment by one synthetic edge. One
// node is emitted per segment, carrying the segment plus its merged
// hooks. One edge is emitted per transition with a non-empty next
// segment. When selectedContextKey is non-empty, only transitions tagged
// with exactly that context key are rendered; when empty, all
// transitions render and context-tagged edges are labeled
// "result [contextKey]".
func FlowToGraph(flow *models.Flow, selectedContextKey string) (*Graph, error) {
	if flow == nil {
		return nil, ErrNoFlow
	}

	graph := &Graph{
		Nodes: make([]*Node, 0, len(flow.Segments)+1),
		Edges: make([]*Edge, 0),
	}

	names := make(map[string]bool, len(flow.Segments))
	for _, segment := range flow.Segments {
		names[segment.SegmentName] = true
	}

	if flow.RoutingID != "" {
		graph.Nodes = append(graph.Nodes, &Node{
			ID:        StartNodeID,
			Kind:      NodeKindStart,
			RoutingID: flow.RoutingID,
			SourceID:  flow.SourceID,
		})

		if flow.InitSegment != "" {
			graph.Edges = append(graph.Edges, &Edge{
				ID:            EdgeID(StartNodeID, startResultName, "", flow.InitSegment),
				Source:        StartNodeID,
				Target:        flow.InitSegment,
				Label:         startResultName,
				ResultName:    startResultName,
				Synthetic:     true,
				TargetMissing: !names[flow.InitSegment],
			})
		}
	}

	for _, segment := range flow.Segments {
		graph.Nodes = append(graph.Nodes, &Node{
			ID:      segment.SegmentName,
			Kind:    NodeKindSegment,
			Segment: segment,
			Hooks:   segment.MergedHooks(flow.Hooks),
		})

		for _, transition := range segment.Transitions {
			if transition.Outcome.NextSegment == "" {
				// Terminal within this context, no edge.
				continue
			}

			if selectedContextKey != "" && transition.Outcome.ContextKey != selectedContextKey {
				continue
			}

			label := transition.ResultName
			if selectedContextKey == "" && transition.Outcome.ContextKey != "" {
				label = fmt.Sprintf("%s [%s]", transition.ResultName, transition.Outcome.ContextKey)
			}

			graph.Edges = append(graph.Edges, &Edge{
				ID:            EdgeID(segment.SegmentName, transition.ResultName, transition.Outcome.ContextKey, transition.Outcome.NextSegment),
				Source:        segment.SegmentName,
				Target:        transition.Outcome.NextSegment,
				Label:         label,
				ResultName:    transition.ResultName,
				ContextKey:    transition.Outcome.ContextKey,
				IsDefault:     transition.IsDefault,
				TargetMissing: !names[transition.Outcome.NextSegment],
			})
		}
	}

	return graph, nil
}

// GraphToFlow rebuilds a full flow from an edited graph. It is
// structural, not diff-aware: the result is a new flow, not an operation
// list.
//
// Each segment's transitions are rebuilt from the edges whose source is
// that segment. Transitions without a next segment produced no edge and
// are kept in place; transitions whose edge was removed are dropped;
// edges with no matching transition become new transitions appended in
// edge-array order. Segments present in the original flow but absent
// from the graph are preserved unchanged; that should not normally
// occur.
func GraphToFlow(graph *Graph, original *models.Flow) (*models.Flow, error) {
	if original == nil {
		return nil, ErrNoFlow
	}

	if graph == nil {
		return nil, errors.New("no graph provided")
	}

	flow := original.Clone()

	for _, segment := range flow.Segments {
		node, ok := graph.NodeByID(segment.SegmentName)
		if !ok || node.Kind != NodeKindSegment {
			// Absent from the graph: keep the original segment as-is.
			continue
		}

		edges := graph.EdgesFrom(segment.SegmentName)
		used := make(map[string]bool, len(edges))
		rebuilt := make([]models.Transition, 0, len(segment.Transitions))

		for _, transition := range segment.Transitions {
			if transition.Outcome.NextSegment == "" {
				rebuilt = append(rebuilt, transition)

				continue
			}

			if edge := matchEdge(edges, transition.ResultName, transition.Outcome.ContextKey); edge != nil {
				used[edge.ID] = true
				transition.Outcome.NextSegment = edge.Target
				rebuilt = append(rebuilt, transition)
			}
			// No edge anymore: the transition was removed in the editor.
		}

		for _, edge := range edges {
			if used[edge.ID] {
				continue
			}

			rebuilt = append(rebuilt, models.Transition{
				ResultName: edge.ResultName,
				IsDefault:  edge.IsDefault,
				Outcome: models.TransitionOutcome{
					NextSegment: edge.Target,
					ContextKey:  edge.ContextKey,
				},
			})
		}

		segment.Transitions = rebuilt
	}

	return flow, nil
}

func matchEdge(edges []*Edge, resultName, contextKey string) *Edge {
	for _, edge := range edges {
		if !edge.Synthetic && edge.ResultName == resultName && edge.ContextKey == contextKey {
			return edge
		}
	}

	return nil
}
