// Package layout places flow graphs for top-to-bottom hierarchical rendering.
package layout

import (
	"errors"
	"log/slog"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/flowgraph"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/metrics"
)

// Node sizing and spacing. All nodes share one width; height grows with
// the transition count unless the segment is collapsed.
const (
	NodeWidth        = 260.0
	BaseHeight       = 56.0
	TransitionHeight = 24.0
	CollapsedHeight  = 40.0
	StartNodeHeight  = 48.0

	RankSeparation = 80.0
	NodeSeparation = 40.0

	// StaircaseOffset shifts each depth level left, a purely visual
	// device separating successive levels diagonally.
	StaircaseOffset = 32.0
)

// ErrNoGraph indicates Layout was called without a graph.
var ErrNoGraph = errors.New("no graph to lay out")

// Engine assigns coordinates to graph nodes. The cycle-warning dedupe
// set is instance state, cleared via Reset when a new flow is loaded,
// so suppression never leaks across unrelated flows.
type Engine struct {
	logger *slog.Logger
	warned map[string]struct{}
}

// NewEngine creates a layout engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		warned: make(map[string]struct{}),
	}
}

// Reset clears the cycle-warning dedupe state. Call when a new flow is
// loaded.
func (e *Engine) Reset() {
	e.warned = make(map[string]struct{})
}

// Layout assigns (x, y) to every node of the graph in place. Y anchors
// the vertical center of each node. Nodes with a user-pinned position
// keep it verbatim and are never staircased. Cyclic graphs are legal:
// depth computation breaks cycles instead of recursing forever.
func (e *Engine) Layout(graph *flowgraph.Graph) error {
	if graph == nil {
		return ErrNoGraph
	}

	if len(graph.Nodes) == 0 {
		return nil
	}

	depths := e.computeDepths(graph)

	heights := make(map[string]float64, len(graph.Nodes))
	for _, node := range graph.Nodes {
		heights[node.ID] = nodeHeight(node)
	}

	// Group nodes into ranks by depth, preserving node-array order
	// within each rank so placement is deterministic.
	maxDepth := 0
	ranks := make(map[int][]*flowgraph.Node)

	for _, node := range graph.Nodes {
		depth, ok := depths[node.ID]
		if !ok {
			// Should not happen in a connected graph. Keep the node at
			// its previous position rather than failing the layout.
			e.logger.Warn("layout produced no placement for node, keeping previous position",
				"node", node.ID)

			continue
		}

		ranks[depth] = append(ranks[depth], node)
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	yCursor := 0.0

	for depth := 0; depth <= maxDepth; depth++ {
		row := ranks[depth]
		if len(row) == 0 {
			continue
		}

		rowHeight := 0.0
		for _, node := range row {
			if h := heights[node.ID]; h > rowHeight {
				rowHeight = h
			}
		}

		for i, node := range row {
			if node.Kind == flowgraph.NodeKindSegment && node.Segment.UIState.HasPosition() {
				// Custom positions are absolute: use them verbatim and
				// skip placement and staircase entirely.
				node.X = *node.Segment.UIState.PositionX
				node.Y = *node.Segment.UIState.PositionY

				continue
			}

			node.X = float64(i)*(NodeWidth+NodeSeparation) - float64(depth)*StaircaseOffset
			node.Y = yCursor + heights[node.ID]/2
		}

		yCursor += rowHeight + RankSeparation
	}

	return nil
}

// computeDepths returns the depth of every node: the maximum over
// incoming edges of (source depth + 1), zero for roots. When a node is
// reached while already on the recursion path the cycle is broken by
// assigning max(0, pathLength-1), warning once per node across layout
// passes.
func (e *Engine) computeDepths(graph *flowgraph.Graph) map[string]int {
	nodes := make(map[string]bool, len(graph.Nodes))
	for _, node := range graph.Nodes {
		nodes[node.ID] = true
	}

	incoming := make(map[string][]string)

	for _, edge := range graph.Edges {
		if !nodes[edge.Source] || !nodes[edge.Target] {
			// Dangling endpoint: soft validation issue, no layout input.
			continue
		}

		incoming[edge.Target] = append(incoming[edge.Target], edge.Source)
	}

	const (
		stateOnPath = 1
		stateDone   = 2
	)

	depths := make(map[string]int, len(graph.Nodes))
	state := make(map[string]int, len(graph.Nodes))
	pathLen := 0

	var visit func(id string) int

	visit = func(id string) int {
		switch state[id] {
		case stateDone:
			return depths[id]
		case stateOnPath:
			depth := pathLen - 1
			if depth < 0 {
				depth = 0
			}

			e.warnCycle(id)

			return depth
		}

		state[id] = stateOnPath
		pathLen++

		depth := 0
		for _, source := range incoming[id] {
			if d := visit(source) + 1; d > depth {
				depth = d
			}
		}

		pathLen--
		state[id] = stateDone
		depths[id] = depth

		return depth
	}

	for _, node := range graph.Nodes {
		visit(node.ID)
	}

	return depths
}

func (e *Engine) warnCycle(nodeID string) {
	if _, ok := e.warned[nodeID]; ok {
		return
	}

	e.warned[nodeID] = struct{}{}
	metrics.LayoutCycleBreaks.Inc()
	e.logger.Warn("cycle detected during layout, breaking at node", "node", nodeID)
}

func nodeHeight(node *flowgraph.Node) float64 {
	if node.Kind == flowgraph.NodeKindStart {
		return StartNodeHeight
	}

	if node.Collapsed() {
		return CollapsedHeight
	}

	return BaseHeight + float64(len(node.Segment.Transitions))*TransitionHeight
}
