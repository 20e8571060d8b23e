// Package flowgraph converts flows to renderable node/edge graphs and back.
package flowgraph

import (
	"strings"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// NodeKind discriminates the node payload. Several algorithms (height
// calculation, position override) branch on this tag, so it is an
// explicit variant tag rather than an untyped escape hatch.
type NodeKind string

const (
	NodeKindStart   NodeKind = "start"
	NodeKindSegment NodeKind = "segment"
)

// StartNodeID is the fixed id of the synthetic entry node.
const StartNodeID = "__start__"

// Node is one renderable graph node. Exactly one payload group is set,
// selected by Kind: start nodes carry display-only identity fields,
// segment nodes carry the segment with its merged hooks.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Start node payload.
	RoutingID string `json:"routing_id,omitempty"`
	SourceID  string `json:"source_id,omitempty"`

	// Segment node payload.
	Segment *models.Segment   `json:"segment,omitempty"`
	Hooks   map[string]string `json:"hooks,omitempty"`
	// ValidationState is a placeholder resolved by the validation
	// consumer, not by the transform.
	ValidationState string `json:"validation_state,omitempty"`

	// Position assigned by the layout engine. Y anchors the vertical
	// center of the node.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Collapsed reports whether the segment is collapsed in the editor.
func (n *Node) Collapsed() bool {
	return n.Kind == NodeKindSegment && n.Segment != nil &&
		n.Segment.UIState != nil && n.Segment.UIState.Collapsed
}

// Edge is one directed labeled edge. A dangling target (transition names
// a segment that no longer exists) is flagged, not dropped: it is a soft
// validation issue, never a crash.
type Edge struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	Target        string `json:"target"`
	Label         string `json:"label"`
	ResultName    string `json:"result_name"`
	ContextKey    string `json:"context_key,omitempty"`
	IsDefault     bool   `json:"is_default"`
	Synthetic     bool   `json:"synthetic"` // start -> init segment
	TargetMissing bool   `json:"target_missing,omitempty"`
}

// Graph is the renderable form of a flow.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for _, node := range g.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// EdgesFrom returns the edges whose source is the given node, in edge
// array order.
func (g *Graph) EdgesFrom(source string) []*Edge {
	edges := make([]*Edge, 0)
	for _, edge := range g.Edges {
		if edge.Source == source {
			edges = append(edges, edge)
		}
	}

	return edges
}

// EdgeID derives the deterministic edge identity from the endpoints and
// labels, so re-derivation is idempotent and stable across re-layouts.
func EdgeID(source, resultName, contextKey, target string) string {
	if contextKey == "" {
		contextKey = "base"
	}

	return strings.Join([]string{source, resultName, contextKey, target}, ":")
}
