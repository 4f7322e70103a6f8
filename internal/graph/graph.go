package graph

import (
	"sort"
	"time"
)

// Meta describes one build of the graph.
type Meta struct {
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	BuiltAt   time.Time `json:"built_at"`
}

// Graph owns the nodes and edges of one build. Downstream consumers
// (generator, storage, analysis) treat it as read-only; only the optimizer
// mutates it, in place, as the terminal build step.
type Graph struct {
	Nodes map[string]*Node
	Edges []*Edge
	Meta  Meta

	// Index for O(1) pair lookup: PairKey(a, b) -> edge.
	edgeIndex map[string]*Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		Edges:     []*Edge{},
		edgeIndex: make(map[string]*Edge),
	}
}

// PairKey returns the canonical key for an unordered node pair.
func PairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n *Node) {
	if n == nil || n.ID == "" {
		return
	}
	g.Nodes[n.ID] = n
}

// AddEdge appends an edge and indexes its pair key.
func (g *Graph) AddEdge(e *Edge) {
	if e == nil {
		return
	}
	g.Edges = append(g.Edges, e)
	g.edgeIndex[PairKey(e.Source, e.Target)] = e
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	return g.Nodes[id]
}

// EdgeBetween returns the edge for an unordered pair, or nil.
func (g *Graph) EdgeBetween(a, b string) *Edge {
	return g.edgeIndex[PairKey(a, b)]
}

// NodeIDs returns all node ids in sorted order for deterministic iteration.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Incident returns the edges touching the given node.
func (g *Graph) Incident(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.Touches(id) {
			out = append(out, e)
		}
	}
	return out
}

// Degree returns the incident-edge count of the given node.
func (g *Graph) Degree(id string) int {
	n := 0
	for _, e := range g.Edges {
		if e.Touches(id) {
			n++
		}
	}
	return n
}

// RebuildIndices recomputes the pair index from the edge list. Callers must
// invoke it after bulk-loading or pruning edges outside AddEdge.
func (g *Graph) RebuildIndices() {
	g.edgeIndex = make(map[string]*Edge, len(g.Edges))
	for _, e := range g.Edges {
		g.edgeIndex[PairKey(e.Source, e.Target)] = e
	}
}

// Touch refreshes the build metadata from the current node and edge sets.
func (g *Graph) Touch(now time.Time) {
	g.Meta.NodeCount = len(g.Nodes)
	g.Meta.EdgeCount = len(g.Edges)
	g.Meta.BuiltAt = now
}

// Clone returns a deep copy. The optimizer mutates graphs in place, so the
// pipeline clones the raw build before optimizing in order to re-score
// against the unpruned edge set during sync.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	out.Meta = g.Meta

	for id, n := range g.Nodes {
		cp := *n
		cp.Attributes.Functions = append([]string(nil), n.Attributes.Functions...)
		cp.Attributes.Targets = append([]string(nil), n.Attributes.Targets...)
		cp.Attributes.EvidenceRefs = append([]string(nil), n.Attributes.EvidenceRefs...)
		if n.Attributes.Extra != nil {
			cp.Attributes.Extra = make(map[string]string, len(n.Attributes.Extra))
			for k, v := range n.Attributes.Extra {
				cp.Attributes.Extra[k] = v
			}
		}
		out.Nodes[id] = &cp
	}

	for _, e := range g.Edges {
		cp := *e
		cp.Evidence = append([]string(nil), e.Evidence...)
		out.AddEdge(&cp)
	}
	return out
}
