package analysis

import (
	"kinegraph/internal/graph"
)

const delta = 1e-9

func testNode(id string, t graph.NodeType) *graph.Node {
	return &graph.Node{ID: id, Type: t, Name: id, NormalizedName: id}
}

func testEdge(a, b string, strength float64) *graph.Edge {
	if b < a {
		a, b = b, a
	}
	return &graph.Edge{
		Source:   a,
		Target:   b,
		Type:     graph.ConnectionFunctional,
		Strength: strength,
	}
}

func buildGraph(nodes []*graph.Node, edges []*graph.Edge) *graph.Graph {
	g := graph.NewGraph()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for i, e := range edges {
		e.Seq = i
		g.AddEdge(e)
	}
	return g
}

func muscles(ids ...string) []*graph.Node {
	out := make([]*graph.Node, len(ids))
	for i, id := range ids {
		out[i] = testNode(id, graph.NodeMuscle)
	}
	return out
}
