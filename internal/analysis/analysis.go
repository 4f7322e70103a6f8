// Package analysis runs read-only structural queries over a built graph:
// shortest clinical reasoning paths, centrality, research-gap detection and
// hop-bounded neighborhoods.
package analysis

import (
	"sort"

	"kinegraph/internal/graph"
)

// Analyzer answers queries against one graph snapshot. It indexes adjacency
// up front and never mutates the graph, so it is safe to share.
type Analyzer struct {
	g   *graph.Graph
	adj map[string][]neighbor
}

type neighbor struct {
	id   string
	edge *graph.Edge
}

func New(g *graph.Graph) *Analyzer {
	a := &Analyzer{
		g:   g,
		adj: make(map[string][]neighbor, len(g.Nodes)),
	}
	for _, e := range g.Edges {
		a.adj[e.Source] = append(a.adj[e.Source], neighbor{id: e.Target, edge: e})
		a.adj[e.Target] = append(a.adj[e.Target], neighbor{id: e.Source, edge: e})
	}
	for id := range a.adj {
		nbrs := a.adj[id]
		sort.Slice(nbrs, func(i, j int) bool { return nbrs[i].id < nbrs[j].id })
	}
	return a
}

// edgeCost converts a connection strength into a traversal cost: the
// stronger the connection, the shorter the hop.
func edgeCost(e *graph.Edge) float64 {
	return 1 - e.Strength
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
