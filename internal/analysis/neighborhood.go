package analysis

import (
	"sort"

	"kinegraph/internal/graph"
)

// NeighborhoodConfig controls how far and through which edges a
// neighborhood walk expands.
type NeighborhoodConfig struct {
	MaxHops     int
	MinStrength float64
	Types       map[graph.ConnectionType]bool
}

func DefaultNeighborhoodConfig() NeighborhoodConfig {
	return NeighborhoodConfig{
		MaxHops:     2,
		MinStrength: 0.0,
		Types:       nil,
	}
}

// Neighborhood is the hop-bounded surrounding of a seed set. NodeScores
// carries the strength-decayed closeness of each reached node: seeds score
// 1.0 and every hop multiplies by the edge strength, keeping the best value
// found during expansion.
type Neighborhood struct {
	MaxHops    int
	SeedIDs    []string
	NodeIDs    []string
	NodeScores map[string]float64
	Edges      []*graph.Edge
}

// Neighborhood expands breadth-first from the seed ids. Unknown seeds are
// ignored; with no known seed the result is empty. Output ordering is
// deterministic: node ids sorted, edges sorted by endpoints.
func (a *Analyzer) Neighborhood(seeds []string, cfg NeighborhoodConfig) *Neighborhood {
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}

	seedSet := make(map[string]bool)
	for _, id := range seeds {
		if a.g.NodeByID(id) != nil {
			seedSet[id] = true
		}
	}
	seedIDs := sortedKeys(seedSet)
	if len(seedIDs) == 0 {
		return &Neighborhood{
			MaxHops:    cfg.MaxHops,
			SeedIDs:    seedIDs,
			NodeScores: map[string]float64{},
		}
	}

	adj := make(map[string][]neighbor)
	for _, e := range a.g.Edges {
		if !edgeAllowed(e, cfg) {
			continue
		}
		adj[e.Source] = append(adj[e.Source], neighbor{id: e.Target, edge: e})
		adj[e.Target] = append(adj[e.Target], neighbor{id: e.Source, edge: e})
	}

	type queueItem struct {
		id    string
		depth int
	}

	visitedDepth := make(map[string]int, len(seedIDs))
	nodeScores := make(map[string]float64, len(seedIDs))
	queue := make([]queueItem, 0, len(seedIDs))
	for _, id := range seedIDs {
		visitedDepth[id] = 0
		nodeScores[id] = 1.0
		queue = append(queue, queueItem{id: id})
	}

	edgeSeen := make(map[string]bool)
	var edges []*graph.Edge

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= cfg.MaxHops {
			continue
		}

		for _, next := range adj[cur.id] {
			key := graph.PairKey(next.edge.Source, next.edge.Target)
			if !edgeSeen[key] {
				edgeSeen[key] = true
				edges = append(edges, next.edge)
			}

			nextDepth := cur.depth + 1
			candidate := nodeScores[cur.id] * next.edge.Strength
			if candidate > nodeScores[next.id] {
				nodeScores[next.id] = candidate
			}
			prevDepth, seen := visitedDepth[next.id]
			if !seen || nextDepth < prevDepth {
				visitedDepth[next.id] = nextDepth
				queue = append(queue, queueItem{id: next.id, depth: nextDepth})
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	return &Neighborhood{
		MaxHops:    cfg.MaxHops,
		SeedIDs:    seedIDs,
		NodeIDs:    sortedKeys(visitedDepth),
		NodeScores: nodeScores,
		Edges:      edges,
	}
}

func edgeAllowed(e *graph.Edge, cfg NeighborhoodConfig) bool {
	if cfg.MinStrength > 0 && e.Strength < cfg.MinStrength {
		return false
	}
	if len(cfg.Types) == 0 {
		return true
	}
	return cfg.Types[e.Type]
}
