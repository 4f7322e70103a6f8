package graph

// Summary aggregates graph composition for reporting.
type Summary struct {
	Nodes        int                    `json:"nodes"`
	Edges        int                    `json:"edges"`
	NodesByType  map[NodeType]int       `json:"nodes_by_type"`
	EdgesByType  map[ConnectionType]int `json:"edges_by_type"`
	MeanStrength float64                `json:"mean_strength"`
}

// Summarize computes per-type counts and the mean edge strength.
func (g *Graph) Summarize() Summary {
	s := Summary{
		Nodes:       len(g.Nodes),
		Edges:       len(g.Edges),
		NodesByType: make(map[NodeType]int),
		EdgesByType: make(map[ConnectionType]int),
	}

	for _, n := range g.Nodes {
		s.NodesByType[n.Type]++
	}

	total := 0.0
	for _, e := range g.Edges {
		s.EdgesByType[e.Type]++
		total += e.Strength
	}
	if len(g.Edges) > 0 {
		s.MeanStrength = total / float64(len(g.Edges))
	}
	return s
}
