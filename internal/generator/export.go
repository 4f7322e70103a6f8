package generator

import (
	"encoding/json"
	"fmt"
	"time"

	"kinegraph/internal/analysis"
	"kinegraph/internal/graph"
)

// renderNetworkJSON produces the network.json bytes: indented JSON with a
// trailing newline, nodes sorted by id and links by endpoint ids.
func renderNetworkJSON(g *graph.Graph, an *analysis.Analyzer) ([]byte, error) {
	b, err := json.MarshalIndent(buildNetworkExport(g, an), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode network export: %w", err)
	}
	return append(b, '\n'), nil
}

func buildNetworkExport(g *graph.Graph, an *analysis.Analyzer) NetworkExport {
	sum := g.Summarize()
	cent := an.Centrality()

	ex := NetworkExport{
		GeneratedAt: g.Meta.BuiltAt.UTC().Format(time.RFC3339),
		Stats: NetworkStats{
			Nodes:        sum.Nodes,
			Edges:        sum.Edges,
			NodesByType:  sum.NodesByType,
			EdgesByType:  sum.EdgesByType,
			MeanStrength: round2(sum.MeanStrength),
		},
		Nodes: make([]NetworkNode, 0, sum.Nodes),
		Links: make([]NetworkLink, 0, sum.Edges),
	}

	for _, id := range g.NodeIDs() {
		n := g.NodeByID(id)
		ex.Nodes = append(ex.Nodes, NetworkNode{
			ID:          n.ID,
			Name:        n.Name,
			Type:        n.Type,
			Region:      n.Attributes.Region,
			Quality:     n.Attributes.Quality,
			Degree:      cent.Degree[id],
			Betweenness: round2(cent.Betweenness[id]),
		})
	}

	for _, e := range sortedEdges(g) {
		ex.Links = append(ex.Links, NetworkLink{
			Source:            e.Source,
			Target:            e.Target,
			Type:              e.Type,
			Strength:          e.Strength,
			ClinicalRelevance: e.ClinicalRelevance,
			Evidence:          e.Evidence,
		})
	}
	return ex
}
