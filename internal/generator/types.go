package generator

import (
	"math"
	"strings"

	"kinegraph/internal/graph"
)

// NetworkExport is the JSON shape written to network.json. The node/link
// layout matches what force-directed graph viewers expect.
type NetworkExport struct {
	GeneratedAt string        `json:"generated_at"`
	Stats       NetworkStats  `json:"stats"`
	Nodes       []NetworkNode `json:"nodes"`
	Links       []NetworkLink `json:"links"`
}

// NetworkStats summarizes graph composition for the export. Derived floats
// are rounded to two decimals so repeated builds of the same graph emit
// byte-identical JSON.
type NetworkStats struct {
	Nodes        int                          `json:"nodes"`
	Edges        int                          `json:"edges"`
	NodesByType  map[graph.NodeType]int       `json:"nodes_by_type"`
	EdgesByType  map[graph.ConnectionType]int `json:"edges_by_type"`
	MeanStrength float64                      `json:"mean_strength"`
}

type NetworkNode struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        graph.NodeType `json:"type"`
	Region      string         `json:"region,omitempty"`
	Quality     float64        `json:"quality,omitempty"`
	Degree      int            `json:"degree"`
	Betweenness float64        `json:"betweenness"`
}

type NetworkLink struct {
	Source            string               `json:"source"`
	Target            string               `json:"target"`
	Type              graph.ConnectionType `json:"type"`
	Strength          float64              `json:"strength"`
	ClinicalRelevance float64              `json:"clinical_relevance"`
	Evidence          []string             `json:"evidence,omitempty"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// safeFileName turns a concept name into a vault-safe file stem: word
// characters and hyphens survive, spaces become hyphens, everything else is
// dropped, and the result is capped at 50 bytes.
func safeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	s := b.String()
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		return "untitled"
	}
	return s
}

func wikiLink(name string) string {
	return "[[" + name + "]]"
}
