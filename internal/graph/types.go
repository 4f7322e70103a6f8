package graph

import "strings"

type NodeType string

const (
	NodePaper      NodeType = "paper"
	NodeMuscle     NodeType = "muscle"
	NodeJoint      NodeType = "joint"
	NodePattern    NodeType = "pattern"
	NodeAssessment NodeType = "assessment"
	NodeTreatment  NodeType = "treatment"
	NodeMechanism  NodeType = "mechanism"
)

type ConnectionType string

const (
	ConnectionAnatomical  ConnectionType = "anatomical"
	ConnectionFunctional  ConnectionType = "functional"
	ConnectionCausal      ConnectionType = "causal"
	ConnectionTherapeutic ConnectionType = "therapeutic"
)

// Attributes is the typed payload of a node. Which fields are populated
// depends on the node type; Extra holds metadata that fits no schema field.
type Attributes struct {
	// Muscle / Joint
	Region    string   `json:"region,omitempty"`
	Functions []string `json:"functions,omitempty"`

	// Pattern
	Stage    string `json:"stage,omitempty"`
	WhyDepth int    `json:"why_depth,omitempty"`

	// Assessment / Treatment
	Category string   `json:"category,omitempty"`
	Targets  []string `json:"targets,omitempty"`

	// Paper
	Journal string `json:"journal,omitempty"`
	Year    int    `json:"year,omitempty"`

	// Shared
	Quality      float64           `json:"quality,omitempty"`
	EvidenceRefs []string          `json:"evidence_refs,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Node is a clinical entity in the concept graph.
type Node struct {
	ID             string     `json:"id"`
	Type           NodeType   `json:"type"`
	Name           string     `json:"name"`
	NormalizedName string     `json:"normalized_name"`
	Attributes     Attributes `json:"attributes,omitempty"`
}

// NormalizeName lowercases a concept name and collapses runs of whitespace
// to single spaces. Two names that normalize equal refer to the same concept.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Components holds the weighted contribution of each scoring category to an
// edge's final strength. The sum (capped at 1.0) is the edge strength.
type Components struct {
	Anatomical  float64 `json:"anatomical"`
	Functional  float64 `json:"functional"`
	Causal      float64 `json:"causal"`
	Therapeutic float64 `json:"therapeutic"`
}

// Dominant returns the connection type with the single largest weighted
// contribution. Near-ties within epsilon resolve by fixed priority:
// causal, anatomical, functional, therapeutic.
func (c Components) Dominant() ConnectionType {
	const eps = 1e-9

	best := ConnectionCausal
	bestVal := c.Causal
	candidates := []struct {
		t ConnectionType
		v float64
	}{
		{ConnectionAnatomical, c.Anatomical},
		{ConnectionFunctional, c.Functional},
		{ConnectionTherapeutic, c.Therapeutic},
	}
	for _, cand := range candidates {
		if cand.v > bestVal+eps {
			best = cand.t
			bestVal = cand.v
		}
	}
	return best
}

// Edge is a weighted, undirected relationship between two nodes.
// Source and Target are kept in canonical order (Source < Target) so that
// one unordered pair maps to exactly one edge.
type Edge struct {
	Source            string         `json:"source"`
	Target            string         `json:"target"`
	Type              ConnectionType `json:"type"`
	Strength          float64        `json:"strength"`
	Components        Components     `json:"components"`
	Evidence          []string       `json:"evidence,omitempty"`
	ClinicalRelevance float64        `json:"clinical_relevance"`

	// ClinicalPriority marks edges eligible for the one-time optimizer
	// boost; Boosted records that the boost has been consumed.
	ClinicalPriority bool `json:"clinical_priority,omitempty"`
	Boosted          bool `json:"boosted,omitempty"`

	// Seq is the deterministic insertion sequence assigned by the builder,
	// used as the final pruning tie-break.
	Seq int `json:"seq"`
}

// Touches reports whether the edge is incident to the given node.
func (e *Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite to id, or "" if id is not an endpoint.
func (e *Edge) Other(id string) string {
	switch id {
	case e.Source:
		return e.Target
	case e.Target:
		return e.Source
	}
	return ""
}
