package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKey_Canonical(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a|b", PairKey("b", "a"))
}

func TestGraph_EdgeBetween(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "muscle_gluteus_medius", Type: NodeMuscle, Name: "Gluteus Medius"})
	g.AddNode(&Node{ID: "pattern_hip_drop", Type: NodePattern, Name: "Hip Drop"})
	g.AddEdge(&Edge{
		Source:   "muscle_gluteus_medius",
		Target:   "pattern_hip_drop",
		Type:     ConnectionCausal,
		Strength: 0.4,
	})

	e := g.EdgeBetween("pattern_hip_drop", "muscle_gluteus_medius")
	if e == nil {
		t.Fatal("expected edge for reversed pair lookup")
	}
	assert.Equal(t, ConnectionCausal, e.Type)
	assert.Nil(t, g.EdgeBetween("muscle_gluteus_medius", "missing"))
}

func TestGraph_IncidentAndDegree(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(&Node{ID: id, Type: NodeMuscle, Name: id})
	}
	g.AddEdge(&Edge{Source: "a", Target: "b", Strength: 0.5})
	g.AddEdge(&Edge{Source: "a", Target: "c", Strength: 0.3})

	assert.Len(t, g.Incident("a"), 2)
	assert.Equal(t, 1, g.Degree("b"))
	assert.Equal(t, 0, g.Degree("missing"))
}

func TestGraph_NodeIDsSorted(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"c", "a", "b"} {
		g.AddNode(&Node{ID: id, Type: NodeJoint, Name: id})
	}
	assert.Equal(t, []string{"a", "b", "c"}, g.NodeIDs())
}

func TestGraph_CloneIsDeep(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{
		ID:   "muscle_tfl",
		Type: NodeMuscle,
		Name: "TFL",
		Attributes: Attributes{
			Functions:    []string{"hip abduction"},
			EvidenceRefs: []string{"W100"},
		},
	})
	g.AddEdge(&Edge{Source: "a", Target: "muscle_tfl", Strength: 0.5, Evidence: []string{"W100"}})
	g.Touch(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	clone := g.Clone()
	clone.Nodes["muscle_tfl"].Attributes.Functions[0] = "changed"
	clone.Edges[0].Strength = 0.9
	clone.Edges[0].Evidence[0] = "W999"

	assert.Equal(t, "hip abduction", g.Nodes["muscle_tfl"].Attributes.Functions[0])
	assert.InDelta(t, 0.5, g.Edges[0].Strength, 1e-12)
	assert.Equal(t, "W100", g.Edges[0].Evidence[0])
	assert.Equal(t, g.Meta, clone.Meta)

	// Clone keeps its own pair index.
	if clone.EdgeBetween("a", "muscle_tfl") == nil {
		t.Fatal("expected cloned edge index to resolve the pair")
	}
}

func TestComponents_Dominant(t *testing.T) {
	t.Run("largest contribution wins", func(t *testing.T) {
		c := Components{Anatomical: 0.15, Functional: 0.225, Causal: 0.1}
		assert.Equal(t, ConnectionFunctional, c.Dominant())
	})

	t.Run("near-tie resolves by priority", func(t *testing.T) {
		c := Components{Causal: 0.3, Anatomical: 0.3 + 1e-12}
		assert.Equal(t, ConnectionCausal, c.Dominant())

		c = Components{Anatomical: 0.25, Functional: 0.25}
		assert.Equal(t, ConnectionAnatomical, c.Dominant())

		c = Components{Functional: 0.15, Therapeutic: 0.15}
		assert.Equal(t, ConnectionFunctional, c.Dominant())
	})

	t.Run("clear winner beats priority", func(t *testing.T) {
		c := Components{Causal: 0.1, Therapeutic: 0.15}
		assert.Equal(t, ConnectionTherapeutic, c.Dominant())
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "gluteus medius", NormalizeName("  Gluteus   MEDIUS "))
	assert.Equal(t, "tensor fasciae latae", NormalizeName("Tensor Fasciae Latae"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestGraph_Summarize(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "m1", Type: NodeMuscle, Name: "m1"})
	g.AddNode(&Node{ID: "m2", Type: NodeMuscle, Name: "m2"})
	g.AddNode(&Node{ID: "p1", Type: NodePattern, Name: "p1"})
	g.AddEdge(&Edge{Source: "m1", Target: "m2", Type: ConnectionAnatomical, Strength: 0.4})
	g.AddEdge(&Edge{Source: "m1", Target: "p1", Type: ConnectionCausal, Strength: 0.6})

	s := g.Summarize()
	assert.Equal(t, 3, s.Nodes)
	assert.Equal(t, 2, s.Edges)
	assert.Equal(t, 2, s.NodesByType[NodeMuscle])
	assert.Equal(t, 1, s.EdgesByType[ConnectionCausal])
	assert.InDelta(t, 0.5, s.MeanStrength, 1e-9)
}
