package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kinegraph/internal/graph"
)

func TestCentrality_StarCenterBrokersEverything(t *testing.T) {
	a := New(buildGraph(muscles("hub", "l1", "l2", "l3", "l4"), []*graph.Edge{
		testEdge("hub", "l1", 0.5),
		testEdge("hub", "l2", 0.5),
		testEdge("hub", "l3", 0.5),
		testEdge("hub", "l4", 0.5),
	}))

	c := a.Centrality()

	assert.Equal(t, 4, c.Degree["hub"])
	assert.Equal(t, 1, c.Degree["l1"])
	assert.InDelta(t, 1.0, c.Betweenness["hub"], delta)
	for _, leaf := range []string{"l1", "l2", "l3", "l4"} {
		assert.InDelta(t, 0.0, c.Betweenness[leaf], delta)
	}
}

func TestCentrality_PathMiddle(t *testing.T) {
	a := New(buildGraph(muscles("a", "b", "c"), []*graph.Edge{
		testEdge("a", "b", 0.7),
		testEdge("b", "c", 0.7),
	}))

	c := a.Centrality()

	assert.InDelta(t, 1.0, c.Betweenness["b"], delta)
	assert.InDelta(t, 0.0, c.Betweenness["a"], delta)
	assert.InDelta(t, 0.0, c.Betweenness["c"], delta)
}

func TestCentrality_WeightsRouteThroughStrongEdges(t *testing.T) {
	// Both m1 and m2 bridge s and t, but the m1 route is far stronger, so
	// every shortest path runs through m1.
	a := New(buildGraph(muscles("s", "t", "m1", "m2"), []*graph.Edge{
		testEdge("s", "m1", 0.9),
		testEdge("m1", "t", 0.9),
		testEdge("s", "m2", 0.2),
		testEdge("m2", "t", 0.2),
	}))

	c := a.Centrality()

	assert.InDelta(t, 1.0/3.0, c.Betweenness["m1"], delta)
	assert.InDelta(t, 0.0, c.Betweenness["m2"], delta)
	assert.Greater(t, c.Betweenness["m1"], c.Betweenness["m2"])
}

func TestCentrality_EqualPathsSplitCredit(t *testing.T) {
	// A four-cycle with equal strengths: each of b1 and b2 carries half of
	// the a-z traffic.
	a := New(buildGraph(muscles("a", "b1", "b2", "z"), []*graph.Edge{
		testEdge("a", "b1", 0.6),
		testEdge("b1", "z", 0.6),
		testEdge("a", "b2", 0.6),
		testEdge("b2", "z", 0.6),
	}))

	c := a.Centrality()

	assert.InDelta(t, c.Betweenness["b1"], c.Betweenness["b2"], delta)
	assert.InDelta(t, 1.0/6.0, c.Betweenness["b1"], delta)
}

func TestCentrality_TooSmallForBetweenness(t *testing.T) {
	a := New(buildGraph(muscles("a", "b"), []*graph.Edge{testEdge("a", "b", 0.9)}))

	c := a.Centrality()

	assert.InDelta(t, 0.0, c.Betweenness["a"], delta)
	assert.InDelta(t, 0.0, c.Betweenness["b"], delta)
	assert.Equal(t, 1, c.Degree["a"])
}
