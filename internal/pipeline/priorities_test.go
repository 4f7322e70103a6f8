package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"kinegraph/internal/graph"
	"kinegraph/internal/screener"
)

func titledPapers(titles ...string) []screener.Paper {
	out := make([]screener.Paper, 0, len(titles))
	for i, title := range titles {
		out = append(out, screener.Paper{ID: fmt.Sprintf("W%d", i+1), Title: title})
	}
	return out
}

func priorityGraph(patterns, others int) *graph.Graph {
	g := graph.NewGraph()
	for i := 0; i < patterns; i++ {
		id := fmt.Sprintf("pattern_p%d", i)
		g.AddNode(&graph.Node{ID: id, Type: graph.NodePattern, Name: id})
	}
	for i := 0; i < others; i++ {
		id := fmt.Sprintf("muscle_m%d", i)
		g.AddNode(&graph.Node{ID: id, Type: graph.NodeMuscle, Name: id})
	}
	return g
}

func TestPriorityAreas_DefaultsWhenNoGaps(t *testing.T) {
	papers := titledPapers(
		"Hip abductor strength in runners",
		"Hip drop during stance",
		"Hip compensation after arthroplasty",
		"Hip muscle recruitment in gait",
	)
	g := priorityGraph(5, 3) // 8 nodes over 4 papers, ratio exactly 2.0

	got := PriorityAreas(papers, g)
	assert.Equal(t, defaultPriorities, got)
}

func TestPriorityAreas_FlagsUnderrepresentedRegion(t *testing.T) {
	titles := []string{"Knee valgus under load"}
	for i := 0; i < 9; i++ {
		titles = append(titles, fmt.Sprintf("Hip abductor study %d", i+1))
	}
	got := PriorityAreas(titledPapers(titles...), priorityGraph(5, 15))

	assert.Contains(t, got, "Knee compensation mechanisms need more research")
	assert.NotContains(t, got, "Hip compensation mechanisms need more research")
}

func TestPriorityAreas_FlagsPatternAndDensityGaps(t *testing.T) {
	papers := titledPapers(
		"Hip abductor strength in runners",
		"Hip drop during stance",
	)

	t.Run("few patterns", func(t *testing.T) {
		got := PriorityAreas(papers, priorityGraph(2, 10))
		assert.Contains(t, got, "Expand compensation pattern identification")
	})

	t.Run("shallow connection analysis", func(t *testing.T) {
		// 5 nodes over 2 papers clears the 2.0 ratio, 3 nodes does not.
		got := PriorityAreas(papers, priorityGraph(5, 0))
		assert.NotContains(t, got, "Increase node connection analysis depth")

		got = PriorityAreas(papers, priorityGraph(3, 0))
		assert.Contains(t, got, "Increase node connection analysis depth")
	})
}

func TestPriorityAreas_OneRegionPerTitle(t *testing.T) {
	// "hip" wins over "knee" in the same title, so knee never accumulates
	// a count and cannot be flagged.
	papers := titledPapers(
		"Hip and knee coupling during descent",
		"Hip and knee kinematics in stair climbing",
	)
	got := PriorityAreas(papers, priorityGraph(5, 0))
	assert.NotContains(t, got, "Knee compensation mechanisms need more research")
}

func TestPriorityAreas_CapsAtFive(t *testing.T) {
	papers := titledPapers(
		"Hip case report",
		"Knee case report",
		"Ankle case report",
		"Spine case report",
		"Elbow case report",
		"Wrist case report",
		"Shoulder girdle case report",
	)
	got := PriorityAreas(papers, priorityGraph(0, 1))

	want := []string{
		"Hip compensation mechanisms need more research",
		"Knee compensation mechanisms need more research",
		"Ankle compensation mechanisms need more research",
		"Spine compensation mechanisms need more research",
		"Expand compensation pattern identification",
	}
	assert.Equal(t, want, got)
}

func TestPriorityAreas_EmptyCorpus(t *testing.T) {
	got := PriorityAreas(nil, graph.NewGraph())
	assert.Contains(t, got, "Expand compensation pattern identification")
	assert.NotContains(t, got, "Increase node connection analysis depth")
}
