package analysis

import (
	"sort"

	"kinegraph/internal/scoring"
)

// Gap is a pair of important nodes that could connect but currently do not.
// Gaps surface where the literature base is thinnest relative to the
// structural weight of the concepts involved.
type Gap struct {
	A, B       string
	Importance float64
}

// ImportanceFunc scores a node's weight for gap ranking.
type ImportanceFunc func(id string) float64

// DefaultImportance blends normalized degree with betweenness.
func (a *Analyzer) DefaultImportance() ImportanceFunc {
	c := a.Centrality()
	n := len(a.g.Nodes)
	return func(id string) float64 {
		var degNorm float64
		if n > 1 {
			degNorm = float64(c.Degree[id]) / float64(n-1)
		}
		return (degNorm + c.Betweenness[id]) / 2
	}
}

// FindGaps returns unconnected node pairs ranked by combined importance,
// strongest first. Pairs no scoring category could ever connect (papers,
// assessment-assessment and the like) are not gaps and are skipped, as are
// pairs whose combined importance is zero. A positive limit truncates the
// result.
func (a *Analyzer) FindGaps(importance ImportanceFunc, limit int) []Gap {
	if importance == nil {
		importance = a.DefaultImportance()
	}

	ids := a.g.NodeIDs()
	var gaps []Gap
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			na, nb := a.g.NodeByID(ids[i]), a.g.NodeByID(ids[j])
			if !scoring.Scoreable(na.Type, nb.Type) {
				continue
			}
			if a.g.EdgeBetween(ids[i], ids[j]) != nil {
				continue
			}
			combined := importance(ids[i]) + importance(ids[j])
			if combined <= 0 {
				continue
			}
			gaps = append(gaps, Gap{A: ids[i], B: ids[j], Importance: combined})
		}
	}

	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Importance != gaps[j].Importance {
			return gaps[i].Importance > gaps[j].Importance
		}
		if gaps[i].A != gaps[j].A {
			return gaps[i].A < gaps[j].A
		}
		return gaps[i].B < gaps[j].B
	})
	if limit > 0 && len(gaps) > limit {
		gaps = gaps[:limit]
	}
	return gaps
}
