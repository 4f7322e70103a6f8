// Package optimizer refines a freshly built graph in place: clinically
// prioritized edges get their one-time boost, edges under the connection
// threshold are pruned, and every node is capped to its strongest
// connections. A second pass over the same graph changes nothing.
package optimizer

import (
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"kinegraph/internal/config"
	"kinegraph/internal/graph"
	"kinegraph/internal/logging"
)

// BoostFactor is the multiplier applied exactly once to edges flagged as
// clinically prioritized. Boosted strengths stay capped at 1.0.
const BoostFactor = 1.20

type Optimizer struct {
	cfg    config.GraphConfig
	logger *log.Logger
}

func New(cfg config.GraphConfig, logger *log.Logger) *Optimizer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Optimizer{cfg: cfg, logger: logger}
}

// Result reports what one optimization pass changed.
type Result struct {
	Boosted int
	Pruned  int
	Capped  int
	Edges   int
}

// Optimize mutates the graph through the three stages and refreshes its
// metadata. Callers that need the raw build afterwards must pass a clone.
func (o *Optimizer) Optimize(g *graph.Graph) Result {
	res := Result{
		Boosted: o.boost(g),
		Pruned:  o.prune(g),
		Capped:  o.capConnections(g),
	}
	res.Edges = len(g.Edges)
	g.Touch(time.Now())

	o.logger.Info("[Optimizer] Pass complete",
		"boosted", res.Boosted, "pruned", res.Pruned, "capped", res.Capped, "edges", res.Edges)
	return res
}

// boost raises clinically prioritized edges once. The Boosted flag records
// consumption so repeated passes cannot compound the multiplier.
func (o *Optimizer) boost(g *graph.Graph) int {
	boosted := 0
	for _, e := range g.Edges {
		if !e.ClinicalPriority || e.Boosted {
			continue
		}
		e.Strength *= BoostFactor
		if e.Strength > 1 {
			e.Strength = 1
		}
		e.Boosted = true
		boosted++
	}
	return boosted
}

// prune drops edges whose strength sits below the connection threshold.
// Fresh builds never contain such edges; re-scored graphs during sync can.
func (o *Optimizer) prune(g *graph.Graph) int {
	kept := g.Edges[:0]
	pruned := 0
	for _, e := range g.Edges {
		if e.Strength < o.cfg.ConnectionThreshold {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	if pruned > 0 {
		g.RebuildIndices()
	}
	return pruned
}

// capConnections limits every node to its MaxConnectionsPerNode strongest
// edges. An edge survives only when both endpoints rank it inside their own
// cap, so survival is a property of the pair, independent of processing
// order. Since survivors are a subset of every endpoint's top selection, no
// node exceeds the cap afterwards and a repeat pass removes nothing.
func (o *Optimizer) capConnections(g *graph.Graph) int {
	limit := o.cfg.MaxConnectionsPerNode
	if limit <= 0 || len(g.Edges) == 0 {
		return 0
	}

	incident := make(map[string][]*graph.Edge, len(g.Nodes))
	for _, e := range g.Edges {
		incident[e.Source] = append(incident[e.Source], e)
		incident[e.Target] = append(incident[e.Target], e)
	}

	// Each endpoint endorses its top edges; an edge needs both votes.
	endorsements := make(map[*graph.Edge]int, len(g.Edges))
	for _, edges := range incident {
		sort.Slice(edges, func(i, j int) bool { return rankLess(edges[i], edges[j]) })
		for i, e := range edges {
			if i >= limit {
				break
			}
			endorsements[e]++
		}
	}

	kept := g.Edges[:0]
	capped := 0
	for _, e := range g.Edges {
		if endorsements[e] < 2 {
			capped++
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	if capped > 0 {
		g.RebuildIndices()
	}
	return capped
}

// rankLess orders a node's incident edges for cap selection: stronger first,
// then clinically more relevant, then earlier build sequence.
func rankLess(a, b *graph.Edge) bool {
	if a.Strength != b.Strength {
		return a.Strength > b.Strength
	}
	if a.ClinicalRelevance != b.ClinicalRelevance {
		return a.ClinicalRelevance > b.ClinicalRelevance
	}
	return a.Seq < b.Seq
}
