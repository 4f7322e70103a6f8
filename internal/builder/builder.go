// Package builder assembles the clinical concept graph from a registered
// node set by scoring every unordered node pair and keeping the pairs that
// clear the connection threshold.
package builder

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"kinegraph/internal/config"
	"kinegraph/internal/graph"
	"kinegraph/internal/logging"
	"kinegraph/internal/scoring"
)

// InvalidInputError reports a node set the builder refuses to work on.
// Scoring shortfalls never produce it; only malformed input does.
type InvalidInputError struct {
	NodeID string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("invalid build input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid build input: node %q: %s", e.NodeID, e.Reason)
}

// Builder scores node pairs and materializes edges. Safe for reuse across
// builds; each Build produces an independent graph.
type Builder struct {
	scorer  *scoring.Scorer
	cfg     config.GraphConfig
	logger  *log.Logger
	workers int
}

func New(scorer *scoring.Scorer, cfg config.GraphConfig, logger *log.Logger) *Builder {
	if scorer == nil {
		scorer = scoring.NewScorer(nil, nil)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{
		scorer:  scorer,
		cfg:     cfg,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

type pair struct {
	a, b *graph.Node
}

// Build evaluates every unordered pair of the given nodes and returns the
// graph of connections at or above the connection threshold. The result is
// deterministic for a given node set and rule state regardless of worker
// scheduling: edges come out sorted by endpoint ids with a stable sequence
// number. Blank or duplicate node ids abort the build with an
// *InvalidInputError.
func (b *Builder) Build(ctx context.Context, nodes []*graph.Node) (*graph.Graph, error) {
	g := graph.NewGraph()
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			return nil, &InvalidInputError{Reason: "blank node id"}
		}
		if g.NodeByID(n.ID) != nil {
			return nil, &InvalidInputError{NodeID: n.ID, Reason: "duplicate node id"}
		}
		g.AddNode(n)
	}

	pairs := b.candidatePairs(g)
	edges, err := b.scorePairs(ctx, pairs)
	if err != nil {
		return nil, err
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	for i, e := range edges {
		e.Seq = i
		g.AddEdge(e)
	}
	g.Touch(time.Now())

	b.logger.Info("[Builder] Graph assembled",
		"nodes", len(g.Nodes), "candidate_pairs", len(pairs), "edges", len(g.Edges))
	return g, nil
}

// Rescore rebuilds the graph for nodes while scoring only the pairs with an
// endpoint in touched. Every kept edge whose endpoints both survive and stay
// untouched is carried over as-is, so an incremental sync produces the same
// graph a full Build would as long as untouched node attributes and evidence
// are in fact unchanged. Input validation matches Build.
func (b *Builder) Rescore(ctx context.Context, nodes []*graph.Node, kept []*graph.Edge, touched map[string]bool) (*graph.Graph, error) {
	g := graph.NewGraph()
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			return nil, &InvalidInputError{Reason: "blank node id"}
		}
		if g.NodeByID(n.ID) != nil {
			return nil, &InvalidInputError{NodeID: n.ID, Reason: "duplicate node id"}
		}
		g.AddNode(n)
	}

	var affected []pair
	for _, p := range b.candidatePairs(g) {
		if touched[p.a.ID] || touched[p.b.ID] {
			affected = append(affected, p)
		}
	}
	edges, err := b.scorePairs(ctx, affected)
	if err != nil {
		return nil, err
	}

	carried := 0
	for _, e := range kept {
		if touched[e.Source] || touched[e.Target] {
			continue
		}
		if g.NodeByID(e.Source) == nil || g.NodeByID(e.Target) == nil {
			continue
		}
		cp := *e
		cp.Evidence = append([]string(nil), e.Evidence...)
		edges = append(edges, &cp)
		carried++
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	for i, e := range edges {
		e.Seq = i
		g.AddEdge(e)
	}
	g.Touch(time.Now())

	b.logger.Info("[Builder] Graph rescored",
		"nodes", len(g.Nodes), "rescored_pairs", len(affected), "carried_edges", carried, "edges", len(g.Edges))
	return g, nil
}

// candidatePairs enumerates unordered pairs over id-sorted nodes, dropping
// pairs no scoring category can apply to before they reach a worker.
func (b *Builder) candidatePairs(g *graph.Graph) []pair {
	ids := g.NodeIDs()
	var pairs []pair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, bb := g.NodeByID(ids[i]), g.NodeByID(ids[j])
			if !scoring.Scoreable(a.Type, bb.Type) {
				continue
			}
			pairs = append(pairs, pair{a: a, b: bb})
		}
	}
	return pairs
}

func (b *Builder) scorePairs(ctx context.Context, pairs []pair) ([]*graph.Edge, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	workers := b.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}
	chunk := (len(pairs) + workers - 1) / workers

	var (
		mergeMu sync.Mutex
		edges   []*graph.Edge
	)
	eg, egCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(pairs); start += chunk {
		end := start + chunk
		if end > len(pairs) {
			end = len(pairs)
		}
		part := pairs[start:end]
		eg.Go(func() error {
			local := make([]*graph.Edge, 0, len(part)/4)
			for _, p := range part {
				select {
				case <-egCtx.Done():
					return egCtx.Err()
				default:
				}
				if e := b.scoreOne(p.a, p.b); e != nil {
					local = append(local, e)
				}
			}
			mergeMu.Lock()
			edges = append(edges, local...)
			mergeMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score node pairs: %w", err)
	}
	return edges, nil
}

// scoreOne turns a scored pair into an edge, or nil when the strength falls
// below the connection threshold.
func (b *Builder) scoreOne(a, bb *graph.Node) *graph.Edge {
	sc := b.scorer.Score(a, bb)
	if sc.Strength < b.cfg.ConnectionThreshold {
		return nil
	}

	src, dst := a.ID, bb.ID
	if dst < src {
		src, dst = dst, src
	}
	return &graph.Edge{
		Source:            src,
		Target:            dst,
		Type:              sc.Components.Dominant(),
		Strength:          sc.Strength,
		Components:        sc.Components,
		Evidence:          sc.Evidence,
		ClinicalRelevance: b.clinicalRelevance(sc),
		ClinicalPriority:  sc.ProtocolMatch,
	}
}

// clinicalRelevance blends the strongest raw category signal with the mean
// quality of the supporting papers.
func (b *Builder) clinicalRelevance(sc scoring.Score) float64 {
	category := sc.Raw.Anatomical
	for _, v := range []float64{sc.Raw.Functional, sc.Raw.Causal, sc.Raw.Therapeutic} {
		if v > category {
			category = v
		}
	}
	v := b.cfg.ClinicalWeight*category + b.cfg.EvidenceWeight*sc.MeanQuality
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
