// Package pipeline orchestrates research cycles: screen the literature,
// mine the accepted papers for concepts, grow the registry, build and
// optimize the graph, persist everything and render the vault. The pipeline
// retains its registry, evidence index and last raw build between runs, so
// an incremental sync can re-score only the pairs a new batch of papers
// actually touches instead of rebuilding from scratch.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"kinegraph/internal/analysis"
	"kinegraph/internal/analyzer"
	"kinegraph/internal/builder"
	"kinegraph/internal/config"
	"kinegraph/internal/generator"
	"kinegraph/internal/graph"
	"kinegraph/internal/logging"
	"kinegraph/internal/optimizer"
	"kinegraph/internal/registry"
	"kinegraph/internal/scoring"
	"kinegraph/internal/screener"
	"kinegraph/internal/storage"
)

// ReportFileName is the JSON run report written into the vault directory.
const ReportFileName = "cycle_report.json"

// PaperSource yields screened papers. *screener.Screener satisfies it; tests
// substitute a canned source.
type PaperSource interface {
	Screen(ctx context.Context, query string, limit int) (*screener.Result, error)
}

// Pipeline runs research cycles against one store and one vault directory.
// The stored graph is always the optimized snapshot the vault was rendered
// from; the un-optimized build is kept in memory for Sync to carry edges
// from. Not safe for concurrent use.
type Pipeline struct {
	source PaperSource
	store  storage.Store
	cfg    *config.Config
	logger *log.Logger

	analyzer  *analyzer.Analyzer
	builder   *builder.Builder
	optimizer *optimizer.Optimizer

	reg      *registry.Registry
	evidence *scoring.EvidenceIndex
	papers   []screener.Paper
	seen     map[string]bool
	raw      *graph.Graph // last full scoring result, kept for Sync
	view     *graph.Graph // optimized clone of raw, what store and vault see
}

type ingestResult struct {
	Touched   map[string]bool
	Conflicts []registry.TypeConflict
	Evidence  int
}

func New(source PaperSource, store storage.Store, cfg *config.Config, logger *log.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	evidence := scoring.NewEvidenceIndex()
	return &Pipeline{
		source:    source,
		store:     store,
		cfg:       cfg,
		logger:    logger,
		analyzer:  analyzer.New(logger),
		builder:   builder.New(scoring.NewScorer(nil, evidence), cfg.Graph, logger),
		optimizer: optimizer.New(cfg.Graph, logger),
		reg:       registry.New(logger),
		evidence:  evidence,
		seen:      make(map[string]bool),
	}
}

// Graph returns the optimized graph from the last run, or nil before any.
func (p *Pipeline) Graph() *graph.Graph {
	return p.view
}

// Papers returns the accepted corpus in ingestion order.
func (p *Pipeline) Papers() []screener.Paper {
	return p.papers
}

// Cycle runs one full research cycle: screen, analyze, ingest, full build,
// optimize, persist, render. An empty query and a non-positive limit fall
// back to the configured defaults. A cycle that finds no unseen papers stops
// after screening and leaves the previous vault untouched.
func (p *Pipeline) Cycle(ctx context.Context, query string, limit int) (*CycleReport, error) {
	started := time.Now().UTC()
	printBanner("COMPENSATION RESEARCH CYCLE - " + started.Format("2006-01-02 15:04"))

	report := NewCycleReport("cycle", query, p.cfg.Vault.Dir)

	fmt.Println("Step 1/5: Screening for compensation papers...")
	fresh, found, err := p.screenStage(ctx, report, query, limit)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		fmt.Println("   No new papers found this cycle")
		report.AddSignal("no_new_papers", "screen", "info",
			"screening returned no unseen papers", float64(found))
		p.summarize(report, found, 0)
		if err := p.recordRun(ctx, report.RunID, "cycle", query, started, found, 0); err != nil {
			return nil, err
		}
		return report, report.Save(p.reportPath())
	}
	fmt.Printf("   Found %d papers for analysis\n", len(fresh))

	fmt.Println("Step 2/5: Performing 5WHY analysis...")
	analyses := p.analyzeStage(report, fresh)
	ing, err := p.ingestStage(report, fresh, analyses)
	if err != nil {
		return nil, err
	}

	fmt.Println("Step 3/5: Building node connections...")
	if err := p.buildStage(ctx, report); err != nil {
		return nil, err
	}
	p.optimizeStage(report)
	fmt.Printf("   Generated %d connections across %d nodes\n", len(p.view.Edges), len(p.view.Nodes))

	fmt.Println("Step 4/5: Persisting papers, graph and conflicts...")
	if err := p.persistStage(ctx, report, fresh, ing.Conflicts); err != nil {
		return nil, err
	}
	if err := p.recordRun(ctx, report.RunID, "cycle", query, started, found, len(fresh)); err != nil {
		return nil, err
	}

	fmt.Println("Step 5/5: Generating research vault...")
	priorities, err := p.generateStage(report)
	if err != nil {
		return nil, err
	}

	p.summarize(report, found, len(fresh))
	if err := report.Save(p.reportPath()); err != nil {
		return nil, fmt.Errorf("failed to save cycle report: %w", err)
	}

	printBanner(fmt.Sprintf("CYCLE COMPLETED - Duration: %.1fs", time.Since(started).Seconds()))
	fmt.Printf("Papers Analyzed: %d\n", len(fresh))
	fmt.Printf("Total Network Size: %d nodes, %d connections\n", len(p.view.Nodes), len(p.view.Edges))
	for i, area := range priorities {
		if i == 0 {
			fmt.Println("Priority Areas:")
		}
		fmt.Printf("   %d. %s\n", i+1, area)
	}
	return report, nil
}

// Sync ingests an externally screened batch and refreshes the graph by
// re-scoring only the pairs the batch touches; untouched edges are carried
// from the previous build, so the result matches a full rebuild over the
// same corpus. Without a previous build it falls back to a full one.
func (p *Pipeline) Sync(ctx context.Context, papers []screener.Paper) (*CycleReport, error) {
	started := time.Now().UTC()
	report := NewCycleReport("sync", "", p.cfg.Vault.Dir)

	fresh := p.dedup(papers)
	if len(fresh) == 0 {
		fmt.Println("✅ No new papers to sync.")
		report.AddSignal("no_new_papers", "ingest", "info",
			"sync batch held no unseen papers", float64(len(papers)))
		p.summarize(report, len(papers), 0)
		if err := p.recordRun(ctx, report.RunID, "sync", "", started, len(papers), 0); err != nil {
			return nil, err
		}
		return report, report.Save(p.reportPath())
	}
	fmt.Printf("📝 Syncing %d new papers into the graph...\n", len(fresh))

	analyses := p.analyzeStage(report, fresh)
	ing, err := p.ingestStage(report, fresh, analyses)
	if err != nil {
		return nil, err
	}

	if err := p.rescoreStage(ctx, report, ing.Touched); err != nil {
		return nil, err
	}
	p.optimizeStage(report)
	fmt.Printf("📊 Graph update: %d nodes, %d connections after re-scoring %d touched nodes.\n",
		len(p.view.Nodes), len(p.view.Edges), len(ing.Touched))
	p.impactStage(report, ing.Touched)

	if err := p.persistStage(ctx, report, fresh, ing.Conflicts); err != nil {
		return nil, err
	}
	if err := p.recordRun(ctx, report.RunID, "sync", "", started, len(papers), len(fresh)); err != nil {
		return nil, err
	}
	if _, err := p.generateStage(report); err != nil {
		return nil, err
	}

	p.summarize(report, len(papers), len(fresh))
	fmt.Println("✅ Sync complete.")
	return report, report.Save(p.reportPath())
}

// Rebuild discards the in-memory state and rebuilds the graph from every
// stored paper, then persists and renders the result. Used when scoring
// rules or pattern tables changed after the corpus was collected.
func (p *Pipeline) Rebuild(ctx context.Context) (*CycleReport, error) {
	stored, err := p.store.Papers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored papers: %w", err)
	}

	started := time.Now().UTC()
	report := NewCycleReport("build", "", p.cfg.Vault.Dir)

	p.reset()
	fresh := p.dedup(stored)
	fmt.Printf("🔄 Rebuilding graph from %d stored papers...\n", len(fresh))

	analyses := p.analyzeStage(report, fresh)
	ing, err := p.ingestStage(report, fresh, analyses)
	if err != nil {
		return nil, err
	}
	if err := p.buildStage(ctx, report); err != nil {
		return nil, err
	}
	p.optimizeStage(report)

	if err := p.persistStage(ctx, report, nil, ing.Conflicts); err != nil {
		return nil, err
	}
	if err := p.recordRun(ctx, report.RunID, "build", "", started, len(stored), len(fresh)); err != nil {
		return nil, err
	}
	if _, err := p.generateStage(report); err != nil {
		return nil, err
	}

	p.summarize(report, len(stored), len(fresh))
	fmt.Printf("✅ Rebuild complete: %d nodes, %d connections.\n", len(p.view.Nodes), len(p.view.Edges))
	return report, report.Save(p.reportPath())
}

// Restore replays the stored corpus through analysis and a full build so an
// incremental sync has a previous graph to carry edges from. Nothing is
// persisted or rendered.
func (p *Pipeline) Restore(ctx context.Context) error {
	stored, err := p.store.Papers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored papers: %w", err)
	}
	if len(stored) == 0 {
		return nil
	}

	p.reset()
	fresh := p.dedup(stored)
	analyses := p.analyzeStage(nil, fresh)
	if _, err := p.ingestStage(nil, fresh, analyses); err != nil {
		return err
	}
	if err := p.buildStage(ctx, nil); err != nil {
		return err
	}
	p.optimizeStage(nil)

	p.logger.Info("[Pipeline] State restored",
		"papers", len(fresh), "nodes", len(p.view.Nodes), "edges", len(p.view.Edges))
	return nil
}

func (p *Pipeline) screenStage(ctx context.Context, report *CycleReport, query string, limit int) ([]screener.Paper, int, error) {
	h := report.BeginStage("screen")
	res, err := p.source.Screen(ctx, query, limit)
	if err != nil {
		report.EndStage(h, nil, err)
		return nil, 0, fmt.Errorf("failed to screen papers: %w", err)
	}

	fresh := p.dedup(res.Papers)
	report.EndStage(h, map[string]float64{
		"found":          float64(res.Found),
		"field_pass":     float64(res.FieldPass),
		"quality_pass":   float64(res.QualityPass),
		"relevance_pass": float64(res.RelevancePass),
		"accepted":       float64(len(res.Papers)),
		"new":            float64(len(fresh)),
	}, nil)
	return fresh, res.Found, nil
}

func (p *Pipeline) analyzeStage(report *CycleReport, papers []screener.Paper) []analyzer.Analysis {
	h := report.BeginStage("analyze")
	analyses := p.analyzer.AnalyzeAll(papers)

	patterns := 0
	maxDepth := 0
	for _, an := range analyses {
		patterns += len(an.Patterns)
		if an.WhyDepth > maxDepth {
			maxDepth = an.WhyDepth
		}
	}
	report.EndStage(h, map[string]float64{
		"papers":        float64(len(analyses)),
		"patterns":      float64(patterns),
		"max_why_depth": float64(maxDepth),
	}, nil)
	return analyses
}

// ingestStage feeds every analysis into the registry and the evidence index
// and reports which node ids the batch touched. Type conflicts do not stop
// the batch; each one becomes a warning signal.
func (p *Pipeline) ingestStage(report *CycleReport, papers []screener.Paper, analyses []analyzer.Analysis) (*ingestResult, error) {
	h := report.BeginStage("ingest")
	before := len(p.reg.Conflicts())

	touched := make(map[string]bool)
	items := 0
	for _, an := range analyses {
		ids, err := p.reg.Ingest(an.Requests)
		if err != nil {
			report.EndStage(h, nil, err)
			return nil, fmt.Errorf("failed to ingest analysis of %s: %w", an.PaperID, err)
		}
		for _, id := range ids {
			touched[id] = true
		}
		for _, ev := range an.Evidence {
			p.evidence.Add(ev.A, ev.B, ev.Item)
			items++
		}
	}
	p.papers = append(p.papers, papers...)

	conflicts := append([]registry.TypeConflict(nil), p.reg.Conflicts()[before:]...)
	for _, c := range conflicts {
		report.AddSignal("type_conflict", "ingest", "warning",
			fmt.Sprintf("%q already registered as %s, request for %s skipped", c.Name, c.ExistingType, c.RequestedType), 0)
	}

	report.EndStage(h, map[string]float64{
		"nodes":     float64(p.reg.Len()),
		"touched":   float64(len(touched)),
		"evidence":  float64(items),
		"conflicts": float64(len(conflicts)),
	}, nil)
	return &ingestResult{Touched: touched, Conflicts: conflicts, Evidence: items}, nil
}

func (p *Pipeline) buildStage(ctx context.Context, report *CycleReport) error {
	h := report.BeginStage("build")
	raw, err := p.builder.Build(ctx, p.reg.NodeList())
	if err != nil {
		report.EndStage(h, nil, err)
		return fmt.Errorf("failed to build graph: %w", err)
	}
	p.raw = raw
	report.EndStage(h, map[string]float64{
		"nodes": float64(len(raw.Nodes)),
		"edges": float64(len(raw.Edges)),
	}, nil)
	return nil
}

func (p *Pipeline) rescoreStage(ctx context.Context, report *CycleReport, touched map[string]bool) error {
	if p.raw == nil {
		return p.buildStage(ctx, report)
	}

	h := report.BeginStage("rescore")
	raw, err := p.builder.Rescore(ctx, p.reg.NodeList(), p.raw.Edges, touched)
	if err != nil {
		report.EndStage(h, nil, err)
		return fmt.Errorf("failed to re-score graph: %w", err)
	}
	p.raw = raw
	report.EndStage(h, map[string]float64{
		"nodes":   float64(len(raw.Nodes)),
		"edges":   float64(len(raw.Edges)),
		"touched": float64(len(touched)),
	}, nil)
	return nil
}

func (p *Pipeline) optimizeStage(report *CycleReport) {
	h := report.BeginStage("optimize")
	view := p.raw.Clone()
	res := p.optimizer.Optimize(view)
	p.view = view
	report.EndStage(h, map[string]float64{
		"boosted": float64(res.Boosted),
		"pruned":  float64(res.Pruned),
		"capped":  float64(res.Capped),
		"edges":   float64(res.Edges),
	}, nil)
}

// impactStage reports how far a synced batch reached into the graph.
func (p *Pipeline) impactStage(report *CycleReport, touched map[string]bool) {
	h := report.BeginStage("impact")
	impact := analysis.New(p.view).Impact(touched)
	fmt.Println("🔍 Analyzing impact...")
	fmt.Printf("  -> %d concepts directly affected\n", len(impact.Direct))
	fmt.Printf("  -> %d concepts indirectly affected (connected)\n", len(impact.Indirect))
	report.EndStage(h, map[string]float64{
		"direct":   float64(len(impact.Direct)),
		"indirect": float64(len(impact.Indirect)),
	}, nil)
}

func (p *Pipeline) persistStage(ctx context.Context, report *CycleReport, fresh []screener.Paper, conflicts []registry.TypeConflict) error {
	h := report.BeginStage("persist")
	if len(fresh) > 0 {
		if err := p.store.SavePapers(ctx, fresh); err != nil {
			report.EndStage(h, nil, err)
			return fmt.Errorf("failed to save papers: %w", err)
		}
	}
	if err := p.store.SaveGraph(ctx, p.view); err != nil {
		report.EndStage(h, nil, err)
		return fmt.Errorf("failed to save graph: %w", err)
	}
	if err := p.store.SaveConflicts(ctx, conflicts); err != nil {
		report.EndStage(h, nil, err)
		return fmt.Errorf("failed to save conflicts: %w", err)
	}
	report.EndStage(h, map[string]float64{
		"papers":    float64(len(fresh)),
		"nodes":     float64(len(p.view.Nodes)),
		"edges":     float64(len(p.view.Edges)),
		"conflicts": float64(len(conflicts)),
	}, nil)
	return nil
}

func (p *Pipeline) generateStage(report *CycleReport) ([]string, error) {
	h := report.BeginStage("generate")
	priorities := PriorityAreas(p.papers, p.view)
	gen := generator.New(p.cfg.Vault.Dir, p.logger)
	if err := gen.Generate(p.view, priorities); err != nil {
		report.EndStage(h, nil, err)
		return nil, fmt.Errorf("failed to generate vault: %w", err)
	}
	if report != nil {
		report.Priorities = priorities
	}
	report.EndStage(h, map[string]float64{
		"priorities": float64(len(priorities)),
	}, nil)
	return priorities, nil
}

func (p *Pipeline) recordRun(ctx context.Context, runID, kind, query string, started time.Time, found, accepted int) error {
	run := storage.Run{
		ID:             runID,
		Kind:           kind,
		Query:          query,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		PapersFound:    found,
		PapersAccepted: accepted,
	}
	if p.view != nil {
		run.NodeCount = len(p.view.Nodes)
		run.EdgeCount = len(p.view.Edges)
	}
	if err := p.store.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// dedup filters out papers already in the corpus and marks the rest seen.
func (p *Pipeline) dedup(in []screener.Paper) []screener.Paper {
	var fresh []screener.Paper
	for _, paper := range in {
		if paper.ID == "" || p.seen[paper.ID] {
			continue
		}
		p.seen[paper.ID] = true
		fresh = append(fresh, paper)
	}
	return fresh
}

// reset drops all retained state. The builder is rebuilt because its scorer
// holds the evidence index by reference.
func (p *Pipeline) reset() {
	p.reg = registry.New(p.logger)
	p.evidence = scoring.NewEvidenceIndex()
	p.builder = builder.New(scoring.NewScorer(nil, p.evidence), p.cfg.Graph, p.logger)
	p.papers = nil
	p.seen = make(map[string]bool)
	p.raw = nil
	p.view = nil
}

func (p *Pipeline) summarize(report *CycleReport, found, accepted int) {
	report.Summary.PapersFound = found
	report.Summary.PapersAccepted = accepted
	if p.view != nil {
		report.Summary.NodeCount = len(p.view.Nodes)
		report.Summary.EdgeCount = len(p.view.Edges)
		report.Summary.MeanStrength = meanStrength(p.view)
	}
}

func (p *Pipeline) reportPath() string {
	return filepath.Join(p.cfg.Vault.Dir, ReportFileName)
}

func meanStrength(g *graph.Graph) float64 {
	if g == nil || len(g.Edges) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range g.Edges {
		sum += e.Strength
	}
	return sum / float64(len(g.Edges))
}

func printBanner(title string) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 60))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 60))
}
