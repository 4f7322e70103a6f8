package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"kinegraph/internal/config"
	"kinegraph/internal/graph"
	"kinegraph/internal/registry"
	"kinegraph/internal/screener"
	"kinegraph/internal/storage"
)

type fakeSource struct {
	result *screener.Result
	err    error
	query  string
	limit  int
	calls  int
}

func (f *fakeSource) Screen(_ context.Context, query string, limit int) (*screener.Result, error) {
	f.calls++
	f.query = query
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func screenResult(papers ...screener.Paper) *screener.Result {
	return &screener.Result{
		Found:         len(papers),
		FieldPass:     len(papers),
		QualityPass:   len(papers),
		RelevancePass: len(papers),
		Papers:        papers,
	}
}

func cyclePaper(id, title, abstract string, quality float64) screener.Paper {
	return screener.Paper{
		ID:        id,
		DOI:       "https://doi.org/10.1000/" + id,
		Title:     title,
		Journal:   "Physical Therapy",
		Year:      2020,
		CitedBy:   15,
		Abstract:  abstract,
		Quality:   screener.QualityScore{Design: quality, Source: quality, Impact: quality, Overall: quality},
		Relevance: 3,
	}
}

// hipBatch triggers the gluteus medius rule, tibiaBatch the tibialis
// posterior rule, followupBatch revisits the hip pattern and adds the
// shoulder region.
func hipBatch() []screener.Paper {
	return []screener.Paper{
		cyclePaper("W-GM-1", "Hip abductor weakness in runners with chronic gait deviation",
			"Compensation by the tensor fasciae latae follows hip abductor weakness and produces hip drop during stance.", 0.72),
		cyclePaper("W-TP-1", "Tibialis posterior dysfunction and the collapsing arch",
			"Tibialis posterior dysfunction precedes foot pronation and medial arch collapse in persistent cases.", 0.64),
	}
}

func followupBatch() []screener.Paper {
	return []screener.Paper{
		cyclePaper("W-GM-2", "Gluteus medius weakness and knee valgus in the single leg squat",
			"Gluteus medius weakness drives knee valgus and hip drop, a compensation strategy that becomes chronic.", 0.81),
		cyclePaper("W-SA-1", "Serratus anterior dysfunction in overhead athletes",
			"Serratus anterior dysfunction presents with scapular winging and upper trapezius substitution.", 0.58),
	}
}

func newTestPipeline(t *testing.T, src PaperSource) (*Pipeline, *storage.SQLiteStore, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	st, err := storage.NewSQLiteStore(filepath.Join(dir, "kinegraph.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Vault.Dir = filepath.Join(dir, "vault")
	return New(src, st, cfg, nil), st, cfg
}

func TestCycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{result: screenResult(hipBatch()...)}
	p, st, cfg := newTestPipeline(t, src)

	report, err := p.Cycle(ctx, "", 0)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}

	t.Run("report covers the whole run", func(t *testing.T) {
		assert.Equal(t, "cycle", report.Kind)
		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, 2, report.Summary.PapersFound)
		assert.Equal(t, 2, report.Summary.PapersAccepted)
		assert.Equal(t, 7, report.Summary.StageCount)
		assert.Equal(t, 0, report.Summary.FailedStages)
		assert.NotEmpty(t, report.Priorities)
	})

	t.Run("graph holds both discovered patterns", func(t *testing.T) {
		g := p.Graph()
		if g == nil {
			t.Fatal("expected a built graph")
		}
		gm := g.NodeByID(registry.NodeID(graph.NodePattern, "Gluteus Medius Weakness"))
		if gm == nil {
			t.Fatal("expected the gluteus medius pattern node")
		}
		assert.Equal(t, "hip", gm.Attributes.Region)
		assert.NotNil(t, g.NodeByID(registry.NodeID(graph.NodePattern, "Tibialis Posterior Dysfunction")))
		assert.NotEmpty(t, g.Edges)
	})

	t.Run("store matches the in-memory view", func(t *testing.T) {
		papers, err := st.Papers(ctx)
		if err != nil {
			t.Fatalf("papers: %v", err)
		}
		assert.Len(t, papers, 2)

		loaded, err := st.LoadGraph(ctx)
		if err != nil {
			t.Fatalf("load graph: %v", err)
		}
		assert.Equal(t, p.Graph().Nodes, loaded.Nodes)
		assert.Equal(t, p.Graph().Edges, loaded.Edges)

		stats, err := st.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.LastRun == nil {
			t.Fatal("expected a recorded run")
		}
		assert.Equal(t, report.RunID, stats.LastRun.ID)
		assert.Equal(t, "cycle", stats.LastRun.Kind)
		assert.Equal(t, 2, stats.LastRun.PapersAccepted)
	})

	t.Run("vault and report written", func(t *testing.T) {
		for _, name := range []string{"Dashboard.md", "Network.md", "network.json"} {
			if _, err := os.Stat(filepath.Join(cfg.Vault.Dir, name)); err != nil {
				t.Fatalf("missing vault file %s: %v", name, err)
			}
		}

		data, err := os.ReadFile(filepath.Join(cfg.Vault.Dir, ReportFileName))
		if err != nil {
			t.Fatalf("read report: %v", err)
		}
		var saved CycleReport
		if err := json.Unmarshal(data, &saved); err != nil {
			t.Fatalf("decode report: %v", err)
		}
		assert.Equal(t, report.RunID, saved.RunID)
	})
}

func TestCycle_PassesQueryAndLimitThrough(t *testing.T) {
	src := &fakeSource{result: screenResult(hipBatch()...)}
	p, _, _ := newTestPipeline(t, src)

	if _, err := p.Cycle(context.Background(), "ankle compensation", 7); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	assert.Equal(t, "ankle compensation", src.query)
	assert.Equal(t, 7, src.limit)
}

func TestCycle_NoNewPapersStopsAfterScreening(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{result: screenResult(hipBatch()...)}
	p, st, _ := newTestPipeline(t, src)

	if _, err := p.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	before := p.Graph()

	report, err := p.Cycle(ctx, "", 0)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	assert.Equal(t, 0, report.Summary.PapersAccepted)
	assert.Equal(t, 1, report.Summary.StageCount)
	assert.Same(t, before, p.Graph())

	found := false
	for _, s := range report.Signals {
		if s.Code == "no_new_papers" {
			found = true
		}
	}
	assert.True(t, found, "expected a no_new_papers signal")

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	assert.Equal(t, 2, stats.Papers)
	assert.Equal(t, 0, stats.LastRun.PapersAccepted)
}

func TestCycle_ScreenFailureAborts(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errors.New("openalex unavailable")}
	p, st, _ := newTestPipeline(t, src)

	_, err := p.Cycle(ctx, "", 0)
	if err == nil {
		t.Fatal("expected the cycle to fail")
	}
	assert.Contains(t, err.Error(), "failed to screen papers")

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	assert.Equal(t, 0, stats.Papers)
	assert.Nil(t, stats.LastRun)
}

func TestSync_MatchesFullRebuild(t *testing.T) {
	ctx := context.Background()

	incremental, _, _ := newTestPipeline(t, &fakeSource{result: screenResult(hipBatch()...)})
	if _, err := incremental.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	syncReport, err := incremental.Sync(ctx, followupBatch())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	all := append(hipBatch(), followupBatch()...)
	full, _, _ := newTestPipeline(t, &fakeSource{result: screenResult(all...)})
	if _, err := full.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("full cycle: %v", err)
	}

	assert.Equal(t, full.Graph().Nodes, incremental.Graph().Nodes)
	assert.Equal(t, full.Graph().Edges, incremental.Graph().Edges)
	assert.Equal(t, "sync", syncReport.Kind)
	assert.Equal(t, 2, syncReport.Summary.PapersAccepted)
	assert.Len(t, incremental.Papers(), 4)
}

func TestSync_WithoutPreviousBuildFallsBackToFull(t *testing.T) {
	ctx := context.Background()
	p, st, _ := newTestPipeline(t, &fakeSource{})

	report, err := p.Sync(ctx, hipBatch())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	stages := make([]string, 0, len(report.Stages))
	for _, s := range report.Stages {
		stages = append(stages, s.Name)
	}
	assert.Contains(t, stages, "build")
	assert.NotContains(t, stages, "rescore")

	papers, err := st.Papers(ctx)
	if err != nil {
		t.Fatalf("papers: %v", err)
	}
	assert.Len(t, papers, 2)
	assert.NotNil(t, p.Graph())
}

func TestSync_DuplicateBatchIsANoOp(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t, &fakeSource{result: screenResult(hipBatch()...)})

	if _, err := p.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	before := p.Graph()

	report, err := p.Sync(ctx, hipBatch())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	assert.Equal(t, 0, report.Summary.PapersAccepted)
	assert.Same(t, before, p.Graph())
}

func TestRebuild_FromStoredPapers(t *testing.T) {
	ctx := context.Background()
	first, st, _ := newTestPipeline(t, &fakeSource{result: screenResult(hipBatch()...)})
	if _, err := first.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	rebuilt := New(&fakeSource{}, st, first.cfg, nil)
	report, err := rebuilt.Rebuild(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	assert.Equal(t, "build", report.Kind)
	assert.Equal(t, first.Graph().Nodes, rebuilt.Graph().Nodes)
	assert.Equal(t, first.Graph().Edges, rebuilt.Graph().Edges)

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	assert.Equal(t, "build", stats.LastRun.Kind)
}

func TestRestore_PreparesIncrementalSync(t *testing.T) {
	ctx := context.Background()
	first, st, _ := newTestPipeline(t, &fakeSource{result: screenResult(hipBatch()...)})
	if _, err := first.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	resumed := New(&fakeSource{}, st, first.cfg, nil)
	if err := resumed.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	report, err := resumed.Sync(ctx, followupBatch())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	assert.Equal(t, 2, report.Summary.PapersAccepted)

	all := append(hipBatch(), followupBatch()...)
	full, _, _ := newTestPipeline(t, &fakeSource{result: screenResult(all...)})
	if _, err := full.Cycle(ctx, "", 0); err != nil {
		t.Fatalf("full cycle: %v", err)
	}
	assert.Equal(t, full.Graph().Nodes, resumed.Graph().Nodes)
	assert.Equal(t, full.Graph().Edges, resumed.Graph().Edges)
}
