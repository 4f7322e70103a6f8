package storage

import (
	"context"
	"time"

	"kinegraph/internal/graph"
	"kinegraph/internal/registry"
	"kinegraph/internal/screener"
)

// Store combines paper and graph persistence.
type Store interface {
	PaperStore
	GraphStore
	Close() error
}

// PaperStore persists the screened-paper corpus.
type PaperStore interface {
	// SavePapers upserts screened papers by OpenAlex id.
	SavePapers(ctx context.Context, papers []screener.Paper) error

	// Papers returns every stored paper, best quality first.
	Papers(ctx context.Context) ([]screener.Paper, error)
}

// GraphStore persists graph snapshots, conflict audits and run history.
type GraphStore interface {
	// SaveGraph replaces the stored graph snapshot with g.
	SaveGraph(ctx context.Context, g *graph.Graph) error

	// LoadGraph rebuilds the stored snapshot together with its pair index.
	LoadGraph(ctx context.Context) (*graph.Graph, error)

	// SaveConflicts appends node type-conflict audit entries.
	SaveConflicts(ctx context.Context, conflicts []registry.TypeConflict) error

	// RecordRun appends one research-cycle execution to the history.
	RecordRun(ctx context.Context, run Run) error

	// Stats summarizes the stored corpus.
	Stats(ctx context.Context) (*Stats, error)
}

// Run is one recorded research-cycle execution.
type Run struct {
	ID             string
	Kind           string
	Query          string
	StartedAt      time.Time
	FinishedAt     time.Time
	PapersFound    int
	PapersAccepted int
	NodeCount      int
	EdgeCount      int
}

// Stats summarizes the stored corpus for the stats command and the
// dashboard.
type Stats struct {
	Papers       int
	Nodes        int
	Edges        int
	Conflicts    int
	MeanStrength float64
	LastRun      *Run
}
