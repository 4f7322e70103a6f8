package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kinegraph/internal/graph"
	"kinegraph/internal/registry"
	"kinegraph/internal/screener"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the screened-paper corpus, the latest graph snapshot
// and the run history in one SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			doi TEXT,
			title TEXT,
			journal TEXT,
			year INTEGER,
			cited_by INTEGER,
			abstract TEXT,
			concepts JSON,
			quality_design REAL,
			quality_source REAL,
			quality_impact REAL,
			quality_overall REAL,
			relevance INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			type TEXT,
			name TEXT,
			normalized_name TEXT,
			attributes JSON
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			source TEXT,
			target TEXT,
			type TEXT,
			strength REAL,
			components JSON,
			evidence JSON,
			clinical_relevance REAL,
			clinical_priority INTEGER,
			boosted INTEGER,
			seq INTEGER,
			PRIMARY KEY (source, target)
		);`,
		`CREATE TABLE IF NOT EXISTS conflicts (
			name TEXT,
			existing_id TEXT,
			existing_type TEXT,
			requested_type TEXT,
			at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT,
			query TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			papers_found INTEGER,
			papers_accepted INTEGER,
			node_count INTEGER,
			edge_count INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);`,
		`CREATE INDEX IF NOT EXISTS idx_papers_quality ON papers(quality_overall);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- PaperStore Implementation ---

// SavePapers upserts screened papers. The corpus accumulates across runs; a
// re-screened paper keeps its id and takes the newer grading.
func (s *SQLiteStore) SavePapers(ctx context.Context, papers []screener.Paper) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO papers (id, doi, title, journal, year, cited_by, abstract, concepts,
			quality_design, quality_source, quality_impact, quality_overall, relevance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doi=excluded.doi,
			title=excluded.title,
			journal=excluded.journal,
			year=excluded.year,
			cited_by=excluded.cited_by,
			abstract=excluded.abstract,
			concepts=excluded.concepts,
			quality_design=excluded.quality_design,
			quality_source=excluded.quality_source,
			quality_impact=excluded.quality_impact,
			quality_overall=excluded.quality_overall,
			relevance=excluded.relevance
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range papers {
		concepts, _ := json.Marshal(p.Concepts)
		if _, err := stmt.Exec(p.ID, p.DOI, p.Title, p.Journal, p.Year, p.CitedBy, p.Abstract, concepts,
			p.Quality.Design, p.Quality.Source, p.Quality.Impact, p.Quality.Overall, p.Relevance); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Papers returns every stored paper, best quality first.
func (s *SQLiteStore) Papers(ctx context.Context) ([]screener.Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doi, title, journal, year, cited_by, abstract, concepts,
			quality_design, quality_source, quality_impact, quality_overall, relevance
		FROM papers ORDER BY quality_overall DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	var papers []screener.Paper
	for rows.Next() {
		var p screener.Paper
		var concepts []byte
		if err := rows.Scan(&p.ID, &p.DOI, &p.Title, &p.Journal, &p.Year, &p.CitedBy, &p.Abstract, &concepts,
			&p.Quality.Design, &p.Quality.Source, &p.Quality.Impact, &p.Quality.Overall, &p.Relevance); err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		if len(concepts) > 0 {
			_ = json.Unmarshal(concepts, &p.Concepts)
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// --- GraphStore Implementation ---

// SaveGraph replaces the stored graph snapshot with g in one transaction.
// The node and edge tables hold exactly one snapshot; history lives in the
// runs table.
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edges"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return err
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, type, name, normalized_name, attributes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type=excluded.type,
			name=excluded.name,
			normalized_name=excluded.normalized_name,
			attributes=excluded.attributes
	`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		attrs, _ := json.Marshal(n.Attributes)
		if _, err := nodeStmt.Exec(n.ID, string(n.Type), n.Name, n.NormalizedName, attrs); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (source, target, type, strength, components, evidence,
			clinical_relevance, clinical_priority, boosted, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges {
		components, _ := json.Marshal(e.Components)
		evidence, _ := json.Marshal(e.Evidence)
		if _, err := edgeStmt.Exec(e.Source, e.Target, string(e.Type), e.Strength, components, evidence,
			e.ClinicalRelevance, e.ClinicalPriority, e.Boosted, e.Seq); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadGraph rebuilds the stored graph snapshot. Edges come back in builder
// sequence order, so pruning tie-breaks survive a round trip. BuiltAt is
// restored from the most recent recorded run; a graph saved outside a run
// loads with a zero BuiltAt.
func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	rows, err := s.db.QueryContext(ctx, "SELECT id, type, name, normalized_name, attributes FROM nodes")
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n graph.Node
		var typ string
		var attrs []byte
		if err := rows.Scan(&n.ID, &typ, &n.Name, &n.NormalizedName, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Type = graph.NodeType(typ)
		if len(attrs) > 0 {
			_ = json.Unmarshal(attrs, &n.Attributes)
		}
		g.AddNode(&n)
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT source, target, type, strength, components, evidence,
			clinical_relevance, clinical_priority, boosted, seq
		FROM edges ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e graph.Edge
		var typ string
		var components, evidence []byte
		if err := edgeRows.Scan(&e.Source, &e.Target, &typ, &e.Strength, &components, &evidence,
			&e.ClinicalRelevance, &e.ClinicalPriority, &e.Boosted, &e.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Type = graph.ConnectionType(typ)
		if len(components) > 0 {
			_ = json.Unmarshal(components, &e.Components)
		}
		if len(evidence) > 0 {
			_ = json.Unmarshal(evidence, &e.Evidence)
		}
		g.AddEdge(&e)
	}

	g.Meta.NodeCount = len(g.Nodes)
	g.Meta.EdgeCount = len(g.Edges)

	run, err := s.lastRun(ctx)
	if err != nil {
		return nil, err
	}
	if run != nil {
		g.Meta.BuiltAt = run.FinishedAt
	}

	return g, nil
}

// SaveConflicts appends type-conflict audit entries.
func (s *SQLiteStore) SaveConflicts(ctx context.Context, conflicts []registry.TypeConflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conflicts (name, existing_id, existing_type, requested_type, at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range conflicts {
		if _, err := stmt.Exec(c.Name, c.ExistingID, string(c.ExistingType), string(c.RequestedType), c.At.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordRun appends a run to the history table.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, query, started_at, finished_at,
			papers_found, papers_accepted, node_count, edge_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.Query, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.PapersFound, run.PapersAccepted, run.NodeCount, run.EdgeCount)

	return err
}

func (s *SQLiteStore) lastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, query, started_at, finished_at,
			papers_found, papers_accepted, node_count, edge_count
		FROM runs ORDER BY finished_at DESC LIMIT 1`)

	var run Run
	err := row.Scan(&run.ID, &run.Kind, &run.Query, &run.StartedAt, &run.FinishedAt,
		&run.PapersFound, &run.PapersAccepted, &run.NodeCount, &run.EdgeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Stats summarizes the stored corpus.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM papers", &st.Papers},
		{"SELECT COUNT(*) FROM nodes", &st.Nodes},
		{"SELECT COUNT(*) FROM edges", &st.Edges},
		{"SELECT COUNT(*) FROM conflicts", &st.Conflicts},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	var mean sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT AVG(strength) FROM edges").Scan(&mean); err != nil {
		return nil, err
	}
	if mean.Valid {
		st.MeanStrength = mean.Float64
	}

	run, err := s.lastRun(ctx)
	if err != nil {
		return nil, err
	}
	st.LastRun = run

	return st, nil
}
