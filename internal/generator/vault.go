// Package generator renders a built concept graph into an Obsidian-style
// research vault: a dashboard, a network overview with a mermaid diagram,
// one note per concept, one note per connection, and a JSON export for
// force-directed graph viewers. Output is deterministic for a given graph,
// so re-running a build rewrites the vault to identical bytes.
package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"kinegraph/internal/analysis"
	"kinegraph/internal/graph"
	"kinegraph/internal/logging"
)

const stampLayout = "2006-01-02 15:04"

// Generator writes research vaults under a fixed directory.
type Generator struct {
	dir    string
	logger *log.Logger
}

func New(dir string, logger *log.Logger) *Generator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Generator{dir: dir, logger: logger}
}

// Dir returns the vault root.
func (gen *Generator) Dir() string {
	return gen.dir
}

// Generate writes the complete vault for one graph build: Dashboard.md,
// Network.md, network.json, one note per concept under patterns/, one note
// per paper under papers/ and one note per connection under connections/.
// Files from earlier builds are overwritten in place, never deleted.
func (gen *Generator) Generate(g *graph.Graph, priorities []string) error {
	an := analysis.New(g)
	titles := paperTitles(g)

	for _, dir := range []string{
		gen.dir,
		filepath.Join(gen.dir, "patterns"),
		filepath.Join(gen.dir, "papers"),
		filepath.Join(gen.dir, "connections"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	written := 0
	if err := gen.writeFile("Dashboard.md", renderDashboard(g, an, priorities)); err != nil {
		return err
	}
	written++

	if err := gen.writeFile("Network.md", renderNetworkDoc(g)); err != nil {
		return err
	}
	written++

	for _, id := range g.NodeIDs() {
		n := g.NodeByID(id)
		var rel string
		var data []byte
		if n.Type == graph.NodePaper {
			rel = filepath.Join("papers", safeFileName(n.Name)+".md")
			data = renderPaperNote(g, n)
		} else {
			rel = filepath.Join("patterns", safeFileName(n.Name)+".md")
			data = renderConceptNote(g, an, n, titles)
		}
		if err := gen.writeFile(rel, data); err != nil {
			return err
		}
		written++
	}

	for _, e := range sortedEdges(g) {
		src, tgt := g.NodeByID(e.Source), g.NodeByID(e.Target)
		if src == nil || tgt == nil {
			continue
		}
		rel := filepath.Join("connections", safeFileName(src.Name)+"--"+safeFileName(tgt.Name)+".md")
		if err := gen.writeFile(rel, renderConnectionNote(src, tgt, e, g.Meta, titles)); err != nil {
			return err
		}
		written++
	}

	exportJSON, err := renderNetworkJSON(g, an)
	if err != nil {
		return err
	}
	if err := gen.writeFile("network.json", exportJSON); err != nil {
		return err
	}
	written++

	gen.logger.Info("[Generator] Vault written", "dir", gen.dir, "files", written)
	return nil
}

func (gen *Generator) writeFile(rel string, data []byte) error {
	path := filepath.Join(gen.dir, rel)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write vault file: %w", err)
	}
	return nil
}

// paperTitles maps paper ids as cited in evidence lists (the upstream
// catalog ids kept in the openalex_id attribute) to paper node names, so
// evidence entries can link to the paper note when one exists.
func paperTitles(g *graph.Graph) map[string]string {
	titles := make(map[string]string)
	for _, id := range g.NodeIDs() {
		n := g.NodeByID(id)
		if n.Type != graph.NodePaper {
			continue
		}
		if ref := n.Attributes.Extra["openalex_id"]; ref != "" {
			titles[ref] = n.Name
		}
	}
	return titles
}

// sortedEdges returns the edges ordered by endpoint ids.
func sortedEdges(g *graph.Graph) []*graph.Edge {
	edges := make([]*graph.Edge, len(g.Edges))
	copy(edges, g.Edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// edgesByStrength returns the edges ordered strongest first, endpoint ids
// breaking ties.
func edgesByStrength(g *graph.Graph) []*graph.Edge {
	edges := sortedEdges(g)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Strength > edges[j].Strength
	})
	return edges
}
