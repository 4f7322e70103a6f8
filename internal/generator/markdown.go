package generator

import (
	"fmt"
	"sort"
	"strings"

	"kinegraph/internal/analysis"
	"kinegraph/internal/graph"
	"kinegraph/internal/scoring"
)

// renderDashboard produces Dashboard.md: headline statistics, node
// composition, quality metrics, the most central concepts, the strongest
// connections, open research gaps and the caller-supplied priority areas.
func renderDashboard(g *graph.Graph, an *analysis.Analyzer, priorities []string) []byte {
	sum := g.Summarize()
	cent := an.Centrality()
	stamp := g.Meta.BuiltAt.UTC().Format(stampLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "---\ntitle: \"Research Dashboard\"\ngenerated: %q\ntags: [dashboard, compensation-network]\n---\n\n", stamp)
	fmt.Fprintf(&b, "# Research Dashboard\nLast Updated: %s\n\n", stamp)

	papers := sum.NodesByType[graph.NodePaper]
	fmt.Fprintf(&b, "## 📊 Current Statistics\n")
	fmt.Fprintf(&b, "- Total Nodes: %d\n", sum.Nodes)
	fmt.Fprintf(&b, "- Connections: %d\n", sum.Edges)
	fmt.Fprintf(&b, "- Papers Analyzed: %d\n", papers)
	fmt.Fprintf(&b, "- Compensation Patterns: %d\n", sum.NodesByType[graph.NodePattern])
	fmt.Fprintf(&b, "- Mean Connection Strength: %.2f\n\n", sum.MeanStrength)

	fmt.Fprintf(&b, "## 🧩 Node Composition\n| Type | Count |\n| --- | --- |\n")
	for _, t := range sortedTypeKeys(sum.NodesByType) {
		fmt.Fprintf(&b, "| %s | %d |\n", t, sum.NodesByType[t])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 📈 Quality Metrics\n")
	fmt.Fprintf(&b, "- Average Why Depth: %.1f\n", averageWhyDepth(g))
	fmt.Fprintf(&b, "- High Quality Papers: %d\n", highQualityPapers(g))
	fmt.Fprintf(&b, "- Connection Density: %.2f\n\n", connectionDensity(g, sum))

	fmt.Fprintf(&b, "## 📄 Recent Papers\n")
	writeRecentPapers(&b, g)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 🎯 Most Central Concepts\n")
	writeCentralConcepts(&b, g, cent)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 🔗 Strongest Connections\n")
	writeStrongestConnections(&b, g)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 🔬 Research Gaps\n")
	writeResearchGaps(&b, g, an)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 💡 Priority Areas\n")
	if len(priorities) == 0 {
		b.WriteString("Priority areas need identification.\n")
	} else {
		for _, p := range priorities {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	b.WriteString("\n---\n*Auto-generated by the kinegraph research cycle*\n")
	return []byte(b.String())
}

// renderConceptNote produces patterns/<Name>.md for one non-paper node:
// typed attributes, direct connections, the two-hop neighborhood and the
// supporting papers.
func renderConceptNote(g *graph.Graph, an *analysis.Analyzer, n *graph.Node, titles map[string]string) []byte {
	stamp := g.Meta.BuiltAt.UTC().Format(stampLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "---\nname: %q\ntype: %s\ntags: [%s, compensation-network]\n---\n\n", n.Name, n.Type, n.Type)
	fmt.Fprintf(&b, "# %s\n\n", n.Name)

	fmt.Fprintf(&b, "## 🎯 Overview\n")
	fmt.Fprintf(&b, "**Type:** %s\n", n.Type)
	writeAttributeLines(&b, n.Attributes)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 🔗 Connections\n")
	writeIncidentEdges(&b, g, n.ID)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 🕸️ Neighborhood\n")
	writeNeighborhood(&b, g, an, n.ID)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 📚 Supporting Research\n")
	writeEvidenceList(&b, n.Attributes.EvidenceRefs, titles, "No supporting research recorded.")

	fmt.Fprintf(&b, "\n---\n*Concept documented: %s*\n", stamp)
	return []byte(b.String())
}

// renderPaperNote produces papers/<Title>.md for one paper node with its
// bibliographic attributes and the concepts extracted from it.
func renderPaperNote(g *graph.Graph, n *graph.Node) []byte {
	stamp := g.Meta.BuiltAt.UTC().Format(stampLayout)
	attrs := n.Attributes

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", n.Name)
	if attrs.Journal != "" {
		fmt.Fprintf(&b, "journal: %q\n", attrs.Journal)
	}
	if attrs.Year != 0 {
		fmt.Fprintf(&b, "year: %d\n", attrs.Year)
	}
	b.WriteString("tags: [paper, compensation-network]\n---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", n.Name)

	fmt.Fprintf(&b, "## 📋 Study Information\n")
	if attrs.Journal != "" {
		fmt.Fprintf(&b, "**Journal:** %s\n", attrs.Journal)
	}
	if attrs.Year != 0 {
		fmt.Fprintf(&b, "**Year:** %d\n", attrs.Year)
	}
	if attrs.Quality > 0 {
		fmt.Fprintf(&b, "**Quality Score:** %.2f\n", attrs.Quality)
	}
	for _, k := range sortedStringKeys(attrs.Extra) {
		fmt.Fprintf(&b, "**%s:** %s\n", k, attrs.Extra[k])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 🔍 Extracted Concepts\n")
	writeExtractedConcepts(&b, g, attrs.Extra["openalex_id"])

	fmt.Fprintf(&b, "\n---\n*Paper documented: %s*\n", stamp)
	return []byte(b.String())
}

// renderConnectionNote produces connections/<A>--<B>.md for one edge:
// strength, clinical relevance, the per-category component breakdown and
// the evidence behind it.
func renderConnectionNote(src, tgt *graph.Node, e *graph.Edge, meta graph.Meta, titles map[string]string) []byte {
	stamp := meta.BuiltAt.UTC().Format(stampLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "---\nsource: %q\ntarget: %q\ntype: %s\nstrength: %.2f\ntags: [connection, compensation-network]\n---\n\n",
		src.Name, tgt.Name, e.Type, e.Strength)
	fmt.Fprintf(&b, "# %s ↔ %s\n\n", src.Name, tgt.Name)

	fmt.Fprintf(&b, "## 🎯 Overview\n")
	fmt.Fprintf(&b, "**Type:** %s\n", e.Type)
	fmt.Fprintf(&b, "**Strength:** %.2f\n", e.Strength)
	fmt.Fprintf(&b, "**Clinical Relevance:** %.2f\n", e.ClinicalRelevance)
	if e.Boosted {
		b.WriteString("**Boosted:** yes\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## 📊 Component Breakdown\n| Component | Contribution |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| anatomical | %.2f |\n", e.Components.Anatomical)
	fmt.Fprintf(&b, "| functional | %.2f |\n", e.Components.Functional)
	fmt.Fprintf(&b, "| causal | %.2f |\n", e.Components.Causal)
	fmt.Fprintf(&b, "| therapeutic | %.2f |\n\n", e.Components.Therapeutic)

	fmt.Fprintf(&b, "## 📚 Evidence\n")
	writeEvidenceList(&b, e.Evidence, titles, "No direct evidence recorded.")

	fmt.Fprintf(&b, "\n---\n*Connection documented: %s*\n", stamp)
	return []byte(b.String())
}

// writeAttributeLines emits the populated schema fields of a node, then the
// free-form extras in key order.
func writeAttributeLines(b *strings.Builder, attrs graph.Attributes) {
	if attrs.Region != "" {
		fmt.Fprintf(b, "**Region:** %s\n", attrs.Region)
	}
	if len(attrs.Functions) > 0 {
		fmt.Fprintf(b, "**Functions:** %s\n", strings.Join(attrs.Functions, ", "))
	}
	if attrs.Stage != "" {
		fmt.Fprintf(b, "**Stage:** %s\n", attrs.Stage)
	}
	if attrs.WhyDepth > 0 {
		fmt.Fprintf(b, "**Why Depth:** %d\n", attrs.WhyDepth)
	}
	if attrs.Category != "" {
		fmt.Fprintf(b, "**Category:** %s\n", attrs.Category)
	}
	if len(attrs.Targets) > 0 {
		links := make([]string, len(attrs.Targets))
		for i, t := range attrs.Targets {
			links[i] = wikiLink(t)
		}
		fmt.Fprintf(b, "**Targets:** %s\n", strings.Join(links, ", "))
	}
	if attrs.Quality > 0 {
		fmt.Fprintf(b, "**Quality:** %.2f\n", attrs.Quality)
	}
	for _, k := range sortedStringKeys(attrs.Extra) {
		fmt.Fprintf(b, "**%s:** %s\n", k, attrs.Extra[k])
	}
}

func writeIncidentEdges(b *strings.Builder, g *graph.Graph, id string) {
	inc := g.Incident(id)
	if len(inc) == 0 {
		b.WriteString("No connections yet.\n")
		return
	}
	sort.Slice(inc, func(i, j int) bool {
		if inc[i].Strength != inc[j].Strength {
			return inc[i].Strength > inc[j].Strength
		}
		return nodeName(g, inc[i].Other(id)) < nodeName(g, inc[j].Other(id))
	})
	for _, e := range inc {
		fmt.Fprintf(b, "- %s (%s, %.2f)\n", wikiLink(nodeName(g, e.Other(id))), e.Type, e.Strength)
	}
}

func writeNeighborhood(b *strings.Builder, g *graph.Graph, an *analysis.Analyzer, id string) {
	nb := an.Neighborhood([]string{id}, analysis.DefaultNeighborhoodConfig())
	count := 0
	for _, nid := range nb.NodeIDs {
		if nid == id {
			continue
		}
		fmt.Fprintf(b, "- %s (closeness %.2f)\n", wikiLink(nodeName(g, nid)), nb.NodeScores[nid])
		count++
	}
	if count == 0 {
		b.WriteString("Isolated concept.\n")
	}
}

func writeEvidenceList(b *strings.Builder, refs []string, titles map[string]string, empty string) {
	if len(refs) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, ref := range refs {
		if title, ok := titles[ref]; ok {
			fmt.Fprintf(b, "- %s\n", wikiLink(title))
		} else {
			fmt.Fprintf(b, "- %s\n", ref)
		}
	}
}

func writeExtractedConcepts(b *strings.Builder, g *graph.Graph, paperRef string) {
	var names []string
	if paperRef != "" {
		for _, id := range g.NodeIDs() {
			n := g.NodeByID(id)
			if n.Type == graph.NodePaper {
				continue
			}
			for _, ref := range n.Attributes.EvidenceRefs {
				if ref == paperRef {
					names = append(names, n.Name)
					break
				}
			}
		}
	}
	if len(names) == 0 {
		b.WriteString("No concepts extracted.\n")
		return
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "- %s\n", wikiLink(name))
	}
}

func writeRecentPapers(b *strings.Builder, g *graph.Graph) {
	var papers []*graph.Node
	for _, id := range g.NodeIDs() {
		n := g.NodeByID(id)
		if n.Type == graph.NodePaper {
			papers = append(papers, n)
		}
	}
	if len(papers) == 0 {
		b.WriteString("No papers recorded.\n")
		return
	}
	sort.Slice(papers, func(i, j int) bool {
		if papers[i].Attributes.Year != papers[j].Attributes.Year {
			return papers[i].Attributes.Year > papers[j].Attributes.Year
		}
		return papers[i].Name < papers[j].Name
	})
	if len(papers) > 5 {
		papers = papers[:5]
	}
	for _, n := range papers {
		switch {
		case n.Attributes.Year != 0 && n.Attributes.Journal != "":
			fmt.Fprintf(b, "- %s (%d, %s)\n", wikiLink(n.Name), n.Attributes.Year, n.Attributes.Journal)
		case n.Attributes.Year != 0:
			fmt.Fprintf(b, "- %s (%d)\n", wikiLink(n.Name), n.Attributes.Year)
		default:
			fmt.Fprintf(b, "- %s\n", wikiLink(n.Name))
		}
	}
}

func writeCentralConcepts(b *strings.Builder, g *graph.Graph, cent analysis.Centrality) {
	type row struct {
		name        string
		degree      int
		betweenness float64
	}
	var rows []row
	for _, id := range g.NodeIDs() {
		n := g.NodeByID(id)
		if n.Type == graph.NodePaper {
			continue
		}
		rows = append(rows, row{name: n.Name, degree: cent.Degree[id], betweenness: cent.Betweenness[id]})
	}
	if len(rows) == 0 {
		b.WriteString("No concepts yet.\n")
		return
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].betweenness != rows[j].betweenness {
			return rows[i].betweenness > rows[j].betweenness
		}
		if rows[i].degree != rows[j].degree {
			return rows[i].degree > rows[j].degree
		}
		return rows[i].name < rows[j].name
	})
	if len(rows) > 5 {
		rows = rows[:5]
	}
	for i, r := range rows {
		fmt.Fprintf(b, "%d. %s (degree %d, betweenness %.2f)\n", i+1, wikiLink(r.name), r.degree, r.betweenness)
	}
}

func writeStrongestConnections(b *strings.Builder, g *graph.Graph) {
	edges := edgesByStrength(g)
	if len(edges) == 0 {
		b.WriteString("No connections yet.\n")
		return
	}
	if len(edges) > 5 {
		edges = edges[:5]
	}
	for i, e := range edges {
		fmt.Fprintf(b, "%d. %s ↔ %s (%s, %.2f)\n", i+1,
			wikiLink(nodeName(g, e.Source)), wikiLink(nodeName(g, e.Target)), e.Type, e.Strength)
	}
}

func writeResearchGaps(b *strings.Builder, g *graph.Graph, an *analysis.Analyzer) {
	gaps := an.FindGaps(nil, 5)
	if len(gaps) == 0 {
		b.WriteString("No gaps identified.\n")
		return
	}
	for i, gap := range gaps {
		fmt.Fprintf(b, "%d. %s ↔ %s (importance %.2f)\n", i+1,
			wikiLink(nodeName(g, gap.A)), wikiLink(nodeName(g, gap.B)), gap.Importance)
	}
}

// averageWhyDepth is the mean recorded why-chain depth over pattern nodes.
func averageWhyDepth(g *graph.Graph) float64 {
	total, count := 0, 0
	for _, n := range g.Nodes {
		if n.Type == graph.NodePattern {
			total += n.Attributes.WhyDepth
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func highQualityPapers(g *graph.Graph) int {
	count := 0
	for _, n := range g.Nodes {
		if n.Type == graph.NodePaper && n.Attributes.Quality >= scoring.HighQualityThreshold {
			count++
		}
	}
	return count
}

// connectionDensity is the realized fraction of possible concept pairs,
// papers excluded since they never connect directly.
func connectionDensity(g *graph.Graph, sum graph.Summary) float64 {
	concepts := sum.Nodes - sum.NodesByType[graph.NodePaper]
	if concepts < 2 {
		return 0
	}
	return float64(2*sum.Edges) / float64(concepts*(concepts-1))
}

func nodeName(g *graph.Graph, id string) string {
	if n := g.NodeByID(id); n != nil {
		return n.Name
	}
	return id
}

func sortedTypeKeys(m map[graph.NodeType]int) []graph.NodeType {
	keys := make([]graph.NodeType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
