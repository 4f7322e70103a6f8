package generator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"kinegraph/internal/graph"
)

// maxDiagramEdges caps the mermaid diagram at the strongest connections so
// the rendered network stays readable in a vault viewer.
const maxDiagramEdges = 15

// renderNetworkDoc produces Network.md: a mermaid diagram of the strongest
// connections plus connection-type and strength summaries.
func renderNetworkDoc(g *graph.Graph) []byte {
	sum := g.Summarize()
	stamp := g.Meta.BuiltAt.UTC().Format(stampLayout)

	shown := edgesByStrength(g)
	if len(shown) > maxDiagramEdges {
		shown = shown[:maxDiagramEdges]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "---\ntitle: \"Compensation Network\"\ngenerated: %q\ntags: [network-analysis, compensation-network]\n---\n\n", stamp)
	b.WriteString("# Compensation Network\n\n")
	fmt.Fprintf(&b, "**Total Connections:** %d\n", sum.Edges)
	fmt.Fprintf(&b, "**Shown:** %d\n\n", len(shown))

	b.WriteString(networkDiagram(g, shown))

	b.WriteString("\n## 🔗 Connection Types\n")
	if sum.Edges == 0 {
		b.WriteString("No connections yet.\n")
	} else {
		for _, t := range sortedConnectionKeys(sum.EdgesByType) {
			fmt.Fprintf(&b, "- **%s:** %d connections\n", t, sum.EdgesByType[t])
		}
	}

	b.WriteString("\n## 📊 Network Statistics\n")
	if sum.Edges == 0 {
		b.WriteString("No connections available for analysis.\n")
	} else {
		total := 0.0
		for _, e := range g.Edges {
			total += e.Strength
		}
		fmt.Fprintf(&b, "- **Average Connection Strength:** %.2f\n", sum.MeanStrength)
		fmt.Fprintf(&b, "- **Total Network Weight:** %.1f\n", total)
		fmt.Fprintf(&b, "- **Connection Density:** %.2f\n", connectionDensity(g, sum))
	}

	fmt.Fprintf(&b, "\n---\n*Network analysis: %s*\n", stamp)
	return []byte(b.String())
}

// networkDiagram draws the given edges as an undirected mermaid graph.
// Only nodes incident to a shown edge appear.
func networkDiagram(g *graph.Graph, edges []*graph.Edge) string {
	var b strings.Builder
	b.WriteString("```mermaid\ngraph LR\n")

	ids := make(map[string]bool)
	for _, e := range edges {
		ids[e.Source] = true
		ids[e.Target] = true
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	for _, id := range ordered {
		fmt.Fprintf(&b, "    %s[%q]\n", sanitizeMermaidID(id), nodeName(g, id))
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "    %s ---|%s %.2f| %s\n",
			sanitizeMermaidID(e.Source), e.Type, e.Strength, sanitizeMermaidID(e.Target))
	}

	b.WriteString("```\n")
	return b.String()
}

func sortedConnectionKeys(m map[graph.ConnectionType]int) []graph.ConnectionType {
	keys := make([]graph.ConnectionType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

var mermaidIDPattern = regexp.MustCompile(`[^a-z0-9_]`)

// sanitizeMermaidID coerces an arbitrary node id into a mermaid-safe
// identifier. Registry-assigned ids pass through unchanged.
func sanitizeMermaidID(v string) string {
	v = mermaidIDPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(v)), "_")
	if v == "" {
		return "node"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
