package analysis

import (
	"kinegraph/internal/graph"
)

// ImpactReport summarizes what a batch of newly ingested papers reached:
// the nodes the batch touched directly and the untouched neighbors whose
// connections were re-scored as a consequence.
type ImpactReport struct {
	Direct   []*graph.Node
	Indirect []*graph.Node
}

// Impact classifies the graph against a touched node-id set. Direct nodes
// are the touched ids present in the graph; indirect nodes share an edge
// with a direct node without being touched themselves. Both lists come
// back sorted by id.
func (a *Analyzer) Impact(touched map[string]bool) *ImpactReport {
	report := &ImpactReport{}

	indirect := make(map[string]bool)
	for _, id := range sortedKeys(a.g.Nodes) {
		if !touched[id] {
			continue
		}
		report.Direct = append(report.Direct, a.g.Nodes[id])
		for _, nb := range a.adj[id] {
			if !touched[nb.id] {
				indirect[nb.id] = true
			}
		}
	}
	for _, id := range sortedKeys(indirect) {
		report.Indirect = append(report.Indirect, a.g.Nodes[id])
	}
	return report
}
