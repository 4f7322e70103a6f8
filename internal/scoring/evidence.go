package scoring

import (
	"sort"

	"kinegraph/internal/graph"
)

// EvidenceItem is one paper supporting a causal link between two concepts.
type EvidenceItem struct {
	PaperID string  `json:"paper_id"`
	Quality float64 `json:"quality"`
}

// EvidenceIndex collects paper evidence per unordered concept pair. Concepts
// are identified by name, so evidence registered during paper analysis stays
// valid regardless of which node ids the registry later assigns. Adding the
// same paper to a pair twice keeps the higher quality.
type EvidenceIndex struct {
	byPair map[string]map[string]float64 // pair key -> paper id -> quality
}

func NewEvidenceIndex() *EvidenceIndex {
	return &EvidenceIndex{byPair: make(map[string]map[string]float64)}
}

// Add records that paper evidence links the two named concepts.
func (x *EvidenceIndex) Add(conceptA, conceptB string, item EvidenceItem) {
	a := graph.NormalizeName(conceptA)
	b := graph.NormalizeName(conceptB)
	if a == "" || b == "" || a == b || item.PaperID == "" {
		return
	}

	key := graph.PairKey(a, b)
	papers := x.byPair[key]
	if papers == nil {
		papers = make(map[string]float64)
		x.byPair[key] = papers
	}
	if q, ok := papers[item.PaperID]; !ok || item.Quality > q {
		papers[item.PaperID] = item.Quality
	}
}

// Items returns the deduplicated evidence for a concept pair, sorted by
// paper id.
func (x *EvidenceIndex) Items(conceptA, conceptB string) []EvidenceItem {
	key := graph.PairKey(graph.NormalizeName(conceptA), graph.NormalizeName(conceptB))
	papers := x.byPair[key]
	if len(papers) == 0 {
		return nil
	}

	items := make([]EvidenceItem, 0, len(papers))
	for id, q := range papers {
		items = append(items, EvidenceItem{PaperID: id, Quality: q})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PaperID < items[j].PaperID })
	return items
}

// Pairs returns every pair key holding evidence, sorted.
func (x *EvidenceIndex) Pairs() []string {
	keys := make([]string, 0, len(x.byPair))
	for k := range x.byPair {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of concept pairs with at least one evidence item.
func (x *EvidenceIndex) Len() int {
	return len(x.byPair)
}
