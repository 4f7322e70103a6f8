// Package scoring decides how strongly two clinical concepts relate. Every
// relationship strength is a weighted sum of four category scores, each read
// from an explicit rule table so a reviewer can trace any edge back to the
// rule that produced it.
package scoring

import (
	"kinegraph/internal/graph"
)

// Weights are the fixed category weights applied to the raw tier scores.
type Weights struct {
	Anatomical  float64
	Functional  float64
	Causal      float64
	Therapeutic float64
}

// DefaultWeights returns the standard category weighting. Causal and
// functional evidence dominate; anatomy supports; therapy links refine.
func DefaultWeights() Weights {
	return Weights{
		Anatomical:  0.25,
		Functional:  0.30,
		Causal:      0.30,
		Therapeutic: 0.15,
	}
}

// Score is the outcome of evaluating one node pair.
type Score struct {
	// Strength is the weighted sum of components, capped at 1.0.
	Strength float64

	// Components holds the weighted per-category contributions; their
	// uncapped sum is Strength. Raw holds the tier scores before
	// weighting.
	Components graph.Components
	Raw        graph.Components

	// Evidence lists the ids of papers supporting the pair, sorted.
	// MeanQuality is their average quality score, 0 without evidence.
	Evidence    []string
	MeanQuality float64

	// ProtocolMatch is set when the pair hit the evidence-based protocol
	// tier, marking the eventual edge as clinically prioritized.
	ProtocolMatch bool
}

// Scorer evaluates node pairs against a compiled rule set and the paper
// evidence collected so far. Scoring never mutates state, so one Scorer may
// be shared across goroutines.
type Scorer struct {
	ix       *index
	evidence *EvidenceIndex
	weights  Weights
}

// NewScorer compiles the rule set for fast lookup. Nil arguments fall back
// to the built-in rules and an empty evidence index.
func NewScorer(rules *RuleSet, evidence *EvidenceIndex) *Scorer {
	if rules == nil {
		rules = DefaultRules()
	}
	if evidence == nil {
		evidence = NewEvidenceIndex()
	}
	return &Scorer{
		ix:       compile(rules),
		evidence: evidence,
		weights:  DefaultWeights(),
	}
}

// Scoreable reports whether any scoring category applies to the two node
// types. Paper nodes are never scoreable; they contribute through the
// evidence index instead.
func Scoreable(a, b graph.NodeType) bool {
	return anatomicalApplies(a, b) ||
		functionalApplies(a, b) ||
		causalApplies(a, b) ||
		therapeuticApplies(a, b)
}

// Score evaluates the pair. The result is symmetric: Score(a, b) and
// Score(b, a) are identical. Pairs with no applicable category, and pairs
// whose applicable categories find no rule or evidence, score zero; missing
// node data degrades the affected category to zero rather than failing.
func (s *Scorer) Score(a, b *graph.Node) Score {
	if a == nil || b == nil || a.ID == b.ID {
		return Score{}
	}

	ka, kb := conceptKey(a), conceptKey(b)
	var sc Score

	if anatomicalApplies(a.Type, b.Type) {
		sc.Raw.Anatomical = s.anatomicalScore(ka, kb, a, b)
	}
	if functionalApplies(a.Type, b.Type) {
		sc.Raw.Functional = s.functionalScore(ka, kb, a, b)
	}
	if causalApplies(a.Type, b.Type) {
		items := s.evidence.Items(ka, kb)
		sc.Raw.Causal = s.causalScore(ka, kb, items)
		for _, it := range items {
			sc.Evidence = append(sc.Evidence, it.PaperID)
			sc.MeanQuality += it.Quality
		}
		if len(items) > 0 {
			sc.MeanQuality /= float64(len(items))
		}
	}
	if therapeuticApplies(a.Type, b.Type) {
		sc.Raw.Therapeutic, sc.ProtocolMatch = s.therapeuticScore(ka, kb, a, b)
	}

	sc.Components = graph.Components{
		Anatomical:  sc.Raw.Anatomical * s.weights.Anatomical,
		Functional:  sc.Raw.Functional * s.weights.Functional,
		Causal:      sc.Raw.Causal * s.weights.Causal,
		Therapeutic: sc.Raw.Therapeutic * s.weights.Therapeutic,
	}
	sum := sc.Components.Anatomical + sc.Components.Functional +
		sc.Components.Causal + sc.Components.Therapeutic
	sc.Strength = clamp(sum, 0, 1)
	return sc
}

// anatomicalScore: direct muscle-joint adjacency beats shared chain beats
// shared region. The first matching tier wins.
func (s *Scorer) anatomicalScore(ka, kb string, a, b *graph.Node) float64 {
	if s.directlyAdjacent(ka, kb, a.Type, b.Type) {
		return s.ix.tiers.AnatomicalDirect
	}
	if sharedGroup(s.ix.chainsOf, ka, kb) {
		return s.ix.tiers.AnatomicalChain
	}
	if s.sharedRegion(ka, kb, a, b) {
		return s.ix.tiers.AnatomicalRegion
	}
	return 0
}

// directlyAdjacent holds when one node is a muscle and the other a joint of
// the same region: the muscle acts across that joint.
func (s *Scorer) directlyAdjacent(ka, kb string, ta, tb graph.NodeType) bool {
	var muscle, joint string
	switch {
	case ta == graph.NodeMuscle && tb == graph.NodeJoint:
		muscle, joint = ka, kb
	case ta == graph.NodeJoint && tb == graph.NodeMuscle:
		muscle, joint = kb, ka
	default:
		return false
	}
	for region, muscles := range s.ix.muscleInRegion {
		if muscles[muscle] && s.ix.jointInRegion[region][joint] {
			return true
		}
	}
	return false
}

func (s *Scorer) sharedRegion(ka, kb string, a, b *graph.Node) bool {
	ra := s.regionSet(ka, a)
	rb := s.regionSet(kb, b)
	for r := range ra {
		if rb[r] {
			return true
		}
	}
	return false
}

// regionSet combines the rule table's placement of a concept with the
// region recorded on the node itself, so concepts outside the built-in
// tables still locate anatomically.
func (s *Scorer) regionSet(key string, n *graph.Node) map[string]bool {
	set := make(map[string]bool, len(s.ix.regionsOf[key])+1)
	for r := range s.ix.regionsOf[key] {
		set[r] = true
	}
	if r := graph.NormalizeName(n.Attributes.Region); r != "" {
		set[r] = true
	}
	return set
}

// functionalScore: shared primary function beats a known compensation
// relationship beats synergy beats a mere overlap of the nodes' own declared
// function lists.
func (s *Scorer) functionalScore(ka, kb string, a, b *graph.Node) float64 {
	if sharedGroup(s.ix.functionsOf, ka, kb) {
		return s.ix.tiers.FunctionalShared
	}
	if sharedGroup(s.ix.compensations, ka, kb) {
		return s.ix.tiers.FunctionalCompensation
	}
	if sharedGroup(s.ix.synergiesOf, ka, kb) {
		return s.ix.tiers.FunctionalSynergy
	}
	if functionOverlap(a.Attributes.Functions, b.Attributes.Functions) {
		return s.ix.tiers.FunctionalOverlap
	}
	return 0
}

func functionOverlap(fa, fb []string) bool {
	if len(fa) == 0 || len(fb) == 0 {
		return false
	}
	seen := make(map[string]bool, len(fa))
	for _, f := range fa {
		if f = graph.NormalizeName(f); f != "" {
			seen[f] = true
		}
	}
	for _, f := range fb {
		if seen[graph.NormalizeName(f)] {
			return true
		}
	}
	return false
}

// causalScore is a pure function of the pair's evidence and the mechanism
// table: two or more high-quality papers make a strong link, any paper makes
// a moderate one, and a bare mechanism rule stays theoretical.
func (s *Scorer) causalScore(ka, kb string, items []EvidenceItem) float64 {
	highQuality := 0
	for _, it := range items {
		if it.Quality >= HighQualityThreshold {
			highQuality++
		}
	}
	switch {
	case highQuality >= 2:
		return s.ix.tiers.CausalStrong
	case len(items) >= 1:
		return s.ix.tiers.CausalModerate
	case s.ix.hasMechanism(ka, kb):
		return s.ix.tiers.CausalTheoretical
	}
	return 0
}

// therapeuticScore: an evidence-based protocol naming the concept beats the
// intervention's own target claim beats a shared body region with the
// category. The bool result reports a top-tier protocol match.
func (s *Scorer) therapeuticScore(ka, kb string, a, b *graph.Node) (float64, bool) {
	therapy, concept := a, b
	targetKey := kb
	if isTherapy(b.Type) {
		therapy, concept = b, a
		targetKey = ka
	}

	category := graph.NormalizeName(therapy.Attributes.Category)
	if s.ix.protocolHits[category][targetKey] {
		return s.ix.tiers.TherapeuticProtocol, true
	}
	for _, target := range therapy.Attributes.Targets {
		if graph.NormalizeName(target) == targetKey {
			return s.ix.tiers.TherapeuticSupportive, false
		}
	}
	if regions := s.ix.protocolRegion[category]; len(regions) > 0 {
		for r := range s.regionSet(targetKey, concept) {
			if regions[r] {
				return s.ix.tiers.TherapeuticCategory, false
			}
		}
	}
	return 0, false
}

func anatomicalApplies(a, b graph.NodeType) bool {
	return isMusculoskeletal(a) && isMusculoskeletal(b)
}

func functionalApplies(a, b graph.NodeType) bool {
	return isMovement(a) && isMovement(b)
}

func causalApplies(a, b graph.NodeType) bool {
	return isCausalCapable(a) && isCausalCapable(b)
}

func therapeuticApplies(a, b graph.NodeType) bool {
	return (isTherapy(a) && isClinicalTarget(b)) || (isTherapy(b) && isClinicalTarget(a))
}

func isMusculoskeletal(t graph.NodeType) bool {
	return t == graph.NodeMuscle || t == graph.NodeJoint
}

func isMovement(t graph.NodeType) bool {
	return t == graph.NodeMuscle || t == graph.NodePattern
}

func isCausalCapable(t graph.NodeType) bool {
	switch t {
	case graph.NodeMuscle, graph.NodeJoint, graph.NodePattern, graph.NodeMechanism:
		return true
	}
	return false
}

func isTherapy(t graph.NodeType) bool {
	return t == graph.NodeAssessment || t == graph.NodeTreatment
}

func isClinicalTarget(t graph.NodeType) bool {
	return t == graph.NodePattern || t == graph.NodeMuscle || t == graph.NodeJoint
}

func conceptKey(n *graph.Node) string {
	if n.NormalizedName != "" {
		return n.NormalizedName
	}
	return graph.NormalizeName(n.Name)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
