package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"kinegraph/internal/graph"
)

// RuleSet is the clinical knowledge that drives relationship scoring. Every
// table is keyed by concept names; names are normalized before lookup, so
// "Gluteus Medius" and "gluteus  medius" hit the same entries. The zero value
// scores nothing; DefaultRules returns the built-in tables and LoadRules
// layers a YAML file on top of them.
type RuleSet struct {
	// Regions groups muscles and joints by body region. A muscle and a
	// joint of the same region are directly adjacent; two concepts that
	// merely share a region sit in the lowest anatomical tier.
	Regions map[string]RegionRule `yaml:"regions"`

	// Chains lists fascial and kinetic chains. Two members of the same
	// chain take the middle anatomical tier.
	Chains map[string][]string `yaml:"chains"`

	// Functions maps a primary movement function to the muscles that
	// produce it. Sharing a primary function is the top functional tier.
	Functions map[string][]string `yaml:"functions"`

	// Synergies lists muscle groups that habitually co-contract without
	// sharing a primary function.
	Synergies map[string][]string `yaml:"synergies"`

	// Compensations describes known dysfunction chains: a weak primary
	// mover, the muscles that take over for it, and the movement faults
	// and conditions that follow downstream.
	Compensations map[string]CompensationRule `yaml:"compensations"`

	// Mechanisms lists extra concept pairs with a recognised causal
	// mechanism but no compensation chain of their own. They score the
	// theoretical causal tier when no paper evidence exists.
	Mechanisms []MechanismRule `yaml:"mechanisms,omitempty"`

	// Protocols maps a therapeutic category to its evidence-based target
	// concepts and the body regions the category addresses.
	Protocols map[string]ProtocolRule `yaml:"protocols"`

	// Tiers holds the raw score each rule tier produces before category
	// weighting.
	Tiers Tiers `yaml:"tiers"`
}

type RegionRule struct {
	Muscles []string `yaml:"muscles"`
	Joints  []string `yaml:"joints"`
}

type CompensationRule struct {
	// Primary is the dysfunctional muscle the chain starts from.
	Primary string `yaml:"primary"`
	// Pattern is the named dysfunction, e.g. "gluteus medius weakness".
	Pattern      string   `yaml:"pattern"`
	Compensators []string `yaml:"compensators"`
	Downstream   []string `yaml:"downstream"`
	Conditions   []string `yaml:"conditions"`
}

type MechanismRule struct {
	A    string `yaml:"a"`
	B    string `yaml:"b"`
	Note string `yaml:"note,omitempty"`
}

type ProtocolRule struct {
	// Targets maps a concept name to the named protocols that address it.
	Targets map[string][]string `yaml:"targets"`
	// Regions lists the body regions the category covers in general.
	Regions []string `yaml:"regions,omitempty"`
}

// Tiers are the raw sub-scores, highest match wins within a category.
// Values outside [0, 1] are rejected by Validate.
type Tiers struct {
	AnatomicalDirect float64 `yaml:"anatomical_direct"`
	AnatomicalChain  float64 `yaml:"anatomical_chain"`
	AnatomicalRegion float64 `yaml:"anatomical_region"`

	FunctionalShared       float64 `yaml:"functional_shared"`
	FunctionalCompensation float64 `yaml:"functional_compensation"`
	FunctionalSynergy      float64 `yaml:"functional_synergy"`
	FunctionalOverlap      float64 `yaml:"functional_overlap"`

	CausalStrong      float64 `yaml:"causal_strong"`
	CausalModerate    float64 `yaml:"causal_moderate"`
	CausalTheoretical float64 `yaml:"causal_theoretical"`

	TherapeuticProtocol   float64 `yaml:"therapeutic_protocol"`
	TherapeuticSupportive float64 `yaml:"therapeutic_supportive"`
	TherapeuticCategory   float64 `yaml:"therapeutic_category"`
}

// HighQualityThreshold is the minimum paper quality that counts toward the
// strong causal tier.
const HighQualityThreshold = 0.70

// DefaultTiers returns the built-in tier scores.
func DefaultTiers() Tiers {
	return Tiers{
		AnatomicalDirect: 1.00,
		AnatomicalChain:  0.60,
		AnatomicalRegion: 0.10,

		FunctionalShared:       1.00,
		FunctionalCompensation: 0.75,
		FunctionalSynergy:      0.50,
		FunctionalOverlap:      0.25,

		CausalStrong:      1.00,
		CausalModerate:    0.65,
		CausalTheoretical: 0.35,

		TherapeuticProtocol:   1.00,
		TherapeuticSupportive: 0.65,
		TherapeuticCategory:   0.30,
	}
}

// DefaultRules returns the built-in clinical tables covering the hip, knee,
// ankle, shoulder and core regions with their common compensation chains and
// rehab protocols.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Regions: map[string]RegionRule{
			"hip": {
				Muscles: []string{
					"gluteus medius", "gluteus maximus", "gluteus minimus",
					"tensor fasciae latae", "piriformis", "hip adductors",
					"hip flexors", "quadratus lumborum",
				},
				Joints: []string{"hip joint", "si joint", "lumbar spine"},
			},
			"knee": {
				Muscles: []string{"quadriceps", "hamstrings", "gastrocnemius", "popliteus"},
				Joints:  []string{"knee joint", "patellofemoral joint"},
			},
			"ankle": {
				Muscles: []string{"tibialis posterior", "peroneals", "gastrocnemius", "soleus"},
				Joints:  []string{"ankle joint", "subtalar joint"},
			},
			"shoulder": {
				Muscles: []string{
					"serratus anterior", "upper trapezius", "lower trapezius",
					"rhomboids", "rotator cuff", "levator scapulae",
				},
				Joints: []string{"glenohumeral joint", "scapulothoracic joint", "acromioclavicular joint"},
			},
			"core": {
				Muscles: []string{
					"transversus abdominis", "multifidus", "back extensors",
					"hip flexors", "quadratus lumborum",
				},
				Joints: []string{"lumbar spine", "thoracic spine"},
			},
		},
		Chains: map[string][]string{
			"lateral chain":   {"gluteus medius", "tensor fasciae latae", "it band", "peroneals"},
			"posterior chain": {"gluteus maximus", "hamstrings", "gastrocnemius", "back extensors"},
			"deep front line": {"tibialis posterior", "hip adductors", "hip flexors", "transversus abdominis"},
			"scapular chain":  {"serratus anterior", "lower trapezius", "rhomboids"},
		},
		Functions: map[string][]string{
			"hip abduction":             {"gluteus medius", "gluteus minimus", "tensor fasciae latae"},
			"hip extension":             {"gluteus maximus", "hamstrings"},
			"ankle plantarflexion":      {"gastrocnemius", "soleus", "tibialis posterior"},
			"scapular upward rotation":  {"serratus anterior", "upper trapezius", "lower trapezius"},
			"lumbopelvic stabilization": {"transversus abdominis", "multifidus", "quadratus lumborum"},
		},
		Synergies: map[string][]string{
			"hip hinge":        {"gluteus maximus", "back extensors", "hamstrings"},
			"scapular setting": {"serratus anterior", "rhomboids", "rotator cuff"},
			"deep hip rotator": {"piriformis", "gluteus medius"},
		},
		Compensations: map[string]CompensationRule{
			"gluteus medius weakness": {
				Primary:      "gluteus medius",
				Pattern:      "gluteus medius weakness",
				Compensators: []string{"tensor fasciae latae", "hip adductors", "quadratus lumborum"},
				Downstream:   []string{"knee valgus", "hip drop", "lateral pelvic tilt"},
				Conditions:   []string{"patellofemoral pain", "it band syndrome", "low back pain"},
			},
			"serratus anterior dysfunction": {
				Primary:      "serratus anterior",
				Pattern:      "serratus anterior weakness",
				Compensators: []string{"upper trapezius", "levator scapulae", "rhomboids"},
				Downstream:   []string{"scapular winging", "shoulder elevation", "forward head posture"},
				Conditions:   []string{"shoulder impingement", "neck pain", "thoracic outlet syndrome"},
			},
			"core instability": {
				Primary:      "transversus abdominis",
				Pattern:      "core weakness",
				Compensators: []string{"hip flexors", "back extensors", "quadratus lumborum"},
				Downstream:   []string{"anterior pelvic tilt", "lumbar hyperlordosis", "hip flexor tightness"},
				Conditions:   []string{"low back pain", "hip impingement", "neck pain"},
			},
		},
		Mechanisms: []MechanismRule{
			{A: "hip flexor tightness", B: "gluteus maximus", Note: "reciprocal inhibition"},
			{A: "upper trapezius", B: "scapular winging", Note: "synergistic dominance"},
			{A: "knee valgus", B: "patellofemoral joint", Note: "altered joint loading"},
		},
		Protocols: map[string]ProtocolRule{
			"strengthening": {
				Targets: map[string][]string{
					"gluteus medius":        {"side-lying abduction", "clamshell", "single leg squat"},
					"serratus anterior":     {"wall slides", "push-up plus", "bear crawl"},
					"transversus abdominis": {"dead bug", "bird dog", "plank variations"},
				},
				Regions: []string{"hip", "shoulder", "core"},
			},
			"stretching": {
				Targets: map[string][]string{
					"tensor fasciae latae": {"standing tfl stretch", "side-lying tfl stretch"},
					"hip flexors":          {"couch stretch", "kneeling hip flexor stretch"},
					"upper trapezius":      {"upper trap stretch", "levator scapulae stretch"},
				},
				Regions: []string{"hip", "shoulder"},
			},
			"motor control": {
				Targets: map[string][]string{
					"gluteus medius":    {"single leg balance", "step down training", "gait retraining"},
					"serratus anterior": {"scapular stabilization", "reaching patterns"},
					"multifidus":        {"spinal stabilization", "movement retraining", "postural correction"},
				},
				Regions: []string{"hip", "shoulder", "core"},
			},
			"assessment": {
				Targets: map[string][]string{
					"gluteus medius":    {"trendelenburg test", "single leg stance assessment"},
					"hip drop":          {"trendelenburg test"},
					"serratus anterior": {"scapular winging test", "wall push-up test"},
					"core weakness":     {"prone instability test"},
					"knee valgus":       {"single leg squat assessment", "drop jump screen"},
				},
				Regions: []string{"hip", "shoulder", "core", "knee"},
			},
		},
		Tiers: DefaultTiers(),
	}
}

// LoadRules reads a YAML rule file layered over the defaults. Tables present
// in the file replace the default table wholesale; absent tables keep their
// defaults. A missing file is not an error.
func LoadRules(path string) (*RuleSet, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate checks that every tier score stays inside [0, 1].
func (r *RuleSet) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"anatomical_direct", r.Tiers.AnatomicalDirect},
		{"anatomical_chain", r.Tiers.AnatomicalChain},
		{"anatomical_region", r.Tiers.AnatomicalRegion},
		{"functional_shared", r.Tiers.FunctionalShared},
		{"functional_compensation", r.Tiers.FunctionalCompensation},
		{"functional_synergy", r.Tiers.FunctionalSynergy},
		{"functional_overlap", r.Tiers.FunctionalOverlap},
		{"causal_strong", r.Tiers.CausalStrong},
		{"causal_moderate", r.Tiers.CausalModerate},
		{"causal_theoretical", r.Tiers.CausalTheoretical},
		{"therapeutic_protocol", r.Tiers.TherapeuticProtocol},
		{"therapeutic_supportive", r.Tiers.TherapeuticSupportive},
		{"therapeutic_category", r.Tiers.TherapeuticCategory},
	}
	for _, c := range checks {
		if c.v < 0 || c.v > 1 {
			return fmt.Errorf("tier %s out of range: %v", c.name, c.v)
		}
	}
	return nil
}

// index is the compiled, normalized lookup form of a RuleSet.
type index struct {
	tiers Tiers

	regionsOf      map[string]map[string]bool // concept -> regions containing it
	muscleInRegion map[string]map[string]bool // region -> muscle set
	jointInRegion  map[string]map[string]bool // region -> joint set
	chainsOf       map[string]map[string]bool // concept -> chains containing it
	functionsOf    map[string]map[string]bool // muscle -> primary functions
	synergiesOf    map[string]map[string]bool // muscle -> synergy groups
	compensations  map[string]map[string]bool // concept -> compensation rules naming it
	mechanismPairs map[string]bool            // canonical name pair -> mechanism exists
	protocolHits   map[string]map[string]bool // category -> protocol target set
	protocolRegion map[string]map[string]bool // category -> covered region set
}

func compile(rules *RuleSet) *index {
	ix := &index{
		tiers:          rules.Tiers,
		regionsOf:      make(map[string]map[string]bool),
		muscleInRegion: make(map[string]map[string]bool),
		jointInRegion:  make(map[string]map[string]bool),
		chainsOf:       make(map[string]map[string]bool),
		functionsOf:    make(map[string]map[string]bool),
		synergiesOf:    make(map[string]map[string]bool),
		compensations:  make(map[string]map[string]bool),
		mechanismPairs: make(map[string]bool),
		protocolHits:   make(map[string]map[string]bool),
		protocolRegion: make(map[string]map[string]bool),
	}

	for region, rule := range rules.Regions {
		region = graph.NormalizeName(region)
		ix.muscleInRegion[region] = make(map[string]bool)
		ix.jointInRegion[region] = make(map[string]bool)
		for _, m := range rule.Muscles {
			m = graph.NormalizeName(m)
			ix.muscleInRegion[region][m] = true
			addMembership(ix.regionsOf, m, region)
		}
		for _, j := range rule.Joints {
			j = graph.NormalizeName(j)
			ix.jointInRegion[region][j] = true
			addMembership(ix.regionsOf, j, region)
		}
	}

	for chain, members := range rules.Chains {
		chain = graph.NormalizeName(chain)
		for _, m := range members {
			addMembership(ix.chainsOf, graph.NormalizeName(m), chain)
		}
	}

	for fn, muscles := range rules.Functions {
		fn = graph.NormalizeName(fn)
		for _, m := range muscles {
			addMembership(ix.functionsOf, graph.NormalizeName(m), fn)
		}
	}

	for group, muscles := range rules.Synergies {
		group = graph.NormalizeName(group)
		for _, m := range muscles {
			addMembership(ix.synergiesOf, graph.NormalizeName(m), group)
		}
	}

	for name, rule := range rules.Compensations {
		name = graph.NormalizeName(name)
		members := make([]string, 0, 2+len(rule.Compensators)+len(rule.Downstream)+len(rule.Conditions))
		members = append(members, rule.Primary, rule.Pattern)
		members = append(members, rule.Compensators...)
		members = append(members, rule.Downstream...)
		members = append(members, rule.Conditions...)
		for _, m := range members {
			m = graph.NormalizeName(m)
			if m == "" {
				continue
			}
			addMembership(ix.compensations, m, name)
		}

		// The chain's origin points carry a causal mechanism toward
		// everything downstream of them.
		origins := []string{rule.Primary, rule.Pattern}
		effects := append(append([]string{rule.Pattern}, rule.Downstream...), rule.Conditions...)
		for _, o := range origins {
			for _, e := range effects {
				ix.addMechanism(o, e)
			}
		}
	}

	for _, m := range rules.Mechanisms {
		ix.addMechanism(m.A, m.B)
	}

	for category, rule := range rules.Protocols {
		category = graph.NormalizeName(category)
		ix.protocolHits[category] = make(map[string]bool)
		ix.protocolRegion[category] = make(map[string]bool)
		for target := range rule.Targets {
			ix.protocolHits[category][graph.NormalizeName(target)] = true
		}
		for _, region := range rule.Regions {
			ix.protocolRegion[category][graph.NormalizeName(region)] = true
		}
	}

	return ix
}

func addMembership(m map[string]map[string]bool, concept, group string) {
	if concept == "" {
		return
	}
	if m[concept] == nil {
		m[concept] = make(map[string]bool)
	}
	m[concept][group] = true
}

func (ix *index) addMechanism(a, b string) {
	a, b = graph.NormalizeName(a), graph.NormalizeName(b)
	if a == "" || b == "" || a == b {
		return
	}
	ix.mechanismPairs[graph.PairKey(a, b)] = true
}

func (ix *index) hasMechanism(a, b string) bool {
	return ix.mechanismPairs[graph.PairKey(a, b)]
}

// sharedGroup reports whether two concepts appear in a common group of the
// given membership table.
func sharedGroup(m map[string]map[string]bool, a, b string) bool {
	ga, gb := m[a], m[b]
	if len(ga) == 0 || len(gb) == 0 {
		return false
	}
	if len(gb) < len(ga) {
		ga, gb = gb, ga
	}
	for g := range ga {
		if gb[g] {
			return true
		}
	}
	return false
}
