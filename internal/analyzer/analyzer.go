// Package analyzer mines screened papers for the concepts the graph is
// built from. Extraction is deliberately mechanical: keyword rule tables
// over title+abstract, no language model. A matched dysfunction pattern
// expands into its known cast (primary muscle, compensators, joints,
// assessments, treatments) as node requests, and into pairwise paper
// evidence along the compensation chain.
package analyzer

import (
	"strings"

	"github.com/charmbracelet/log"

	"kinegraph/internal/graph"
	"kinegraph/internal/logging"
	"kinegraph/internal/registry"
	"kinegraph/internal/scoring"
	"kinegraph/internal/screener"
)

// WhyLevel is one step of the five-level causal chain mined from a paper.
// Strength is the fraction of the level's indicators present in the text.
type WhyLevel struct {
	Level    int
	Question string
	Matched  []string
	Strength float64
}

// Evidence links two named concepts through the analyzed paper.
type Evidence struct {
	A, B string
	Item scoring.EvidenceItem
}

// Analysis is everything one paper contributes to the graph.
type Analysis struct {
	PaperID   string
	Patterns  []string
	WhyLevels []WhyLevel
	WhyDepth  int
	Requests  []registry.NodeRequest
	Evidence  []Evidence
}

// treatmentRule emits one treatment node when its trigger word appears.
type treatmentRule struct {
	trigger  string
	name     string
	category string
	targets  []string
}

// patternRule recognizes one known dysfunction and names its cast.
type patternRule struct {
	pattern      string
	primary      string
	region       string
	indicators   []string
	compensators []string
	joints       []string
	downstream   []string
	assessments  []string
	stretch      string
}

var patternRules = []patternRule{
	{
		pattern:      "Gluteus Medius Weakness",
		primary:      "Gluteus Medius",
		region:       "hip",
		indicators:   []string{"gluteus medius weakness", "glut med weakness", "hip abductor weakness"},
		compensators: []string{"Tensor Fasciae Latae", "Hip Adductors", "Quadratus Lumborum"},
		joints:       []string{"Hip Joint", "Knee Joint", "SI Joint"},
		downstream:   []string{"Knee Valgus", "Hip Drop", "Lateral Pelvic Tilt"},
		assessments:  []string{"Trendelenburg Test", "Single Leg Squat", "Step Down Test"},
		stretch:      "Tensor Fasciae Latae",
	},
	{
		pattern:      "Serratus Anterior Weakness",
		primary:      "Serratus Anterior",
		region:       "shoulder",
		indicators:   []string{"serratus anterior dysfunction", "serratus weakness"},
		compensators: []string{"Upper Trapezius", "Levator Scapulae", "Rhomboids"},
		joints:       []string{"Glenohumeral Joint", "Scapulothoracic Joint"},
		downstream:   []string{"Scapular Winging", "Shoulder Elevation", "Forward Head Posture"},
		assessments:  []string{"Wall Push-Up Test", "Scapular Dyskinesis Test"},
		stretch:      "Upper Trapezius",
	},
	{
		pattern:      "Tibialis Posterior Dysfunction",
		primary:      "Tibialis Posterior",
		region:       "ankle",
		indicators:   []string{"tibialis posterior dysfunction", "tib post dysfunction"},
		compensators: []string{"Peroneals", "Gastrocnemius", "Hip Adductors"},
		joints:       []string{"Ankle Joint", "Subtalar Joint", "Hip Joint"},
		downstream:   []string{"Foot Pronation", "Medial Arch Collapse"},
		assessments:  []string{"Single Heel Raise Test", "Too Many Toes Sign"},
		stretch:      "Gastrocnemius",
	},
}

// whyLevels defines the five questions and the indicators that count as an
// answer attempt at each depth.
var whyLevels = []struct {
	question   string
	indicators []string
}{
	{"Why did the pain or dysfunction appear?", []string{"acute", "onset", "initial", "primary"}},
	{"Why is the muscle weak or overactive?", []string{"inhibition", "facilitation", "imbalance", "asymmetry"}},
	{"Why did the muscle imbalance develop?", []string{"predisposing", "risk factor", "etiology", "cause"}},
	{"Why did the compensation pattern form?", []string{"compensation", "adaptation", "strategy", "substitution"}},
	{"Why has the compensation become entrenched?", []string{"plasticity", "chronic", "persistent", "maladaptive"}},
}

// Analyzer extracts graph contributions from screened papers.
type Analyzer struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Analyzer{logger: logger}
}

// Analyze mines one paper. The paper itself always becomes a node; pattern
// casts and evidence are added for every dysfunction the text names.
func (a *Analyzer) Analyze(p screener.Paper) Analysis {
	text := strings.ToLower(p.Title + " " + p.Abstract)

	an := Analysis{PaperID: p.ID}
	an.WhyLevels = chainLevels(text)
	for _, lvl := range an.WhyLevels {
		if lvl.Strength > 0 {
			an.WhyDepth++
		}
	}

	an.Requests = append(an.Requests, registry.NodeRequest{
		Type: graph.NodePaper,
		Name: p.Title,
		Attributes: graph.Attributes{
			Journal: p.Journal,
			Year:    p.Year,
			Quality: p.Quality.Overall,
			Extra:   paperExtra(p),
		},
		EvidenceRefs: []string{p.ID},
	})

	for _, rule := range patternRules {
		if !containsAny(text, rule.indicators) {
			continue
		}
		an.Patterns = append(an.Patterns, rule.pattern)
		a.expandPattern(&an, rule, p, text)
	}

	a.logger.Debug("[Analyzer] Paper analyzed",
		"paper", p.ID, "patterns", len(an.Patterns), "why_depth", an.WhyDepth)
	return an
}

// AnalyzeAll mines a batch in order.
func (a *Analyzer) AnalyzeAll(papers []screener.Paper) []Analysis {
	out := make([]Analysis, 0, len(papers))
	for _, p := range papers {
		out = append(out, a.Analyze(p))
	}
	return out
}

// Collect flattens analyses into the registry batch and the evidence index
// the builder consumes.
func Collect(analyses []Analysis) ([]registry.NodeRequest, *scoring.EvidenceIndex) {
	var requests []registry.NodeRequest
	evidence := scoring.NewEvidenceIndex()
	for _, an := range analyses {
		requests = append(requests, an.Requests...)
		for _, ev := range an.Evidence {
			evidence.Add(ev.A, ev.B, ev.Item)
		}
	}
	return requests, evidence
}

// expandPattern emits the matched pattern's cast and the compensation-chain
// evidence pairs: primary-pattern, primary-compensator, and pattern against
// each compensator, joint and text-confirmed downstream effect.
func (a *Analyzer) expandPattern(an *Analysis, rule patternRule, p screener.Paper, text string) {
	refs := []string{p.ID}

	an.Requests = append(an.Requests, registry.NodeRequest{
		Type: graph.NodePattern,
		Name: rule.pattern,
		Attributes: graph.Attributes{
			Region:   rule.region,
			Stage:    stageOf(text),
			WhyDepth: an.WhyDepth,
			Quality:  p.Quality.Overall,
			Extra: map[string]string{
				"compensation_type": compensationTypeOf(text),
				"reversibility":     reversibilityOf(text),
			},
		},
		EvidenceRefs: refs,
	})
	an.Requests = append(an.Requests, registry.NodeRequest{
		Type: graph.NodeMuscle, Name: rule.primary, EvidenceRefs: refs,
	})
	an.addEvidence(rule.primary, rule.pattern, p)

	for _, m := range rule.compensators {
		an.Requests = append(an.Requests, registry.NodeRequest{
			Type: graph.NodeMuscle, Name: m, EvidenceRefs: refs,
		})
		an.addEvidence(rule.primary, m, p)
		an.addEvidence(rule.pattern, m, p)
	}
	for _, j := range rule.joints {
		an.Requests = append(an.Requests, registry.NodeRequest{
			Type: graph.NodeJoint, Name: j, EvidenceRefs: refs,
		})
		an.addEvidence(rule.pattern, j, p)
	}
	for _, d := range rule.downstream {
		if !strings.Contains(text, strings.ToLower(d)) {
			continue
		}
		an.Requests = append(an.Requests, registry.NodeRequest{
			Type: graph.NodePattern, Name: d,
			Attributes:   graph.Attributes{Region: rule.region},
			EvidenceRefs: refs,
		})
		an.addEvidence(rule.pattern, d, p)
	}
	for _, test := range rule.assessments {
		an.Requests = append(an.Requests, registry.NodeRequest{
			Type: graph.NodeAssessment, Name: test,
			Attributes: graph.Attributes{
				Category: "assessment",
				Targets:  []string{rule.primary, rule.pattern},
			},
			EvidenceRefs: refs,
		})
	}

	for _, tr := range treatmentsFor(rule) {
		if !strings.Contains(text, tr.trigger) {
			continue
		}
		an.Requests = append(an.Requests, registry.NodeRequest{
			Type: graph.NodeTreatment, Name: tr.name,
			Attributes: graph.Attributes{
				Category: tr.category,
				Targets:  tr.targets,
			},
			EvidenceRefs: refs,
		})
	}
}

func (an *Analysis) addEvidence(a, b string, p screener.Paper) {
	an.Evidence = append(an.Evidence, Evidence{
		A: a, B: b,
		Item: scoring.EvidenceItem{PaperID: p.ID, Quality: p.Quality.Overall},
	})
}

func treatmentsFor(rule patternRule) []treatmentRule {
	return []treatmentRule{
		{
			trigger:  "strengthening",
			name:     rule.primary + " Strengthening",
			category: "strengthening",
			targets:  []string{rule.primary},
		},
		{
			trigger:  "stretching",
			name:     rule.stretch + " Stretching",
			category: "stretching",
			targets:  []string{rule.stretch},
		},
		{
			trigger:  "motor control",
			name:     rule.primary + " Motor Control Retraining",
			category: "motor control",
			targets:  []string{rule.primary, rule.pattern},
		},
	}
}

// chainLevels walks the five why-questions over the text.
func chainLevels(text string) []WhyLevel {
	out := make([]WhyLevel, 0, len(whyLevels))
	for i, lvl := range whyLevels {
		var matched []string
		for _, ind := range lvl.indicators {
			if strings.Contains(text, ind) {
				matched = append(matched, ind)
			}
		}
		out = append(out, WhyLevel{
			Level:    i + 1,
			Question: lvl.question,
			Matched:  matched,
			Strength: float64(len(matched)) / float64(len(lvl.indicators)),
		})
	}
	return out
}

// compensationTypeOf classifies the dysfunction; first match wins, with
// substitution as the fallback.
func compensationTypeOf(text string) string {
	switch {
	case strings.Contains(text, "weakness"):
		return "weakness"
	case strings.Contains(text, "overactivity"), strings.Contains(text, "dominance"):
		return "overactivity"
	case strings.Contains(text, "substitution"):
		return "substitution"
	case strings.Contains(text, "adaptation"):
		return "adaptation"
	}
	return "substitution"
}

func stageOf(text string) string {
	switch {
	case strings.Contains(text, "acute"):
		return "acute"
	case strings.Contains(text, "chronic"):
		return "chronic"
	}
	return "compensated"
}

func reversibilityOf(text string) string {
	switch {
	case strings.Contains(text, "reversible"), strings.Contains(text, "recovery"):
		return "reversible"
	case strings.Contains(text, "fixed"), strings.Contains(text, "permanent"):
		return "fixed"
	}
	return "partially reversible"
}

func paperExtra(p screener.Paper) map[string]string {
	extra := map[string]string{"openalex_id": p.ID}
	if p.DOI != "" {
		extra["doi"] = p.DOI
	}
	if len(p.Concepts) > 0 {
		extra["concepts"] = strings.Join(p.Concepts, ", ")
	}
	return extra
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
