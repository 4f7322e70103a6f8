package screener

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"kinegraph/internal/config"
	"kinegraph/internal/logging"
)

// Searcher is the slice of the OpenAlex client the screener depends on.
// Tests substitute a fixture-backed implementation.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Work, error)
}

// Concepts below this OpenAlex confidence score are noise and are dropped.
const minConceptScore = 0.3

// QualityScore grades an accepted paper on three axes, each normalized to
// [0,1]: study design tier, journal standing and citation rate. Overall is
// their mean and is what evidence weighting downstream consumes.
type QualityScore struct {
	Design  float64
	Source  float64
	Impact  float64
	Overall float64
}

// Paper is a work that survived screening, with its abstract restored and
// its quality graded.
type Paper struct {
	ID        string
	DOI       string
	Title     string
	Journal   string
	Year      int
	CitedBy   int
	Abstract  string
	Concepts  []string
	Quality   QualityScore
	Relevance int
}

// Result reports how many works survived each screening stage.
type Result struct {
	Found         int
	FieldPass     int
	QualityPass   int
	RelevancePass int
	Papers        []Paper
}

// compensationKeywords mark a work as compensation literature.
var compensationKeywords = []string{
	"compensation", "compensatory", "overactivity", "substitution",
	"muscle imbalance", "altered kinematics", "movement dysfunction",
	"gait deviation", "postural compensation", "pain adaptation",
	"force redistribution", "load transfer", "kinetic chain",
}

// anatomyKeywords mark the structures the graph actually models.
var anatomyKeywords = []string{
	"gluteus medius", "tensor fasciae latae", "tfl", "glut med",
	"serratus anterior", "upper trapezius", "tibialis posterior",
	"peroneal", "hip abductor", "scapular dyskinesis",
}

// excludeKeywords flag surgical and pharmacological studies, which say
// little about conservative movement retraining.
var excludeKeywords = []string{
	"surgery", "surgical", "operation", "medication",
	"drug", "pharmaceutical", "injection", "arthroscopy",
}

// qualityJournals maps recognized journals to a standing tier. Matching is
// by substring of the source name, highest tier wins.
var qualityJournals = map[string]float64{
	"physical therapy":                                 4.5,
	"journal of orthopaedic & sports physical therapy": 3.8,
	"archives of physical medicine and rehabilitation": 3.2,
	"manual therapy":                                   2.9,
	"clinical biomechanics":                            2.8,
	"gait & posture":                                   2.5,
	"journal of biomechanics":                          2.4,
	"physiotherapy":                                    2.3,
	"journal of electromyography and kinesiology":      2.1,
	"human movement science":                           2.0,
}

var maxJournalTier = func() float64 {
	best := 0.0
	for _, tier := range qualityJournals {
		if tier > best {
			best = tier
		}
	}
	return best
}()

// designScores rank study designs; the best-matching design wins.
var designScores = map[string]int{
	"randomized controlled trial": 10,
	"rct":                         10,
	"systematic review":           9,
	"meta-analysis":               9,
	"cohort study":                7,
	"prospective":                 6,
	"cross-sectional":             5,
	"case-control":                4,
	"case series":                 2,
	"case report":                 1,
}

// whyIndicators score how far a paper reaches into causal mechanism, which
// the keyword analyzer later mines for cause chains.
var whyIndicators = map[string]int{
	"mechanism":       3,
	"pathophysiology": 3,
	"compensatory":    3,
	"cause":           2,
	"etiology":        2,
	"primary":         2,
	"secondary":       2,
	"adaptation":      2,
	"strategy":        2,
	"due to":          1,
	"because":         1,
	"result":          1,
	"lead to":         1,
}

var assessmentMethods = map[string]int{
	"electromyography": 3,
	"emg":              3,
	"motion analysis":  3,
	"3d motion":        3,
	"kinematics":       2,
	"kinetics":         2,
	"force plate":      2,
	"clinical test":    2,
	"functional":       2,
	"pressure":         1,
	"performance":      1,
}

var interventionMethods = map[string]int{
	"exercise":       3,
	"strengthening":  3,
	"stretching":     2,
	"training":       2,
	"rehabilitation": 2,
	"manual":         2,
	"mobilization":   2,
	"therapy":        1,
	"education":      1,
}

// specificPatterns are named compensation patterns; each hit is worth two
// relevance points because they tie a paper to a concrete graph node.
var specificPatterns = []string{
	"gluteus medius weakness", "tfl overactivity", "hip hiking",
	"serratus anterior dysfunction", "upper trap dominance",
	"tibialis posterior dysfunction", "peroneal compensation",
	"scapular dyskinesis", "anterior head posture",
}

var sampleSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)n\s*=\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s+participants?`),
	regexp.MustCompile(`(?i)(\d+)\s+subjects?`),
	regexp.MustCompile(`(?i)(\d+)\s+patients?`),
}

// Screener turns a raw OpenAlex search into graded papers by running three
// screening stages in order: field fit, study quality, then compensation
// relevance. Each stage only narrows the set, so stage counts in Result are
// monotonically non-increasing.
type Screener struct {
	client Searcher
	cfg    config.ScreenerConfig
	logger *log.Logger
}

func New(client Searcher, cfg config.ScreenerConfig, logger *log.Logger) *Screener {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Screener{client: client, cfg: cfg, logger: logger}
}

// Screen searches OpenAlex and filters the results down to graded papers,
// ordered best-first. An empty query runs the standing compensation search;
// limit <= 0 falls back to the configured MaxPapers cap.
func (s *Screener) Screen(ctx context.Context, query string, limit int) (*Result, error) {
	q := DefaultQuery()
	if strings.TrimSpace(query) != "" {
		q.Terms = []string{query}
	}
	if limit <= 0 {
		limit = s.cfg.MaxPapers
	}
	q.PerPage = s.cfg.PerPage
	// Overfetch so the filters have slack to reject.
	q.MaxResults = limit * 5
	if q.MaxResults > 200 {
		q.MaxResults = 200
	}

	works, err := s.client.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to screen literature: %w", err)
	}

	cands := make([]candidate, 0, len(works))
	for _, w := range works {
		cands = append(cands, newCandidate(w))
	}

	res := &Result{Found: len(works)}

	cands = filterField(cands)
	res.FieldPass = len(cands)
	s.logger.Info("[Screener] Field filter", "in", res.Found, "out", res.FieldPass)

	cands = filterQuality(cands, time.Now().Year())
	res.QualityPass = len(cands)
	s.logger.Info("[Screener] Quality filter", "out", res.QualityPass)

	cands = filterRelevance(cands)
	res.RelevancePass = len(cands)
	s.logger.Info("[Screener] Relevance filter", "out", res.RelevancePass)

	papers := make([]Paper, 0, len(cands))
	for _, c := range cands {
		p := c.paper()
		if p.Quality.Overall < s.cfg.MinQuality {
			continue
		}
		papers = append(papers, p)
	}
	sort.Slice(papers, func(i, j int) bool {
		if papers[i].Quality.Overall != papers[j].Quality.Overall {
			return papers[i].Quality.Overall > papers[j].Quality.Overall
		}
		if papers[i].CitedBy != papers[j].CitedBy {
			return papers[i].CitedBy > papers[j].CitedBy
		}
		return papers[i].ID < papers[j].ID
	})
	if limit > 0 && len(papers) > limit {
		papers = papers[:limit]
	}
	res.Papers = papers

	s.logger.Info("[Screener] Screening complete", "found", res.Found, "accepted", len(papers))
	return res, nil
}

// candidate carries a work plus the stage scores accumulated while it moves
// through the filters.
type candidate struct {
	work     Work
	abstract string
	journal  string
	text     string

	tier         float64
	designRaw    int
	citationRate float64
	relevance    int
}

func newCandidate(w Work) candidate {
	abstract := w.Abstract()
	return candidate{
		work:     w,
		abstract: abstract,
		journal:  w.JournalName(),
		text:     strings.ToLower(w.DisplayName + " " + abstract),
	}
}

// filterField keeps works that read like compensation literature: points
// for a recognized journal and for compensation and anatomy keyword hits,
// minus surgical/pharmacological hits.
func filterField(cands []candidate) []candidate {
	kept := cands[:0]
	for _, c := range cands {
		c.tier = journalTier(c.journal)
		compHits := countMatches(c.text, compensationKeywords)
		anatHits := countMatches(c.text, anatomyKeywords)
		exclHits := countMatches(c.text, excludeKeywords)

		total := c.tier + float64(compHits+anatHits-exclHits)
		if total >= 1 && exclHits <= 2 {
			kept = append(kept, c)
		}
	}
	return kept
}

// filterQuality keeps methodologically sound works. The raw score sums the
// design tier, a sample-size bonus, citations per year and a multi-center
// bonus; passing needs six points overall and at least a named design.
func filterQuality(cands []candidate, nowYear int) []candidate {
	kept := cands[:0]
	for _, c := range cands {
		for design, score := range designScores {
			if score > c.designRaw && strings.Contains(c.text, design) {
				c.designRaw = score
			}
		}

		sampleScore := 0.0
		if n := sampleSize(c.text); n > 0 {
			sampleScore = min(float64(n)/20, 5)
		}

		years := nowYear - c.work.PublicationYear
		if years < 1 {
			years = 1
		}
		c.citationRate = min(float64(c.work.CitedByCount)/float64(years), 10)

		institutions := c.work.InstitutionsDistinctCount
		if institutions < 1 {
			institutions = 1
		}
		institutionScore := float64(min(institutions, 3))

		total := float64(c.designRaw) + sampleScore + c.citationRate + institutionScore
		if total >= 6 && c.designRaw >= 2 {
			kept = append(kept, c)
		}
	}
	return kept
}

// filterRelevance keeps works whose text supports downstream cause-chain
// mining: causal language, measurement methods, interventions and named
// compensation patterns.
func filterRelevance(cands []candidate) []candidate {
	kept := cands[:0]
	for _, c := range cands {
		score := scoreMatches(c.text, whyIndicators) +
			scoreMatches(c.text, assessmentMethods) +
			scoreMatches(c.text, interventionMethods)
		for _, pattern := range specificPatterns {
			if strings.Contains(c.text, pattern) {
				score += 2
			}
		}
		c.relevance = score
		if score >= 4 {
			kept = append(kept, c)
		}
	}
	return kept
}

func (c candidate) paper() Paper {
	p := Paper{
		ID:        strings.TrimPrefix(c.work.ID, "https://openalex.org/"),
		DOI:       c.work.DOI,
		Title:     c.work.DisplayName,
		Journal:   c.journal,
		Year:      c.work.PublicationYear,
		CitedBy:   c.work.CitedByCount,
		Abstract:  c.abstract,
		Relevance: c.relevance,
	}
	for _, concept := range c.work.Concepts {
		if concept.Score >= minConceptScore {
			p.Concepts = append(p.Concepts, concept.DisplayName)
		}
	}
	p.Quality = QualityScore{
		Design: float64(c.designRaw) / 10,
		Source: c.tier / maxJournalTier,
		Impact: c.citationRate / 10,
	}
	p.Quality.Overall = (p.Quality.Design + p.Quality.Source + p.Quality.Impact) / 3
	return p
}

// journalTier returns the standing of the best-matching recognized journal,
// or zero for an unlisted source.
func journalTier(name string) float64 {
	lower := strings.ToLower(name)
	best := 0.0
	for journal, tier := range qualityJournals {
		if tier > best && strings.Contains(lower, journal) {
			best = tier
		}
	}
	return best
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func scoreMatches(text string, weighted map[string]int) int {
	total := 0
	for needle, score := range weighted {
		if strings.Contains(text, needle) {
			total += score
		}
	}
	return total
}

// sampleSize pulls the first plausible participant count out of the text.
func sampleSize(text string) int {
	for _, re := range sampleSizePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}
