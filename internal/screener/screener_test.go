package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kinegraph/internal/config"
)

type fakeSearcher struct {
	works []Work
	err   error
	query Query
}

func (f *fakeSearcher) Search(ctx context.Context, q Query) ([]Work, error) {
	f.query = q
	return f.works, f.err
}

// abstractIndex turns a sentence into the inverted index OpenAlex would
// deliver it as.
func abstractIndex(abstract string) map[string][]int {
	index := make(map[string][]int)
	for i, word := range strings.Fields(abstract) {
		index[word] = append(index[word], i)
	}
	return index
}

func fixtureWork(id, title, journal, abstract string, year, cited int) Work {
	w := Work{
		ID:                    "https://openalex.org/" + id,
		DisplayName:           title,
		PublicationYear:       year,
		CitedByCount:          cited,
		AbstractInvertedIndex: abstractIndex(abstract),
	}
	if journal != "" {
		w.PrimaryLocation = &Location{Source: &Source{DisplayName: journal}}
	}
	return w
}

func screenerFor(works []Work, cfg config.ScreenerConfig) *Screener {
	return New(&fakeSearcher{works: works}, cfg, nil)
}

func TestScreen_FieldStageRejectsOffTopicAndSurgical(t *testing.T) {
	year := time.Now().Year() - 3
	works := []Work{
		fixtureWork("W1", "Randomized controlled trial of gluteus medius strengthening",
			"Physical Therapy",
			"Hip abductor weakness drives compensatory overactivity. In this randomized controlled trial, 40 participants completed strengthening exercise with electromyography.",
			year, 60),
		fixtureWork("W2", "Pharmacokinetics of ibuprofen in healthy adults",
			"Journal of Chemistry",
			"Plasma concentration profiles were measured after oral dosing.",
			year, 60),
		fixtureWork("W3", "Outcomes of hip surgery",
			"",
			"Surgical operation with postoperative injection therapy after arthroscopy.",
			year, 60),
	}

	res, err := screenerFor(works, config.ScreenerConfig{MaxPapers: 10}).Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 1, res.FieldPass)
	if len(res.Papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(res.Papers))
	}
	assert.Equal(t, "W1", res.Papers[0].ID)
}

func TestScreen_QualityStageNeedsStudyDesign(t *testing.T) {
	year := time.Now().Year() - 3
	works := []Work{
		fixtureWork("W1", "Compensatory strategies in gait", "Clinical Biomechanics",
			"Compensatory hip abductor overactivity in 40 participants measured with electromyography during exercise.",
			year, 30),
		fixtureWork("W2", "A case report of compensatory hip abductor overactivity", "Clinical Biomechanics",
			"This case report describes compensatory hip abductor overactivity in one runner during exercise.",
			year, 30),
		fixtureWork("W3", "Cohort study of compensatory hip abductor overactivity", "Clinical Biomechanics",
			"In this cohort study, compensatory hip abductor overactivity was measured in 40 participants with electromyography during exercise.",
			year, 30),
	}

	res, err := screenerFor(works, config.ScreenerConfig{MaxPapers: 10}).Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, 3, res.FieldPass)
	assert.Equal(t, 1, res.QualityPass, "no named design and case report should both fail")
	if len(res.Papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(res.Papers))
	}
	assert.Equal(t, "W3", res.Papers[0].ID)
	assert.Equal(t, "Clinical Biomechanics", res.Papers[0].Journal)
}

func TestScreen_RelevanceStageNeedsCausalLanguage(t *testing.T) {
	year := time.Now().Year() - 2
	works := []Work{
		fixtureWork("W1", "A randomized controlled trial of gluteus medius function", "Clinical Biomechanics",
			"In 30 participants we measured gluteus medius activity.",
			year, 20),
	}

	res, err := screenerFor(works, config.ScreenerConfig{MaxPapers: 10}).Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, 1, res.QualityPass)
	assert.Equal(t, 0, res.RelevancePass)
	assert.Empty(t, res.Papers)
}

func TestScreen_GradesQuality(t *testing.T) {
	year := time.Now().Year() - 5
	work := fixtureWork("W500", "Cohort study of hip abductor compensation", "Physical Therapy",
		"In this cohort study of hip abductor compensation, 100 participants underwent electromyography. Exercise training reduced compensatory overactivity because gluteus medius strength improved.",
		year, 25)
	work.DOI = "https://doi.org/10.1000/gm500"
	work.Concepts = []Concept{
		{DisplayName: "Physical therapy", Score: 0.62},
		{DisplayName: "Chemistry", Score: 0.11},
	}

	res, err := screenerFor([]Work{work}, config.ScreenerConfig{MaxPapers: 10}).Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if len(res.Papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(res.Papers))
	}

	p := res.Papers[0]
	assert.Equal(t, "W500", p.ID, "openalex url prefix should be trimmed")
	assert.Equal(t, "https://doi.org/10.1000/gm500", p.DOI)
	assert.Equal(t, year, p.Year)
	assert.Equal(t, 25, p.CitedBy)
	assert.Equal(t, []string{"Physical therapy"}, p.Concepts, "low-confidence concepts should be dropped")
	assert.Contains(t, p.Abstract, "100 participants")

	// Cohort design, top-tier journal, 25 citations over five years.
	assert.InDelta(t, 0.7, p.Quality.Design, 1e-9)
	assert.InDelta(t, 1.0, p.Quality.Source, 1e-9)
	assert.InDelta(t, 0.5, p.Quality.Impact, 1e-9)
	assert.InDelta(t, (0.7+1.0+0.5)/3, p.Quality.Overall, 1e-9)
	assert.Equal(t, 14, p.Relevance)
}

// templateTrio returns three papers identical except for study design, so
// Overall quality is the only thing separating them.
func templateTrio(t *testing.T) []Work {
	t.Helper()
	year := time.Now().Year() - 1
	abstract := "This %s examined compensatory hip abductor function in 60 participants using electromyography and exercise training because muscle imbalance alters kinematics."
	designs := []string{"randomized controlled trial", "cohort study", "cross-sectional study"}

	works := make([]Work, len(designs))
	for i, design := range designs {
		works[i] = fixtureWork(fmt.Sprintf("W%d", i+1), "Compensation after hip abductor fatigue",
			"Physiotherapy", fmt.Sprintf(abstract, design), year, 50)
	}
	return works
}

func TestScreen_SortsByQualityAndTruncates(t *testing.T) {
	res, err := screenerFor(templateTrio(t), config.ScreenerConfig{MaxPapers: 2}).Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, 3, res.RelevancePass)
	if len(res.Papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(res.Papers))
	}
	assert.Equal(t, "W1", res.Papers[0].ID)
	assert.Equal(t, "W2", res.Papers[1].ID)
	assert.InDelta(t, (1.0+2.3/4.5+1.0)/3, res.Papers[0].Quality.Overall, 1e-9)
	assert.Greater(t, res.Papers[0].Quality.Overall, res.Papers[1].Quality.Overall)
}

func TestScreen_MinQualityGate(t *testing.T) {
	res, err := screenerFor(templateTrio(t), config.ScreenerConfig{MaxPapers: 10, MinQuality: 0.75}).Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, 3, res.RelevancePass, "the gate applies after the stages")
	if len(res.Papers) != 1 {
		t.Fatalf("expected only the trial to clear 0.75, got %d papers", len(res.Papers))
	}
	assert.Equal(t, "W1", res.Papers[0].ID)
}

func TestScreen_OverfetchesSearch(t *testing.T) {
	fake := &fakeSearcher{}
	s := New(fake, config.ScreenerConfig{PerPage: 10, MaxPapers: 10}, nil)

	res, err := s.Screen(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, 0, res.Found)
	assert.Equal(t, 10, fake.query.PerPage)
	assert.Equal(t, 50, fake.query.MaxResults)
	assert.Equal(t, DefaultQuery().Terms, fake.query.Terms)
	assert.Equal(t, 2010, fake.query.FromYear)
}

func TestScreen_OverfetchCapsAtAPIMaximum(t *testing.T) {
	fake := &fakeSearcher{}
	s := New(fake, config.ScreenerConfig{PerPage: 50, MaxPapers: 100}, nil)

	if _, err := s.Screen(context.Background(), "", 0); err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	assert.Equal(t, 200, fake.query.MaxResults)
}

func TestScreen_QueryAndLimitOverrideDefaults(t *testing.T) {
	fake := &fakeSearcher{works: templateTrio(t)}
	s := New(fake, config.ScreenerConfig{PerPage: 10, MaxPapers: 50}, nil)

	res, err := s.Screen(context.Background(), "ankle compensation", 1)
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}

	assert.Equal(t, []string{"ankle compensation"}, fake.query.Terms)
	assert.Equal(t, 5, fake.query.MaxResults, "overfetch follows the explicit limit")
	if len(res.Papers) != 1 {
		t.Fatalf("expected the limit to truncate to 1 paper, got %d", len(res.Papers))
	}
	assert.Equal(t, "W1", res.Papers[0].ID)
}

func TestScreen_SearchErrorPropagates(t *testing.T) {
	fake := &fakeSearcher{err: errors.New("openalex unreachable")}
	s := New(fake, config.ScreenerConfig{MaxPapers: 10}, nil)

	_, err := s.Screen(context.Background(), "", 0)
	if err == nil {
		t.Fatal("expected the search error to surface")
	}
	assert.Contains(t, err.Error(), "failed to screen literature")
}
