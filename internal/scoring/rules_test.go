package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"kinegraph/internal/graph"
)

func TestDefaultRules_Valid(t *testing.T) {
	rules := DefaultRules()
	if err := rules.Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	assert.NotEmpty(t, rules.Regions)
	assert.NotEmpty(t, rules.Compensations)
	assert.NotEmpty(t, rules.Protocols)
}

func TestLoadRules_MissingFileKeepsDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRules_OverridesTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := "tiers:\n  anatomical_direct: 0.9\n  anatomical_chain: 0.5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.InDelta(t, 0.9, rules.Tiers.AnatomicalDirect, delta)
	assert.InDelta(t, 0.5, rules.Tiers.AnatomicalChain, delta)
	// Untouched tiers and tables keep their defaults.
	assert.InDelta(t, DefaultTiers().CausalStrong, rules.Tiers.CausalStrong, delta)
	assert.Equal(t, DefaultRules().Chains, rules.Chains)
}

func TestLoadRules_RejectsOutOfRangeTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("tiers:\n  causal_strong: 1.4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadRules(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "causal_strong")
}

func TestLoadRules_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("tiers: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestCompile_NormalizesRuleEntries(t *testing.T) {
	rules := DefaultRules()
	rules.Chains = map[string][]string{
		"Spiral  Line": {"Tibialis  ANTERIOR", "Peroneals"},
	}
	s := NewScorer(rules, nil)

	a := node(graph.NodeMuscle, "tibialis anterior")
	b := node(graph.NodeMuscle, "PERONEALS")

	sc := s.Score(a, b)
	assert.InDelta(t, rules.Tiers.AnatomicalChain, sc.Raw.Anatomical, delta)
}
