package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCycleReport_StageLifecycle(t *testing.T) {
	r := NewCycleReport("cycle", "hip compensation", "vault")
	assert.NotEmpty(t, r.RunID)

	h := r.BeginStage("screen")
	r.EndStage(h, map[string]float64{"found": 12, " ": 1}, nil)

	h = r.BeginStage("build")
	r.EndStage(h, nil, errors.New("scoring exploded"))

	r.Finalize()
	if len(r.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(r.Stages))
	}
	assert.Equal(t, "ok", r.Stages[0].Status)
	assert.Equal(t, map[string]float64{"found": 12}, r.Stages[0].Counters)
	assert.Equal(t, "error", r.Stages[1].Status)
	assert.Equal(t, "scoring exploded", r.Stages[1].Error)
	assert.Equal(t, 2, r.Summary.StageCount)
	assert.Equal(t, 1, r.Summary.FailedStages)
}

func TestCycleReport_SignalsSortBySeverity(t *testing.T) {
	r := NewCycleReport("sync", "", "vault")
	r.AddSignal("no_new_papers", "screen", "info", "nothing unseen", 0)
	r.AddSignal("type_conflict", "ingest", "WARNING", "pattern vs muscle", 0)
	r.AddSignal("store_gone", "persist", "critical", "database vanished", 0)
	r.AddSignal("", "ingest", "warning", "dropped for blank code", 0)
	r.Finalize()

	if len(r.Signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(r.Signals))
	}
	assert.Equal(t, "critical", r.Signals[0].Severity)
	assert.Equal(t, "warning", r.Signals[1].Severity)
	assert.Equal(t, "info", r.Signals[2].Severity)
	assert.Equal(t, map[string]int{"critical": 1, "warning": 1, "info": 1}, r.Summary.SignalsBySeverity)
}

func TestCycleReport_NilReceiverIsSafe(t *testing.T) {
	var r *CycleReport
	h := r.BeginStage("screen")
	r.EndStage(h, nil, nil)
	r.AddSignal("x", "y", "info", "z", 0)
	r.Finalize()
	if err := r.Save(filepath.Join(t.TempDir(), "report.json")); err != nil {
		t.Fatalf("nil save: %v", err)
	}
}

func TestCycleReport_SaveWritesIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "cycle_report.json")
	r := NewCycleReport("cycle", "", "vault")
	h := r.BeginStage("screen")
	r.EndStage(h, nil, nil)

	if err := r.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assert.Contains(t, string(data), "\"run_id\"")
	assert.Contains(t, string(data), "\n")
}
