package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceIndex_ItemsSortedByPaper(t *testing.T) {
	ev := NewEvidenceIndex()
	ev.Add("gluteus medius", "hip drop", EvidenceItem{PaperID: "W2", Quality: 0.6})
	ev.Add("gluteus medius", "hip drop", EvidenceItem{PaperID: "W1", Quality: 0.8})

	items := ev.Items("gluteus medius", "hip drop")
	assert.Equal(t, []EvidenceItem{
		{PaperID: "W1", Quality: 0.8},
		{PaperID: "W2", Quality: 0.6},
	}, items)
}

func TestEvidenceIndex_OrderIndependentKeys(t *testing.T) {
	ev := NewEvidenceIndex()
	ev.Add("Hip Drop", "gluteus  medius", EvidenceItem{PaperID: "W1", Quality: 0.7})

	assert.Len(t, ev.Items("gluteus medius", "hip drop"), 1)
	assert.Len(t, ev.Items("HIP DROP", "Gluteus Medius"), 1)
	assert.Equal(t, 1, ev.Len())
}

func TestEvidenceIndex_DuplicatePaperKeepsMaxQuality(t *testing.T) {
	ev := NewEvidenceIndex()
	ev.Add("a", "b", EvidenceItem{PaperID: "W1", Quality: 0.5})
	ev.Add("a", "b", EvidenceItem{PaperID: "W1", Quality: 0.9})
	ev.Add("a", "b", EvidenceItem{PaperID: "W1", Quality: 0.2})

	items := ev.Items("a", "b")
	if len(items) != 1 {
		t.Fatalf("expected a single deduplicated item, got %d", len(items))
	}
	assert.InDelta(t, 0.9, items[0].Quality, delta)
}

func TestEvidenceIndex_IgnoresDegenerateInput(t *testing.T) {
	ev := NewEvidenceIndex()
	ev.Add("", "b", EvidenceItem{PaperID: "W1", Quality: 0.5})
	ev.Add("a", "  ", EvidenceItem{PaperID: "W1", Quality: 0.5})
	ev.Add("a", "a", EvidenceItem{PaperID: "W1", Quality: 0.5})
	ev.Add("a", "b", EvidenceItem{PaperID: "", Quality: 0.5})

	assert.Equal(t, 0, ev.Len())
	assert.Nil(t, ev.Items("a", "b"))
}

func TestEvidenceIndex_PairsSorted(t *testing.T) {
	ev := NewEvidenceIndex()
	ev.Add("c", "d", EvidenceItem{PaperID: "W1", Quality: 0.5})
	ev.Add("b", "a", EvidenceItem{PaperID: "W2", Quality: 0.5})

	assert.Equal(t, []string{"a|b", "c|d"}, ev.Pairs())
}
