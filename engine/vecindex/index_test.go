package vecindex

import (
	"errors"
	"testing"

	"github.com/vendexa/vendex/engine/domain"
)

// orthonormal test fixture: three basis vectors plus a diagonal between the
// first two.
func testVectors() [][]float32 {
	inv := float32(0.70710678)
	return [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{inv, inv, 0},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Build(testVectors())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	metas := []domain.Metadata{
		{"vendor_id": "v-0", "name": "zero"},
		{"vendor_id": "v-1", "name": "one"},
		{"vendor_id": "v-2", "name": "two"},
		{"vendor_id": "v-3", "name": "three"},
	}
	if err := ix.AttachMetadata(metas); err != nil {
		t.Fatalf("attach: %v", err)
	}
	return ix
}

func TestBuild_Empty(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBuild_InconsistentDimensions(t *testing.T) {
	_, err := Build([][]float32{{1, 0}, {1, 0, 0}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAttachMetadata_CountMismatch(t *testing.T) {
	ix, _ := Build([][]float32{{1, 0}})
	err := ix.AttachMetadata([]domain.Metadata{{}, {}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSearch_Ranking(t *testing.T) {
	ix := buildTestIndex(t)

	scores, positions, err := ix.Search([]float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(positions))
	}
	// Exact match first, then the diagonal neighbor.
	if positions[0] != 0 || positions[1] != 3 {
		t.Fatalf("positions = %v, want [0 3]", positions)
	}
	if scores[0] <= scores[1] {
		t.Fatalf("scores not descending: %v", scores)
	}
}

func TestSearch_ThresholdFiltersAfterTopK(t *testing.T) {
	ix := buildTestIndex(t)

	thr := float32(0.9)
	scores, positions, err := ix.Search([]float32{1, 0, 0}, 3, &thr)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Only the exact match survives the 0.9 cut.
	if len(positions) != 1 || positions[0] != 0 {
		t.Fatalf("positions = %v scores = %v, want only position 0", positions, scores)
	}
}

func TestSearch_ThresholdMonotonic(t *testing.T) {
	ix := buildTestIndex(t)
	q := []float32{1, 0, 0}

	prev := ix.count + 1
	for _, thr := range []float32{0, 0.5, 0.8, 0.99} {
		th := thr
		_, positions, err := ix.Search(q, 4, &th)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(positions) > prev {
			t.Fatalf("result count grew as threshold rose: %d > %d at %f", len(positions), prev, thr)
		}
		prev = len(positions)
	}
}

func TestSearch_TieBreakByPosition(t *testing.T) {
	ix, err := Build([][]float32{{0, 1}, {1, 0}, {1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	_, positions, err := ix.Search([]float32{1, 0}, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if positions[0] != 1 || positions[1] != 2 {
		t.Fatalf("tie not broken by position: %v", positions)
	}
}

func TestSearch_KLargerThanCount(t *testing.T) {
	ix := buildTestIndex(t)
	_, positions, err := ix.Search([]float32{0, 1, 0}, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 4 {
		t.Fatalf("expected all 4 vectors, got %d", len(positions))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	ix := buildTestIndex(t)
	_, _, err := ix.Search([]float32{1, 0}, 2, nil)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearch_NotBuilt(t *testing.T) {
	var ix Index
	_, _, err := ix.Search([]float32{1}, 1, nil)
	if !errors.Is(err, domain.ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}

func TestMetadataAt_SkipsOutOfRange(t *testing.T) {
	ix := buildTestIndex(t)
	metas := ix.MetadataAt([]int{2, -1, 99, 0})
	if len(metas) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(metas))
	}
	if metas[0]["vendor_id"] != "v-2" || metas[1]["vendor_id"] != "v-0" {
		t.Fatalf("unexpected metadata: %v", metas)
	}
}

func TestVectorAt(t *testing.T) {
	ix := buildTestIndex(t)
	v := ix.VectorAt(1)
	if len(v) != 3 || v[1] != 1 {
		t.Fatalf("unexpected vector at 1: %v", v)
	}
}
