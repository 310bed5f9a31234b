package embed

import (
	"errors"
	"math"
	"testing"

	"github.com/vendexa/vendex/engine/domain"
)

func TestExtractBatch_FlatArray(t *testing.T) {
	raw := []any{0.1, 0.2, 0.3}
	batch, err := ExtractBatch(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batch) != 1 || len(batch[0]) != 3 {
		t.Fatalf("expected 1x3 batch, got %v", batch)
	}
	if batch[0][2] != float32(0.3) {
		t.Fatalf("unexpected value %v", batch[0][2])
	}
}

func TestExtractBatch_Matrix(t *testing.T) {
	raw := []any{
		[]any{1.0, 0.0},
		[]any{0.0, 1.0},
	}
	batch, err := ExtractBatch(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(batch))
	}
}

func TestExtractBatch_WrappedObject(t *testing.T) {
	raw := map[string]any{
		"id":         "resp-1",
		"embeddings": []any{[]any{0.5, 0.5}},
	}
	batch, err := ExtractBatch(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batch) != 1 || len(batch[0]) != 2 {
		t.Fatalf("expected 1x2 batch, got %v", batch)
	}
}

func TestExtractBatch_PriorityKeyWins(t *testing.T) {
	// "aaa" sorts before "embedding" but the priority key must win.
	raw := map[string]any{
		"aaa":       []any{9.0, 9.0},
		"embedding": []any{1.0, 2.0},
	}
	batch, err := ExtractBatch(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if batch[0][0] != 1.0 || batch[0][1] != 2.0 {
		t.Fatalf("priority key ignored, got %v", batch[0])
	}
}

func TestExtractBatch_RecordArray(t *testing.T) {
	raw := []any{
		map[string]any{"embedding": []any{1.0, 0.0}},
		map[string]any{"embedding": []any{0.0, 1.0}},
	}
	batch, err := ExtractBatch(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected one vector per record, got %d", len(batch))
	}
}

func TestExtractBatch_RecordArrayAllOrNothing(t *testing.T) {
	raw := []any{
		map[string]any{"embedding": []any{1.0, 0.0}},
		map[string]any{"note": "no vector here"},
	}
	if _, err := ExtractBatch(raw); !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractBatch_StringFails(t *testing.T) {
	_, err := ExtractBatch("rate limit exceeded")
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractBatch_NoNumericContent(t *testing.T) {
	raw := map[string]any{"message": "ok", "items": []any{"a", "b"}}
	if _, err := ExtractBatch(raw); !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractOne(t *testing.T) {
	vec, err := ExtractOne(map[string]any{"embedding": []any{0.1, 0.2}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected 2 dims, got %d", len(vec))
	}
}

func TestNormalize_UnitNorm(t *testing.T) {
	batch := Normalize([][]float32{{3, 4}})
	var sum float64
	for _, x := range batch[0] {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %f", math.Sqrt(sum))
	}
	if math.Abs(float64(batch[0][0])-0.6) > 1e-6 {
		t.Fatalf("expected 0.6, got %f", batch[0][0])
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	batch := Normalize([][]float32{{0, 0, 0}})
	for _, x := range batch[0] {
		if x != 0 {
			t.Fatalf("zero vector should stay zero, got %v", batch[0])
		}
		if math.IsNaN(float64(x)) {
			t.Fatal("zero vector produced NaN")
		}
	}
}
