package embed

import (
	"fmt"
	"math"
	"sort"

	"github.com/vendexa/vendex/engine/domain"
)

// priorityKeys are tried first, in order, when searching an object for an
// embedding payload. Providers and SDK versions disagree on the key name.
var priorityKeys = []string{"embedding", "embeddings", "float"}

// ExtractBatch parses a decoded provider response of unpredictable shape into
// a batch of vectors. It accepts a flat numeric array (returned as a one-row
// batch), an array of numeric arrays, an array of per-item records, or an
// object wrapping any of these under some key. String inputs fail loudly:
// they are error bodies, never embeddings.
func ExtractBatch(raw any) ([][]float32, error) {
	if s, ok := raw.(string); ok {
		return nil, fmt.Errorf("embed: got string response %q: %w", truncate(s, 120), domain.ErrExtraction)
	}

	if batch, ok := extract(raw); ok {
		return batch, nil
	}
	return nil, fmt.Errorf("embed: no numeric array in response (sample %s): %w", sample(raw), domain.ErrExtraction)
}

// ExtractOne parses a response expected to contain a single vector. A batch
// response yields its first row.
func ExtractOne(raw any) ([]float32, error) {
	batch, err := ExtractBatch(raw)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("embed: empty batch: %w", domain.ErrExtraction)
	}
	return batch[0], nil
}

func extract(raw any) ([][]float32, bool) {
	switch t := raw.(type) {
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		if vec, ok := numericVector(t); ok {
			return [][]float32{vec}, true
		}
		if batch, ok := numericMatrix(t); ok {
			return batch, true
		}
		// Array of per-item records: one vector per element, all or nothing.
		batch := make([][]float32, 0, len(t))
		for _, item := range t {
			sub, ok := extract(item)
			if !ok || len(sub) != 1 {
				return nil, false
			}
			batch = append(batch, sub[0])
		}
		return batch, true
	case map[string]any:
		for _, key := range priorityKeys {
			if v, ok := t[key]; ok {
				if batch, ok := extract(v); ok {
					return batch, true
				}
			}
		}
		// Remaining keys in sorted order, so extraction is deterministic.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if batch, ok := extract(t[k]); ok {
				return batch, true
			}
		}
	}
	return nil, false
}

// numericVector reports whether every element of the list is a number.
func numericVector(list []any) ([]float32, bool) {
	if len(list) == 0 {
		return nil, false
	}
	vec := make([]float32, len(list))
	for i, v := range list {
		n, ok := asNumber(v)
		if !ok {
			return nil, false
		}
		vec[i] = n
	}
	return vec, true
}

func numericMatrix(list []any) ([][]float32, bool) {
	batch := make([][]float32, len(list))
	for i, row := range list {
		inner, ok := row.([]any)
		if !ok {
			return nil, false
		}
		vec, ok := numericVector(inner)
		if !ok {
			return nil, false
		}
		batch[i] = vec
	}
	return batch, true
}

func asNumber(v any) (float32, bool) {
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	}
	return 0, false
}

// Normalize L2-normalizes every row independently. Rows with zero norm are
// left as the zero vector rather than producing NaN.
func Normalize(batch [][]float32) [][]float32 {
	out := make([][]float32, len(batch))
	for i, row := range batch {
		out[i] = normalizeRow(row)
	}
	return out
}

func normalizeRow(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func sample(raw any) string {
	return truncate(fmt.Sprintf("%v", raw), 120)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
