// Package vecindex implements an exact inner-product nearest-neighbor index
// over float32 vectors, with a parallel metadata array keyed by vector
// position. The scan is brute force: the catalogue is small and evaluation
// requires exact, reproducible rankings.
package vecindex

import (
	"fmt"
	"sort"

	"github.com/vendexa/vendex/engine/domain"
)

// Index is an immutable-after-build collection of vectors plus metadata.
// Concurrent reads are safe; rebuilds produce a fresh Index that the caller
// swaps in.
type Index struct {
	dim   int
	count int
	data  []float32 // row-major, count*dim
	meta  []domain.Metadata
}

// Build creates an index over the given vectors. The dimension is taken from
// the first vector; inconsistent rows fail fast.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("vecindex: build with no vectors: %w", domain.ErrValidation)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vecindex: zero-dimension vectors: %w", domain.ErrValidation)
	}

	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vecindex: vector %d has dimension %d, want %d: %w", i, len(v), dim, domain.ErrDimensionMismatch)
		}
		data = append(data, v...)
	}

	return &Index{dim: dim, count: len(vectors), data: data}, nil
}

// AttachMetadata associates one metadata entry per vector, by position.
func (ix *Index) AttachMetadata(entries []domain.Metadata) error {
	if len(entries) != ix.count {
		return fmt.Errorf("vecindex: %d metadata entries for %d vectors: %w", len(entries), ix.count, domain.ErrValidation)
	}
	ix.meta = entries
	return nil
}

// Count returns the number of indexed vectors.
func (ix *Index) Count() int { return ix.count }

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// VectorAt returns the stored vector at the given position. The returned
// slice aliases the index storage and must not be mutated.
func (ix *Index) VectorAt(pos int) []float32 {
	return ix.data[pos*ix.dim : (pos+1)*ix.dim]
}

// Search returns up to k nearest neighbors of query by inner product, in
// descending score order with ties broken by ascending position. If
// threshold is non-nil, hits scoring below it are dropped, which may yield
// fewer than k results.
func (ix *Index) Search(query []float32, k int, threshold *float32) ([]float32, []int, error) {
	if ix == nil || ix.count == 0 {
		return nil, nil, fmt.Errorf("vecindex: search before build/load: %w", domain.ErrNotBuilt)
	}
	if len(query) != ix.dim {
		return nil, nil, fmt.Errorf("vecindex: query dimension %d, index dimension %d: %w", len(query), ix.dim, domain.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil, nil
	}

	positions := make([]int, ix.count)
	scores := make([]float32, ix.count)
	for pos := 0; pos < ix.count; pos++ {
		positions[pos] = pos
		scores[pos] = dot(ix.VectorAt(pos), query)
	}

	sort.Slice(positions, func(a, b int) bool {
		pa, pb := positions[a], positions[b]
		if scores[pa] != scores[pb] {
			return scores[pa] > scores[pb]
		}
		return pa < pb
	})

	if k > ix.count {
		k = ix.count
	}

	outScores := make([]float32, 0, k)
	outPositions := make([]int, 0, k)
	for _, pos := range positions[:k] {
		if threshold != nil && scores[pos] < *threshold {
			continue
		}
		outScores = append(outScores, scores[pos])
		outPositions = append(outPositions, pos)
	}
	return outScores, outPositions, nil
}

// MetadataAt maps result positions back to metadata entries, silently
// skipping out-of-range positions.
func (ix *Index) MetadataAt(positions []int) []domain.Metadata {
	out := make([]domain.Metadata, 0, len(positions))
	for _, pos := range positions {
		if pos >= 0 && pos < len(ix.meta) {
			out = append(out, ix.meta[pos])
		}
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
