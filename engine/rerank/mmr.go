// Package rerank re-orders a relevance-ranked candidate set with Maximal
// Marginal Relevance, trading relevance against redundancy so near-duplicate
// high scorers do not crowd out diverse-but-relevant items.
package rerank

import (
	"log/slog"
	"math"
)

// Apply runs MMR over an over-fetched candidate set and returns the selected
// scores and candidate ids in selection order. A nil or non-positive lambda
// disables MMR: the first k candidates come back unchanged.
func Apply(embeddings [][]float32, scores []float32, ids []int, lambda *float64, k int) ([]float32, []int) {
	if lambda == nil || *lambda <= 0 {
		if k > len(scores) {
			k = len(scores)
		}
		return scores[:k], ids[:k]
	}
	return Rerank(embeddings, scores, ids, *lambda, k)
}

// Rerank greedily selects up to k candidates maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// The highest-relevance candidate seeds the selection unconditionally. Ties
// go to the earliest candidate in scan order. Lambda outside the open (0,1)
// interval is replaced with 0.5.
func Rerank(embeddings [][]float32, scores []float32, ids []int, lambda float64, k int) ([]float32, []int) {
	if lambda <= 0 || lambda >= 1 {
		slog.Warn("rerank: lambda out of range, using default", "lambda", lambda, "default", 0.5)
		lambda = 0.5
	}

	n := len(scores)
	if n == 0 {
		return nil, nil
	}

	selected := make([]int, 0, k)
	selectedScores := make([]float32, 0, k)
	remaining := make([]int, 0, n)
	for i := range scores {
		remaining = append(remaining, i)
	}

	// Seed: highest relevance, first on ties.
	first := 0
	for i := 1; i < n; i++ {
		if scores[i] > scores[first] {
			first = i
		}
	}
	selected = append(selected, first)
	selectedScores = append(selectedScores, scores[first])
	remaining = remove(remaining, first)

	limit := k
	if n < limit {
		limit = n
	}

	for len(selected) < limit && len(remaining) > 0 {
		bestScore := math.Inf(-1)
		best := -1

		for _, cand := range remaining {
			relevance := float64(scores[cand])

			diversity := 0.0
			for i, sel := range selected {
				sim := float64(dot(embeddings[cand], embeddings[sel]))
				if i == 0 || sim > diversity {
					diversity = sim
				}
			}

			mmrScore := lambda*relevance - (1-lambda)*diversity
			if mmrScore > bestScore {
				bestScore = mmrScore
				best = cand
			}
		}

		if best < 0 {
			break
		}
		selected = append(selected, best)
		selectedScores = append(selectedScores, scores[best])
		remaining = remove(remaining, best)
	}

	outIDs := make([]int, len(selected))
	for i, idx := range selected {
		outIDs[i] = ids[idx]
	}
	return selectedScores, outIDs
}

func remove(list []int, v int) []int {
	for i, x := range list {
		if x == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
