// Package relevance computes offline retrieval-quality metrics (Recall@K,
// MRR@K, nDCG@K) against gold relevance sets.
package relevance

import (
	"log/slog"
	"math"
)

// RecallAtK is |relevant ∩ retrieved[:k]| / |relevant|; 0 when relevant is
// empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relSet := toSet(relevant)
	found := 0
	for _, id := range topK(retrieved, k) {
		if relSet[id] {
			found++
			delete(relSet, id)
		}
	}
	return float64(found) / float64(len(relevant))
}

// MRRAtK is the reciprocal rank of the first relevant id within the top k;
// 0 when none is found or relevant is empty.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relSet := toSet(relevant)
	for i, id := range topK(retrieved, k) {
		if relSet[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK is DCG/IDCG with binary gains: DCG sums 1/log2(rank+2) over
// relevant hits in the top k (rank 0-indexed), IDCG assumes the first
// min(|relevant|, k) ranks are all relevant.
func NDCGAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relSet := toSet(relevant)

	dcg := 0.0
	for i, id := range topK(retrieved, k) {
		if relSet[id] {
			dcg += 1.0 / math.Log2(float64(i+2))
		}
	}

	ideal := len(relevant)
	if k < ideal {
		ideal = k
	}
	idcg := 0.0
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// QueryResult is the retrieved id list for one evaluated query.
type QueryResult struct {
	Q         string
	Retrieved []string
}

// Summary aggregates per-query metrics.
type Summary struct {
	Recall float64
	MRR    float64
	NDCG   float64
}

// Calculate pairs query results with gold sets positionally and averages the
// per-query metrics. Queries with an empty gold set are skipped with a
// warning. Empty input yields an all-zero summary.
func Calculate(results []QueryResult, gold [][]string, k int, log *slog.Logger) Summary {
	if log == nil {
		log = slog.Default()
	}

	n := len(results)
	if len(gold) < n {
		n = len(gold)
	}

	var recalls, mrrs, ndcgs []float64
	for i := 0; i < n; i++ {
		if len(gold[i]) == 0 {
			log.Warn("relevance: query has no gold items, skipping", "query_index", i, "q", results[i].Q)
			continue
		}
		recalls = append(recalls, RecallAtK(gold[i], results[i].Retrieved, k))
		mrrs = append(mrrs, MRRAtK(gold[i], results[i].Retrieved, k))
		ndcgs = append(ndcgs, NDCGAtK(gold[i], results[i].Retrieved, k))
	}

	return Summary{Recall: mean(recalls), MRR: mean(mrrs), NDCG: mean(ndcgs)}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func topK(list []string, k int) []string {
	if k < len(list) {
		return list[:k]
	}
	return list
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}
