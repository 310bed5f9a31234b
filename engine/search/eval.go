package search

import (
	"context"
	"fmt"
	"time"

	"github.com/vendexa/vendex/engine/domain"
	"github.com/vendexa/vendex/engine/relevance"
	"github.com/vendexa/vendex/pkg/fn"
)

// EvalRequest is the JSON body for an evaluation run.
type EvalRequest struct {
	QueriesPath string   `json:"queries_path"`
	K           int      `json:"k"`
	Threshold   *float32 `json:"threshold,omitempty"`
	MMRLambda   *float64 `json:"mmr_lambda,omitempty"`
}

// EvalMetrics are the aggregated retrieval-quality scores.
type EvalMetrics struct {
	RecallAtK float64 `json:"recall_at_k"`
	MRRAtK    float64 `json:"mrr_at_k"`
	NDCGAtK   float64 `json:"ndcg_at_k"`
}

// FailedCase records a query whose search raised.
type FailedCase struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// EvalResponse reports an evaluation run, including partial results when
// some queries failed.
type EvalResponse struct {
	TotalQueries      int          `json:"total_queries"`
	SuccessfulQueries int          `json:"successful_queries"`
	FailedQueries     int          `json:"failed_queries"`
	Metrics           EvalMetrics  `json:"metrics"`
	FailedCases       []FailedCase `json:"failed_cases"`
}

// EvalCompletedEvent is published after an evaluation run.
type EvalCompletedEvent struct {
	Queries     int       `json:"queries"`
	Failed      int       `json:"failed"`
	Recall      float64   `json:"recall"`
	MRR         float64   `json:"mrr"`
	NDCG        float64   `json:"ndcg"`
	CompletedAt time.Time `json:"completed_at"`
}

// Evaluate runs the online search path for every labeled query and
// aggregates Recall/MRR/nDCG. A failing query is recorded and excluded from
// the averages; it never aborts the batch.
func (s *Service) Evaluate(ctx context.Context, req EvalRequest) (*EvalResponse, error) {
	if req.K == 0 {
		req.K = 10
	}
	if req.K < 1 || req.K > 100 {
		return nil, domain.NewValidationError("k", fmt.Sprintf("%d", req.K))
	}

	queries, err := relevance.LoadQueries(req.QueriesPath)
	if err != nil {
		return nil, fmt.Errorf("search: eval: %w", err)
	}
	if len(queries) == 0 {
		return nil, domain.NewValidationError("queries", req.QueriesPath)
	}
	s.log.Info("search: eval start", "queries", len(queries), "k", req.K)

	var (
		results []relevance.QueryResult
		gold    [][]string
		failed  []FailedCase
	)

	for i, q := range queries {
		s.log.Info("search: eval query", "n", i+1, "total", len(queries), "q", truncateQ(q.Q))

		hits, qerr := s.Query(ctx, QueryRequest{
			Q:         q.Q,
			K:         req.K,
			Threshold: req.Threshold,
			MMRLambda: req.MMRLambda,
		})
		if qerr != nil {
			s.log.Error("search: eval query failed", "q", truncateQ(q.Q), "err", qerr)
			failed = append(failed, FailedCase{Query: q.Q, Error: qerr.Error()})
			continue
		}

		retrieved := fn.Map(hits, func(r domain.SearchResult) string { return r.VendorID })
		results = append(results, relevance.QueryResult{Q: q.Q, Retrieved: retrieved})
		gold = append(gold, q.Gold)
	}

	summary := relevance.Calculate(results, gold, req.K, s.log)

	s.publish(ctx, SubjectEvalCompleted, EvalCompletedEvent{
		Queries:     len(queries),
		Failed:      len(failed),
		Recall:      summary.Recall,
		MRR:         summary.MRR,
		NDCG:        summary.NDCG,
		CompletedAt: time.Now().UTC(),
	})

	s.evalRuns.Inc()
	s.log.Info("search: eval done",
		"recall", summary.Recall, "mrr", summary.MRR, "ndcg", summary.NDCG,
		"failed", len(failed),
	)

	if failed == nil {
		failed = []FailedCase{}
	}
	return &EvalResponse{
		TotalQueries:      len(queries),
		SuccessfulQueries: len(results),
		FailedQueries:     len(failed),
		Metrics:           EvalMetrics{RecallAtK: summary.Recall, MRRAtK: summary.MRR, NDCGAtK: summary.NDCG},
		FailedCases:       failed,
	}, nil
}

func truncateQ(q string) string {
	if len(q) > 50 {
		return q[:50] + "..."
	}
	return q
}
