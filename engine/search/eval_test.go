package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vendexa/vendex/engine/domain"
)

func writeQueries(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEvaluate_PerfectRetrieval(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	ctx := context.Background()
	if _, err := svc.BuildIndex(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}

	path := writeQueries(t, `{"q":"Acme","gold":["v-1"]}
{"q":"Globex","gold":["v-2"]}
`)

	resp, err := svc.Evaluate(ctx, EvalRequest{QueriesPath: path, K: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.TotalQueries != 2 || resp.SuccessfulQueries != 2 || resp.FailedQueries != 0 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if resp.Metrics.RecallAtK != 1.0 || resp.Metrics.MRRAtK != 1.0 || resp.Metrics.NDCGAtK != 1.0 {
		t.Fatalf("expected perfect metrics, got %+v", resp.Metrics)
	}
	if resp.FailedCases == nil || len(resp.FailedCases) != 0 {
		t.Fatalf("failed cases should be an empty list, got %v", resp.FailedCases)
	}
}

func TestEvaluate_PartialFailureIsIsolated(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	ctx := context.Background()
	if _, err := svc.BuildIndex(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}

	// The blank query fails validation inside the search path; the good
	// queries still score.
	path := writeQueries(t, `{"q":"Acme","gold":["v-1"]}
{"q":"","gold":["v-9"]}
{"q":"Globex","gold":["v-2"]}
`)

	resp, err := svc.Evaluate(ctx, EvalRequest{QueriesPath: path, K: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.TotalQueries != 3 || resp.SuccessfulQueries != 2 || resp.FailedQueries != 1 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	// Gold sets pair with the successful queries only, so the metrics are
	// still perfect.
	if resp.Metrics.RecallAtK != 1.0 || resp.Metrics.MRRAtK != 1.0 {
		t.Fatalf("misaligned gold pairing: %+v", resp.Metrics)
	}
	if len(resp.FailedCases) != 1 || resp.FailedCases[0].Query != "" {
		t.Fatalf("unexpected failed cases: %+v", resp.FailedCases)
	}
}

func TestEvaluate_EmptyFile(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	path := writeQueries(t, "\n\n")
	_, err := svc.Evaluate(context.Background(), EvalRequest{QueriesPath: path})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEvaluate_BadK(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	_, err := svc.Evaluate(context.Background(), EvalRequest{QueriesPath: "ignored", K: 999})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEvaluate_MissingFile(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	_, err := svc.Evaluate(context.Background(), EvalRequest{QueriesPath: filepath.Join(t.TempDir(), "nope.jsonl")})
	if err == nil {
		t.Fatal("expected error for missing queries file")
	}
}
