// Package search orchestrates the retrieval pipeline: embed the query,
// search the flat index, diversify with MMR, filter by metadata, truncate.
// It also owns the build and evaluation operations and the load-once index
// cache with its rebuild swap.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vendexa/vendex/engine/domain"
	"github.com/vendexa/vendex/engine/embed"
	"github.com/vendexa/vendex/engine/rerank"
	"github.com/vendexa/vendex/engine/vecindex"
	"github.com/vendexa/vendex/pkg/fn"
	"github.com/vendexa/vendex/pkg/metrics"
)

// Embedder abstracts the embedding provider.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, purpose embed.Purpose) ([][]float32, error)
}

// Backup abstracts the remote artifact store. Operations are best-effort
// booleans, never fatal.
type Backup interface {
	Enabled() bool
	UploadIndex(ctx context.Context, indexName, indexPath, metaPath string) bool
	DownloadIndex(ctx context.Context, indexName, indexPath, metaPath string) bool
}

// Mirror abstracts the optional secondary vector backend.
type Mirror interface {
	MirrorIndex(ctx context.Context, indexName string, vectors [][]float32, metas []domain.Metadata) error
}

// Deps holds the external collaborators of the Service. Blob, Mirror and
// NATS may be nil; the corresponding step is skipped.
type Deps struct {
	Embedder Embedder
	Blob     Backup
	Mirror   Mirror
	NATS     *nats.Conn
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Options configures the Service.
type Options struct {
	// BaseDir is the local directory holding index artifacts.
	BaseDir string
	// IndexName is the default index served and built.
	IndexName string
	// VendorsPath is the default vendor catalogue file.
	VendorsPath string
}

// Service is the retrieval orchestrator.
type Service struct {
	embedder Embedder
	blob     Backup
	mirror   Mirror
	nc       *nats.Conn
	opts     Options
	log      *slog.Logger

	queries   *metrics.Counter
	queryErrs *metrics.Counter
	builds    *metrics.Counter
	buildErrs *metrics.Counter
	evalRuns  *metrics.Counter
	vectors   *metrics.Gauge
	queryDur  *metrics.Histogram
	buildDur  *metrics.Histogram

	mu  sync.RWMutex
	idx *vecindex.Index
}

// New creates a Service.
func New(deps Deps, opts Options) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		embedder:  deps.Embedder,
		blob:      deps.Blob,
		mirror:    deps.Mirror,
		nc:        deps.NATS,
		opts:      opts,
		log:       log,
		queries:   reg.Counter("vendex_queries_total", "Search queries served"),
		queryErrs: reg.Counter("vendex_query_errors_total", "Search queries failed"),
		builds:    reg.Counter("vendex_index_builds_total", "Index builds completed"),
		buildErrs: reg.Counter("vendex_index_build_errors_total", "Index builds failed"),
		evalRuns:  reg.Counter("vendex_eval_runs_total", "Evaluation runs completed"),
		vectors:   reg.Gauge("vendex_index_vectors", "Vectors in the served index"),
		queryDur:  reg.Histogram("vendex_query_duration_seconds", "Search latency", nil),
		buildDur:  reg.Histogram("vendex_index_build_duration_seconds", "Index build latency", nil),
	}
}

// QueryRequest is the JSON body for a search.
type QueryRequest struct {
	Q         string            `json:"q"`
	K         int               `json:"k"`
	Threshold *float32          `json:"threshold,omitempty"`
	MMRLambda *float64          `json:"mmr_lambda,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// Validate applies schema bounds and defaults: k defaults to 10 within
// [1,100], threshold and mmr_lambda must lie in [0,1].
func (r *QueryRequest) Validate() error {
	if r.Q == "" {
		return domain.NewValidationError("q", "")
	}
	if r.K == 0 {
		r.K = 10
	}
	if r.K < 1 || r.K > 100 {
		return domain.NewValidationError("k", fmt.Sprintf("%d", r.K))
	}
	if r.Threshold != nil && (*r.Threshold < 0 || *r.Threshold > 1) {
		return domain.NewValidationError("threshold", fmt.Sprintf("%g", *r.Threshold))
	}
	if r.MMRLambda != nil && (*r.MMRLambda < 0 || *r.MMRLambda > 1) {
		return domain.NewValidationError("mmr_lambda", fmt.Sprintf("%g", *r.MMRLambda))
	}
	return nil
}

// Query runs the online retrieval path.
func (s *Service) Query(ctx context.Context, req QueryRequest) ([]domain.SearchResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	idx, err := s.activeIndex(ctx)
	if err != nil {
		s.queryErrs.Inc()
		return nil, err
	}

	qvecs, err := s.embedder.EmbedBatch(ctx, []string{req.Q}, embed.PurposeQuery)
	if err != nil {
		s.queryErrs.Inc()
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	qvec := qvecs[0]

	// Over-fetch 2k candidates so MMR has room to diversify.
	scores, positions, err := idx.Search(qvec, req.K*2, req.Threshold)
	if err != nil {
		s.queryErrs.Inc()
		return nil, fmt.Errorf("search: index search: %w", err)
	}
	if len(scores) == 0 {
		return []domain.SearchResult{}, nil
	}

	metas := idx.MetadataAt(positions)
	n := len(scores)
	if len(metas) < n {
		n = len(metas)
	}
	results := make([]domain.SearchResult, n)
	for i := 0; i < n; i++ {
		results[i] = domain.SearchResult{
			VendorID: metas[i]["vendor_id"],
			Name:     metas[i]["name"],
			Score:    scores[i],
			Meta:     metas[i],
		}
	}

	if req.MMRLambda != nil && len(results) > 1 {
		results = s.diversify(idx, positions[:n], results, req.MMRLambda, req.K)
	}

	results = applyFilters(results, req.Filters)
	if results == nil {
		results = []domain.SearchResult{}
	}
	if len(results) > req.K {
		results = results[:req.K]
	}

	s.queries.Inc()
	s.queryDur.Since(start)
	s.log.Info("search: query done", "results", len(results), "duration", time.Since(start))
	return results, nil
}

// diversify re-ranks candidates with MMR. Each candidate contributes its own
// stored vector to the diversity term.
func (s *Service) diversify(idx *vecindex.Index, positions []int, results []domain.SearchResult, lambda *float64, k int) []domain.SearchResult {
	embeddings := make([][]float32, len(results))
	scores := make([]float32, len(results))
	ids := make([]int, len(results))
	for i := range results {
		embeddings[i] = idx.VectorAt(positions[i])
		scores[i] = results[i].Score
		ids[i] = i
	}

	_, selected := rerank.Apply(embeddings, scores, ids, lambda, k)

	out := make([]domain.SearchResult, len(selected))
	for i, id := range selected {
		out[i] = results[id]
	}
	return out
}

func applyFilters(results []domain.SearchResult, filters map[string]string) []domain.SearchResult {
	if len(filters) == 0 {
		return results
	}
	return fn.Filter(results, func(r domain.SearchResult) bool {
		for k, v := range filters {
			if r.Meta[k] != v {
				return false
			}
		}
		return true
	})
}

// activeIndex returns the served index, lazily loading it on first use. A
// local miss falls back to the remote backup before giving up.
func (s *Service) activeIndex(ctx context.Context) (*vecindex.Index, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil {
		return s.idx, nil
	}

	indexPath, metaPath := vecindex.Paths(s.opts.BaseDir, s.opts.IndexName)
	idx, err := vecindex.Load(indexPath, metaPath)
	if errors.Is(err, domain.ErrNotFound) && s.blob != nil && s.blob.Enabled() {
		s.log.Info("search: local index missing, trying remote backup", "index", s.opts.IndexName)
		if s.blob.DownloadIndex(ctx, s.opts.IndexName, indexPath, metaPath) {
			idx, err = vecindex.Load(indexPath, metaPath)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("search: load index %s: %w", s.opts.IndexName, err)
	}

	s.log.Info("search: index loaded", "index", s.opts.IndexName, "vectors", idx.Count(), "dimension", idx.Dimension())
	s.idx = idx
	s.vectors.Set(int64(idx.Count()))
	return idx, nil
}

// swapIndex atomically replaces the served index after a rebuild. Readers
// see either the old or the new index, never a partial one.
func (s *Service) swapIndex(idx *vecindex.Index) {
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	s.vectors.Set(int64(idx.Count()))
}
