package search

import (
	"context"
	"fmt"
	"time"

	"github.com/vendexa/vendex/engine/domain"
	"github.com/vendexa/vendex/engine/embed"
	"github.com/vendexa/vendex/engine/ingest"
	"github.com/vendexa/vendex/engine/vecindex"
	"github.com/vendexa/vendex/pkg/fn"
	"github.com/vendexa/vendex/pkg/natsutil"
)

// NATS subjects for best-effort pipeline events.
const (
	SubjectIndexBuilt    = "vendex.index.built"
	SubjectEvalCompleted = "vendex.eval.completed"
)

// IndexBuiltEvent is published after a successful build.
type IndexBuiltEvent struct {
	IndexName string    `json:"index_name"`
	Indexed   int       `json:"indexed"`
	BuiltAt   time.Time `json:"built_at"`
}

// BuildRequest is the JSON body for an index build. Empty fields fall back
// to the configured defaults.
type BuildRequest struct {
	IndexName  string `json:"index_name,omitempty"`
	JSONPath   string `json:"json_path,omitempty"`
	SaveToBlob bool   `json:"save_to_blob,omitempty"`
}

// BuildResponse reports a completed build.
type BuildResponse struct {
	Indexed    int    `json:"indexed"`
	IndexName  string `json:"index_name"`
	SavedLocal bool   `json:"saved_local"`
	SavedBlob  bool   `json:"saved_blob"`
}

type processedVendors struct {
	texts []string
	metas []domain.Metadata
}

type embeddedVendors struct {
	processedVendors
	vectors [][]float32
}

// BuildIndex runs the offline pipeline: load vendors, flatten, embed, build
// and persist the index, then back up, mirror and announce best-effort. The
// served index is swapped only after the new one is fully built and saved.
func (s *Service) BuildIndex(ctx context.Context, req BuildRequest) (*BuildResponse, error) {
	start := time.Now()
	indexName := req.IndexName
	if indexName == "" {
		indexName = s.opts.IndexName
	}
	jsonPath := req.JSONPath
	if jsonPath == "" {
		jsonPath = s.opts.VendorsPath
	}
	s.log.Info("search: build start", "index", indexName, "path", jsonPath)

	load := fn.TracedStage("build.load", func(_ context.Context, path string) fn.Result[[]domain.Vendor] {
		vendors, err := ingest.LoadVendors(path)
		if err != nil {
			return fn.Err[[]domain.Vendor](err)
		}
		if len(vendors) == 0 {
			return fn.Err[[]domain.Vendor](domain.NewValidationError("vendors", path))
		}
		return fn.Ok(vendors)
	})

	process := fn.TracedStage("build.process", func(_ context.Context, vendors []domain.Vendor) fn.Result[processedVendors] {
		texts, metas := ingest.Process(vendors, s.log)
		if len(texts) == 0 {
			return fn.Err[processedVendors](domain.NewValidationError("texts", "no vendor produced search text"))
		}
		return fn.Ok(processedVendors{texts: texts, metas: metas})
	})

	embedStage := fn.TracedStage("build.embed", func(ctx context.Context, p processedVendors) fn.Result[embeddedVendors] {
		vectors, err := s.embedder.EmbedBatch(ctx, p.texts, embed.PurposeDocument)
		if err != nil {
			return fn.Err[embeddedVendors](fmt.Errorf("embed %d texts: %w", len(p.texts), err))
		}
		return fn.Ok(embeddedVendors{processedVendors: p, vectors: vectors})
	})

	indexPath, metaPath := vecindex.Paths(s.opts.BaseDir, indexName)
	build := fn.TracedStage("build.index", func(_ context.Context, e embeddedVendors) fn.Result[*vecindex.Index] {
		idx, err := vecindex.Build(e.vectors)
		if err != nil {
			return fn.Err[*vecindex.Index](err)
		}
		if err := idx.AttachMetadata(e.metas); err != nil {
			return fn.Err[*vecindex.Index](err)
		}
		if err := idx.Save(indexPath, metaPath); err != nil {
			return fn.Err[*vecindex.Index](err)
		}
		return fn.Ok(idx)
	})

	pipeline := fn.Then(fn.Then(fn.Then(load, process), embedStage), build)

	idx, err := pipeline(ctx, jsonPath).Unwrap()
	if err != nil {
		s.buildErrs.Inc()
		return nil, fmt.Errorf("search: build index %s: %w", indexName, err)
	}

	savedBlob := false
	if req.SaveToBlob && s.blob != nil {
		savedBlob = s.blob.UploadIndex(ctx, indexName, indexPath, metaPath)
	}

	if s.mirror != nil {
		vectors := make([][]float32, idx.Count())
		positions := make([]int, idx.Count())
		for i := range vectors {
			vectors[i] = idx.VectorAt(i)
			positions[i] = i
		}
		if err := s.mirror.MirrorIndex(ctx, indexName, vectors, idx.MetadataAt(positions)); err != nil {
			s.log.Warn("search: mirror failed, continuing", "err", err)
		}
	}

	s.publish(ctx, SubjectIndexBuilt, IndexBuiltEvent{
		IndexName: indexName,
		Indexed:   idx.Count(),
		BuiltAt:   time.Now().UTC(),
	})

	if indexName == s.opts.IndexName {
		s.swapIndex(idx)
	}

	s.builds.Inc()
	s.buildDur.Since(start)
	s.log.Info("search: build done", "index", indexName, "indexed", idx.Count(), "duration", time.Since(start))

	return &BuildResponse{
		Indexed:    idx.Count(),
		IndexName:  indexName,
		SavedLocal: true,
		SavedBlob:  savedBlob,
	}, nil
}

// publish sends a pipeline event; failures are logged and swallowed.
func (s *Service) publish(ctx context.Context, subject string, event any) {
	if s.nc == nil {
		return
	}
	if err := natsutil.Publish(ctx, s.nc, subject, event); err != nil {
		s.log.Warn("search: event publish failed", "subject", subject, "err", err)
	}
}
