// Package embed provides the embedding-provider client and the defensive
// response normalization that turns heterogeneous provider payloads into
// L2-normalized float32 vectors.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vendexa/vendex/pkg/fn"
)

// Purpose selects the provider-side embedding mode.
type Purpose string

const (
	PurposeDocument Purpose = "search_document"
	PurposeQuery    Purpose = "search_query"
)

const (
	// BatchSize is the max texts per provider request.
	BatchSize = 64
	// requestTimeout bounds a single provider call; the provider is the
	// dominant latency and failure source.
	requestTimeout = 30 * time.Second
)

// retryOpts retries transient provider failures per chunk.
var retryOpts = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// Client calls a Cohere-compatible embedding API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient creates an embedding client. Calls are rate limited to keep
// within provider quotas.
func NewClient(baseURL, apiKey, model string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(5), 2),
		log:     log,
	}
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

// EmbedBatch embeds texts in groups of BatchSize and returns one normalized
// vector per input text, in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	chunks := fn.Chunk(texts, BatchSize)
	out := make([][]float32, 0, len(texts))

	for i, chunk := range chunks {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embed: rate wait: %w", err)
		}
		batch, err := fn.Retry(ctx, retryOpts, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(c.embedChunk(ctx, chunk, purpose))
		}).Unwrap()
		if err != nil {
			return nil, fmt.Errorf("embed: batch %d/%d: %w", i+1, len(chunks), err)
		}
		if len(batch) != len(chunk) {
			return nil, fmt.Errorf("embed: batch %d/%d: provider returned %d vectors for %d texts", i+1, len(chunks), len(batch), len(chunk))
		}
		out = append(out, batch...)
		c.log.Info("embed: batch done", "batch", i+1, "batches", len(chunks), "texts", len(chunk))
	}

	return Normalize(out), nil
}

func (c *Client) embedChunk(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model, InputType: string(purpose)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	// Decode into a generic value: the payload shape varies by provider
	// and SDK version, so extraction is defensive.
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	batch, err := ExtractBatch(raw)
	if err != nil {
		c.log.Error("embed: extraction failed", "model", c.model, "sample", sample(raw))
		return nil, err
	}
	return batch, nil
}
