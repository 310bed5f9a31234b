package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vendexa/vendex/pkg/resilience"
)

// Provider is the capability the orchestrator consumes: texts in, normalized
// vectors out.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error)
}

// Fallback tries an ordered list of providers in sequence, each behind its
// own circuit breaker, and returns the first success. A provider that keeps
// failing trips its breaker and is skipped until the breaker cools down.
type Fallback struct {
	names     []string
	providers []Provider
	breakers  []*resilience.Breaker
	log       *slog.Logger
}

// NewFallback builds a fallback chain. Providers are tried in the order
// given; names are used for logging only.
func NewFallback(log *slog.Logger, names []string, providers ...Provider) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	breakers := make([]*resilience.Breaker, len(providers))
	for i := range providers {
		breakers[i] = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	return &Fallback{names: names, providers: providers, breakers: breakers, log: log}
}

// EmbedBatch implements Provider.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	var lastErr error
	for i, p := range f.providers {
		var batch [][]float32
		err := f.breakers[i].Call(ctx, func(ctx context.Context) error {
			var callErr error
			batch, callErr = p.EmbedBatch(ctx, texts, purpose)
			return callErr
		})
		if err == nil {
			return batch, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		f.log.Warn("embed: provider failed, trying next", "provider", f.name(i), "err", err)
	}
	return nil, fmt.Errorf("embed: all providers failed: %w", lastErr)
}

func (f *Fallback) name(i int) string {
	if i < len(f.names) {
		return f.names[i]
	}
	return fmt.Sprintf("provider-%d", i)
}
