package search

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/vendexa/vendex/pkg/natsutil"
)

// SubjectRebuild triggers an asynchronous index rebuild.
const SubjectRebuild = "vendex.index.rebuild"

// StartRebuildConsumer subscribes to rebuild requests so operators can
// trigger builds over the bus instead of the HTTP API. Returns nil when no
// NATS connection is configured.
func (s *Service) StartRebuildConsumer() (*nats.Subscription, error) {
	if s.nc == nil {
		return nil, nil
	}
	sub, err := natsutil.Subscribe(s.nc, SubjectRebuild, func(ctx context.Context, req BuildRequest) {
		s.log.Info("search: rebuild requested over bus", "index", req.IndexName)
		if _, err := s.BuildIndex(ctx, req); err != nil {
			s.log.Error("search: bus rebuild failed", "err", err)
		}
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("search: rebuild consumer started", "subject", SubjectRebuild)
	return sub, nil
}
