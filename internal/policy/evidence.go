package policy

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const evidenceTimeout = 2 * time.Second

// AttributeSource contributes request attributes fetched from elsewhere in
// the system (entity lookups, schedules, licensing registries). Sources run
// in parallel; a failing source fails the whole gather, which the adapter
// turns into a DENY.
type AttributeSource interface {
	Name() string
	Fetch(ctx context.Context, req Request) (map[string]string, error)
}

// gatherAttributes merges the output of every source into a copy of the
// request's attribute map. First failure cancels the remaining fetches.
func (a *Adapter) gatherAttributes(ctx context.Context, req Request) (map[string]string, error) {
	merged := make(map[string]string, len(req.Attributes))
	for k, v := range req.Attributes {
		merged[k] = v
	}
	if len(a.sources) == 0 {
		return merged, nil
	}

	ctx, cancel := context.WithTimeout(ctx, evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, source := range a.sources {
		g.Go(func() error {
			start := time.Now()
			attributes, err := source.Fetch(ctx, req)
			a.metrics.ObserveEvidenceLatency(source.Name(), time.Since(start))
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for k, v := range attributes {
				merged[k] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}
