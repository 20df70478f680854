// Package lookup expands bounded literal ranges into the concrete index terms
// they cover, by scanning the global index under a deadline and collecting
// matches into a threshold-aware IndexLookupMap.
package lookup

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkilian/rangelookup/internal/config"
	"github.com/arkilian/rangelookup/pkg/types"
)

// IndexLookup is implemented by every kind of index lookup.
type IndexLookup interface {
	Lookup(ctx context.Context, cfg *config.LookupConfig, factory SessionFactory, maxLookup time.Duration) (*IndexLookupMap, error)
}

var _ IndexLookup = (*BoundedRangeLookup)(nil)

// LookupAll runs a bounded-range lookup per range, at most cfg.QueryThreads
// at a time. Results are in input order. The first error cancels the rest
// and is returned.
func LookupAll(ctx context.Context, cfg *config.LookupConfig, factory SessionFactory, ranges []types.LiteralRange, maxLookup time.Duration, opts ...Option) ([]*IndexLookupMap, error) {
	results := make([]*IndexLookupMap, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.QueryThreads > 0 {
		g.SetLimit(cfg.QueryThreads)
	}
	for i, rng := range ranges {
		i, rng := i, rng
		g.Go(func() error {
			m, err := NewBoundedRangeLookup(rng, opts...).Lookup(gctx, cfg, factory, maxLookup)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
