package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/arkilian/rangelookup/internal/config"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/observability"
	"github.com/arkilian/rangelookup/pkg/types"
)

// BoundedRangeLookup finds the terms of one field that fall inside a literal
// range, using the global index.
type BoundedRangeLookup struct {
	rng    types.LiteralRange
	logger *logging.Logger
	stats  *observability.LookupStats
}

// Option configures a BoundedRangeLookup.
type Option func(*BoundedRangeLookup)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(b *BoundedRangeLookup) { b.logger = l }
}

// WithStats records every lookup's outcome in s.
func WithStats(s *observability.LookupStats) Option {
	return func(b *BoundedRangeLookup) { b.stats = s }
}

func NewBoundedRangeLookup(rng types.LiteralRange, opts ...Option) *BoundedRangeLookup {
	b := &BoundedRangeLookup{rng: rng}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrNoop(b.logger)
	return b
}

// Range returns the literal range being looked up.
func (b *BoundedRangeLookup) Range() types.LiteralRange { return b.rng }

// Lookup scans the index for the range and returns the terms found.
//
// A range that cannot form a scan boundary, a missing index table and a scan
// the store refuses to set up are returned as errors. Running out of time or
// failing while reading is not: the returned map is then partial and flagged
// as exceeded.
func (b *BoundedRangeLookup) Lookup(ctx context.Context, cfg *config.LookupConfig, factory SessionFactory, maxLookup time.Duration) (*IndexLookupMap, error) {
	started := time.Now()
	log := b.logger.WithLookup(cfg.QueryID, b.rng.Field)

	begin, end, err := cfg.DateWindow()
	if err != nil {
		return nil, err
	}
	window := NewDateWindow(begin, end)

	result := NewIndexLookupMap(cfg.MaxUnfieldedExpansionThreshold, cfg.MaxValueExpansionThreshold)

	boundary, err := BuildBoundary(b.rng, window)
	if err != nil {
		log.DebugContext(ctx, "lookup: cannot build scan boundary", "range", b.rng.String(), "error", err)
		return nil, err
	}
	log.DebugContext(ctx, "lookup: scan boundary", "boundary", boundary.String())

	plan := AssembleFilters(cfg, b.rng, window, maxLookup)

	// The deadline starts before the session opens so the store sees it too.
	scanCtx, cancel := scanContext(ctx, maxLookup)
	defer cancel()

	sess, it, err := openScan(ctx, scanCtx, factory, cfg, b.rng, boundary, plan)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.InfoContext(ctx, "lookup: deadline reached before scanning", "max_lookup", maxLookup)
			(&consumer{fields: []string{b.rng.Field}}).markOverflow(result)
			b.record(result, observability.OutcomeTimedOut, started)
			return result, nil
		}
		log.LogLookup(ctx, b.rng.String(), 0, false, err)
		return nil, err
	}
	defer func() {
		if err := factory.Close(sess); err != nil {
			log.WarnContext(ctx, "lookup: closing scan session", "session_id", sess.ID(), "error", err)
		}
	}()
	log.WithSession(sess.ID()).DebugContext(ctx, "lookup: scanning", "filters", len(plan.Descriptors), "session_budget", plan.SessionBudget)

	outcome, err := TimedScan(scanCtx, it, result, ScanOptions{
		Field:          b.rng.Field,
		Fields:         []string{b.rng.Field},
		DatatypeFilter: cfg.DatatypeFilter,
		Logger:         log,
	}, maxLookup)
	it.Close()

	log.LogLookup(ctx, b.rng.String(), result.Size(), outcome != observability.OutcomeTimedOut, err)
	b.record(result, outcome, started)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BoundedRangeLookup) record(m *IndexLookupMap, outcome observability.Outcome, started time.Time) {
	if b.stats != nil {
		b.stats.Record(b.rng.Field, m.Size(), outcome, time.Since(started))
	}
}
