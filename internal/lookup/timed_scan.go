package lookup

import (
	"context"
	"fmt"
	"time"

	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/observability"
)

// ScanOptions describes what a timed scan may put into its result.
type ScanOptions struct {
	// Field is the column family every row must carry. Ignored when Unfielded.
	Field string

	// Fields are flagged with an empty placeholder when the scan fails.
	Fields []string

	// Unfielded lookups flag the whole map on failure.
	Unfielded bool

	DatatypeFilter []string

	Logger *logging.Logger
}

type scanResult struct {
	outcome observability.Outcome
	err     error
}

// scanContext bounds ctx by maxLookup. A non-positive maxLookup only adds
// cancellation.
func scanContext(ctx context.Context, maxLookup time.Duration) (context.Context, context.CancelFunc) {
	if maxLookup > 0 {
		return context.WithTimeout(ctx, maxLookup)
	}
	return context.WithCancel(ctx)
}

// TimedScan drains it into m on a separate goroutine bounded by maxLookup.
// A non-positive maxLookup leaves the scan bounded only by ctx.
//
// Deadline expiry, the store timeout sentinel and consumption failures do not
// produce an error: they mark m as overflowed and yield OutcomeTimedOut. The
// only error returned is an internal invariant violation. m is not touched
// after TimedScan returns.
//
// it must stop promptly once its context is done. Open it with a context
// already bounded by maxLookup so a Next blocked in the store is cut short.
func TimedScan(ctx context.Context, it kv.CellIterator, m *IndexLookupMap, opts ScanOptions, maxLookup time.Duration) (observability.Outcome, error) {
	log := logging.OrNoop(opts.Logger)
	c := &consumer{
		field:     opts.Field,
		fields:    opts.Fields,
		unfielded: opts.Unfielded,
		log:       log,
	}
	if len(opts.DatatypeFilter) > 0 {
		c.datatypes = make(map[string]struct{}, len(opts.DatatypeFilter))
		for _, dt := range opts.DatatypeFilter {
			c.datatypes[dt] = struct{}{}
		}
	}

	scanCtx, cancel := scanContext(ctx, maxLookup)
	defer cancel()

	done := make(chan scanResult, 1)
	go func() {
		var res scanResult
		defer func() {
			if r := recover(); r != nil {
				res = scanResult{
					outcome: observability.OutcomeTimedOut,
					err:     lerrors.NewInternalError("consumption panicked", fmt.Errorf("%v", r)),
				}
				c.markOverflow(m)
			}
			done <- res
		}()

		res.outcome, res.err = c.run(scanCtx, it, m)
		if res.outcome == observability.OutcomeTimedOut && !isFatal(res.err) {
			c.markOverflow(m)
		}
	}()

	var res scanResult
	select {
	case res = <-done:
	case <-scanCtx.Done():
		log.DebugContext(ctx, "lookup: deadline reached, stopping consumption", "max_lookup", maxLookup)
		res = <-done
	}

	if isFatal(res.err) {
		return res.outcome, res.err
	}
	if res.outcome == observability.OutcomeTimedOut {
		log.InfoContext(ctx, "lookup: failed or timed out expanding range", "error", res.err)
	}
	return res.outcome, nil
}
