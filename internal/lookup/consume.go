package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/filter"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/observability"
)

var errTimeoutSentinel = errors.New("store timeout exceeded for bounded range lookup")

// Classify returns the datatype recorded in a global index qualifier: the
// text after the first null separator.
func Classify(qualifier string) (string, bool) {
	i := strings.Index(qualifier, kv.NullByte)
	if i < 0 {
		return "", false
	}
	return qualifier[i+1:], true
}

// acceptRow reports whether any cell of a decoded row carries an allowed
// datatype. An empty filter accepts every non-empty row.
func acceptRow(cells []kv.Cell, datatypes map[string]struct{}) bool {
	if len(datatypes) == 0 {
		return len(cells) > 0
	}
	for _, c := range cells {
		if dt, ok := Classify(c.Key.ColumnQualifier); ok {
			if _, allowed := datatypes[dt]; allowed {
				return true
			}
		}
	}
	return false
}

// consumer drains a scan into an IndexLookupMap.
type consumer struct {
	// field is the only column family rows may carry. Empty when unfielded.
	field     string
	fields    []string
	unfielded bool
	datatypes map[string]struct{}
	log       *logging.Logger
}

// run consumes until the scan ends, a threshold stops it, or it fails. A
// non-nil error with OutcomeTimedOut is a recoverable failure. Only an
// *errors.LookupError is fatal.
func (c *consumer) run(ctx context.Context, it kv.CellIterator, m *IndexLookupMap) (observability.Outcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return observability.OutcomeTimedOut, err
		}
		if !it.Next() {
			if err := it.Err(); err != nil {
				return observability.OutcomeTimedOut, err
			}
			// a store cut short by the deadline may end without an error
			if err := ctx.Err(); err != nil {
				return observability.OutcomeTimedOut, err
			}
			return observability.OutcomeComplete, nil
		}

		entry := it.Cell()
		if filter.IsTimeoutSentinel(entry) {
			return observability.OutcomeTimedOut, errTimeoutSentinel
		}
		if c.log.TraceEnabled(ctx) {
			c.log.Trace(ctx, "lookup: index entry", "key", entry.Key.String())
		}

		cells, err := kv.DecodeRow(entry.Key, entry.Value)
		if err != nil {
			return observability.OutcomeTimedOut, err
		}
		if len(cells) == 0 {
			return observability.OutcomeTimedOut, fmt.Errorf("%w: no cells in row %q", kv.ErrCorruptRow, entry.Key.Row)
		}

		term := entry.Key.Row
		field := cells[0].Key.ColumnFamily
		if !c.unfielded && field != c.field {
			return observability.OutcomeTimedOut, lerrors.New(lerrors.ErrCategoryInternal, lerrors.CodeUnexpectedField,
				fmt.Sprintf("unexpected field %q expanding range on %q", field, c.field)).
				WithDetails(map[string]interface{}{"term": term})
		}

		if !acceptRow(cells, c.datatypes) {
			continue
		}

		m.Put(field, term)
		if ts := m.Get(field); ts == nil || ts.IsThresholdExceeded() || m.IsKeyThresholdExceeded() {
			c.log.DebugContext(ctx, "lookup: expansion threshold reached", "field", field, "terms", m.Size())
			return observability.OutcomeStoppedEarly, nil
		}
	}
}

// markOverflow records a failed consumption. Fielded lookups flag each
// requested field with an empty placeholder term. Unfielded lookups flag the
// whole map.
func (c *consumer) markOverflow(m *IndexLookupMap) {
	if c.unfielded {
		m.SetKeyThresholdExceeded()
		return
	}
	for _, f := range c.fields {
		m.Put(f, "")
		if ts := m.Get(f); ts != nil {
			ts.SetThresholdExceeded()
		} else {
			m.SetKeyThresholdExceeded()
		}
	}
}

// isFatal separates invariant violations from recoverable failures.
func isFatal(err error) bool {
	var le *lerrors.LookupError
	return errors.As(err, &le) && le.Code == lerrors.CodeUnexpectedField
}
