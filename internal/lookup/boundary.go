package lookup

import (
	"math"
	"time"

	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/pkg/types"
)

// DateWindow is the inclusive span of shard days a lookup scans, as yyyyMMdd.
type DateWindow struct {
	BeginDay string
	EndDay   string
}

// NewDateWindow spans the shard days from begin to end.
func NewDateWindow(begin, end time.Time) DateWindow {
	return DateWindow{BeginDay: kv.FormatDay(begin), EndDay: kv.FormatDay(end)}
}

// endOfDay sorts after every shard qualifier recorded on the end day.
func (w DateWindow) endOfDay() string {
	return w.EndDay + kv.MaxUnicodeString
}

// BuildBoundary converts rng into the scan range over the global index.
//
// The start is always inclusive: an exclusive lower bound starts at the
// smallest successor of the term instead. An inclusive upper bound ends at
// the term's last qualifier on the end day; an exclusive one ends before the
// term's first cell.
func BuildBoundary(rng types.LiteralRange, window DateWindow) (kv.Range, error) {
	start := kv.RowKey(rng.Lower)
	if !rng.LowerInclusive {
		start = kv.RowKey(rng.Lower + kv.NullByte)
	}

	end := kv.RowKey(rng.Upper)
	if rng.UpperInclusive {
		end = kv.Key{Row: rng.Upper, ColumnFamily: rng.Field, ColumnQualifier: window.endOfDay()}
	}

	boundary, err := kv.NewRange(&start, true, &end, rng.UpperInclusive)
	if err != nil {
		return kv.Range{}, lerrors.NewRangeConstructionError(rng, err)
	}
	return boundary, nil
}

// sessionBudget is twice the lookup deadline, saturating instead of
// overflowing.
func sessionBudget(maxLookup time.Duration) time.Duration {
	if maxLookup <= 0 {
		return 0
	}
	if maxLookup < math.MaxInt64/2 {
		return 2 * maxLookup
	}
	return maxLookup
}

// compositeSeparator returns the separator to filter composite components
// on, or "" when no composite filter applies to rng.
func compositeSeparator(components map[string][]string, separators map[string]string, rng types.LiteralRange) string {
	if _, ok := components[rng.Field]; !ok {
		return ""
	}
	sep := separators[rng.Field]
	if !rng.ContainsSeparator(sep) {
		return ""
	}
	return sep
}
