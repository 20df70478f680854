package filter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arkilian/rangelookup/internal/kv"
)

// timeoutMarker is the value of the synthetic cell emitted when a scan is cut
// short. Real values are encoded rows and never equal it.
var timeoutMarker = []byte("!!EXCEEDED_TIMEOUT!!")

// TimeoutSentinel returns the synthetic cell a Timeout stage emits after the
// last real cell it passed through.
func TimeoutSentinel(last kv.Key) kv.Cell {
	return kv.Cell{Key: last, Value: append([]byte(nil), timeoutMarker...)}
}

// IsTimeoutSentinel reports whether c was produced by TimeoutSentinel.
func IsTimeoutSentinel(c kv.Cell) bool {
	return bytes.Equal(c.Value, timeoutMarker)
}

// Env carries the session state stages need at build time.
type Env struct {
	// Range is the session's scan range.
	Range kv.Range

	// SessionStart is when the session began reading.
	SessionStart time.Time

	// SessionBudget bounds how long the session may read. Zero disables it.
	SessionBudget time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Build stacks the stages named by descs over source in ascending priority
// order. When env carries a session budget the fairness stage sits directly
// over source.
func Build(source kv.CellIterator, descs []Descriptor, env Env) (kv.CellIterator, error) {
	it := source
	if env.SessionBudget > 0 {
		start := env.SessionStart
		if start.IsZero() {
			start = env.now()
		}
		it = &fairnessStage{src: it, deadline: start.Add(env.SessionBudget), now: env.now}
	}

	seen := make(map[int]string, len(descs))
	for _, d := range SortByPriority(descs) {
		if prev, ok := seen[d.Priority]; ok {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicatePriority, d.Priority, prev, d.Name)
		}
		seen[d.Priority] = d.Name

		var err error
		switch d.Kind {
		case KindRowDecode:
			it = &rowDecodeStage{src: it}
		case KindDateRange:
			it, err = newDateRangeStage(it, d)
		case KindCompositeSeek:
			it, err = newCompositeStage(it, d, env.Range)
		case KindTimeout:
			it = &timeoutStage{src: it}
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownKind, d.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", d.Name, err)
		}
	}
	return it, nil
}

// fairnessStage ends the scan with ErrSessionExpired once the deadline passes.
type fairnessStage struct {
	src      kv.CellIterator
	deadline time.Time
	now      func() time.Time
	err      error
}

func (s *fairnessStage) Next() bool {
	if s.err != nil {
		return false
	}
	if s.now().After(s.deadline) {
		s.err = ErrSessionExpired
		return false
	}
	return s.src.Next()
}

func (s *fairnessStage) Cell() kv.Cell { return s.src.Cell() }

func (s *fairnessStage) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.src.Err()
}

func (s *fairnessStage) Close() error { return s.src.Close() }

// timeoutStage turns ErrSessionExpired into a trailing sentinel cell.
type timeoutStage struct {
	src  kv.CellIterator
	cur  kv.Cell
	last kv.Key
	done bool
}

func (s *timeoutStage) Next() bool {
	if s.done {
		return false
	}
	if s.src.Next() {
		s.cur = s.src.Cell()
		s.last = s.cur.Key
		return true
	}
	if errors.Is(s.src.Err(), ErrSessionExpired) {
		s.cur = TimeoutSentinel(s.last)
		s.done = true
		return true
	}
	s.done = true
	return false
}

func (s *timeoutStage) Cell() kv.Cell { return s.cur }

func (s *timeoutStage) Err() error {
	if err := s.src.Err(); err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	return nil
}

func (s *timeoutStage) Close() error { return s.src.Close() }

// rowDecodeStage folds the cells of each row into one cell whose value is
// the kv.EncodeRow encoding.
type rowDecodeStage struct {
	src        kv.CellIterator
	pending    kv.Cell
	hasPending bool
	cur        kv.Cell
	err        error
}

func (s *rowDecodeStage) Next() bool {
	if s.err != nil {
		return false
	}

	var row []kv.Cell
	if s.hasPending {
		row = append(row, s.pending)
		s.hasPending = false
	} else if s.src.Next() {
		row = append(row, s.src.Cell())
	} else {
		return false
	}

	for s.src.Next() {
		c := s.src.Cell()
		if c.Key.Row != row[0].Key.Row {
			s.pending = c
			s.hasPending = true
			break
		}
		row = append(row, c)
	}

	enc, err := kv.EncodeRow(row)
	if err != nil {
		s.err = err
		return false
	}
	s.cur = kv.Cell{Key: kv.RowKey(row[0].Key.Row), Value: enc}
	return true
}

func (s *rowDecodeStage) Cell() kv.Cell { return s.cur }

func (s *rowDecodeStage) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.src.Err()
}

func (s *rowDecodeStage) Close() error { return s.src.Close() }

// dateRangeStage drops cells whose qualifier falls outside the window.
type dateRangeStage struct {
	src    kv.CellIterator
	window QualifierRange
}

func newDateRangeStage(src kv.CellIterator, d Descriptor) (*dateRangeStage, error) {
	raw, ok := d.Options[OptionRange]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrBadOption, OptionRange)
	}
	window, err := DecodeQualifierRange(raw)
	if err != nil {
		return nil, err
	}
	return &dateRangeStage{src: src, window: window}, nil
}

func (s *dateRangeStage) Next() bool {
	for s.src.Next() {
		if s.window.Contains(s.src.Cell().Key.ColumnQualifier) {
			return true
		}
	}
	return false
}

func (s *dateRangeStage) Cell() kv.Cell { return s.src.Cell() }
func (s *dateRangeStage) Err() error    { return s.src.Err() }
func (s *dateRangeStage) Close() error  { return s.src.Close() }

// componentBound is one composite component limit taken from a range row.
type componentBound struct {
	value     string
	exclusive bool
}

// compositeStage drops rows whose composite components fall outside the
// per-component limits implied by the range's start and end rows.
type compositeStage struct {
	src   kv.CellIterator
	sep   string
	types []DiscreteIndexType
	lower []componentBound
	upper []componentBound
}

func newCompositeStage(src kv.CellIterator, d Descriptor, rng kv.Range) (*compositeStage, error) {
	sep := d.Options[OptionSeparator]
	if sep == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrBadOption, OptionSeparator)
	}
	rawFields := d.Options[OptionComponentFields]
	if rawFields == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrBadOption, OptionComponentFields)
	}

	fields := strings.Split(rawFields, ",")
	types := make([]DiscreteIndexType, len(fields))
	for i, f := range fields {
		types[i] = LexicographicType{}
		name, ok := d.Options[f+DiscreteIndexTypeSuffix]
		if !ok {
			continue
		}
		t, ok := LookupDiscreteType(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown discrete index type %q for %s", ErrBadOption, name, f)
		}
		types[i] = t
	}

	s := &compositeStage{src: src, sep: sep, types: types}
	if rng.Start != nil {
		s.lower = splitBound(rng.Start.Row, sep, !rng.StartInclusive)
	}
	if rng.End != nil {
		s.upper = splitBound(rng.End.Row, sep, !rng.EndInclusive)
	}
	return s, nil
}

// splitBound splits a range row into components. A trailing null byte marks
// the last component as exclusive.
func splitBound(row, sep string, exclusive bool) []componentBound {
	if strings.HasSuffix(row, kv.NullByte) {
		row = strings.TrimSuffix(row, kv.NullByte)
		exclusive = true
	}
	parts := strings.Split(row, sep)
	out := make([]componentBound, len(parts))
	for i, p := range parts {
		out[i] = componentBound{value: p}
	}
	out[len(out)-1].exclusive = exclusive
	return out
}

// accept checks every component against its bounds inclusively. An exclusive
// bound only rejects a term that matches that bound in every component.
func (s *compositeStage) accept(row string) bool {
	comps := strings.Split(row, s.sep)
	lowerTight, upperTight := true, true
	for i, c := range comps {
		typ := s.types[min(i, len(s.types)-1)]
		if i < len(s.lower) {
			cmp := typ.Compare(c, s.lower[i].value)
			if cmp < 0 {
				return false
			}
			lowerTight = lowerTight && cmp == 0
			if lowerTight && s.lower[i].exclusive && i == len(comps)-1 {
				return false
			}
		}
		if i < len(s.upper) {
			cmp := typ.Compare(c, s.upper[i].value)
			if cmp > 0 {
				return false
			}
			upperTight = upperTight && cmp == 0
			if upperTight && s.upper[i].exclusive && i == len(comps)-1 {
				return false
			}
		}
	}
	return true
}

func (s *compositeStage) Next() bool {
	for s.src.Next() {
		if s.accept(s.src.Cell().Key.Row) {
			return true
		}
	}
	return false
}

func (s *compositeStage) Cell() kv.Cell { return s.src.Cell() }
func (s *compositeStage) Err() error    { return s.src.Err() }
func (s *compositeStage) Close() error  { return s.src.Close() }
