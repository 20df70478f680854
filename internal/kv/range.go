package kv

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a range's end sorts before its start.
var ErrInvalidRange = errors.New("start key must be less than end key")

// Range is a scan interval over keys. A nil Start or End is unbounded.
type Range struct {
	Start          *Key
	StartInclusive bool
	End            *Key
	EndInclusive   bool
}

// NewRange validates and builds a range. It rejects an end that sorts before
// the start, or one equal to the start when either side is exclusive.
func NewRange(start *Key, startInclusive bool, end *Key, endInclusive bool) (Range, error) {
	r := Range{
		Start:          start,
		StartInclusive: startInclusive,
		End:            end,
		EndInclusive:   endInclusive,
	}
	if start != nil && end != nil {
		c := end.Compare(*start)
		if c < 0 || (c == 0 && !(startInclusive && endInclusive)) {
			return Range{}, fmt.Errorf("%w in range (%s, %s)", ErrInvalidRange, start, end)
		}
	}
	return r, nil
}

// BeforeStart reports whether k sorts before the range.
func (r Range) BeforeStart(k Key) bool {
	if r.Start == nil {
		return false
	}
	c := k.Compare(*r.Start)
	if r.StartInclusive {
		return c < 0
	}
	return c <= 0
}

// AfterEnd reports whether k sorts after the range.
func (r Range) AfterEnd(k Key) bool {
	if r.End == nil {
		return false
	}
	c := k.Compare(*r.End)
	if r.EndInclusive {
		return c > 0
	}
	return c >= 0
}

// Contains reports whether k falls inside the range.
func (r Range) Contains(k Key) bool {
	return !r.BeforeStart(k) && !r.AfterEnd(k)
}

func (r Range) String() string {
	lb, rb := "(", ")"
	if r.StartInclusive {
		lb = "["
	}
	if r.EndInclusive {
		rb = "]"
	}
	start, end := "-inf", "+inf"
	if r.Start != nil {
		start = r.Start.String()
	}
	if r.End != nil {
		end = r.End.String()
	}
	return lb + start + ", " + end + rb
}
