// Package types holds the public value types shared by lookup callers.
package types

import "strings"

// LiteralRange is a bounded range over the terms of one field. Lower should
// not sort after Upper; a reversed range surfaces as a range construction
// error when the lookup builds its scan boundary.
type LiteralRange struct {
	Field          string
	Lower          string
	Upper          string
	LowerInclusive bool
	UpperInclusive bool
}

// NewLiteralRange builds a range over field.
func NewLiteralRange(field, lower string, lowerInclusive bool, upper string, upperInclusive bool) LiteralRange {
	return LiteralRange{
		Field:          field,
		Lower:          lower,
		Upper:          upper,
		LowerInclusive: lowerInclusive,
		UpperInclusive: upperInclusive,
	}
}

// String renders the range as FIELD:[lower,upper).
func (r LiteralRange) String() string {
	var b strings.Builder
	b.WriteString(r.Field)
	b.WriteByte(':')
	if r.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	b.WriteString(r.Lower)
	b.WriteByte(',')
	b.WriteString(r.Upper)
	if r.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// ContainsSeparator reports whether sep occurs in either bound.
func (r LiteralRange) ContainsSeparator(sep string) bool {
	if sep == "" {
		return false
	}
	return strings.Contains(r.Lower, sep) || strings.Contains(r.Upper, sep)
}
