// Package kv defines the key/value model of the range-partitioned index store:
// keys and their ordering, scan ranges, cells, and the whole-row encoding.
package kv

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// NullByte separates segments inside a column qualifier and is the
	// smallest successor suffix of a term under byte ordering.
	NullByte = "\x00"

	// MaxUnicodeString is the largest code point. Appended to a prefix it
	// sorts after every qualifier that starts with that prefix.
	MaxUnicodeString = "\U0010FFFF"

	dayLayout = "20060102"
)

// Key locates a cell. Keys sort by row, column family, column qualifier and
// visibility, each compared byte-wise.
type Key struct {
	Row             string
	ColumnFamily    string
	ColumnQualifier string
	Visibility      string
}

// RowKey returns the smallest key of row.
func RowKey(row string) Key {
	return Key{Row: row}
}

// Compare returns -1, 0 or 1.
func (k Key) Compare(o Key) int {
	if c := strings.Compare(k.Row, o.Row); c != 0 {
		return c
	}
	if c := strings.Compare(k.ColumnFamily, o.ColumnFamily); c != 0 {
		return c
	}
	if c := strings.Compare(k.ColumnQualifier, o.ColumnQualifier); c != 0 {
		return c
	}
	return strings.Compare(k.Visibility, o.Visibility)
}

// String renders non-printable bytes escaped so keys are readable in logs.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(quote(k.Row))
	b.WriteByte(' ')
	b.WriteString(quote(k.ColumnFamily))
	b.WriteByte(':')
	b.WriteString(quote(k.ColumnQualifier))
	if k.Visibility != "" {
		b.WriteString(" [")
		b.WriteString(k.Visibility)
		b.WriteByte(']')
	}
	return b.String()
}

func quote(s string) string {
	q := strconv.QuoteToASCII(s)
	return q[1 : len(q)-1]
}

// FormatDay formats t as the yyyyMMdd prefix used in shard identifiers.
func FormatDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ParseDay parses a yyyyMMdd string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("kv: invalid day %q: %w", s, err)
	}
	return t, nil
}
