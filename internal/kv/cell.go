package kv

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrCorruptRow is returned when an encoded row cannot be decoded.
var ErrCorruptRow = errors.New("corrupt encoded row")

// Cell is a single key/value entry.
type Cell struct {
	Key   Key
	Value []byte
}

// Encoded row layout: repeated field 1, one embedded message per cell with
// cf=1, cq=2, visibility=3, value=4. The row itself is carried by the key.
const (
	rowFieldCell       protowire.Number = 1
	cellFieldFamily    protowire.Number = 1
	cellFieldQualifier protowire.Number = 2
	cellFieldVis       protowire.Number = 3
	cellFieldValue     protowire.Number = 4
)

// EncodeRow packs the cells of one row into a single snappy-compressed value.
// All cells must share the same row.
func EncodeRow(cells []Cell) ([]byte, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("kv: cannot encode empty row")
	}
	row := cells[0].Key.Row

	var buf, msg []byte
	for _, c := range cells {
		if c.Key.Row != row {
			return nil, fmt.Errorf("kv: mixed rows %q and %q in one encoded row", row, c.Key.Row)
		}
		msg = msg[:0]
		msg = protowire.AppendTag(msg, cellFieldFamily, protowire.BytesType)
		msg = protowire.AppendString(msg, c.Key.ColumnFamily)
		msg = protowire.AppendTag(msg, cellFieldQualifier, protowire.BytesType)
		msg = protowire.AppendString(msg, c.Key.ColumnQualifier)
		if c.Key.Visibility != "" {
			msg = protowire.AppendTag(msg, cellFieldVis, protowire.BytesType)
			msg = protowire.AppendString(msg, c.Key.Visibility)
		}
		msg = protowire.AppendTag(msg, cellFieldValue, protowire.BytesType)
		msg = protowire.AppendBytes(msg, c.Value)

		buf = protowire.AppendTag(buf, rowFieldCell, protowire.BytesType)
		buf = protowire.AppendBytes(buf, msg)
	}
	return snappy.Encode(nil, buf), nil
}

// DecodeRow reverses EncodeRow. The returned cells are ordered as encoded and
// carry key.Row as their row.
func DecodeRow(key Key, value []byte) ([]Cell, error) {
	raw, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}

	var cells []Cell
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		raw = raw[n:]

		if num != rowFieldCell || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
			}
			raw = raw[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		raw = raw[n:]

		cell, err := decodeCell(key.Row, msg)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: row %s has no cells", ErrCorruptRow, key)
	}
	return cells, nil
}

func decodeCell(row string, msg []byte) (Cell, error) {
	c := Cell{Key: Key{Row: row}}
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return Cell{}, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		msg = msg[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return Cell{}, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
			}
			msg = msg[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(msg)
		if n < 0 {
			return Cell{}, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		msg = msg[n:]

		switch num {
		case cellFieldFamily:
			c.Key.ColumnFamily = string(v)
		case cellFieldQualifier:
			c.Key.ColumnQualifier = string(v)
		case cellFieldVis:
			c.Key.Visibility = string(v)
		case cellFieldValue:
			c.Value = append([]byte(nil), v...)
		}
	}
	return c, nil
}
