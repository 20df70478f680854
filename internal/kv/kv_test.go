package kv

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCompare(t *testing.T) {
	a := Key{Row: "a"}
	aF := Key{Row: "a", ColumnFamily: "F"}
	aFq := Key{Row: "a", ColumnFamily: "F", ColumnQualifier: "20240101_0\x00csv"}
	b := Key{Row: "b"}

	assert.Equal(t, -1, a.Compare(aF), "row-only key is the smallest key of its row")
	assert.Equal(t, -1, aF.Compare(aFq))
	assert.Equal(t, -1, aFq.Compare(b))
	assert.Equal(t, 0, aFq.Compare(aFq))
	assert.Equal(t, 1, b.Compare(a))

	// the null successor sorts directly after the term
	assert.Equal(t, -1, Key{Row: "a"}.Compare(Key{Row: "a" + NullByte}))
	assert.Equal(t, -1, Key{Row: "a" + NullByte}.Compare(Key{Row: "a0"}))
}

func TestMaxUnicodeSortsAfterShardQualifiers(t *testing.T) {
	end := "20240115" + MaxUnicodeString
	for _, cq := range []string{"20240115", "20240115_0\x00csv", "20240115_99\x00wiki"} {
		assert.Less(t, cq, end)
	}
	assert.Greater(t, "20240116", end)
}

func TestNewRange(t *testing.T) {
	a, c := RowKey("a"), RowKey("c")

	r, err := NewRange(&a, true, &c, false)
	require.NoError(t, err)
	assert.True(t, r.Contains(Key{Row: "a", ColumnFamily: "F"}))
	assert.True(t, r.Contains(Key{Row: "b", ColumnFamily: "F"}))
	assert.False(t, r.Contains(Key{Row: "c", ColumnFamily: "F"}))

	_, err = NewRange(&c, true, &a, false)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	// equal keys are allowed only when both sides are inclusive
	_, err = NewRange(&a, true, &a, true)
	assert.NoError(t, err)
	_, err = NewRange(&a, true, &a, false)
	assert.True(t, errors.Is(err, ErrInvalidRange))
	_, err = NewRange(&a, false, &a, true)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestRangeInclusiveEnd(t *testing.T) {
	start := RowKey("a")
	end := Key{Row: "c", ColumnFamily: "F", ColumnQualifier: "20240115" + MaxUnicodeString}
	r, err := NewRange(&start, true, &end, true)
	require.NoError(t, err)

	assert.True(t, r.Contains(Key{Row: "c", ColumnFamily: "F", ColumnQualifier: "20240115_3\x00csv"}))
	assert.False(t, r.Contains(Key{Row: "c", ColumnFamily: "G"}))
	assert.False(t, r.Contains(Key{Row: "c\x00"}))
}

func TestUnboundedRange(t *testing.T) {
	r, err := NewRange(nil, true, nil, true)
	require.NoError(t, err)
	assert.True(t, r.Contains(Key{Row: ""}))
	assert.True(t, r.Contains(Key{Row: "\xff\xff"}))
	assert.Equal(t, "[-inf, +inf]", r.String())
}

func TestEncodeDecodeRow(t *testing.T) {
	cells := []Cell{
		{Key: Key{Row: "alice", ColumnFamily: "NAME", ColumnQualifier: "20240101_1\x00csv"}, Value: []byte{1, 2}},
		{Key: Key{Row: "alice", ColumnFamily: "NAME", ColumnQualifier: "20240102_7\x00wiki", Visibility: "PUBLIC"}, Value: nil},
	}

	enc, err := EncodeRow(cells)
	require.NoError(t, err)

	dec, err := DecodeRow(RowKey("alice"), enc)
	require.NoError(t, err)
	require.Len(t, dec, 2)
	assert.Equal(t, cells[0].Key, dec[0].Key)
	assert.Equal(t, cells[0].Value, dec[0].Value)
	assert.Equal(t, cells[1].Key, dec[1].Key)
	assert.Empty(t, dec[1].Value)
}

func TestEncodeRow_Errors(t *testing.T) {
	_, err := EncodeRow(nil)
	assert.Error(t, err)

	_, err = EncodeRow([]Cell{{Key: RowKey("a")}, {Key: RowKey("b")}})
	assert.Error(t, err)
}

func TestDecodeRow_Corrupt(t *testing.T) {
	_, err := DecodeRow(RowKey("a"), []byte("not snappy at all"))
	assert.True(t, errors.Is(err, ErrCorruptRow))
}

func TestDays(t *testing.T) {
	d := time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "20240115", FormatDay(d))

	p, err := ParseDay("20240115")
	require.NoError(t, err)
	assert.Equal(t, 15, p.Day())

	_, err = ParseDay("2024-01-15")
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	cells := []Cell{{Key: RowKey("a")}, {Key: RowKey("b")}}
	out, err := Collect(NewSliceIterator(cells))
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
