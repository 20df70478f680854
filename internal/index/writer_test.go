package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/store"
)

var day = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func scanAll(t *testing.T, s *store.MemoryStore, table string) []kv.Cell {
	t.Helper()
	ctx := context.Background()
	sess, err := s.OpenSession(ctx, table, nil, 1, "test")
	require.NoError(t, err)
	defer sess.Close()
	it, err := sess.Iterate(ctx)
	require.NoError(t, err)
	cells, err := kv.Collect(it)
	require.NoError(t, err)
	return cells
}

func TestShardID(t *testing.T) {
	id := ShardID(day, "uid-1", 4)
	assert.True(t, strings.HasPrefix(id, "20240115_"))
	assert.Equal(t, id, ShardID(day, "uid-1", 4), "assignment is deterministic")

	for _, uid := range []string{"a", "b", "c", "d", "e"} {
		n := strings.TrimPrefix(ShardID(day, uid, 3), "20240115_")
		assert.Contains(t, []string{"0", "1", "2"}, n)
	}
}

func TestEntryKey(t *testing.T) {
	e := Entry{Field: "NAME", Value: "alice", Date: day, UID: "u1", Datatype: "csv", Visibility: "PUBLIC"}
	k := e.Key(1)
	assert.Equal(t, "alice", k.Row)
	assert.Equal(t, "NAME", k.ColumnFamily)
	assert.Equal(t, "20240115_0\x00csv", k.ColumnQualifier)
	assert.Equal(t, "PUBLIC", k.Visibility)
}

func TestWriter_MergesUIDs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	w := NewWriter(s, "shardIndex", 1, 2)

	for _, uid := range []string{"u1", "u2", "u1"} {
		require.NoError(t, w.Add(Entry{Field: "NAME", Value: "alice", Date: day, UID: uid, Datatype: "csv"}))
	}
	require.NoError(t, w.Add(Entry{Field: "NAME", Value: "bob", Date: day, UID: "u3", Datatype: "csv"}))
	assert.Equal(t, 2, w.Pending())

	n, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, w.Pending())

	cells := scanAll(t, s, "shardIndex")
	require.Len(t, cells, 2)
	assert.Equal(t, "alice", cells[0].Key.Row)

	list, err := DecodeUIDList(cells[0].Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), list.Count)
	assert.ElementsMatch(t, []string{"u1", "u2"}, list.UIDs)
}

func TestWriter_CapsUIDs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	w := NewWriter(s, "shardIndex", 1, 2)

	for _, uid := range []string{"u1", "u2", "u3", "u4"} {
		require.NoError(t, w.Add(Entry{Field: "NAME", Value: "alice", Date: day, UID: uid, Datatype: "csv"}))
	}
	_, err := w.Flush(ctx)
	require.NoError(t, err)

	cells := scanAll(t, s, "shardIndex")
	require.Len(t, cells, 1)
	list, err := DecodeUIDList(cells[0].Value)
	require.NoError(t, err)
	assert.True(t, list.IgnoreUIDs)
	assert.Empty(t, list.UIDs)
	assert.Equal(t, uint64(4), list.Count)
}

func TestWriter_RejectsInvalidEntries(t *testing.T) {
	w := NewWriter(store.NewMemoryStore(), "shardIndex", 0, 0)
	bad := []Entry{
		{Value: "alice", Date: day, UID: "u1", Datatype: "csv"},
		{Field: "NAME", Value: "alice", Date: day, Datatype: "csv"},
		{Field: "NAME", Value: "alice", Date: day, UID: "u1"},
		{Field: "NAME", Value: "alice", UID: "u1", Datatype: "csv"},
	}
	for _, e := range bad {
		assert.True(t, errors.Is(w.Add(e), ErrInvalidEntry), "%+v", e)
	}
}

func TestWriter_FlushEmpty(t *testing.T) {
	n, err := NewWriter(store.NewMemoryStore(), "shardIndex", 0, 0).Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDecodeUIDList_Corrupt(t *testing.T) {
	_, err := DecodeUIDList([]byte{0x0a, 0x05, 'a'})
	assert.True(t, errors.Is(err, ErrCorruptUIDList))
}
