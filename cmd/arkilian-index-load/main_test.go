package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/rangelookup/internal/index"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/store"
)

func TestParseEntry(t *testing.T) {
	e, err := parseEntry([]byte(`{"field":"NAME","value":"alice","date":"2024-01-15","uid":"doc-1","datatype":"csv","visibility":"PUBLIC"}`))
	require.NoError(t, err)
	assert.Equal(t, index.Entry{
		Field:      "NAME",
		Value:      "alice",
		Date:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		UID:        "doc-1",
		Datatype:   "csv",
		Visibility: "PUBLIC",
	}, e)

	e, err = parseEntry([]byte(`{"field":"AGE","value":42,"date":"20240115","uid":"doc-2","datatype":"csv"}`))
	require.NoError(t, err)
	assert.Equal(t, "42", e.Value)
	assert.Equal(t, "", e.Visibility)
}

func TestParseEntry_Invalid(t *testing.T) {
	for name, line := range map[string]string{
		"not json":      `field=NAME`,
		"missing value": `{"field":"NAME","date":"20240115","uid":"d","datatype":"csv"}`,
		"bad date":      `{"field":"NAME","value":"a","date":"15/01/2024","uid":"d","datatype":"csv"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseEntry([]byte(line))
			assert.True(t, errors.Is(err, errBadLine))
		})
	}
}

func TestLoad(t *testing.T) {
	input := strings.Join([]string{
		`{"field":"NAME","value":"alice","date":"20240115","uid":"doc-1","datatype":"csv"}`,
		``,
		`{"field":"NAME","value":"bob","date":"20240115","uid":"doc-2","datatype":"csv"}`,
		`{"field":"NAME","value":"alice","date":"20240115","uid":"doc-1","datatype":"csv"}`,
	}, "\n")

	s := store.NewMemoryStore()
	lines, cells, err := load(context.Background(), strings.NewReader(input), s, "shardIndex",
		Flags{Shards: 1, MaxUIDs: 5, BatchSize: 1}, logging.NoopLogger())
	require.NoError(t, err)
	assert.Equal(t, 4, lines)
	assert.Equal(t, 3, cells, "each full batch is flushed on its own")

	sess, err := s.OpenSession(context.Background(), "shardIndex", nil, 1, "q")
	require.NoError(t, err)
	defer sess.Close()
	it, err := sess.Iterate(context.Background())
	require.NoError(t, err)
	got, err := kv.Collect(it)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Key.Row)
	assert.Equal(t, "bob", got[1].Key.Row)
}

func TestLoad_BadLineStops(t *testing.T) {
	input := `{"field":"NAME","value":"alice","date":"20240115","uid":"doc-1","datatype":"csv"}` + "\n" + `{"field":"NAME"}`
	_, _, err := load(context.Background(), strings.NewReader(input), store.NewMemoryStore(), "shardIndex",
		Flags{}, logging.NoopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
