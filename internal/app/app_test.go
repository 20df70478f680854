package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/rangelookup/internal/config"
	"github.com/arkilian/rangelookup/internal/index"
	"github.com/arkilian/rangelookup/internal/lookup"
	"github.com/arkilian/rangelookup/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Lookup.BeginDate = "20240101"
	cfg.Lookup.EndDate = "20240131"
	return cfg
}

func loadTerms(t *testing.T, a *App, terms ...string) {
	t.Helper()
	dest, err := a.Writer()
	require.NoError(t, err)
	w := index.NewWriter(dest, a.Config().Lookup.IndexTable, 0, 0)
	for i, term := range terms {
		require.NoError(t, w.Add(index.Entry{
			Field:    "F",
			Value:    term,
			Date:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			UID:      "uid-" + term + "-" + string(rune('a'+i)),
			Datatype: "csv",
		}))
	}
	_, err = w.Flush(context.Background())
	require.NoError(t, err)
}

func lookupAll(t *testing.T, a *App) []string {
	t.Helper()
	m, err := lookup.NewBoundedRangeLookup(types.NewLiteralRange("F", "A", true, "Z", true), lookup.WithStats(a.Stats())).
		Lookup(context.Background(), &a.Config().Lookup, a.Factory(), time.Second)
	require.NoError(t, err)
	if ts := m.Get("F"); ts != nil {
		return ts.Terms()
	}
	return nil
}

func TestApp_Memory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "memory"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background(), ModeRead))
	defer a.Close()

	loadTerms(t, a, "B", "D")
	assert.Equal(t, []string{"B", "D"}, lookupAll(t, a))

	fs, ok := a.Stats().Snapshot("F")
	require.True(t, ok)
	assert.Equal(t, int64(1), fs.Lookups)
	assert.Equal(t, int64(2), fs.TermsFound)
}

func TestApp_SQLiteWriteThenRead(t *testing.T) {
	cfg := testConfig(t)

	w, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, w.Open(context.Background(), ModeWrite))
	loadTerms(t, w, "C", "A")
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	r, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, r.Open(context.Background(), ModeRead))
	defer r.Close()

	_, err = r.Writer()
	assert.Error(t, err)
	assert.Equal(t, []string{"A", "C"}, lookupAll(t, r))
}

func TestApp_PublishAndOpenSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.SnapshotObject = "indexes/shard-index.db"

	w, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, w.Open(context.Background(), ModeWrite))
	loadTerms(t, w, "B")
	require.NoError(t, w.Publish(context.Background()))
	assert.FileExists(t, filepath.Join(cfg.Storage.Path, "indexes", "shard-index.db"))

	readCfg := testConfig(t)
	readCfg.Storage.Path = cfg.Storage.Path
	readCfg.Store.SnapshotObject = cfg.Store.SnapshotObject

	r, err := New(readCfg, nil)
	require.NoError(t, err)
	require.NoError(t, r.Open(context.Background(), ModeRead))
	defer r.Close()

	assert.Equal(t, []string{"B"}, lookupAll(t, r))
	assert.FileExists(t, filepath.Join(readCfg.Store.CacheDir, "indexes", "shard-index.db"))
}

func TestApp_MissingSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.SnapshotObject = "indexes/missing.db"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, a.Open(context.Background(), ModeRead))
}

func TestApp_PublishRequiresSnapshotObject(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background(), ModeWrite))
	defer a.Close()

	assert.Error(t, a.Publish(context.Background()))
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "postgres"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestApp_OpenTwice(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "memory"
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background(), ModeRead))
	defer a.Close()
	assert.Error(t, a.Open(context.Background(), ModeRead))
}
