package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/filter"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/storage"
)

const table = "shardIndex"

func fixture() []kv.Cell {
	return []kv.Cell{
		{Key: kv.Key{Row: "alice", ColumnFamily: "NAME", ColumnQualifier: "20240101_0\x00csv"}, Value: []byte("1")},
		{Key: kv.Key{Row: "bob", ColumnFamily: "NAME", ColumnQualifier: "20240101_1\x00csv"}, Value: []byte("2")},
		{Key: kv.Key{Row: "bob", ColumnFamily: "CITY", ColumnQualifier: "20240101_1\x00csv"}, Value: []byte("3")},
		{Key: kv.Key{Row: "carol", ColumnFamily: "NAME", ColumnQualifier: "20240102_0\x00csv", Visibility: "SECRET"}, Value: []byte("4")},
		{Key: kv.Key{Row: "dave", ColumnFamily: "NAME", ColumnQualifier: "20240103_0\x00csv"}, Value: []byte("5")},
	}
}

type testStore interface {
	Store
	Writer
}

func openStores(t *testing.T) map[string]testStore {
	t.Helper()
	sqlite, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	stores := map[string]testStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
	ctx := context.Background()
	for _, s := range stores {
		require.NoError(t, s.CreateTable(ctx, table))
		require.NoError(t, s.Write(ctx, table, fixture()))
	}
	return stores
}

func scanRows(t *testing.T, s Session) []string {
	t.Helper()
	it, err := s.Iterate(context.Background())
	require.NoError(t, err)
	cells, err := kv.Collect(it)
	require.NoError(t, err)
	var out []string
	for _, c := range cells {
		out = append(out, c.Key.Row+"/"+c.Key.ColumnFamily)
	}
	return out
}

func TestAuthorizations_CanSee(t *testing.T) {
	auths := NewAuthorizations("A", "B")
	cases := map[string]bool{
		"":        true,
		"A":       true,
		"C":       false,
		"A&B":     true,
		"A&C":     false,
		"A|C":     true,
		"C|(A&B)": true,
		"(C|D)&A": false,
		"A&B|C":   false,
		"A&":      false,
		"(A":      false,
		"A)":      false,
	}
	for expr, want := range cases {
		assert.Equal(t, want, auths.CanSee(expr), "expr %q", expr)
	}
}

func TestStores_ScanRange(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := s.OpenSession(ctx, table, nil, 1, "q1")
			require.NoError(t, err)
			defer sess.Close()

			start, end := kv.RowKey("bob"), kv.RowKey("dave")
			rng, err := kv.NewRange(&start, true, &end, false)
			require.NoError(t, err)
			sess.SetRange(rng)

			assert.Equal(t, []string{"bob/CITY", "bob/NAME"}, scanRows(t, sess), "carol is not visible without SECRET")
		})
	}
}

func TestStores_FetchColumnFamilyAndAuths(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := s.OpenSession(context.Background(), table, []string{"SECRET"}, 1, "q2")
			require.NoError(t, err)
			defer sess.Close()

			sess.FetchColumnFamily("NAME")
			assert.Equal(t, []string{"alice/NAME", "bob/NAME", "carol/NAME", "dave/NAME"}, scanRows(t, sess))
		})
	}
}

func TestStores_Filters(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := s.OpenSession(context.Background(), table, nil, 1, "q3")
			require.NoError(t, err)
			defer sess.Close()

			d := filter.NewDescriptor(78, "dateFilter", filter.KindDateRange)
			d.AddOption(filter.OptionRange, filter.EncodeQualifierRange(filter.QualifierRange{
				Start: "20240101", End: "20240101" + kv.MaxUnicodeString, StartInclusive: true, EndInclusive: true,
			}))
			require.NoError(t, sess.AddFilter(d))
			assert.True(t, errors.Is(sess.AddFilter(d), ErrDuplicateName))
			require.NoError(t, sess.AddFilter(filter.NewDescriptor(80, "WholeRowIterator", filter.KindRowDecode)))

			it, err := sess.Iterate(context.Background())
			require.NoError(t, err)
			cells, err := kv.Collect(it)
			require.NoError(t, err)
			require.Len(t, cells, 2)

			bob, err := kv.DecodeRow(cells[1].Key, cells[1].Value)
			require.NoError(t, err)
			assert.Len(t, bob, 2)
		})
	}
}

func TestStores_TableNotFound(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.OpenSession(context.Background(), "missing", nil, 1, "q")
			assert.True(t, errors.Is(err, ErrTableNotFound))

			err = s.Write(context.Background(), "missing", fixture())
			assert.True(t, errors.Is(err, ErrTableNotFound))
		})
	}
}

func TestSession_ScanSetupFailure(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateTable(context.Background(), table))
	sess, err := s.OpenSession(context.Background(), table, nil, 1, "q")
	require.NoError(t, err)

	require.NoError(t, sess.AddFilter(filter.NewDescriptor(78, "dateFilter", filter.KindDateRange)))
	_, err = sess.Iterate(context.Background())
	assert.True(t, errors.Is(err, ErrScanSetup))
}

func TestSession_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateTable(context.Background(), table))
	sess, err := s.OpenSession(context.Background(), table, nil, 1, "q")
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	_, err = sess.Iterate(context.Background())
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestSession_TimeBudgetEndsScan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, table))
	require.NoError(t, s.Write(ctx, table, fixture()))

	sess, err := s.OpenSession(ctx, table, nil, 1, "q")
	require.NoError(t, err)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	sess.(*scanSession).now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	sess.SetSessionTimeBudget(2 * time.Second)
	require.NoError(t, sess.AddFilter(filter.NewDescriptor(130, "timeout", filter.KindTimeout)))

	it, err := sess.Iterate(ctx)
	require.NoError(t, err)
	cells, err := kv.Collect(it)
	require.NoError(t, err)
	require.NotEmpty(t, cells)
	assert.True(t, filter.IsTimeoutSentinel(cells[len(cells)-1]))
	assert.Less(t, len(cells), len(fixture())+1)
}

func TestSession_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, table))
	require.NoError(t, s.Write(ctx, table, fixture()))
	sess, err := s.OpenSession(ctx, table, nil, 1, "q")
	require.NoError(t, err)

	scanCtx, cancel := context.WithCancel(ctx)
	it, err := sess.Iterate(scanCtx)
	require.NoError(t, err)
	require.True(t, it.Next())
	cancel()
	assert.False(t, it.Next())
	assert.True(t, errors.Is(it.Err(), context.Canceled))
}

func TestMemoryStore_WriteReplacesKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, table))
	k := kv.Key{Row: "a", ColumnFamily: "F", ColumnQualifier: "q"}
	require.NoError(t, s.Write(ctx, table, []kv.Cell{{Key: k, Value: []byte("1")}}))
	require.NoError(t, s.Write(ctx, table, []kv.Cell{{Key: k, Value: []byte("2")}}))

	sess, err := s.OpenSession(ctx, table, nil, 1, "q")
	require.NoError(t, err)
	it, err := sess.Iterate(ctx)
	require.NoError(t, err)
	cells, err := kv.Collect(it)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, []byte("2"), cells[0].Value)
}

func TestFactory_BoundsOpenSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, table))
	f := NewFactory(s, 1)

	first, err := f.NewSession(ctx, table, nil, 1, "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.OpenSessions())

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.NewSession(waitCtx, table, nil, 1, "q2")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, f.Close(first))
	require.NoError(t, f.Close(first))
	assert.Equal(t, 0, f.OpenSessions())

	second, err := f.NewSession(ctx, table, nil, 1, "q3")
	require.NoError(t, err)
	require.NoError(t, f.CloseAll())
	assert.Equal(t, 0, f.OpenSessions())
	_, err = second.Iterate(ctx)
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestFactory_FailedOpenReleasesSlot(t *testing.T) {
	f := NewFactory(NewMemoryStore(), 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.NewSession(ctx, "missing", nil, 1, "q")
		assert.True(t, errors.Is(err, ErrTableNotFound))
	}
	assert.Equal(t, 0, f.OpenSessions())
}

func TestOpenSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "build", "index.db")
	w, err := OpenSQLiteStore(src)
	require.NoError(t, err)
	require.NoError(t, w.CreateTable(ctx, table))
	require.NoError(t, w.Write(ctx, table, fixture()))
	require.NoError(t, w.Close())

	objects, err := storage.NewLocalStorage(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	require.NoError(t, objects.Upload(ctx, src, "snapshots/index.db"))

	snap, err := OpenSnapshot(ctx, objects, "snapshots/index.db", filepath.Join(dir, "cache"))
	require.NoError(t, err)
	defer snap.Close()

	sess, err := snap.OpenSession(ctx, table, nil, 1, "q")
	require.NoError(t, err)
	sess.FetchColumnFamily("CITY")
	assert.Equal(t, []string{"bob/CITY"}, scanRows(t, sess))

	assert.Error(t, snap.Write(ctx, table, fixture()))

	_, err = OpenSnapshot(ctx, objects, "snapshots/absent.db", filepath.Join(dir, "cache"))
	assert.Equal(t, lerrors.CodeSnapshotFetchFailed, lerrors.GetCode(err))
	assert.True(t, lerrors.IsRetryable(err))
}
