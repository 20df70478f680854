package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/rangelookup/internal/kv"
)

// SQLiteStore persists each index table as a SQLite table keyed by
// (row, cf, cq, vis). Key parts are stored as BLOBs so SQLite orders them
// byte-wise, matching kv.Key.Compare.
type SQLiteStore struct {
	db       *sql.DB
	readOnly bool
}

// OpenSQLiteStore opens or creates a writable store in WAL mode.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStoreReadOnly opens an existing store for scanning only.
func OpenSQLiteStoreReadOnly(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_query_only=true&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	return &SQLiteStore{db: db, readOnly: true}, nil
}

// Close closes the store. A writable store leaves WAL mode first so the file
// can be copied and opened read-only on its own.
func (s *SQLiteStore) Close() error {
	if !s.readOnly {
		if _, err := s.db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
			s.db.Close()
			return fmt.Errorf("store: leave wal mode: %w", err)
		}
	}
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLiteStore) CreateTable(ctx context.Context, table string) error {
	if table == "" {
		return fmt.Errorf("store: empty table name")
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(table)+` (
		row   BLOB NOT NULL,
		cf    BLOB NOT NULL,
		cq    BLOB NOT NULL,
		vis   TEXT NOT NULL DEFAULT '',
		value BLOB,
		PRIMARY KEY (row, cf, cq, vis)
	) WITHOUT ROWID`)
	if err != nil {
		return fmt.Errorf("store: create table %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) tableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: check table %s: %w", table, err)
	}
	return n > 0, nil
}

// Write upserts cells in a single transaction.
func (s *SQLiteStore) Write(ctx context.Context, table string, cells []kv.Cell) error {
	if s.readOnly {
		return fmt.Errorf("store: write to read-only snapshot")
	}
	ok, err := s.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO `+quoteIdent(table)+` (row, cf, cq, vis, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		value := c.Value
		if value == nil {
			value = []byte{}
		}
		if _, err := stmt.ExecContext(ctx,
			[]byte(c.Key.Row), []byte(c.Key.ColumnFamily), []byte(c.Key.ColumnQualifier), c.Key.Visibility, value); err != nil {
			return fmt.Errorf("store: insert %s: %w", c.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) OpenSession(ctx context.Context, table string, auths []string, threads int, queryID string) (Session, error) {
	ok, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return newScanSession(s, table, auths, threads, queryID), nil
}

func (s *SQLiteStore) scan(ctx context.Context, table string, rng kv.Range) (kv.CellIterator, error) {
	var (
		where []string
		args  []any
	)
	if rng.Start != nil {
		op := ">"
		if rng.StartInclusive {
			op = ">="
		}
		where = append(where, "(row, cf, cq, vis) "+op+" (?, ?, ?, ?)")
		args = append(args, keyArgs(*rng.Start)...)
	}
	if rng.End != nil {
		op := "<"
		if rng.EndInclusive {
			op = "<="
		}
		where = append(where, "(row, cf, cq, vis) "+op+" (?, ?, ?, ?)")
		args = append(args, keyArgs(*rng.End)...)
	}

	q := `SELECT row, cf, cq, vis, value FROM ` + quoteIdent(table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY row, cf, cq, vis"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", table, err)
	}
	return &rowsIterator{rows: rows}, nil
}

func keyArgs(k kv.Key) []any {
	return []any{[]byte(k.Row), []byte(k.ColumnFamily), []byte(k.ColumnQualifier), k.Visibility}
}

// rowsIterator adapts sql.Rows to kv.CellIterator.
type rowsIterator struct {
	rows *sql.Rows
	cur  kv.Cell
	err  error
}

func (r *rowsIterator) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	var row, cf, cq, value []byte
	var vis string
	if err := r.rows.Scan(&row, &cf, &cq, &vis, &value); err != nil {
		r.err = fmt.Errorf("store: scan row: %w", err)
		return false
	}
	r.cur = kv.Cell{
		Key: kv.Key{
			Row:             string(row),
			ColumnFamily:    string(cf),
			ColumnQualifier: string(cq),
			Visibility:      vis,
		},
		Value: value,
	}
	return true
}

func (r *rowsIterator) Cell() kv.Cell { return r.cur }

func (r *rowsIterator) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *rowsIterator) Close() error { return r.rows.Close() }
