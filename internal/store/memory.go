package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arkilian/rangelookup/internal/kv"
)

// MemoryStore keeps each table as a key-sorted slice of cells.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]kv.Cell
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]kv.Cell)}
}

// CreateTable is a no-op for an existing table.
func (m *MemoryStore) CreateTable(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = nil
	}
	return nil
}

// Write inserts cells, replacing any cell with an identical key.
func (m *MemoryStore) Write(ctx context.Context, table string, cells []kv.Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	for _, c := range cells {
		i := sort.Search(len(rows), func(i int) bool {
			return rows[i].Key.Compare(c.Key) >= 0
		})
		if i < len(rows) && rows[i].Key.Compare(c.Key) == 0 {
			rows[i] = c
			continue
		}
		rows = append(rows, kv.Cell{})
		copy(rows[i+1:], rows[i:])
		rows[i] = c
	}
	m.tables[table] = rows
	return nil
}

func (m *MemoryStore) OpenSession(ctx context.Context, table string, auths []string, threads int, queryID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	_, ok := m.tables[table]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return newScanSession(m, table, auths, threads, queryID), nil
}

// scan copies the cells inside rng so later writes do not disturb the scan.
func (m *MemoryStore) scan(ctx context.Context, table string, rng kv.Range) (kv.CellIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	lo := sort.Search(len(rows), func(i int) bool { return !rng.BeforeStart(rows[i].Key) })
	hi := sort.Search(len(rows), func(i int) bool { return rng.AfterEnd(rows[i].Key) })
	if hi < lo {
		hi = lo
	}
	out := make([]kv.Cell, hi-lo)
	copy(out, rows[lo:hi])
	return kv.NewSliceIterator(out), nil
}
