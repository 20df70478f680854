// Package store provides the range-scanning key/value stores that hold the
// global index, and the scan sessions lookups run against them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/arkilian/rangelookup/internal/filter"
	"github.com/arkilian/rangelookup/internal/kv"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrSessionClosed = errors.New("scan session closed")
	ErrScanSetup     = errors.New("scan setup failed")
	ErrDuplicateName = errors.New("filter name already attached")
)

// Store opens scan sessions over named tables.
type Store interface {
	// OpenSession returns ErrTableNotFound when table does not exist.
	OpenSession(ctx context.Context, table string, auths []string, threads int, queryID string) (Session, error)
}

// Writer creates tables and writes cells to them.
type Writer interface {
	CreateTable(ctx context.Context, table string) error
	Write(ctx context.Context, table string, cells []kv.Cell) error
}

// Session is one configured scan. Configure it fully before Iterate.
type Session interface {
	ID() string
	SetRange(rng kv.Range)
	FetchColumnFamily(cf string)
	AddFilter(d filter.Descriptor) error
	// SetSessionTimeBudget bounds how long the session may read before the
	// store ends it. Zero means no budget.
	SetSessionTimeBudget(budget time.Duration)
	// Iterate starts the scan. Filter construction failures wrap ErrScanSetup.
	Iterate(ctx context.Context) (kv.CellIterator, error)
	Close() error
}
