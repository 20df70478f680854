// Package index writes the global term index that bounded-range lookups scan:
// one cell per (term, field, shard, datatype) holding the matching document
// UIDs.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/store"
)

const (
	DefaultShards  = 10
	DefaultMaxUIDs = 20
)

// ErrInvalidEntry is returned by Add for an entry missing required parts.
var ErrInvalidEntry = errors.New("invalid index entry")

// Entry is one (field, value) occurrence in a document.
type Entry struct {
	Field      string
	Value      string
	Date       time.Time
	UID        string
	Datatype   string
	Visibility string
}

// ShardID assigns a document to a day shard, yyyyMMdd_N.
func ShardID(date time.Time, uid string, shards int) string {
	if shards <= 0 {
		shards = DefaultShards
	}
	n := murmur3.Sum32([]byte(uid)) % uint32(shards)
	return kv.FormatDay(date) + "_" + strconv.FormatUint(uint64(n), 10)
}

// Key returns the global index key for e.
func (e Entry) Key(shards int) kv.Key {
	return kv.Key{
		Row:             e.Value,
		ColumnFamily:    e.Field,
		ColumnQualifier: ShardID(e.Date, e.UID, shards) + kv.NullByte + e.Datatype,
		Visibility:      e.Visibility,
	}
}

func (e Entry) validate() error {
	switch {
	case e.Field == "":
		return fmt.Errorf("%w: empty field", ErrInvalidEntry)
	case e.UID == "":
		return fmt.Errorf("%w: empty uid for %s=%q", ErrInvalidEntry, e.Field, e.Value)
	case e.Datatype == "":
		return fmt.Errorf("%w: empty datatype for %s=%q", ErrInvalidEntry, e.Field, e.Value)
	case e.Date.IsZero():
		return fmt.Errorf("%w: missing date for %s=%q", ErrInvalidEntry, e.Field, e.Value)
	}
	return nil
}

// Writer buffers entries, merging UIDs that land on the same key, and
// writes them to a table on Flush. It is not safe for concurrent use.
type Writer struct {
	dest    store.Writer
	table   string
	shards  int
	maxUIDs int
	pending map[kv.Key]*UIDList
}

// NewWriter creates a writer. Non-positive shards or maxUIDs take defaults.
func NewWriter(dest store.Writer, table string, shards, maxUIDs int) *Writer {
	if shards <= 0 {
		shards = DefaultShards
	}
	if maxUIDs <= 0 {
		maxUIDs = DefaultMaxUIDs
	}
	return &Writer{
		dest:    dest,
		table:   table,
		shards:  shards,
		maxUIDs: maxUIDs,
		pending: make(map[kv.Key]*UIDList),
	}
}

// Add buffers e.
func (w *Writer) Add(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	k := e.Key(w.shards)
	list, ok := w.pending[k]
	if !ok {
		list = &UIDList{}
		w.pending[k] = list
	}
	list.add(e.UID, w.maxUIDs)
	return nil
}

// Pending reports how many index cells are buffered.
func (w *Writer) Pending() int { return len(w.pending) }

// Flush writes buffered cells in key order and clears the buffer. The table
// is created if missing. Returns the number of cells written.
func (w *Writer) Flush(ctx context.Context) (int, error) {
	if len(w.pending) == 0 {
		return 0, nil
	}
	if err := w.dest.CreateTable(ctx, w.table); err != nil {
		return 0, err
	}

	cells := make([]kv.Cell, 0, len(w.pending))
	for k, list := range w.pending {
		cells = append(cells, kv.Cell{Key: k, Value: list.Encode()})
	}
	sort.Slice(cells, func(i, j int) bool {
		return cells[i].Key.Compare(cells[j].Key) < 0
	})

	if err := w.dest.Write(ctx, w.table, cells); err != nil {
		return 0, fmt.Errorf("index: write %d cells to %s: %w", len(cells), w.table, err)
	}
	w.pending = make(map[kv.Key]*UIDList)
	return len(cells), nil
}
