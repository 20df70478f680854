package kv

// CellIterator is a forward-only, non-restartable sequence of cells.
// Usage mirrors database/sql.Rows: call Next until it returns false, then
// check Err. Close releases the underlying scan and is safe to call twice.
type CellIterator interface {
	Next() bool
	Cell() Cell
	Err() error
	Close() error
}

// SliceIterator iterates over an in-memory slice of cells.
type SliceIterator struct {
	cells []Cell
	pos   int
	cur   Cell
}

// NewSliceIterator returns an iterator over cells. The slice is not copied.
func NewSliceIterator(cells []Cell) *SliceIterator {
	return &SliceIterator{cells: cells}
}

func (s *SliceIterator) Next() bool {
	if s.pos >= len(s.cells) {
		return false
	}
	s.cur = s.cells[s.pos]
	s.pos++
	return true
}

func (s *SliceIterator) Cell() Cell   { return s.cur }
func (s *SliceIterator) Err() error   { return nil }
func (s *SliceIterator) Close() error { s.pos = len(s.cells); return nil }

// Collect drains it into a slice and closes it.
func Collect(it CellIterator) ([]Cell, error) {
	defer it.Close()
	var out []Cell
	for it.Next() {
		out = append(out, it.Cell())
	}
	return out, it.Err()
}
