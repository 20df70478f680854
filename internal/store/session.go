package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkilian/rangelookup/internal/filter"
	"github.com/arkilian/rangelookup/internal/kv"
)

// scanner is what a backend provides: the raw cells of table inside rng, in
// key order.
type scanner interface {
	scan(ctx context.Context, table string, rng kv.Range) (kv.CellIterator, error)
}

// scanSession implements Session over any scanner. Column family selection,
// visibility and filters are applied here so every backend behaves the same.
type scanSession struct {
	id      string
	table   string
	queryID string
	threads int
	auths   Authorizations
	backend scanner
	now     func() time.Time

	mu       sync.Mutex
	rng      kv.Range
	families map[string]struct{}
	filters  []filter.Descriptor
	budget   time.Duration
	closed   bool
	iters    []kv.CellIterator
}

func newScanSession(backend scanner, table string, auths []string, threads int, queryID string) *scanSession {
	return &scanSession{
		id:       uuid.NewString(),
		table:    table,
		queryID:  queryID,
		threads:  threads,
		auths:    NewAuthorizations(auths...),
		backend:  backend,
		now:      time.Now,
		families: make(map[string]struct{}),
	}
}

func (s *scanSession) ID() string { return s.id }

func (s *scanSession) SetRange(rng kv.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rng
}

func (s *scanSession) FetchColumnFamily(cf string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[cf] = struct{}{}
}

func (s *scanSession) AddFilter(d filter.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	for _, f := range s.filters {
		if f.Name == d.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
	}
	s.filters = append(s.filters, d)
	return nil
}

func (s *scanSession) SetSessionTimeBudget(budget time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = budget
}

func (s *scanSession) Iterate(ctx context.Context) (kv.CellIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	raw, err := s.backend.scan(ctx, s.table, s.rng)
	if err != nil {
		return nil, err
	}

	families := make(map[string]struct{}, len(s.families))
	for cf := range s.families {
		families[cf] = struct{}{}
	}
	src := &visibleIterator{ctx: ctx, src: raw, families: families, auths: s.auths}

	it, err := filter.Build(src, s.filters, filter.Env{
		Range:         s.rng,
		SessionStart:  s.now(),
		SessionBudget: s.budget,
		Now:           s.now,
	})
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %v", ErrScanSetup, err)
	}
	s.iters = append(s.iters, it)
	return it, nil
}

func (s *scanSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, it := range s.iters {
		if err := it.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.iters = nil
	return firstErr
}

// visibleIterator drops cells outside the fetched column families or not
// visible to the session, and stops when ctx is done.
type visibleIterator struct {
	ctx      context.Context
	src      kv.CellIterator
	families map[string]struct{}
	auths    Authorizations
	err      error
}

func (v *visibleIterator) Next() bool {
	for {
		if err := v.ctx.Err(); err != nil {
			v.err = err
			return false
		}
		if !v.src.Next() {
			return false
		}
		c := v.src.Cell()
		if len(v.families) > 0 {
			if _, ok := v.families[c.Key.ColumnFamily]; !ok {
				continue
			}
		}
		if v.auths.CanSee(c.Key.Visibility) {
			return true
		}
	}
}

func (v *visibleIterator) Cell() kv.Cell { return v.src.Cell() }

func (v *visibleIterator) Err() error {
	if v.err != nil {
		return v.err
	}
	return v.src.Err()
}

func (v *visibleIterator) Close() error { return v.src.Close() }
