package store

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Factory hands out sessions from a Store, bounding how many may be open at
// once and tracking them until they are closed.
type Factory struct {
	store Store
	sem   *semaphore.Weighted

	mu   sync.Mutex
	open map[string]Session
}

// NewFactory bounds open sessions to maxSessions. Zero or less is unbounded.
func NewFactory(s Store, maxSessions int64) *Factory {
	f := &Factory{store: s, open: make(map[string]Session)}
	if maxSessions > 0 {
		f.sem = semaphore.NewWeighted(maxSessions)
	}
	return f
}

// NewSession blocks until a session slot is free or ctx is done.
func (f *Factory) NewSession(ctx context.Context, table string, auths []string, threads int, queryID string) (Session, error) {
	if f.sem != nil {
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	s, err := f.store.OpenSession(ctx, table, auths, threads, queryID)
	if err != nil {
		if f.sem != nil {
			f.sem.Release(1)
		}
		return nil, err
	}

	f.mu.Lock()
	f.open[s.ID()] = s
	f.mu.Unlock()
	return s, nil
}

// Close closes s and frees its slot. Closing twice is a no-op.
func (f *Factory) Close(s Session) error {
	f.mu.Lock()
	_, tracked := f.open[s.ID()]
	delete(f.open, s.ID())
	f.mu.Unlock()

	if !tracked {
		return nil
	}
	if f.sem != nil {
		defer f.sem.Release(1)
	}
	return s.Close()
}

// OpenSessions reports how many sessions are currently open.
func (f *Factory) OpenSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

// CloseAll closes every tracked session.
func (f *Factory) CloseAll() error {
	f.mu.Lock()
	sessions := make([]Session, 0, len(f.open))
	for _, s := range f.open {
		sessions = append(sessions, s)
	}
	f.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := f.Close(s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
