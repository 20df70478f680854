// Package observability tracks per-field range lookup statistics, used to
// spot fields whose ranges routinely overflow or time out.
package observability

import (
	"sort"
	"sync"
	"time"
)

// Outcome is how a lookup ended.
type Outcome string

const (
	// OutcomeComplete means the scan was drained.
	OutcomeComplete Outcome = "complete"
	// OutcomeStoppedEarly means a per-field threshold ended the scan.
	OutcomeStoppedEarly Outcome = "stopped_early"
	// OutcomeTimedOut covers deadline expiry, the store timeout sentinel and
	// consumption failures.
	OutcomeTimedOut Outcome = "timed_out"
)

// FieldStats aggregates lookups against one field.
type FieldStats struct {
	Field      string
	Lookups    int64
	TermsFound int64
	EarlyStops int64
	Timeouts   int64
	TotalTime  time.Duration
	LastSeen   time.Time
}

// MeanTime returns the average lookup duration.
func (f FieldStats) MeanTime() time.Duration {
	if f.Lookups == 0 {
		return 0
	}
	return f.TotalTime / time.Duration(f.Lookups)
}

// LookupStats is safe for concurrent use.
type LookupStats struct {
	mu     sync.RWMutex
	fields map[string]*FieldStats
	window time.Duration
	now    func() time.Time
}

// NewLookupStats creates a tracker whose Prune drops fields idle longer
// than window.
func NewLookupStats(window time.Duration) *LookupStats {
	return &LookupStats{
		fields: make(map[string]*FieldStats),
		window: window,
		now:    time.Now,
	}
}

// Record adds one finished lookup.
func (s *LookupStats) Record(field string, terms int, outcome Outcome, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.fields[field]
	if !ok {
		fs = &FieldStats{Field: field}
		s.fields[field] = fs
	}
	fs.Lookups++
	fs.TermsFound += int64(terms)
	fs.TotalTime += took
	fs.LastSeen = s.now()
	switch outcome {
	case OutcomeStoppedEarly:
		fs.EarlyStops++
	case OutcomeTimedOut:
		fs.Timeouts++
	}
}

// Snapshot returns a copy of one field's stats.
func (s *LookupStats) Snapshot(field string) (FieldStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs, ok := s.fields[field]
	if !ok {
		return FieldStats{}, false
	}
	return *fs, true
}

// GetTopFields returns up to n fields by lookup count, most frequent first.
func (s *LookupStats) GetTopFields(n int) []FieldStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.fields) == 0 {
		return []FieldStats{}
	}
	out := make([]FieldStats, 0, len(s.fields))
	for _, fs := range s.fields {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lookups != out[j].Lookups {
			return out[i].Lookups > out[j].Lookups
		}
		return out[i].Field < out[j].Field
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Prune removes fields not seen within the window.
func (s *LookupStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	for field, fs := range s.fields {
		if fs.LastSeen.Before(cutoff) {
			delete(s.fields, field)
		}
	}
}
