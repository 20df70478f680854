package lookup

import (
	"encoding/json"
	"sort"
	"strings"
)

// TermSet holds the distinct terms found for one field. Once its threshold is
// exceeded it stops accepting terms and stays exceeded.
type TermSet struct {
	terms     map[string]struct{}
	order     []string
	threshold int
	exceeded  bool
}

func newTermSet(threshold int) *TermSet {
	return &TermSet{terms: make(map[string]struct{}), threshold: threshold}
}

// add inserts term and reports whether it was new. A term that would take
// the set past its threshold is dropped and the set marked exceeded.
func (s *TermSet) add(term string) bool {
	if _, ok := s.terms[term]; ok {
		return false
	}
	if s.exceeded {
		return false
	}
	if s.threshold > 0 && len(s.order)+1 > s.threshold {
		s.exceeded = true
		return false
	}
	s.terms[term] = struct{}{}
	s.order = append(s.order, term)
	return true
}

// Contains reports whether term is in the set.
func (s *TermSet) Contains(term string) bool {
	_, ok := s.terms[term]
	return ok
}

// Len returns the number of terms.
func (s *TermSet) Len() int { return len(s.order) }

// Terms returns the terms in the order they were found.
func (s *TermSet) Terms() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *TermSet) IsThresholdExceeded() bool { return s.exceeded }

func (s *TermSet) SetThresholdExceeded() { s.exceeded = true }

// IndexLookupMap maps field names to the terms a lookup found for them.
//
// It is not synchronized. A lookup's consumption goroutine is its only writer,
// and the map is read-only once the lookup returns it.
type IndexLookupMap struct {
	fields         map[string]*TermSet
	order          []string
	keyThreshold   int
	valueThreshold int
	size           int
	keyExceeded    bool
}

// NewIndexLookupMap creates a map allowing at most keyThreshold fields and
// valueThreshold terms per field. Non-positive thresholds are unlimited.
func NewIndexLookupMap(keyThreshold, valueThreshold int) *IndexLookupMap {
	return &IndexLookupMap{
		fields:         make(map[string]*TermSet),
		keyThreshold:   keyThreshold,
		valueThreshold: valueThreshold,
	}
}

// Put adds term under field. Inserting an existing pair is a no-op. A new
// field past the key threshold is dropped and the map marked exceeded.
func (m *IndexLookupMap) Put(field, term string) {
	ts, ok := m.fields[field]
	if !ok {
		if m.keyThreshold > 0 && len(m.order)+1 > m.keyThreshold {
			m.keyExceeded = true
			return
		}
		ts = newTermSet(m.valueThreshold)
		m.fields[field] = ts
		m.order = append(m.order, field)
	}
	if ts.add(term) {
		m.size++
	}
}

// Get returns the terms of field, or nil if none were recorded.
func (m *IndexLookupMap) Get(field string) *TermSet {
	return m.fields[field]
}

// Size is the number of distinct (field, term) pairs, maintained on insert.
func (m *IndexLookupMap) Size() int { return m.size }

// Fields returns the field names in the order they were first seen.
func (m *IndexLookupMap) Fields() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *IndexLookupMap) SetKeyThresholdExceeded() { m.keyExceeded = true }

func (m *IndexLookupMap) IsKeyThresholdExceeded() bool { return m.keyExceeded }

// IsExceeded reports whether the map or any field overflowed.
func (m *IndexLookupMap) IsExceeded() bool {
	if m.keyExceeded {
		return true
	}
	for _, ts := range m.fields {
		if ts.exceeded {
			return true
		}
	}
	return false
}

func (m *IndexLookupMap) String() string {
	fields := m.Fields()
	sort.Strings(fields)

	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		ts := m.fields[f]
		b.WriteString(f)
		b.WriteString("=[")
		b.WriteString(strings.Join(ts.order, ", "))
		b.WriteByte(']')
		if ts.exceeded {
			b.WriteString("(exceeded)")
		}
	}
	b.WriteByte('}')
	if m.keyExceeded {
		b.WriteString("(key threshold exceeded)")
	}
	return b.String()
}

type termSetJSON struct {
	Terms             []string `json:"terms"`
	ThresholdExceeded bool     `json:"threshold_exceeded"`
}

type lookupMapJSON struct {
	Fields               map[string]termSetJSON `json:"fields"`
	Size                 int                    `json:"size"`
	KeyThresholdExceeded bool                   `json:"key_threshold_exceeded"`
}

func (m *IndexLookupMap) MarshalJSON() ([]byte, error) {
	out := lookupMapJSON{
		Fields:               make(map[string]termSetJSON, len(m.fields)),
		Size:                 m.size,
		KeyThresholdExceeded: m.keyExceeded,
	}
	for f, ts := range m.fields {
		out.Fields[f] = termSetJSON{Terms: ts.Terms(), ThresholdExceeded: ts.exceeded}
	}
	return json.Marshal(out)
}
