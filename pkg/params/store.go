package params

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Store is the single mutable parameter record. Reads are lock-free; updates
// are serialised and publish a new copy, so a reader always sees one
// complete revision.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Parameters]
}

// NewStore seeds the store with a copy of initial (Defaults when nil).
func NewStore(initial *Parameters) *Store {
	if initial == nil {
		initial = Defaults()
	}
	p := initial.Clone()
	p.Normalize()
	s := &Store{}
	s.cur.Store(p)
	return s
}

// Get returns a private copy of the current parameters.
func (s *Store) Get() *Parameters {
	return s.cur.Load().Clone()
}

// Revision returns the number of updates applied since construction.
func (s *Store) Revision() uint64 {
	return s.cur.Load().Revision
}

// Update applies fn to a copy of the current parameters and publishes the
// result. The new revision is returned.
func (s *Store) Update(fn func(*Parameters)) *Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Load().Clone()
	fn(next)
	next.Normalize()
	next.Revision++
	s.cur.Store(next)
	return next.Clone()
}

// ApplyJSON merges a partial JSON document into the current parameters.
// Only keys present in raw change; objects merge recursively while arrays
// and target_allocations are replaced whole. A document that does not
// decode leaves the store untouched.
func (s *Store) ApplyJSON(raw []byte) (*Parameters, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("params: decode patch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Load().Clone()
	rev := next.Revision
	if _, ok := keys["target_allocations"]; ok {
		next.TargetAllocations = nil
	}
	if err := json.Unmarshal(raw, next); err != nil {
		return nil, fmt.Errorf("params: decode patch: %w", err)
	}
	next.Normalize()
	next.Revision = rev + 1
	s.cur.Store(next)
	return next.Clone(), nil
}
