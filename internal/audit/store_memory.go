package audit

import (
	"context"
	"fmt"
	"sync"

	"tally/pkg/platform/sentinel"
)

// InMemoryStore keeps the chain as a flat slice indexed by sequence
// number, so the dense-sequence invariant is a bounds check.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Seq != uint64(len(s.entries)) {
		return fmt.Errorf("append seq %d, want %d: %w", e.Seq, len(s.entries), sentinel.ErrConflict)
	}
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *InMemoryStore) Last(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, fmt.Errorf("audit chain empty: %w", sentinel.ErrNotFound)
	}
	cp := *s.entries[len(s.entries)-1]
	return &cp, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	for i, e := range s.entries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]*Entry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		cp := *s.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Discard drops every entry at or above seq, mimicking a rolled-back
// write. Only for tests exercising the transaction coupling; a real
// store has no such operation.
func (s *InMemoryStore) Discard(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < uint64(len(s.entries)) {
		s.entries = s.entries[:seq]
	}
}

// Tamper overwrites a stored entry in place. Only for tests exercising
// chain verification; a real store has no such operation.
func (s *InMemoryStore) Tamper(seq uint64, mutate func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq >= uint64(len(s.entries)) {
		return fmt.Errorf("tamper seq %d: %w", seq, sentinel.ErrNotFound)
	}
	mutate(s.entries[seq])
	return nil
}
