package transfer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tally/pkg/domain"
	"tally/pkg/platform/sentinel"
)

// InMemoryStore keeps transfers in insertion order. Window queries scan
// backwards from the tail the way the sliding-window counters do.
type InMemoryStore struct {
	mu        sync.RWMutex
	transfers []*Transfer
	byID      map[domain.TransferID]*Transfer
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[domain.TransferID]*Transfer)}
}

func (s *InMemoryStore) Save(_ context.Context, t *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; ok {
		return fmt.Errorf("transfer %s: %w", t.ID, sentinel.ErrConflict)
	}
	cp := *t
	s.transfers = append(s.transfers, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.TransferID) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByAccount(_ context.Context, id domain.AccountID, f Filter) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var out []*Transfer
	for _, t := range s.transfers {
		if t.SenderID != id && t.ReceiverID != id {
			continue
		}
		if !matches(t, f) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountBySenderSince(_ context.Context, sender domain.AccountID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, t := range s.transfers {
		if t.SenderID == sender && t.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) HasCompletedBetween(_ context.Context, sender, receiver domain.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transfers {
		if t.SenderID == sender && t.ReceiverID == receiver && t.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func matches(t *Transfer, f Filter) bool {
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.MinAmount != nil && t.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && t.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}
