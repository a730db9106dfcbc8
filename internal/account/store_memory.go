package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tally/pkg/domain"
	"tally/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in a map. It favors clarity over
// performance and doubles as the test fake.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[domain.AccountID]*Account
	byNumber map[string]domain.AccountID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[domain.AccountID]*Account),
		byNumber: make(map[string]domain.AccountID),
	}
}

// Save inserts or replaces the record, bumping its version.
func (s *InMemoryStore) Save(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := a.Clone()
	cp.Version++
	cp.UpdatedAt = time.Now()
	if prev, ok := s.accounts[cp.ID]; ok && prev.Number != cp.Number {
		return fmt.Errorf("account number is immutable: %w", sentinel.ErrInvalidState)
	}
	s.accounts[cp.ID] = cp
	s.byNumber[cp.Number] = cp.ID

	// Reflect the committed version back to the caller.
	a.Version = cp.Version
	a.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.AccountID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[id]; ok {
		return a.Clone(), nil
	}
	return nil, fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byNumber[number]; ok {
		return s.accounts[id].Clone(), nil
	}
	return nil, fmt.Errorf("account number %s: %w", number, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner domain.UserID) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Account
	for _, a := range s.accounts {
		if a.OwnerID == owner {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.AccountID, status Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	if !CanTransition(a.Status, status) {
		return fmt.Errorf("status %s -> %s: %w", a.Status, status, sentinel.ErrInvalidState)
	}
	a.Status = status
	a.Version++
	a.UpdatedAt = at
	return nil
}
