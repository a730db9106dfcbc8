package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tally/pkg/platform/sentinel"
)

type record struct {
	completed bool
	payload   []byte
	expiresAt time.Time
}

// InMemoryStore holds reservations in a map with lazy expiry.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Test hook for expiry behavior.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[key]; ok && now.Before(rec.expiresAt) {
		if rec.completed {
			payload := make([]byte, len(rec.payload))
			copy(payload, rec.payload)
			return Reservation{State: StateCached, Payload: payload}, nil
		}
		return Reservation{State: StateInFlight}, nil
	}

	s.records[key] = &record{expiresAt: now.Add(ttl)}
	return Reservation{State: StateFresh}, nil
}

func (s *InMemoryStore) Complete(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("idempotency key %s: %w", key, sentinel.ErrNotFound)
	}
	rec.completed = true
	rec.payload = make([]byte, len(payload))
	copy(rec.payload, payload)
	return nil
}

func (s *InMemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
