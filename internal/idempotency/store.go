// Package idempotency implements the at-most-once key store. A caller
// reserves a key before executing; exactly one caller wins the
// reservation, and everyone replaying the key afterwards gets the
// stored result back byte-identical.
package idempotency

import (
	"context"
	"time"
)

// State is the outcome of a Reserve call.
type State string

const (
	// StateFresh means the caller now holds the reservation and must
	// either Complete or Release it.
	StateFresh State = "fresh"
	// StateInFlight means another caller holds the reservation and has
	// not finished; the request should be retried, not re-executed.
	StateInFlight State = "inflight"
	// StateCached means the key already has a stored result.
	StateCached State = "cached"
)

// Reservation is what Reserve hands back. Payload is populated only for
// StateCached.
type Reservation struct {
	State   State
	Payload []byte
}

// Store is the idempotency key store. Reserve must be an atomic
// check-and-set; entries expire ttl after creation and an expired key
// counts as absent.
type Store interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key string, payload []byte) error
	Release(ctx context.Context, key string) error
}
