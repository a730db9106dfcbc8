package audit

import "context"

// Store persists chain entries. Append must persist the entry exactly as
// given (seq, hashes included); the Chain owns sequencing and hashing.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	// Last returns the highest-sequence entry, or sentinel.ErrNotFound
	// on an empty chain. Used to recover the tail at startup.
	Last(ctx context.Context) (*Entry, error)
	// ListAll returns every entry in ascending sequence order.
	ListAll(ctx context.Context) ([]*Entry, error)
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Entry, error)
}
