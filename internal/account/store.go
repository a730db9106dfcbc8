package account

import (
	"context"
	"time"

	"tally/pkg/domain"
)

// Store is the durable account registry. Implementations must treat
// Save as an atomic replace of the whole record; the orchestrator
// guarantees mutual exclusion per account via the lock manager, so the
// store itself only needs map-level consistency.
type Store interface {
	Save(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id domain.AccountID) (*Account, error)
	FindByNumber(ctx context.Context, number string) (*Account, error)
	ListByOwner(ctx context.Context, owner domain.UserID) ([]*Account, error)
	UpdateStatus(ctx context.Context, id domain.AccountID, status Status, at time.Time) error
}
