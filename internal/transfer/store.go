package transfer

import (
	"context"
	"time"

	"tally/pkg/domain"
)

// Store persists transfer records and answers the history questions the
// anomaly detector asks.
type Store interface {
	Save(ctx context.Context, t *Transfer) error
	FindByID(ctx context.Context, id domain.TransferID) (*Transfer, error)
	// ListByAccount returns transfers where the account is sender or
	// receiver, newest first, narrowed by the filter.
	ListByAccount(ctx context.Context, id domain.AccountID, f Filter) ([]*Transfer, error)
	// CountBySenderSince counts transfer attempts from the sender with
	// CreatedAt after since. Rejected attempts count too: a burst of
	// rejections is still a burst.
	CountBySenderSince(ctx context.Context, sender domain.AccountID, since time.Time) (int, error)
	// HasCompletedBetween reports whether the sender has any prior
	// completed transfer to the receiver.
	HasCompletedBetween(ctx context.Context, sender, receiver domain.AccountID) (bool, error)
}
