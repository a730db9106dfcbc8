package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/pkg/domain"
)

// Kind separates same-owner moves from cross-owner ones.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
)

// Status is the terminal outcome of a transfer attempt. Records are
// immutable once written.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Transfer is one logical transfer attempt that passed idempotency
// deduplication.
type Transfer struct {
	ID             domain.TransferID
	IdempotencyKey string
	SenderID       domain.AccountID
	ReceiverID     domain.AccountID
	Amount         decimal.Decimal
	Kind           Kind
	Status         Status
	Reason         string
	Description    string
	CreatedAt      time.Time
}

// Request is the validated inbound transfer request. Exactly one of
// ReceiverID (internal) or ReceiverNumber (external) is set.
type Request struct {
	SenderID       domain.AccountID
	ReceiverID     domain.AccountID
	ReceiverNumber string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// Kind derives the transfer kind from which receiver reference the
// caller supplied.
func (r Request) Kind() Kind {
	if r.ReceiverNumber != "" {
		return KindExternal
	}
	return KindInternal
}

// Result is what callers get back. Balances are deliberately not
// echoed; callers re-query. Serialized bytes of this struct are what
// the idempotency store caches, so replays are byte-identical.
type Result struct {
	TransferID domain.TransferID `json:"transfer_id"`
	Status     Status            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Flagged    bool              `json:"flagged,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Filter narrows a history query.
type Filter struct {
	From      *time.Time
	To        *time.Time
	Kind      Kind
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Limit     int
}

const defaultHistoryLimit = 100
