package account

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/pkg/domain"
)

// Type distinguishes the two supported account products.
type Type string

const (
	TypeChecking Type = "checking"
	TypeSavings  Type = "savings"
)

// Status is the account lifecycle state. Transitions between active and
// frozen are reversible; closed is terminal.
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	return s == StatusActive || s == StatusFrozen || s == StatusClosed
}

// CanTransition reports whether the from→to status change is allowed.
func CanTransition(from, to Status) bool {
	if from == StatusClosed {
		return false
	}
	return ValidStatus(to) && from != to
}

// Account is a ledger account. The balance is fixed-point decimal and is
// mutated only by the transfer orchestrator, under the account lock.
// Accounts are never deleted, only status-transitioned.
type Account struct {
	ID      domain.AccountID
	OwnerID domain.UserID
	// Number is the external-facing 12-digit account number. Immutable.
	Number  string
	Type    Type
	Balance decimal.Decimal
	Status  Status
	// Version increases on every committed mutation.
	Version   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns an independent copy so callers can stage mutations
// without touching the stored record.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}
