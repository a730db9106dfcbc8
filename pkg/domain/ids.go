// Package domain holds the typed identifiers shared across the engine.
// Wrapping uuid.UUID keeps an AccountID from being passed where a
// TransferID belongs; the compiler does the checking.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type (
	// AccountID identifies a ledger account.
	AccountID uuid.UUID

	// TransferID identifies a committed or rejected transfer attempt.
	TransferID uuid.UUID

	// UserID identifies an account owner or staff actor.
	UserID uuid.UUID
)

// NewAccountID returns a fresh random AccountID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewTransferID returns a fresh random TransferID.
func NewTransferID() TransferID { return TransferID(uuid.New()) }

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

func (id AccountID) String() string  { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// ParseAccountID parses the canonical string form of an AccountID.
// The nil UUID is rejected: it never names a real account.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseUserID parses the canonical string form of a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func parseNonNil(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id: %w", err)
	}
	if u == uuid.Nil {
		return uuid.Nil, errors.New("parse id: nil uuid")
	}
	return u, nil
}
