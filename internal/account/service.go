package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tally/internal/audit"
	pkgerrors "tally/pkg/domain-errors"
	"tally/pkg/domain"
	"tally/pkg/platform/sentinel"
)

// Service exposes the status transitions the transfer engine consumes.
// It is the only writer of account status; balance mutation belongs to
// the orchestrator. Role gating happens at the HTTP boundary.
type Service struct {
	store Store
	chain *audit.Chain
}

func NewService(store Store, chain *audit.Chain) *Service {
	return &Service{store: store, chain: chain}
}

// ChangeStatus freezes, unfreezes, or closes an account. Closed is
// terminal; active and frozen are interchangeable.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.Identity, id domain.AccountID, status Status, reason string) error {
	if !ValidStatus(status) {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "unknown account status")
	}
	if s.chain.Halted() {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "audit chain halted, status changes refused")
	}

	err := s.store.UpdateStatus(ctx, id, status, time.Now())
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return pkgerrors.Wrap(err, pkgerrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return pkgerrors.Wrap(err, pkgerrors.CodeAccountState, "status transition not allowed")
	case err != nil:
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "update account status")
	}

	if _, err := s.chain.Append(ctx, audit.Entry{
		Actor:       actor.UserID.String(),
		Action:      audit.ActionStatusChanged,
		SubjectType: "account",
		SubjectID:   id.String(),
		Detail:      fmt.Sprintf("status changed to %s: %s", status, reason),
	}); err != nil {
		return err
	}
	return nil
}

// Get returns a single account, enforcing owner visibility for
// non-staff callers.
func (s *Service) Get(ctx context.Context, caller domain.Identity, id domain.AccountID) (*Account, error) {
	a, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load account")
	}
	if !caller.Staff() && a.OwnerID != caller.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return a, nil
}
