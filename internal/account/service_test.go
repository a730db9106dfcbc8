package account

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/audit"
	"tally/pkg/domain"
	pkgerrors "tally/pkg/domain-errors"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *audit.InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	auditStore := audit.NewInMemoryStore()
	chain, err := audit.NewChain(context.Background(), auditStore)
	require.NoError(t, err)
	return NewService(store, chain), store, auditStore
}

func seedAccount(t *testing.T, store *InMemoryStore, owner domain.UserID) *Account {
	t.Helper()
	a := &Account{
		ID:        domain.NewAccountID(),
		OwnerID:   owner,
		Number:    "123456789012",
		Type:      TypeChecking,
		Balance:   decimal.RequireFromString("100"),
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Save(context.Background(), a))
	return a
}

func admin() domain.Identity {
	return domain.Identity{UserID: domain.NewUserID(), Role: domain.RoleAdmin}
}

func TestChangeStatusFreezesAndAudits(t *testing.T) {
	svc, store, auditStore := newTestService(t)
	a := seedAccount(t, store, domain.NewUserID())
	actor := admin()

	err := svc.ChangeStatus(context.Background(), actor, a.ID, StatusFrozen, "fraud review")
	require.NoError(t, err)

	updated, err := store.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFrozen, updated.Status)

	entries, err := auditStore.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionStatusChanged, entries[0].Action)
	assert.Equal(t, actor.UserID.String(), entries[0].Actor)
	assert.Contains(t, entries[0].Detail, "fraud review")
}

func TestChangeStatusErrors(t *testing.T) {
	svc, store, _ := newTestService(t)
	a := seedAccount(t, store, domain.NewUserID())
	require.NoError(t, svc.ChangeStatus(context.Background(), admin(), a.ID, StatusClosed, "dormant"))

	tests := []struct {
		name     string
		id       domain.AccountID
		status   Status
		wantCode pkgerrors.Code
	}{
		{"unknown status", a.ID, Status("bogus"), pkgerrors.CodeInvalidRequest},
		{"unknown account", domain.NewAccountID(), StatusFrozen, pkgerrors.CodeNotFound},
		{"reopen closed account", a.ID, StatusActive, pkgerrors.CodeAccountState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ChangeStatus(context.Background(), admin(), tt.id, tt.status, "r")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, pkgerrors.CodeOf(err))
		})
	}
}

func TestGetVisibility(t *testing.T) {
	svc, store, _ := newTestService(t)
	owner := domain.NewUserID()
	a := seedAccount(t, store, owner)

	got, err := svc.Get(context.Background(), domain.Identity{UserID: owner, Role: domain.RoleCustomer}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	// Staff see any account.
	_, err = svc.Get(context.Background(), domain.Identity{UserID: domain.NewUserID(), Role: domain.RoleSupport}, a.ID)
	require.NoError(t, err)

	// Other customers get not-found, not forbidden.
	_, err = svc.Get(context.Background(), domain.Identity{UserID: domain.NewUserID(), Role: domain.RoleCustomer}, a.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
