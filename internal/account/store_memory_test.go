package account

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tally/pkg/domain"
	"tally/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newAccount(balance string) *Account {
	return &Account{
		ID:        domain.NewAccountID(),
		OwnerID:   domain.NewUserID(),
		Number:    "123456789012",
		Type:      TypeChecking,
		Balance:   decimal.RequireFromString(balance),
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
}

func (s *InMemoryStoreSuite) TestSaveAndFind() {
	a := s.newAccount("100.00")
	require.NoError(s.T(), s.store.Save(context.Background(), a))
	assert.Equal(s.T(), uint64(1), a.Version)

	found, err := s.store.FindByID(context.Background(), a.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), found.Balance.Equal(a.Balance))
	assert.Equal(s.T(), a.Number, found.Number)

	byNumber, err := s.store.FindByNumber(context.Background(), a.Number)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), a.ID, byNumber.ID)
}

func (s *InMemoryStoreSuite) TestFindNotFound() {
	_, err := s.store.FindByID(context.Background(), domain.NewAccountID())
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)

	_, err = s.store.FindByNumber(context.Background(), "999999999999")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFindReturnsCopy() {
	a := s.newAccount("100.00")
	require.NoError(s.T(), s.store.Save(context.Background(), a))

	found, err := s.store.FindByID(context.Background(), a.ID)
	require.NoError(s.T(), err)
	found.Balance = decimal.RequireFromString("0")
	found.Status = StatusClosed

	again, err := s.store.FindByID(context.Background(), a.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), again.Balance.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(s.T(), StatusActive, again.Status)
}

func (s *InMemoryStoreSuite) TestSaveBumpsVersion() {
	a := s.newAccount("100.00")
	require.NoError(s.T(), s.store.Save(context.Background(), a))
	require.NoError(s.T(), s.store.Save(context.Background(), a))
	assert.Equal(s.T(), uint64(2), a.Version)
}

func (s *InMemoryStoreSuite) TestNumberImmutable() {
	a := s.newAccount("100.00")
	require.NoError(s.T(), s.store.Save(context.Background(), a))

	changed := a.Clone()
	changed.Number = "210987654321"
	err := s.store.Save(context.Background(), changed)
	assert.ErrorIs(s.T(), err, sentinel.ErrInvalidState)
}

func (s *InMemoryStoreSuite) TestUpdateStatusTransitions() {
	a := s.newAccount("100.00")
	require.NoError(s.T(), s.store.Save(context.Background(), a))

	require.NoError(s.T(), s.store.UpdateStatus(context.Background(), a.ID, StatusFrozen, time.Now()))
	require.NoError(s.T(), s.store.UpdateStatus(context.Background(), a.ID, StatusActive, time.Now()))
	require.NoError(s.T(), s.store.UpdateStatus(context.Background(), a.ID, StatusClosed, time.Now()))

	// Closed is terminal.
	err := s.store.UpdateStatus(context.Background(), a.ID, StatusActive, time.Now())
	assert.ErrorIs(s.T(), err, sentinel.ErrInvalidState)
}

func (s *InMemoryStoreSuite) TestListByOwner() {
	a := s.newAccount("10")
	b := s.newAccount("20")
	b.Number = "210987654321"
	b.OwnerID = a.OwnerID
	other := s.newAccount("30")
	other.Number = "111111111111"

	require.NoError(s.T(), s.store.Save(context.Background(), a))
	require.NoError(s.T(), s.store.Save(context.Background(), b))
	require.NoError(s.T(), s.store.Save(context.Background(), other))

	owned, err := s.store.ListByOwner(context.Background(), a.OwnerID)
	require.NoError(s.T(), err)
	assert.Len(s.T(), owned, 2)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusActive, StatusFrozen, true},
		{StatusActive, StatusClosed, true},
		{StatusFrozen, StatusActive, true},
		{StatusFrozen, StatusClosed, true},
		{StatusClosed, StatusActive, false},
		{StatusClosed, StatusFrozen, false},
		{StatusActive, StatusActive, false},
		{StatusActive, Status("bogus"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
