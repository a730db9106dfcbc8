package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/pkg/domain"
	pkgerrors "tally/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-signing-key", "tally")
	identity := domain.Identity{UserID: domain.NewUserID(), Role: domain.RoleAuditor}

	tokenString, err := svc.Generate(identity, time.Hour)
	require.NoError(t, err)

	got, err := svc.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestValidateExpiredToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "tally")

	tokenString, err := svc.Generate(domain.Identity{UserID: domain.NewUserID(), Role: domain.RoleCustomer}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(tokenString)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestValidateWrongKey(t *testing.T) {
	signer := NewJWTService("key-one", "tally")
	verifier := NewJWTService("key-two", "tally")

	tokenString, err := signer.Generate(domain.Identity{UserID: domain.NewUserID(), Role: domain.RoleCustomer}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Validate(tokenString)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestValidateGarbage(t *testing.T) {
	svc := NewJWTService("test-signing-key", "tally")
	_, err := svc.Validate("not.a.token")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}
