package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty string", "", true},
		{"not a uuid", "not-a-uuid", true},
		{"nil uuid", uuid.Nil.String(), true},
		{"whitespace only", "   ", true},
		{"null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"valid lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
		{"valid uppercase", "550E8400-E29B-41D4-A716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccountID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseUserID_RoundTrip(t *testing.T) {
	want := NewUserID()
	got, err := ParseUserID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseConsistencyAcrossTypes(t *testing.T) {
	inputs := []string{"", "invalid", uuid.Nil.String(), uuid.New().String()}
	for _, input := range inputs {
		_, errAccount := ParseAccountID(input)
		_, errUser := ParseUserID(input)
		assert.Equal(t, errAccount == nil, errUser == nil, "input %q parsed inconsistently", input)
	}
}

func TestIsNil(t *testing.T) {
	assert.True(t, AccountID{}.IsNil())
	assert.True(t, TransferID{}.IsNil())
	assert.False(t, NewAccountID().IsNil())
	assert.False(t, NewTransferID().IsNil())
}
