package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/pkg/domain"
)

func TestEvaluateRules(t *testing.T) {
	cfg := DefaultAnomalyConfig()

	tests := []struct {
		name    string
		amount  string
		snap    activitySnapshot
		reasons []string
	}{
		{
			name:   "quiet small transfer",
			amount: "100",
			snap:   activitySnapshot{knownRecipient: true},
		},
		{
			name:    "large amount",
			amount:  "10000",
			snap:    activitySnapshot{knownRecipient: true},
			reasons: []string{ReasonLargeAmount},
		},
		{
			name:   "just under large threshold",
			amount: "9999.99",
			snap:   activitySnapshot{knownRecipient: true},
		},
		{
			name:    "rapid succession",
			amount:  "50",
			snap:    activitySnapshot{recentCount: 2, sustainedCount: 2, knownRecipient: true},
			reasons: []string{ReasonRapidActivity},
		},
		{
			name:   "two prior attempts is below the rapid threshold",
			amount: "50",
			snap:   activitySnapshot{recentCount: 1, sustainedCount: 1, knownRecipient: true},
		},
		{
			name:    "sustained activity",
			amount:  "50",
			snap:    activitySnapshot{recentCount: 0, sustainedCount: 9, knownRecipient: true},
			reasons: []string{ReasonSustainedActivity},
		},
		{
			name:    "large transfer to new recipient",
			amount:  "5000",
			snap:    activitySnapshot{},
			reasons: []string{ReasonLargeNewRecipient},
		},
		{
			name:   "large transfer to known recipient",
			amount: "5000",
			snap:   activitySnapshot{knownRecipient: true},
		},
		{
			name:   "everything at once",
			amount: "12000",
			snap:   activitySnapshot{recentCount: 4, sustainedCount: 11},
			reasons: []string{
				ReasonLargeAmount,
				ReasonRapidActivity,
				ReasonSustainedActivity,
				ReasonLargeNewRecipient,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := evaluate(cfg, decimal.RequireFromString(tt.amount), tt.snap)
			assert.Equal(t, len(tt.reasons) > 0, verdict.Flagged)
			assert.Equal(t, tt.reasons, verdict.Reasons)
		})
	}
}

func TestDetectorInspectReadsHistory(t *testing.T) {
	store := NewInMemoryStore()
	detector := NewDetector(store, DefaultAnomalyConfig())

	sender := domain.NewAccountID()
	receiver := domain.NewAccountID()
	now := time.Now()

	// Two recent attempts from the sender, one of them rejected. Both
	// count toward the window.
	for i, status := range []Status{StatusCompleted, StatusRejected} {
		require.NoError(t, store.Save(context.Background(), &Transfer{
			ID:         domain.NewTransferID(),
			SenderID:   sender,
			ReceiverID: receiver,
			Amount:     decimal.RequireFromString("10"),
			Kind:       KindExternal,
			Status:     status,
			CreatedAt:  now.Add(-time.Duration(i+1) * time.Minute),
		}))
	}

	verdict, err := detector.Inspect(context.Background(), sender, receiver, decimal.RequireFromString("10"), now)
	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	assert.Equal(t, []string{ReasonRapidActivity}, verdict.Reasons)
}

func TestDetectorInspectNewRecipient(t *testing.T) {
	store := NewInMemoryStore()
	detector := NewDetector(store, DefaultAnomalyConfig())

	sender := domain.NewAccountID()
	known := domain.NewAccountID()
	stranger := domain.NewAccountID()

	require.NoError(t, store.Save(context.Background(), &Transfer{
		ID:         domain.NewTransferID(),
		SenderID:   sender,
		ReceiverID: known,
		Amount:     decimal.RequireFromString("100"),
		Kind:       KindExternal,
		Status:     StatusCompleted,
		CreatedAt:  time.Now().Add(-24 * time.Hour),
	}))

	now := time.Now()
	amount := decimal.RequireFromString("6000")

	verdict, err := detector.Inspect(context.Background(), sender, known, amount, now)
	require.NoError(t, err)
	assert.False(t, verdict.Flagged)

	verdict, err = detector.Inspect(context.Background(), sender, stranger, amount, now)
	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	assert.Equal(t, []string{ReasonLargeNewRecipient}, verdict.Reasons)
}
