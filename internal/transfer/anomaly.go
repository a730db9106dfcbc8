package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tally/pkg/domain"
	pstrings "tally/pkg/platform/strings"
)

// Anomaly reason labels. These end up in audit detail lines, so they
// are stable identifiers rather than prose.
const (
	ReasonLargeAmount       = "large_amount"
	ReasonRapidActivity     = "rapid_sender_activity"
	ReasonSustainedActivity = "sustained_sender_activity"
	ReasonLargeNewRecipient = "large_amount_new_recipient"
)

// AnomalyConfig holds the detection thresholds.
type AnomalyConfig struct {
	// LargeAmount flags any single transfer at or above this value.
	LargeAmount decimal.Decimal
	// NewRecipientAmount flags transfers at or above this value to a
	// receiver the sender has never completed a transfer to.
	NewRecipientAmount decimal.Decimal

	RapidWindow time.Duration
	RapidCount  int

	SustainedWindow time.Duration
	SustainedCount  int
}

// DefaultAnomalyConfig returns the production thresholds.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		LargeAmount:        decimal.NewFromInt(10000),
		NewRecipientAmount: decimal.NewFromInt(5000),
		RapidWindow:        5 * time.Minute,
		RapidCount:         3,
		SustainedWindow:    60 * time.Minute,
		SustainedCount:     10,
	}
}

// Verdict is the outcome of anomaly inspection. A flagged transfer
// still proceeds; the verdict only drives audit and response metadata.
type Verdict struct {
	Flagged bool
	Reasons []string
}

// activitySnapshot carries the sender history facts the rules consume.
type activitySnapshot struct {
	recentCount    int
	sustainedCount int
	knownRecipient bool
}

// Detector inspects transfer attempts against sender history.
type Detector struct {
	cfg   AnomalyConfig
	store Store
}

func NewDetector(store Store, cfg AnomalyConfig) *Detector {
	return &Detector{cfg: cfg, store: store}
}

// Inspect gathers the sender's recent activity and evaluates the rule
// set. The current attempt is not yet persisted, so window counts cover
// prior attempts only.
func (d *Detector) Inspect(ctx context.Context, sender, receiver domain.AccountID, amount decimal.Decimal, now time.Time) (Verdict, error) {
	snap := activitySnapshot{}

	recent, err := d.store.CountBySenderSince(ctx, sender, now.Add(-d.cfg.RapidWindow))
	if err != nil {
		return Verdict{}, fmt.Errorf("count rapid window: %w", err)
	}
	snap.recentCount = recent

	sustained, err := d.store.CountBySenderSince(ctx, sender, now.Add(-d.cfg.SustainedWindow))
	if err != nil {
		return Verdict{}, fmt.Errorf("count sustained window: %w", err)
	}
	snap.sustainedCount = sustained

	if amount.GreaterThanOrEqual(d.cfg.NewRecipientAmount) {
		known, err := d.store.HasCompletedBetween(ctx, sender, receiver)
		if err != nil {
			return Verdict{}, fmt.Errorf("check recipient history: %w", err)
		}
		snap.knownRecipient = known
	}

	return evaluate(d.cfg, amount, snap), nil
}

// evaluate applies the anomaly rules. Pure domain logic: no I/O, no
// side effects. Every matching rule contributes a reason; rules do not
// short-circuit each other.
func evaluate(cfg AnomalyConfig, amount decimal.Decimal, snap activitySnapshot) Verdict {
	var reasons []string

	if amount.GreaterThanOrEqual(cfg.LargeAmount) {
		reasons = append(reasons, ReasonLargeAmount)
	}

	// The attempt under inspection counts toward its own window, hence
	// the +1 against prior-attempt counts.
	if snap.recentCount+1 >= cfg.RapidCount {
		reasons = append(reasons, ReasonRapidActivity)
	}
	if snap.sustainedCount+1 >= cfg.SustainedCount {
		reasons = append(reasons, ReasonSustainedActivity)
	}

	if amount.GreaterThanOrEqual(cfg.NewRecipientAmount) && !snap.knownRecipient {
		reasons = append(reasons, ReasonLargeNewRecipient)
	}

	reasons = pstrings.DedupeAndTrim(reasons)
	return Verdict{Flagged: len(reasons) > 0, Reasons: reasons}
}
