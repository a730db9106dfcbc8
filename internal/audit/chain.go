package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "tally/pkg/domain-errors"
	"tally/pkg/platform/sentinel"
	txcontext "tally/pkg/platform/tx"
)

// Chain is the append-only, hash-linked audit log. It has a single
// logical tail: appends are serialized by the chain's mutex even though
// the transfers producing them run in parallel. Append order need not
// match transfer start order; each entry's hash references whichever
// entry actually precedes it in the committed sequence.
type Chain struct {
	mu       sync.Mutex
	store    Store
	nextSeq  uint64
	lastHash string
	halted   atomic.Bool

	publisher *Publisher
	logger    *slog.Logger
}

// Option configures the Chain.
type Option func(*Chain)

// WithPublisher mirrors committed entries to Kafka.
func WithPublisher(p *Publisher) Option {
	return func(c *Chain) { c.publisher = p }
}

// WithLogger sets a logger for mirror and verify reporting.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// NewChain recovers the tail from the store and returns a ready chain.
func NewChain(ctx context.Context, store Store, opts ...Option) (*Chain, error) {
	c := &Chain{store: store, lastHash: SeedHash}
	for _, opt := range opts {
		opt(c)
	}

	last, err := store.Last(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		// Empty chain; start from the seed.
	case err != nil:
		return nil, fmt.Errorf("recover audit tail: %w", err)
	default:
		c.nextSeq = last.Seq + 1
		c.lastHash = last.Hash
	}
	return c, nil
}

// Append assigns the next sequence number, computes the entry's hash
// over its fields and the previous hash, and persists entry and hash as
// a unit. Inside a unit of work the tail advances and the mirror fires
// only once the surrounding transaction commits; a rollback leaves the
// tail where it was. The mutex stays held until then, so no other
// append can chain onto an uncommitted hash. Accepts entries only from
// trusted internal collaborators; the transport layer never reaches
// this directly.
func (c *Chain) Append(ctx context.Context, e Entry) (uint64, error) {
	if c.halted.Load() {
		return 0, pkgerrors.New(pkgerrors.CodeIntegrity, "audit chain halted, writes refused")
	}

	c.mu.Lock()

	e.Seq = c.nextSeq
	e.PrevHash = c.lastHash
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	e.Hash = e.ComputeHash(e.PrevHash)

	if err := c.store.Append(ctx, &e); err != nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("append audit entry: %w", err)
	}

	txcontext.OnComplete(ctx, func(committed bool) {
		defer c.mu.Unlock()
		if !committed {
			return
		}
		c.nextSeq = e.Seq + 1
		c.lastHash = e.Hash
		if c.publisher != nil {
			c.publisher.Publish(ctx, &e)
		}
	})
	return e.Seq, nil
}

// Halted reports whether an integrity failure has frozen the chain.
// Callers should refuse auditable work while the chain is halted rather
// than mutate state they cannot record.
func (c *Chain) Halted() bool {
	return c.halted.Load()
}

// Report is the outcome of a chain verification walk.
type Report struct {
	Valid           bool
	FirstInvalidSeq *uint64
	Checked         int
}

// Verify recomputes every hash from the seed forward and fails closed at
// the first mismatch. A failed verify halts further appends; recovery is
// an operator decision, never automatic.
func (c *Chain) Verify(ctx context.Context) (Report, error) {
	entries, err := c.store.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load audit chain: %w", err)
	}

	prevHash := SeedHash
	for i, e := range entries {
		if e.Seq != uint64(i) || e.PrevHash != prevHash || e.Hash != e.ComputeHash(prevHash) {
			seq := e.Seq
			c.halted.Store(true)
			if c.logger != nil {
				c.logger.ErrorContext(ctx, "audit chain integrity violation",
					"seq", seq,
					"checked", i,
				)
			}
			return Report{Valid: false, FirstInvalidSeq: &seq, Checked: i}, nil
		}
		prevHash = e.Hash
	}
	return Report{Valid: true, Checked: len(entries)}, nil
}

// Recent returns up to limit entries, newest first. Read path for the
// external audit-reporting collaborator.
func (c *Chain) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	return c.store.ListRecent(ctx, limit)
}
