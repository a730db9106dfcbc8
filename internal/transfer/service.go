// Package transfer implements the transfer engine: idempotent,
// lock-ordered, atomically recorded moves of money between accounts.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/account"
	"tally/internal/account/lock"
	"tally/internal/audit"
	"tally/internal/idempotency"
	"tally/internal/transfer/metrics"
	"tally/pkg/domain"
	pkgerrors "tally/pkg/domain-errors"
	"tally/pkg/platform/sentinel"
	txcontext "tally/pkg/platform/tx"
	"tally/pkg/requestcontext"
)

// Rejection reason codes. These travel in Result.Reason and in audit
// detail lines.
const (
	RejectSenderNotActive   = "sender_not_active"
	RejectReceiverNotActive = "receiver_not_active"
	RejectInsufficientFunds = "insufficient_funds"
)

const lockRetryBackoff = 50 * time.Millisecond

// Service orchestrates transfer execution. It is the only balance
// writer in the system; everything it touches happens under the account
// locks it acquires in canonical order.
type Service struct {
	accounts  account.Store
	transfers Store
	idem      idempotency.Store
	locks     *lock.Keyed
	chain     *audit.Chain
	runner    txcontext.Runner
	detector  *Detector

	maxAmount      decimal.Decimal
	lockTimeout    time.Duration
	lockRetries    int
	idempotencyTTL time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimits overrides the transfer ceiling and lock behavior.
func WithLimits(maxAmount decimal.Decimal, lockTimeout time.Duration, lockRetries int) Option {
	return func(s *Service) {
		s.maxAmount = maxAmount
		s.lockTimeout = lockTimeout
		s.lockRetries = lockRetries
	}
}

// WithIdempotencyTTL overrides how long completed results are replayed.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Service) { s.idempotencyTTL = ttl }
}

// WithAnomalyConfig overrides the detection thresholds.
func WithAnomalyConfig(cfg AnomalyConfig) Option {
	return func(s *Service) { s.detector = NewDetector(s.transfers, cfg) }
}

func NewService(accounts account.Store, transfers Store, idem idempotency.Store, chain *audit.Chain, runner txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		accounts:       accounts,
		transfers:      transfers,
		idem:           idem,
		locks:          lock.NewKeyed(),
		chain:          chain,
		runner:         runner,
		maxAmount:      decimal.NewFromInt(1000000),
		lockTimeout:    2 * time.Second,
		lockRetries:    3,
		idempotencyTTL: 24 * time.Hour,
		logger:         slog.Default(),
		tracer:         otel.Tracer("tally/transfer"),
	}
	s.detector = NewDetector(transfers, DefaultAnomalyConfig())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs one transfer attempt end to end: idempotency
// reservation, account resolution, ordered locking, state and balance
// checks, anomaly inspection, atomic commit, audit.
//
// Rejections (blocked account, insufficient funds) are successful
// outcomes of the protocol: they return a rejected Result with a nil
// error, are recorded, and replay byte-identically under the same
// idempotency key. Transient failures return a coded error and leave
// the key free for retry.
func (s *Service) Execute(ctx context.Context, caller domain.Identity, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.Execute")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveExecuteLatency(time.Since(start)) }()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	reserved := false
	if req.IdempotencyKey != "" {
		res, err := s.idem.Reserve(ctx, req.IdempotencyKey, s.idempotencyTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeTransient, "idempotency store unavailable")
		}
		s.metrics.IncrementIdempotency(string(res.State))
		switch res.State {
		case idempotency.StateCached:
			var cached Result
			if err := json.Unmarshal(res.Payload, &cached); err != nil {
				return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "decode cached result")
			}
			return &cached, nil
		case idempotency.StateInFlight:
			return nil, pkgerrors.New(pkgerrors.CodeTransient, "request with this idempotency key is in flight")
		}
		reserved = true
	}

	result, err := s.execute(ctx, caller, req)
	if reserved {
		if err != nil {
			// Failures are not outcomes; free the key so the caller can
			// retry.
			if relErr := s.idem.Release(ctx, req.IdempotencyKey); relErr != nil {
				s.logger.ErrorContext(ctx, "release idempotency key", "key", req.IdempotencyKey, "error", relErr)
			}
		} else {
			payload, mErr := json.Marshal(result)
			if mErr == nil {
				mErr = s.idem.Complete(ctx, req.IdempotencyKey, payload)
			}
			if mErr != nil {
				s.logger.ErrorContext(ctx, "cache transfer result", "key", req.IdempotencyKey, "error", mErr)
			}
		}
	}
	return result, err
}

func (s *Service) validate(req Request) error {
	if req.SenderID.IsNil() {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "sender account is required")
	}
	if req.ReceiverID.IsNil() == (req.ReceiverNumber == "") {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "exactly one of receiver account id or receiver account number is required")
	}
	if !req.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "amount must be positive")
	}
	if req.Amount.GreaterThan(s.maxAmount) {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "amount exceeds transfer limit")
	}
	if !req.ReceiverID.IsNil() && req.ReceiverID == req.SenderID {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "sender and receiver must differ")
	}
	return nil
}

func (s *Service) execute(ctx context.Context, caller domain.Identity, req Request) (*Result, error) {
	// A halted chain cannot record anything, so nothing may change.
	if s.chain.Halted() {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "audit chain halted, transfers refused")
	}

	sender, receiver, err := s.resolve(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	release, err := s.acquireLocks(ctx, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Both locks held: reload so the checks see the state no concurrent
	// transfer can change under us.
	sender, err = s.accounts.FindByID(ctx, sender.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "reload sender")
	}
	receiver, err = s.accounts.FindByID(ctx, receiver.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "reload receiver")
	}

	now := requestcontext.Now(ctx)
	kind := req.Kind()

	if sender.Status != account.StatusActive {
		return s.reject(ctx, caller, req, sender, receiver, now, RejectSenderNotActive, audit.ActionBlockedStatus,
			fmt.Sprintf("transfer blocked: sender account %s is %s", sender.ID, sender.Status))
	}
	if receiver.Status != account.StatusActive {
		return s.reject(ctx, caller, req, sender, receiver, now, RejectReceiverNotActive, audit.ActionBlockedStatus,
			fmt.Sprintf("transfer blocked: receiver account %s is %s", receiver.ID, receiver.Status))
	}
	if sender.Balance.LessThan(req.Amount) {
		return s.reject(ctx, caller, req, sender, receiver, now, RejectInsufficientFunds, audit.ActionInsufficient,
			fmt.Sprintf("insufficient funds: balance %s, requested %s", sender.Balance, req.Amount))
	}

	verdict, err := s.detector.Inspect(ctx, sender.ID, receiver.ID, req.Amount, now)
	if err != nil {
		// Detection is advisory. A broken detector must not block money
		// movement.
		s.logger.WarnContext(ctx, "anomaly inspection failed", "error", err)
		verdict = Verdict{}
	}

	t := &Transfer{
		ID:             domain.NewTransferID(),
		IdempotencyKey: req.IdempotencyKey,
		SenderID:       sender.ID,
		ReceiverID:     receiver.ID,
		Amount:         req.Amount,
		Kind:           kind,
		Status:         StatusCompleted,
		Description:    req.Description,
		CreatedAt:      now,
	}

	action := audit.ActionInternalTransfer
	if kind == KindExternal {
		action = audit.ActionExternalTransfer
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		// The gate at the top can go stale while locks were acquired. The
		// SQL runner rolls the whole unit back when the final append is
		// refused; the memory runner cannot, so check again before any
		// balance moves.
		if s.chain.Halted() {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "audit chain halted, transfers refused")
		}

		debited := sender.Clone()
		debited.Balance = debited.Balance.Sub(req.Amount)
		debited.UpdatedAt = now
		if err := s.accounts.Save(ctx, debited); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}

		credited := receiver.Clone()
		credited.Balance = credited.Balance.Add(req.Amount)
		credited.UpdatedAt = now
		if err := s.accounts.Save(ctx, credited); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}

		if err := s.transfers.Save(ctx, t); err != nil {
			return fmt.Errorf("record transfer: %w", err)
		}

		// Audit last so the entry commits only with the mutation it
		// describes.
		_, err := s.chain.Append(ctx, audit.Entry{
			Actor:       caller.UserID.String(),
			Action:      action,
			SubjectType: "transfer",
			SubjectID:   t.ID.String(),
			Detail:      fmt.Sprintf("%s of %s from %s to %s", kind, req.Amount, sender.ID, receiver.ID),
			Timestamp:   now,
		})
		return err
	})
	if err != nil {
		var coded *pkgerrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeTransient, "transfer commit failed")
	}

	s.metrics.IncrementOutcome(string(StatusCompleted), string(kind))

	if verdict.Flagged {
		for _, reason := range verdict.Reasons {
			s.metrics.IncrementAnomaly(reason)
		}
		if _, err := s.chain.Append(ctx, audit.Entry{
			Actor:       caller.UserID.String(),
			Action:      audit.ActionSuspicious,
			SubjectType: "transfer",
			SubjectID:   t.ID.String(),
			Detail:      "flagged: " + strings.Join(verdict.Reasons, ","),
			Severity:    audit.SeverityWarning,
			Timestamp:   now,
		}); err != nil {
			s.logger.ErrorContext(ctx, "append suspicious-transaction entry", "transfer_id", t.ID, "error", err)
		}
		s.logger.WarnContext(ctx, "transfer flagged",
			"transfer_id", t.ID,
			"reasons", verdict.Reasons,
		)
	}

	s.logger.InfoContext(ctx, "transfer completed",
		"transfer_id", t.ID,
		"kind", kind,
		"sender", sender.ID,
		"receiver", receiver.ID,
	)

	return &Result{
		TransferID: t.ID,
		Status:     StatusCompleted,
		Flagged:    verdict.Flagged,
		CreatedAt:  now,
	}, nil
}

// resolve loads both accounts and enforces caller visibility before any
// lock is taken.
func (s *Service) resolve(ctx context.Context, caller domain.Identity, req Request) (sender, receiver *account.Account, err error) {
	sender, err = s.accounts.FindByID(ctx, req.SenderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeNotFound, "sender account not found")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load sender")
	}
	if !caller.Staff() && sender.OwnerID != caller.UserID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "sender account not found")
	}

	switch req.Kind() {
	case KindInternal:
		receiver, err = s.accounts.FindByID(ctx, req.ReceiverID)
	case KindExternal:
		receiver, err = s.accounts.FindByNumber(ctx, req.ReceiverNumber)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeNotFound, "receiver account not found")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load receiver")
	}
	if req.Kind() == KindInternal && receiver.OwnerID != sender.OwnerID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "internal transfers stay within one owner's accounts")
	}
	if receiver.ID == sender.ID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "sender and receiver must differ")
	}
	return sender, receiver, nil
}

// acquireLocks takes both account locks in canonical order, retrying
// with doubling backoff when contention outlasts the per-attempt
// timeout.
func (s *Service) acquireLocks(ctx context.Context, a, b domain.AccountID) (func(), error) {
	start := time.Now()
	backoff := lockRetryBackoff

	for attempt := 0; ; attempt++ {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
		release, err := s.locks.AcquireOrdered(lockCtx, a.String(), b.String())
		cancel()
		if err == nil {
			s.metrics.ObserveLockWait(time.Since(start))
			return release, nil
		}
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrap(ctx.Err(), pkgerrors.CodeTimeout, "request cancelled while locking accounts")
		}
		if attempt >= s.lockRetries {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeTransient, "could not lock accounts")
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(ctx.Err(), pkgerrors.CodeTimeout, "request cancelled while locking accounts")
		}
		backoff *= 2
	}
}

// reject records a terminal rejection: the attempt is persisted, an
// audit entry is appended, and the rejected result becomes the cached
// outcome for the idempotency key.
func (s *Service) reject(ctx context.Context, caller domain.Identity, req Request, sender, receiver *account.Account, now time.Time, reason string, action audit.Action, detail string) (*Result, error) {
	t := &Transfer{
		ID:             domain.NewTransferID(),
		IdempotencyKey: req.IdempotencyKey,
		SenderID:       sender.ID,
		ReceiverID:     receiver.ID,
		Amount:         req.Amount,
		Kind:           req.Kind(),
		Status:         StatusRejected,
		Reason:         reason,
		Description:    req.Description,
		CreatedAt:      now,
	}
	if err := s.transfers.Save(ctx, t); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "record rejected transfer")
	}

	if _, err := s.chain.Append(ctx, audit.Entry{
		Actor:       caller.UserID.String(),
		Action:      action,
		SubjectType: "transfer",
		SubjectID:   t.ID.String(),
		Detail:      detail,
		Severity:    audit.SeverityWarning,
		Timestamp:   now,
	}); err != nil {
		return nil, err
	}

	s.metrics.IncrementOutcome(string(StatusRejected), string(t.Kind))
	s.logger.InfoContext(ctx, "transfer rejected",
		"transfer_id", t.ID,
		"reason", reason,
	)

	return &Result{
		TransferID: t.ID,
		Status:     StatusRejected,
		Reason:     reason,
		CreatedAt:  now,
	}, nil
}

// History returns the account's transfer history, newest first,
// enforcing owner visibility for non-staff callers.
func (s *Service) History(ctx context.Context, caller domain.Identity, accountID domain.AccountID, f Filter) ([]*Transfer, error) {
	a, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load account")
	}
	if !caller.Staff() && a.OwnerID != caller.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}

	transfers, err := s.transfers.ListByAccount(ctx, accountID, f)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list transfers")
	}
	return transfers, nil
}

// RecentAudit returns up to limit committed audit entries, newest
// first. Role gating happens at the transport layer.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]*audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.chain.Recent(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}

// VerifyChain walks the audit chain from the seed. Role gating happens
// at the transport layer.
func (s *Service) VerifyChain(ctx context.Context) (audit.Report, error) {
	report, err := s.chain.Verify(ctx)
	if err != nil {
		return audit.Report{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "verify audit chain")
	}
	return report, nil
}
