package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/pkg/domain"
	"tally/pkg/platform/sentinel"
	txcontext "tally/pkg/platform/tx"
)

// PostgresStore persists transfers. Saves join an ambient transaction so
// the record commits with the balance mutation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, t *Transfer) error {
	query := `
		INSERT INTO transfers (id, idempotency_key, sender_account_id, receiver_account_id, amount, kind, status, reason, description, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.IdempotencyKey,
		uuid.UUID(t.SenderID), uuid.UUID(t.ReceiverID),
		t.Amount.String(), string(t.Kind), string(t.Status),
		t.Reason, t.Description, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.TransferID) (*Transfer, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectTransfer+` WHERE id = $1`, uuid.UUID(id))
	t, err := scanTransfer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer: %w", sentinel.ErrNotFound)
	}
	return t, err
}

func (s *PostgresStore) ListByAccount(ctx context.Context, id domain.AccountID, f Filter) ([]*Transfer, error) {
	query := selectTransfer + ` WHERE (sender_account_id = $1 OR receiver_account_id = $1)`
	args := []any{uuid.UUID(id)}

	if f.From != nil {
		args = append(args, *f.From)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if f.MinAmount != nil {
		args = append(args, f.MinAmount.String())
		query += ` AND amount >= $` + strconv.Itoa(len(args))
	}
	if f.MaxAmount != nil {
		args = append(args, f.MaxAmount.String())
		query += ` AND amount <= $` + strconv.Itoa(len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountBySenderSince(ctx context.Context, sender domain.AccountID, since time.Time) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transfers
		WHERE sender_account_id = $1 AND created_at > $2
	`, uuid.UUID(sender), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent transfers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) HasCompletedBetween(ctx context.Context, sender, receiver domain.AccountID) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transfers
			WHERE sender_account_id = $1 AND receiver_account_id = $2 AND status = 'completed'
		)
	`, uuid.UUID(sender), uuid.UUID(receiver)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check prior transfer: %w", err)
	}
	return exists, nil
}

const selectTransfer = `
	SELECT id, COALESCE(idempotency_key, ''), sender_account_id, receiver_account_id, amount, kind, status, reason, description, created_at
	FROM transfers`

func scanTransfer(scan func(...any) error) (*Transfer, error) {
	var (
		t                Transfer
		id, sender, recv uuid.UUID
		amountStr, k, st string
	)
	err := scan(&id, &t.IdempotencyKey, &sender, &recv, &amountStr, &k, &st, &t.Reason, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t.ID = domain.TransferID(id)
	t.SenderID = domain.AccountID(sender)
	t.ReceiverID = domain.AccountID(recv)
	t.Amount = amount
	t.Kind = Kind(k)
	t.Status = Status(st)
	return &t, nil
}
