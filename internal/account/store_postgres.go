package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/pkg/domain"
	"tally/pkg/platform/sentinel"
	txcontext "tally/pkg/platform/tx"
)

// PostgresStore persists accounts in the accounts table. Writes join an
// ambient transaction from context when the orchestrator runs one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, account_number, account_type, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
		ON CONFLICT (id) DO UPDATE
		SET balance = EXCLUDED.balance,
		    status = EXCLUDED.status,
		    version = accounts.version + 1,
		    updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		uuid.UUID(a.OwnerID),
		a.Number,
		string(a.Type),
		a.Balance.String(),
		string(a.Status),
		now,
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AccountID) (*Account, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectAccount+` WHERE id = $1`, uuid.UUID(id))
	return scanAccount(row)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*Account, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectAccount+` WHERE account_number = $1`, number)
	return scanAccount(row)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner domain.UserID) ([]*Account, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, selectAccount+` WHERE owner_id = $1 ORDER BY created_at`, uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.AccountID, status Status, at time.Time) error {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, status) {
		return fmt.Errorf("status %s -> %s: %w", current.Status, status, sentinel.ErrInvalidState)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		UPDATE accounts
		   SET status = $1, version = version + 1, updated_at = $2
		 WHERE id = $3
	`, string(status), at, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return nil
}

const selectAccount = `
	SELECT id, owner_id, account_number, account_type, balance, status, version, created_at, updated_at
	FROM accounts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*Account, error) {
	a, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", sentinel.ErrNotFound)
	}
	return a, err
}

func scanAccountRows(rows *sql.Rows) (*Account, error) {
	return scanInto(rows)
}

func scanInto(sc rowScanner) (*Account, error) {
	var (
		a          Account
		id, owner  uuid.UUID
		typ, st    string
		balanceStr string
	)
	err := sc.Scan(&id, &owner, &a.Number, &typ, &balanceStr, &st, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	a.ID = domain.AccountID(id)
	a.OwnerID = domain.UserID(owner)
	a.Type = Type(typ)
	a.Status = Status(st)
	a.Balance = balance
	return &a, nil
}
