package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tally/pkg/platform/sentinel"
	txcontext "tally/pkg/platform/tx"
)

// PostgresStore persists chain entries in audit_entries. Appends join an
// ambient transaction so the primary transfer entry commits with the
// balance mutation it describes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO audit_entries (seq, actor, action, subject_type, subject_id, detail, severity, timestamp, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		e.Seq, e.Actor, string(e.Action), e.SubjectType, e.SubjectID,
		e.Detail, string(e.Severity), e.Timestamp, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Last(ctx context.Context) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` ORDER BY seq DESC LIMIT 1`)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit chain empty: %w", sentinel.ErrNotFound)
	}
	return e, err
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*Entry, error) {
	return s.list(ctx, selectEntry+` ORDER BY seq ASC`)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	return s.list(ctx, selectEntry+` ORDER BY seq DESC LIMIT $1`, limit)
}

const selectEntry = `
	SELECT seq, actor, action, subject_type, subject_id, detail, severity, timestamp, prev_hash, hash
	FROM audit_entries`

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func scanEntry(scan func(...any) error) (*Entry, error) {
	var (
		e                Entry
		action, severity string
	)
	err := scan(&e.Seq, &e.Actor, &action, &e.SubjectType, &e.SubjectID, &e.Detail, &severity, &e.Timestamp, &e.PrevHash, &e.Hash)
	if err != nil {
		return nil, err
	}
	e.Action = Action(action)
	e.Severity = Severity(severity)
	return &e, nil
}
