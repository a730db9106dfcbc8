//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Schema creates the tables the engine's stores expect. Applied to
// every fresh container so integration tests run against the real DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             UUID PRIMARY KEY,
	owner_id       UUID NOT NULL,
	account_number CHAR(12) NOT NULL UNIQUE,
	account_type   TEXT NOT NULL,
	balance        NUMERIC(20, 4) NOT NULL,
	status         TEXT NOT NULL,
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id                  UUID PRIMARY KEY,
	idempotency_key     TEXT,
	sender_account_id   UUID NOT NULL,
	receiver_account_id UUID NOT NULL,
	amount              NUMERIC(20, 4) NOT NULL,
	kind                TEXT NOT NULL,
	status              TEXT NOT NULL,
	reason              TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transfers_sender_created_idx ON transfers (sender_account_id, created_at);
CREATE INDEX IF NOT EXISTS transfers_receiver_created_idx ON transfers (receiver_account_id, created_at);

CREATE TABLE IF NOT EXISTS audit_entries (
	seq          BIGINT PRIMARY KEY,
	actor        TEXT NOT NULL,
	action       TEXT NOT NULL,
	subject_type TEXT NOT NULL DEFAULT '',
	subject_id   TEXT NOT NULL DEFAULT '',
	detail       TEXT NOT NULL DEFAULT '',
	severity     TEXT NOT NULL,
	timestamp    TIMESTAMPTZ NOT NULL,
	prev_hash    CHAR(64) NOT NULL,
	hash         CHAR(64) NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres, waits for readiness, and
// applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tally"),
		tcpostgres.WithUsername("tally"),
		tcpostgres.WithPassword("tally"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// Truncate empties all tables. Use between tests for isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `TRUNCATE accounts, transfers, audit_entries`)
	return err
}
