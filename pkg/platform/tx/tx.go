// Package tx propagates a SQL transaction through context so stores can
// join an ambient unit of work without taking *sql.Tx parameters.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner delimits an atomic unit of work. Everything done inside fn
// commits together or not at all.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Completion collects callbacks registered during one unit of work.
// Runner implementations create one per unit and call Finish exactly
// once after the unit resolves.
type Completion struct {
	fns []func(committed bool)
}

type completionKey struct{}

// WithCompletion returns a context carrying a fresh Completion.
func WithCompletion(ctx context.Context) (context.Context, *Completion) {
	c := &Completion{}
	return context.WithValue(ctx, completionKey{}, c), c
}

// Finish runs the registered callbacks in registration order.
func (c *Completion) Finish(committed bool) {
	for _, fn := range c.fns {
		fn(committed)
	}
}

// OnComplete defers fn until the surrounding unit of work resolves; fn
// receives true on commit, false on rollback. Outside any unit the
// write is already durable, so fn runs immediately as committed.
func OnComplete(ctx context.Context, fn func(committed bool)) {
	if c, ok := ctx.Value(completionKey{}).(*Completion); ok {
		c.fns = append(c.fns, fn)
		return
	}
	fn(true)
}

// SQLRunner wraps fn in a database transaction. Stores built on
// database/sql pick the transaction up via From.
type SQLRunner struct {
	DB *sql.DB
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	ctx, completion := WithCompletion(ctx)
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		completion.Finish(false)
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		completion.Finish(false)
		return fmt.Errorf("commit tx: %w", err)
	}
	completion.Finish(true)
	return nil
}

// PassthroughRunner is the in-memory unit of work. Memory store
// mutations happen under the caller's account locks and cannot
// partially fail, so there is nothing to roll back.
type PassthroughRunner struct{}

func (PassthroughRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, completion := WithCompletion(ctx)
	err := fn(ctx)
	completion.Finish(err == nil)
	return err
}
