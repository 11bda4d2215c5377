// Package pool narrows pgx connections and transactions to what stores need.
//
// pgx types return concrete types (`*pgxpool.Conn`, `pgx.Tx`), so they are wrapped
// to satisfy the interfaces here. Stores and tests depend only on these interfaces.
package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Queryer sends SQL. Both of Conn and Tx are Queryer.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts a transaction.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction.
type Tx interface {
	Queryer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a connection taken from a Pool. It should be released after use.
type Conn interface {
	Queryer
	Release()
}

// Pool hands out connections and transactions.
type Pool interface {
	Beginner
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

type tx struct{ pgx.Tx }

type conn struct{ *pgxpool.Conn }

type pgxPool struct{ base *pgxpool.Pool }

func (p pgxPool) Begin(ctx context.Context) (Tx, error) {
	t, err := p.base.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx{t}, nil
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.base.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn{c}, nil
}

func (p pgxPool) Close() { p.base.Close() }

// Wrap makes p a Pool.
func Wrap(p *pgxpool.Pool) Pool {
	return pgxPool{base: p}
}

// Connect opens a new pool for dsn.
func Connect(ctx context.Context, dsn string) (Pool, error) {
	p, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return Wrap(p), nil
}

// InTx runs f in a new transaction begun by b.
//
// The transaction is committed when f returns nil, and rolled back otherwise.
func InTx(ctx context.Context, b Beginner, f func(Tx) error) error {
	t, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	defer t.Rollback(ctx)

	if err := f(t); err != nil {
		return err
	}
	return t.Commit(ctx)
}

// InTxReturning is InTx returning a value from f.
func InTxReturning[T any](ctx context.Context, b Beginner, f func(Tx) (T, error)) (T, error) {
	var ret T
	err := InTx(ctx, b, func(t Tx) error {
		v, err := f(t)
		if err != nil {
			return err
		}
		ret = v
		return nil
	})
	return ret, err
}
