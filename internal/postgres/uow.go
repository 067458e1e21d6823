package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTxDone = errors.New("unit of work already finished")

// UnitOfWork wraps one read-committed transaction. Commit and Rollback are
// its only terminal operations; after either, further calls are rejected.
type UnitOfWork struct {
	tx   pgx.Tx
	done bool
}

func (u *UnitOfWork) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if u.done {
		return pgconn.CommandTag{}, ErrTxDone
	}
	return u.tx.Exec(ctx, sql, args...)
}

func (u *UnitOfWork) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if u.done {
		return nil, ErrTxDone
	}
	return u.tx.Query(ctx, sql, args...)
}

func (u *UnitOfWork) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if u.done {
		return errRow{ErrTxDone}
	}
	return u.tx.QueryRow(ctx, sql, args...)
}

// errRow defers err to Scan, where pgx.Row callers look for it.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return ErrTxDone
	}
	u.done = true
	return Classify(u.tx.Commit(ctx))
}

// Rollback is a no-op once the unit of work has finished, so it is safe to defer.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// TxRunner opens units of work against the pool. LockTimeout bounds every
// row-lock wait inside the transaction (lock_timeout, SQLSTATE 55P03 on expiry).
type TxRunner struct {
	Pool        *pgxpool.Pool
	LockTimeout time.Duration
}

func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{Pool: pool, LockTimeout: lockTimeout}
}

func (r *TxRunner) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, Classify(err)
	}
	uow := &UnitOfWork{tx: tx}
	if r.LockTimeout > 0 {
		ms := fmt.Sprintf("%dms", r.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			_ = uow.Rollback(ctx)
			return nil, Classify(err)
		}
	}
	return uow, nil
}

// WithinTx runs fn in a fresh unit of work, committing when fn returns nil
// and rolling back on error or panic.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	uow, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := fn(ctx, uow); err != nil {
		return Classify(err)
	}
	return uow.Commit(ctx)
}
