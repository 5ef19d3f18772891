package pgutils

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type txOptions struct {
	isolation   sql.IsolationLevel
	lockTimeout time.Duration
}

// TxOption tunes a transaction started by WithTx.
type TxOption func(*txOptions)

// WithIsolation sets the isolation level of the transaction.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(o *txOptions) { o.isolation = level }
}

// WithLockTimeout bounds how long any statement in the transaction waits for
// a row lock. Exceeding it fails with a lock-not-available error, see IsContention.
func WithLockTimeout(d time.Duration) TxOption {
	return func(o *txOptions) { o.lockTimeout = d }
}

// WithTx runs fn inside a transaction.
// It commits if fn returns nil, otherwise it rolls back.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error, opts ...TxOption) error {
	var o txOptions
	for _, opt := range opts {
		opt(&o)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: o.isolation})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if o.lockTimeout > 0 {
		_, err = tx.ExecContext(ctx,
			`SELECT set_config('lock_timeout', $1, true)`,
			fmt.Sprintf("%dms", o.lockTimeout.Milliseconds()),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return fmt.Errorf("rollback after fn error: %v (fn err: %w)", rbErr, err)
		}
		return fmt.Errorf("fn: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
