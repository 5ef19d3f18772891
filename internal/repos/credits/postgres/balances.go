package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/credits"
)

var _ credits.Balances = (*balancesRepo)(nil)

type balancesRepo struct{ db *sql.DB }

func NewBalances(db *sql.DB) *balancesRepo {
	return &balancesRepo{db: db}
}

func (r *balancesRepo) Create(ctx context.Context, tx *sql.Tx, userID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO credit_balances (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return false, fmt.Errorf("create balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *balancesRepo) Get(ctx context.Context, q pgutils.Querier, userID string) (credits.Balance, error) {
	var b credits.Balance

	err := q.QueryRowContext(ctx, `
		SELECT balance, version FROM credit_balances WHERE user_id = $1
	`, userID).Scan(&b.Credits, &b.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return credits.Balance{}, credits.ErrBalanceNotFound
	}
	if err != nil {
		return credits.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return b, nil
}

func (r *balancesRepo) LockAndGet(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		SELECT balance
		FROM credit_balances
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, credits.ErrBalanceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}

func (r *balancesRepo) Increase(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		UPDATE credit_balances
		SET balance = balance + $2, version = version + 1, last_updated = now()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, credits.ErrBalanceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increase balance: %w", err)
	}

	return balance, nil
}

// Decrease never takes a balance below zero: a missing row or a short
// balance both yield ErrInsufficientCredits.
func (r *balancesRepo) Decrease(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		UPDATE credit_balances
		SET balance = balance - $2, version = version + 1, last_updated = now()
		WHERE user_id = $1
		  AND balance >= $2
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, credits.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("decrease balance: %w", err)
	}

	return balance, nil
}

func (r *balancesRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM credit_balances ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}

	return ids, nil
}
