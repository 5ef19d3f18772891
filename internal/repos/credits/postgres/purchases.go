package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/google/uuid"
)

var _ credits.Purchases = (*purchasesRepo)(nil)

type purchasesRepo struct{ db *sql.DB }

func NewPurchases(db *sql.DB) *purchasesRepo {
	return &purchasesRepo{db: db}
}

func (r *purchasesRepo) Insert(ctx context.Context, tx *sql.Tx, p credits.Purchase) (credits.Purchase, error) {
	p.Status = credits.PurchasePending

	err := tx.QueryRowContext(ctx, `
		INSERT INTO credit_purchases (user_id, package_id, amount, cost_cents, status, payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, p.UserID, p.PackageID, p.Amount, p.CostCents, string(p.Status), p.PaymentIntentID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return credits.Purchase{}, credits.ErrDuplicatePurchase
		}

		return credits.Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}

	return p, nil
}

func (r *purchasesRepo) LockByPaymentIntent(ctx context.Context, tx *sql.Tx, intentID string) (credits.Purchase, error) {
	var (
		p      credits.Purchase
		status string
	)

	err := tx.QueryRowContext(ctx, `
		SELECT id, user_id, package_id, amount, cost_cents, status, payment_intent_id, created_at, updated_at
		FROM credit_purchases
		WHERE payment_intent_id = $1
		FOR UPDATE
	`, intentID).Scan(
		&p.ID, &p.UserID, &p.PackageID, &p.Amount, &p.CostCents,
		&status, &p.PaymentIntentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return credits.Purchase{}, credits.ErrPurchaseNotFound
	}
	if err != nil {
		return credits.Purchase{}, fmt.Errorf("lock purchase: %w", err)
	}

	p.Status = credits.PurchaseStatus(status)

	return p, nil
}

func (r *purchasesRepo) Transition(
	ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to credits.PurchaseStatus,
) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_purchases
		SET status = $3, updated_at = now()
		WHERE id = $1
		  AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("transition purchase: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
