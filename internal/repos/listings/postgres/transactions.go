package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/google/uuid"
)

var _ listings.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func NewTransactions(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, t listings.Transaction) (listings.Transaction, error) {
	t.Status = listings.TxPending

	err := tx.QueryRowContext(ctx, `
		INSERT INTO marketplace_transactions (listing_id, buyer_id, seller_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, t.ListingID, t.BuyerID, t.SellerID, t.Amount, string(t.Status)).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return listings.Transaction{}, fmt.Errorf("insert marketplace transaction: %w", err)
	}

	return t, nil
}

func (r *transactionsRepo) Get(ctx context.Context, id uuid.UUID) (listings.Transaction, error) {
	var (
		t         listings.Transaction
		status    string
		completed sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, listing_id, buyer_id, seller_id, amount, status, created_at, completed_at
		FROM marketplace_transactions
		WHERE id = $1
	`, id).Scan(&t.ID, &t.ListingID, &t.BuyerID, &t.SellerID, &t.Amount, &status, &t.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return listings.Transaction{}, listings.ErrTxNotFound
	}
	if err != nil {
		return listings.Transaction{}, fmt.Errorf("get marketplace transaction: %w", err)
	}

	t.Status = listings.TxStatus(status)
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}

	return t, nil
}

func (r *transactionsRepo) Complete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE marketplace_transactions
		SET status = 'completed', completed_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("complete marketplace transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return listings.ErrTxNotFound
	}

	return nil
}

func (r *transactionsRepo) Fail(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE marketplace_transactions
		SET status = 'failed', completed_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("fail marketplace transaction: %w", err)
	}

	return nil
}

func (r *transactionsRepo) FailPendingForListings(ctx context.Context, tx *sql.Tx, listingIDs []uuid.UUID) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE marketplace_transactions
		SET status = 'failed', completed_at = now()
		WHERE listing_id = ANY($1::uuid[])
		  AND status = 'pending'
	`, pgutils.UUIDArray(listingIDs))
	if err != nil {
		return 0, fmt.Errorf("fail pending transactions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}
