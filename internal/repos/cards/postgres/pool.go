package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/cards"
	"github.com/google/uuid"
)

func (r *poolRepo) Deposit(ctx context.Context, tx *sql.Tx, cardID uuid.UUID, packID uuid.UUID, ownerID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE trading_cards
		SET user_id = NULL, updated_at = now()
		WHERE id = $1
		  AND user_id = $2
	`, cardID, ownerID)
	if err != nil {
		return fmt.Errorf("detach card from owner: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return cards.ErrCardNotOwned
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO global_card_pool (card_id, pack_id, original_owner_id)
		VALUES ($1, $2, $3)
	`, cardID, packID, ownerID)
	if err != nil {
		return fmt.Errorf("insert pool entry: %w", err)
	}

	return nil
}

func (r *poolRepo) Withdraw(ctx context.Context, tx *sql.Tx, cardID uuid.UUID, toUserID string) error {
	var packID uuid.UUID

	err := tx.QueryRowContext(ctx, `
		DELETE FROM global_card_pool
		WHERE card_id = $1
		RETURNING pack_id
	`, cardID).Scan(&packID)
	if errors.Is(err, sql.ErrNoRows) {
		return cards.ErrCardNotPooled
	}
	if err != nil {
		return fmt.Errorf("delete pool entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE trading_cards
		SET user_id = $2, updated_at = now()
		WHERE id = $1
	`, cardID, toUserID)
	if err != nil {
		return fmt.Errorf("assign card owner: %w", err)
	}

	return nil
}

func (r *poolRepo) ReleasePack(ctx context.Context, tx *sql.Tx, packID uuid.UUID, toUserID string) (int, error) {
	res, err := tx.ExecContext(ctx, `
		WITH released AS (
			DELETE FROM global_card_pool
			WHERE pack_id = $1
			RETURNING card_id
		)
		UPDATE trading_cards tc
		SET user_id = $2, updated_at = now()
		FROM released
		WHERE tc.id = released.card_id
	`, packID, toUserID)
	if err != nil {
		return 0, fmt.Errorf("release pack cards: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(affected), nil
}

func (r *poolRepo) CountInPack(ctx context.Context, q pgutils.Querier, packID uuid.UUID) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM global_card_pool WHERE pack_id = $1
	`, packID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pooled cards: %w", err)
	}

	return n, nil
}
