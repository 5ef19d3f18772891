package packs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/packs"
	"github.com/google/uuid"
)

func (r *packsRepo) Entries(ctx context.Context, q pgutils.Querier, packID uuid.UUID) ([]packs.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT pc.pack_id, pc.card_id, tc.template_id, pc.position, pc.created_at
		FROM card_pack_cards pc
		JOIN trading_cards tc ON tc.id = pc.card_id
		WHERE pc.pack_id = $1
		ORDER BY pc.position
	`, packID)
	if err != nil {
		return nil, fmt.Errorf("list pack entries: %w", err)
	}
	defer rows.Close()

	var out []packs.Entry
	for rows.Next() {
		var e packs.Entry

		err = rows.Scan(&e.PackID, &e.CardID, &e.TemplateID, &e.Position, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan pack entry: %w", err)
		}

		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate pack entries: %w", err)
	}

	return out, nil
}

func (r *packsRepo) CountEntries(ctx context.Context, q pgutils.Querier, packID uuid.UUID) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM card_pack_cards WHERE pack_id = $1
	`, packID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pack entries: %w", err)
	}

	return n, nil
}

func (r *packsRepo) InsertEntry(
	ctx context.Context, tx *sql.Tx, packID, cardID uuid.UUID, position int,
) (packs.Entry, error) {
	e := packs.Entry{PackID: packID, CardID: cardID, Position: position}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO card_pack_cards (pack_id, card_id, position)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, packID, cardID, position).Scan(&e.CreatedAt)
	if err != nil {
		switch {
		case pgutils.IsUniqueViolationOf(err, "card_pack_cards_pack_card_key"):
			return packs.Entry{}, packs.ErrCardAlreadyIn
		case pgutils.IsUniqueViolationOf(err, "card_pack_cards_pack_position_key"):
			return packs.Entry{}, packs.ErrPositionTaken
		}

		return packs.Entry{}, fmt.Errorf("insert pack entry: %w", err)
	}

	return e, nil
}

func (r *packsRepo) RemoveEntry(ctx context.Context, tx *sql.Tx, packID, cardID uuid.UUID) error {
	var position int

	err := tx.QueryRowContext(ctx, `
		DELETE FROM card_pack_cards
		WHERE pack_id = $1
		  AND card_id = $2
		RETURNING position
	`, packID, cardID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return packs.ErrCardNotInPack
	}
	if err != nil {
		return fmt.Errorf("delete pack entry: %w", err)
	}

	// The position constraint is deferred, so the shift may pass through
	// transient duplicates.
	_, err = tx.ExecContext(ctx, `
		UPDATE card_pack_cards
		SET position = position - 1
		WHERE pack_id = $1
		  AND position > $2
	`, packID, position)
	if err != nil {
		return fmt.Errorf("compact positions: %w", err)
	}

	return nil
}
