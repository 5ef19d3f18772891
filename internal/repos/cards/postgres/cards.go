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

func custodyFrom(owner sql.NullString, packID uuid.NullUUID, originalOwner sql.NullString) cards.Custody {
	if owner.Valid {
		return cards.Custody{Kind: cards.CustodyOwned, UserID: owner.String}
	}

	return cards.Custody{
		Kind:            cards.CustodyPooled,
		PackID:          packID.UUID,
		OriginalOwnerID: originalOwner.String,
	}
}

func (r *cardsRepo) InsertCard(ctx context.Context, tx *sql.Tx, templateID uuid.UUID, ownerID string) (cards.Card, error) {
	c := cards.Card{
		TemplateID: templateID,
		Custody:    cards.Custody{Kind: cards.CustodyOwned, UserID: ownerID},
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO trading_cards (template_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, templateID, ownerID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return cards.Card{}, fmt.Errorf("insert card: %w", err)
	}

	return c, nil
}

func (r *cardsRepo) Get(ctx context.Context, q pgutils.Querier, id uuid.UUID) (cards.Card, error) {
	var (
		c             cards.Card
		owner         sql.NullString
		packID        uuid.NullUUID
		originalOwner sql.NullString
	)

	err := q.QueryRowContext(ctx, `
		SELECT tc.id, tc.template_id, tc.user_id, p.pack_id, p.original_owner_id, tc.created_at
		FROM trading_cards tc
		LEFT JOIN global_card_pool p ON p.card_id = tc.id
		WHERE tc.id = $1
	`, id).Scan(&c.ID, &c.TemplateID, &owner, &packID, &originalOwner, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cards.Card{}, cards.ErrCardNotFound
	}
	if err != nil {
		return cards.Card{}, fmt.Errorf("get card: %w", err)
	}

	c.Custody = custodyFrom(owner, packID, originalOwner)

	return c, nil
}

func (r *cardsRepo) LockOwned(ctx context.Context, tx *sql.Tx, ownerID string, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id
		FROM trading_cards
		WHERE user_id = $1
		  AND id = ANY($2::uuid[])
		ORDER BY id
		FOR UPDATE
	`, ownerID, pgutils.UUIDArray(ids))
	if err != nil {
		return nil, fmt.Errorf("lock owned cards: %w", err)
	}
	defer rows.Close()

	var owned []uuid.UUID
	for rows.Next() {
		var id uuid.UUID

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan card id: %w", err)
		}

		owned = append(owned, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate owned cards: %w", err)
	}

	return owned, nil
}

func (r *cardsRepo) ListCollection(ctx context.Context, userID string) ([]cards.CollectionCard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tc.id, tc.template_id, tc.user_id, p.pack_id, p.original_owner_id, tc.created_at,
		       t.id, t.name, t.description, t.elemental_type, t.rarity, t.power_stats,
		       t.source_image_id, t.creator_id, t.created_at
		FROM trading_cards tc
		JOIN card_templates t ON t.id = tc.template_id
		LEFT JOIN global_card_pool p ON p.card_id = tc.id
		WHERE tc.user_id = $1
		   OR p.original_owner_id = $1
		ORDER BY tc.created_at, tc.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	defer rows.Close()

	var out []cards.CollectionCard
	for rows.Next() {
		var (
			cc            cards.CollectionCard
			owner         sql.NullString
			packID        uuid.NullUUID
			originalOwner sql.NullString
		)

		tmpl := templateInto(&cc.Template)

		dest := append([]any{
			&cc.Card.ID, &cc.Card.TemplateID, &owner, &packID, &originalOwner, &cc.Card.CreatedAt,
		}, tmpl.dest()...)

		err = rows.Scan(dest...)
		if err != nil {
			return nil, fmt.Errorf("scan collection card: %w", err)
		}

		err = tmpl.finish()
		if err != nil {
			return nil, err
		}

		cc.Card.Custody = custodyFrom(owner, packID, originalOwner)
		out = append(out, cc)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate collection: %w", err)
	}

	return out, nil
}
