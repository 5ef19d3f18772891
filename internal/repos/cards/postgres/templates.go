package cards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/cards"
	"github.com/google/uuid"
)

const templateColumns = `id, name, description, elemental_type, rarity, power_stats, source_image_id, creator_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// templateDest collects the template columns of a row so they can be
// scanned alongside other columns.
type templateDest struct {
	t   *cards.Template
	raw []byte
}

func templateInto(t *cards.Template) *templateDest {
	return &templateDest{t: t}
}

func (d *templateDest) dest() []any {
	return []any{
		&d.t.ID, &d.t.Name, &d.t.Description, &d.t.ElementalType, &d.t.Rarity,
		&d.raw, &d.t.SourceImageID, &d.t.CreatorID, &d.t.CreatedAt,
	}
}

func (d *templateDest) finish() error {
	err := json.Unmarshal(d.raw, &d.t.Stats)
	if err != nil {
		return fmt.Errorf("decode power stats: %w", err)
	}

	return nil
}

func scanTemplate(row rowScanner) (cards.Template, error) {
	var t cards.Template

	d := templateInto(&t)

	err := row.Scan(d.dest()...)
	if err != nil {
		return cards.Template{}, err
	}

	err = d.finish()
	if err != nil {
		return cards.Template{}, err
	}

	return t, nil
}

func (r *cardsRepo) InsertTemplate(ctx context.Context, tx *sql.Tx, t cards.Template) (cards.Template, bool, error) {
	stats, err := json.Marshal(t.Stats)
	if err != nil {
		return cards.Template{}, false, fmt.Errorf("marshal power stats: %w", err)
	}

	created, err := scanTemplate(tx.QueryRowContext(ctx, `
		INSERT INTO card_templates (name, description, elemental_type, rarity, power_stats, source_image_id, creator_id)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (source_image_id) DO NOTHING
		RETURNING `+templateColumns,
		t.Name, t.Description, t.ElementalType, t.Rarity, string(stats), t.SourceImageID, t.CreatorID))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return cards.Template{}, false, fmt.Errorf("insert template: %w", err)
	}

	existing, err := scanTemplate(tx.QueryRowContext(ctx, `
		SELECT `+templateColumns+` FROM card_templates WHERE source_image_id = $1
	`, t.SourceImageID))
	if err != nil {
		return cards.Template{}, false, fmt.Errorf("load template by image: %w", err)
	}

	return existing, false, nil
}

func (r *cardsRepo) GetTemplates(
	ctx context.Context, q pgutils.Querier, ids []uuid.UUID,
) (map[uuid.UUID]cards.Template, error) {
	out := make(map[uuid.UUID]cards.Template, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM card_templates
		WHERE id = ANY($1::uuid[])
	`, pgutils.UUIDArray(ids))
	if err != nil {
		return nil, fmt.Errorf("get templates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, serr := scanTemplate(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan template: %w", serr)
		}

		out[t.ID] = t
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return out, nil
}
