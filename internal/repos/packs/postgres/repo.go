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

var _ packs.Packs = (*packsRepo)(nil)

type packsRepo struct{ db *sql.DB }

func New(db *sql.DB) *packsRepo {
	return &packsRepo{db: db}
}

const packColumns = `id, user_id, name, description, delivered_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (packs.Pack, error) {
	var (
		p         packs.Pack
		delivered sql.NullTime
	)

	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &delivered, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return packs.Pack{}, err
	}

	if delivered.Valid {
		p.DeliveredAt = &delivered.Time
	}

	return p, nil
}

func (r *packsRepo) Insert(ctx context.Context, p packs.Pack) (packs.Pack, error) {
	out, err := scanPack(r.db.QueryRowContext(ctx, `
		INSERT INTO card_packs (user_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING `+packColumns,
		p.UserID, p.Name, p.Description))
	if err != nil {
		return packs.Pack{}, fmt.Errorf("insert pack: %w", err)
	}

	return out, nil
}

func (r *packsRepo) get(ctx context.Context, q pgutils.Querier, query string, id uuid.UUID) (packs.Pack, error) {
	p, err := scanPack(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return packs.Pack{}, packs.ErrPackNotFound
	}
	if err != nil {
		return packs.Pack{}, fmt.Errorf("get pack: %w", err)
	}

	return p, nil
}

func (r *packsRepo) Get(ctx context.Context, q pgutils.Querier, id uuid.UUID) (packs.Pack, error) {
	return r.get(ctx, q, `SELECT `+packColumns+` FROM card_packs WHERE id = $1`, id)
}

func (r *packsRepo) LockForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (packs.Pack, error) {
	return r.get(ctx, tx, `SELECT `+packColumns+` FROM card_packs WHERE id = $1 FOR UPDATE`, id)
}

func (r *packsRepo) ListByOwner(ctx context.Context, userID string) ([]packs.Pack, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+packColumns+`
		FROM card_packs
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var out []packs.Pack
	for rows.Next() {
		p, serr := scanPack(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan pack: %w", serr)
		}

		out = append(out, p)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate packs: %w", err)
	}

	return out, nil
}

func (r *packsRepo) Deliver(ctx context.Context, tx *sql.Tx, packID uuid.UUID, fromUserID, toUserID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE card_packs
		SET user_id = $3, delivered_at = now(), updated_at = now()
		WHERE id = $1
		  AND user_id = $2
	`, packID, fromUserID, toUserID)
	if err != nil {
		return fmt.Errorf("deliver pack: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return packs.ErrOwnerMismatch
	}

	return nil
}

func (r *packsRepo) Reopen(ctx context.Context, tx *sql.Tx, packID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE card_packs
		SET delivered_at = NULL, updated_at = now()
		WHERE id = $1
		  AND delivered_at IS NOT NULL
	`, packID)
	if err != nil {
		return fmt.Errorf("reopen pack: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return packs.ErrPackNotFound
	}

	return nil
}
