package credits

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/credits"
)

var _ credits.Ledger = (*ledgerRepo)(nil)

type ledgerRepo struct{ db *sql.DB }

func NewLedger(db *sql.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Append(ctx context.Context, tx *sql.Tx, e credits.Entry) (credits.Entry, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return credits.Entry{}, fmt.Errorf("marshal metadata: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO credit_transactions (user_id, amount, type, description, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id, created_at
	`, e.UserID, e.Amount, string(e.Type), e.Description, string(raw)).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return credits.Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	e.Metadata = meta

	return e, nil
}

func (r *ledgerRepo) Sum(ctx context.Context, q pgutils.Querier, userID string) (int64, error) {
	var sum int64

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM credit_transactions
		WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}

	return sum, nil
}

// List returns the newest entries first.
func (r *ledgerRepo) List(ctx context.Context, userID string, limit int) ([]credits.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, description, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []credits.Entry
	for rows.Next() {
		var (
			e   credits.Entry
			typ string
			raw []byte
		)

		err = rows.Scan(&e.ID, &e.UserID, &e.Amount, &typ, &e.Description, &raw, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		e.Type = credits.TxType(typ)

		err = json.Unmarshal(raw, &e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}

		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}

	return out, nil
}
