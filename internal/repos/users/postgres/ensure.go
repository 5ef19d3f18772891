package users

import (
	"context"
	"database/sql"
	"fmt"
)

func (r *usersRepo) Ensure(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	return nil
}
