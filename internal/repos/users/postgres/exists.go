package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/repos/users"
)

func (r *usersRepo) Exists(ctx context.Context, tx *sql.Tx, userID string) error {
	var exists bool

	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}

	if !exists {
		return users.ErrUserNotFound
	}

	return nil
}
