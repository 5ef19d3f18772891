package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/users"
)

const selectProgress = `
	SELECT id, level, xp_points, total_xp_earned, level_up_notification
	FROM users
	WHERE id = $1
`

func scanProgress(ctx context.Context, q pgutils.Querier, query, userID string) (users.Progress, error) {
	var p users.Progress

	err := q.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Level, &p.XP, &p.TotalXPEarned, &p.LevelUpNotification,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return users.Progress{}, users.ErrUserNotFound
	}
	if err != nil {
		return users.Progress{}, fmt.Errorf("scan progress: %w", err)
	}

	return p, nil
}

func (r *usersRepo) GetProgress(ctx context.Context, userID string) (users.Progress, error) {
	return scanProgress(ctx, r.db, selectProgress, userID)
}

func (r *usersRepo) LockProgress(ctx context.Context, tx *sql.Tx, userID string) (users.Progress, error) {
	return scanProgress(ctx, tx, selectProgress+" FOR UPDATE", userID)
}

func (r *usersRepo) UpdateProgress(ctx context.Context, tx *sql.Tx, p users.Progress) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET level = $2,
		    xp_points = $3,
		    total_xp_earned = $4,
		    level_up_notification = $5,
		    updated_at = now()
		WHERE id = $1
	`, p.UserID, p.Level, p.XP, p.TotalXPEarned, p.LevelUpNotification)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return users.ErrUserNotFound
	}

	return nil
}

func (r *usersRepo) SetLevelUpNotification(ctx context.Context, tx *sql.Tx, userID string, on bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET level_up_notification = $2, updated_at = now() WHERE id = $1
	`, userID, on)
	if err != nil {
		return fmt.Errorf("set level up notification: %w", err)
	}

	return nil
}
