package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/repos/users"
)

// GetReferralCode returns "" when the user has not generated a code yet.
func (r *usersRepo) GetReferralCode(ctx context.Context, userID string) (string, error) {
	var code sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT referral_code FROM users WHERE id = $1
	`, userID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", users.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get referral code: %w", err)
	}

	return code.String, nil
}

// SetReferralCode stores code only if the user has none yet. It reports
// whether the code was stored. A code taken by another user surfaces as a
// unique violation.
func (r *usersRepo) SetReferralCode(ctx context.Context, userID, code string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET referral_code = $2, updated_at = now()
		WHERE id = $1
		  AND referral_code IS NULL
	`, userID, code)
	if err != nil {
		return false, fmt.Errorf("set referral code: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *usersRepo) FindByReferralCode(ctx context.Context, code string) (string, error) {
	var userID string

	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM users WHERE referral_code = $1
	`, code).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", users.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find by referral code: %w", err)
	}

	return userID, nil
}

// LockForReferral serialises concurrent redemptions of the same referrer.
func (r *usersRepo) LockForReferral(ctx context.Context, tx *sql.Tx, userID string) error {
	var id string

	err := tx.QueryRowContext(ctx, `
		SELECT id FROM users WHERE id = $1 FOR UPDATE
	`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return users.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock referrer: %w", err)
	}

	return nil
}

// IncrementReferralCount returns the referrer's lifetime count after the increment.
func (r *usersRepo) IncrementReferralCount(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var count int

	err := tx.QueryRowContext(ctx, `
		UPDATE users
		SET referral_count = referral_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING referral_count
	`, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, users.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment referral count: %w", err)
	}

	return count, nil
}
