package referrals

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/referrals"
	"github.com/google/uuid"
)

var _ referrals.Referrals = (*referralsRepo)(nil)

type referralsRepo struct{ db *sql.DB }

func New(db *sql.DB) *referralsRepo {
	return &referralsRepo{db: db}
}

func (r *referralsRepo) Insert(ctx context.Context, tx *sql.Tx, ref referrals.Referral) (referrals.Referral, error) {
	ref.Status = "completed"

	err := tx.QueryRowContext(ctx, `
		INSERT INTO referrals (referrer_id, referee_id, code, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, ref.ReferrerID, ref.RefereeID, ref.Code, ref.Status).Scan(&ref.ID, &ref.CreatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return referrals.Referral{}, referrals.ErrAlreadyReferred
		}

		return referrals.Referral{}, fmt.Errorf("insert referral: %w", err)
	}

	return ref, nil
}

func (r *referralsRepo) InsertBonus(ctx context.Context, tx *sql.Tx, b referrals.Bonus) (referrals.Bonus, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO referral_bonuses (referral_id, user_id, amount, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, b.ReferralID, b.UserID, b.Amount, string(b.Type)).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return referrals.Bonus{}, fmt.Errorf("insert referral bonus: %w", err)
	}

	return b, nil
}

func (r *referralsRepo) CountByReferrer(ctx context.Context, referrerID string) (int, error) {
	var n int

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM referrals WHERE referrer_id = $1
	`, referrerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}

	return n, nil
}

func (r *referralsRepo) ListBonuses(ctx context.Context, referralID uuid.UUID) ([]referrals.Bonus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, referral_id, user_id, amount, type, created_at
		FROM referral_bonuses
		WHERE referral_id = $1
		ORDER BY type
	`, referralID)
	if err != nil {
		return nil, fmt.Errorf("list referral bonuses: %w", err)
	}
	defer rows.Close()

	var out []referrals.Bonus
	for rows.Next() {
		var (
			b   referrals.Bonus
			typ string
		)

		err = rows.Scan(&b.ID, &b.ReferralID, &b.UserID, &b.Amount, &typ, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan referral bonus: %w", err)
		}

		b.Type = referrals.BonusType(typ)
		out = append(out, b)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate referral bonuses: %w", err)
	}

	return out, nil
}
