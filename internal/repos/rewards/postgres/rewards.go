package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/rewards"
	"github.com/google/uuid"
)

var _ rewards.Rewards = (*rewardsRepo)(nil)

type rewardsRepo struct{ db *sql.DB }

func New(db *sql.DB) *rewardsRepo {
	return &rewardsRepo{db: db}
}

const rewardSelect = `
	SELECT ur.id, ur.user_id, ur.claimed, ur.claimed_at, ur.created_at,
	       m.id, m.level, m.title, m.description, m.reward_type, m.reward_credits
	FROM user_rewards ur
	JOIN level_milestones m ON m.id = ur.milestone_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReward(row rowScanner) (rewards.Reward, error) {
	var (
		r         rewards.Reward
		claimedAt sql.NullTime
	)

	err := row.Scan(&r.ID, &r.UserID, &r.Claimed, &claimedAt, &r.CreatedAt,
		&r.Milestone.ID, &r.Milestone.Level, &r.Milestone.Title, &r.Milestone.Description,
		&r.Milestone.RewardType, &r.Milestone.RewardCredits)
	if err != nil {
		return rewards.Reward{}, err
	}

	if claimedAt.Valid {
		r.ClaimedAt = &claimedAt.Time
	}

	return r, nil
}

func (r *rewardsRepo) MilestonesForLevel(ctx context.Context, q pgutils.Querier, level int) ([]rewards.Milestone, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, level, title, description, reward_type, reward_credits
		FROM level_milestones
		WHERE level = $1
		ORDER BY created_at, id
	`, level)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var out []rewards.Milestone
	for rows.Next() {
		var m rewards.Milestone

		err = rows.Scan(&m.ID, &m.Level, &m.Title, &m.Description, &m.RewardType, &m.RewardCredits)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}

		out = append(out, m)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate milestones: %w", err)
	}

	return out, nil
}

func (r *rewardsRepo) Grant(ctx context.Context, tx *sql.Tx, userID string, m rewards.Milestone) (rewards.Reward, bool, error) {
	out := rewards.Reward{UserID: userID, Milestone: m}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO user_rewards (user_id, milestone_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, milestone_id) DO NOTHING
		RETURNING id, created_at
	`, userID, m.ID).Scan(&out.ID, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Reward{}, false, nil
	}
	if err != nil {
		return rewards.Reward{}, false, fmt.Errorf("grant reward: %w", err)
	}

	return out, true, nil
}

func (r *rewardsRepo) LockForUser(ctx context.Context, tx *sql.Tx, rewardID uuid.UUID, userID string) (rewards.Reward, error) {
	out, err := scanReward(tx.QueryRowContext(ctx, rewardSelect+`
		WHERE ur.id = $1 AND ur.user_id = $2
		FOR UPDATE OF ur
	`, rewardID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Reward{}, rewards.ErrRewardNotFound
	}
	if err != nil {
		return rewards.Reward{}, fmt.Errorf("lock reward: %w", err)
	}

	return out, nil
}

func (r *rewardsRepo) MarkClaimed(ctx context.Context, tx *sql.Tx, rewardID uuid.UUID) (rewards.Reward, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE user_rewards
		SET claimed = TRUE, claimed_at = now()
		WHERE id = $1
		  AND claimed = FALSE
	`, rewardID)
	if err != nil {
		return rewards.Reward{}, fmt.Errorf("mark reward claimed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return rewards.Reward{}, fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return rewards.Reward{}, rewards.ErrAlreadyClaimed
	}

	out, err := scanReward(tx.QueryRowContext(ctx, rewardSelect+`WHERE ur.id = $1`, rewardID))
	if err != nil {
		return rewards.Reward{}, fmt.Errorf("reload reward: %w", err)
	}

	return out, nil
}

func (r *rewardsRepo) CountUnclaimed(ctx context.Context, q pgutils.Querier, userID string) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_rewards WHERE user_id = $1 AND claimed = FALSE
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unclaimed rewards: %w", err)
	}

	return n, nil
}

func (r *rewardsRepo) ListForUser(ctx context.Context, userID string) ([]rewards.Reward, error) {
	rows, err := r.db.QueryContext(ctx, rewardSelect+`
		WHERE ur.user_id = $1
		ORDER BY ur.created_at, ur.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var out []rewards.Reward
	for rows.Next() {
		rw, serr := scanReward(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan reward: %w", serr)
		}

		out = append(out, rw)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate rewards: %w", err)
	}

	return out, nil
}

func (r *rewardsRepo) RecordXP(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO xp_events (user_id, amount, reason) VALUES ($1, $2, $3)
	`, userID, amount, reason)
	if err != nil {
		return fmt.Errorf("record xp event: %w", err)
	}

	return nil
}
