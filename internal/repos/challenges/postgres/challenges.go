package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/challenges"
	"github.com/google/uuid"
)

var _ challenges.Challenges = (*challengesRepo)(nil)

type challengesRepo struct{ db *sql.DB }

func New(db *sql.DB) *challengesRepo {
	return &challengesRepo{db: db}
}

const challengeColumns = `id, action, title, description, required_count, credit_reward, active_date, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (challenges.Challenge, error) {
	var c challenges.Challenge

	err := row.Scan(&c.ID, &c.Action, &c.Title, &c.Description,
		&c.RequiredCount, &c.CreditReward, &c.ActiveDate, &c.ExpiresAt)
	if err != nil {
		return challenges.Challenge{}, err
	}

	return c, nil
}

func (r *challengesRepo) InsertIfAbsent(ctx context.Context, c challenges.Challenge) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_challenges (action, title, description, required_count, credit_reward, active_date, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7)
		ON CONFLICT (action, active_date) DO NOTHING
	`, c.Action, c.Title, c.Description, c.RequiredCount, c.CreditReward,
		c.ActiveDate.Format(time.DateOnly), c.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("insert challenge: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *challengesRepo) ListForDate(ctx context.Context, day time.Time) ([]challenges.Challenge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+challengeColumns+`
		FROM daily_challenges
		WHERE active_date = $1::date
		ORDER BY action
	`, day.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []challenges.Challenge
	for rows.Next() {
		c, serr := scanChallenge(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan challenge: %w", serr)
		}

		out = append(out, c)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}

	return out, nil
}

func (r *challengesRepo) Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (challenges.Challenge, error) {
	c, err := scanChallenge(tx.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM daily_challenges WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return challenges.Challenge{}, challenges.ErrChallengeNotFound
	}
	if err != nil {
		return challenges.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}

	return c, nil
}

func (r *challengesRepo) LockProgress(
	ctx context.Context, tx *sql.Tx, userID string, challengeID uuid.UUID,
) (challenges.Progress, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO challenge_progress (user_id, challenge_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, challenge_id) DO NOTHING
	`, userID, challengeID)
	if err != nil {
		return challenges.Progress{}, fmt.Errorf("ensure progress: %w", err)
	}

	var (
		p           challenges.Progress
		completedAt sql.NullTime
	)

	err = tx.QueryRowContext(ctx, `
		SELECT user_id, challenge_id, progress, completed, completed_at
		FROM challenge_progress
		WHERE user_id = $1 AND challenge_id = $2
		FOR UPDATE
	`, userID, challengeID).Scan(&p.UserID, &p.ChallengeID, &p.Progress, &p.Completed, &completedAt)
	if err != nil {
		return challenges.Progress{}, fmt.Errorf("lock progress: %w", err)
	}

	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}

	return p, nil
}

func (r *challengesRepo) SaveProgress(ctx context.Context, tx *sql.Tx, p challenges.Progress) error {
	var completedAt sql.NullTime
	if p.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *p.CompletedAt, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE challenge_progress
		SET progress = $3, completed = $4, completed_at = $5, updated_at = now()
		WHERE user_id = $1 AND challenge_id = $2
	`, p.UserID, p.ChallengeID, p.Progress, p.Completed, completedAt)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	return nil
}

func (r *challengesRepo) ProgressForUser(
	ctx context.Context, userID string, challengeIDs []uuid.UUID,
) (map[uuid.UUID]challenges.Progress, error) {
	out := make(map[uuid.UUID]challenges.Progress, len(challengeIDs))
	if len(challengeIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, challenge_id, progress, completed, completed_at
		FROM challenge_progress
		WHERE user_id = $1
		  AND challenge_id = ANY($2::uuid[])
	`, userID, pgutils.UUIDArray(challengeIDs))
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p           challenges.Progress
			completedAt sql.NullTime
		)

		err = rows.Scan(&p.UserID, &p.ChallengeID, &p.Progress, &p.Completed, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}

		if completedAt.Valid {
			p.CompletedAt = &completedAt.Time
		}

		out[p.ChallengeID] = p
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}

	return out, nil
}
