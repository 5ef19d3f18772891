package rewards

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/google/uuid"
)

var (
	ErrRewardNotFound = errors.New("reward not found")
	ErrAlreadyClaimed = errors.New("reward already claimed")
)

type Milestone struct {
	ID            uuid.UUID
	Level         int
	Title         string
	Description   string
	RewardType    string
	RewardCredits int64
}

type Reward struct {
	ID        uuid.UUID
	UserID    string
	Milestone Milestone
	Claimed   bool
	ClaimedAt *time.Time
	CreatedAt time.Time
}

type Rewards interface {
	MilestonesForLevel(ctx context.Context, q pgutils.Querier, level int) ([]Milestone, error)
	// Grant creates an unclaimed reward for the milestone; granting the same
	// milestone twice is a no-op reported by created=false.
	Grant(ctx context.Context, tx *sql.Tx, userID string, m Milestone) (Reward, bool, error)
	LockForUser(ctx context.Context, tx *sql.Tx, rewardID uuid.UUID, userID string) (Reward, error)
	MarkClaimed(ctx context.Context, tx *sql.Tx, rewardID uuid.UUID) (Reward, error)
	CountUnclaimed(ctx context.Context, q pgutils.Querier, userID string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]Reward, error)

	RecordXP(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason string) error
}
