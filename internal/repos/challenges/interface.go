package challenges

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrChallengeNotFound = errors.New("challenge not found")

type Challenge struct {
	ID            uuid.UUID
	Action        string
	Title         string
	Description   string
	RequiredCount int
	CreditReward  int64
	ActiveDate    time.Time
	ExpiresAt     time.Time
}

type Progress struct {
	UserID      string
	ChallengeID uuid.UUID
	Progress    int
	Completed   bool
	CompletedAt *time.Time
}

type Challenges interface {
	// InsertIfAbsent stores c unless a challenge for the same action and day exists.
	InsertIfAbsent(ctx context.Context, c Challenge) (bool, error)
	ListForDate(ctx context.Context, day time.Time) ([]Challenge, error)
	Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Challenge, error)

	// LockProgress returns the user's progress row for the challenge,
	// creating it when missing, locked for update.
	LockProgress(ctx context.Context, tx *sql.Tx, userID string, challengeID uuid.UUID) (Progress, error)
	SaveProgress(ctx context.Context, tx *sql.Tx, p Progress) error
	ProgressForUser(ctx context.Context, userID string, challengeIDs []uuid.UUID) (map[uuid.UUID]Progress, error)
}
