package users

import (
	"context"
	"database/sql"
	"errors"
)

var ErrUserNotFound = errors.New("user not found")

// Progress is the experience state stored on the user row.
type Progress struct {
	UserID              string
	Level               int
	XP                  int64
	TotalXPEarned       int64
	LevelUpNotification bool
}

type Users interface {
	// Ensure creates the user row for an id vouched for by the auth gateway.
	Ensure(ctx context.Context, tx *sql.Tx, userID string) error
	Exists(ctx context.Context, tx *sql.Tx, userID string) error

	GetProgress(ctx context.Context, userID string) (Progress, error)
	LockProgress(ctx context.Context, tx *sql.Tx, userID string) (Progress, error)
	UpdateProgress(ctx context.Context, tx *sql.Tx, p Progress) error
	SetLevelUpNotification(ctx context.Context, tx *sql.Tx, userID string, on bool) error

	GetReferralCode(ctx context.Context, userID string) (string, error)
	SetReferralCode(ctx context.Context, userID, code string) (bool, error)
	FindByReferralCode(ctx context.Context, code string) (string, error)
	LockForReferral(ctx context.Context, tx *sql.Tx, userID string) error
	IncrementReferralCount(ctx context.Context, tx *sql.Tx, userID string) (int, error)
}
