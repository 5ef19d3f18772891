package referrals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAlreadyReferred = errors.New("user already referred")

type BonusType string

const (
	BonusReferrer BonusType = "REFERRER"
	BonusWelcome  BonusType = "WELCOME"
)

type Referral struct {
	ID         uuid.UUID
	ReferrerID string
	RefereeID  string
	Code       string
	Status     string
	CreatedAt  time.Time
}

type Bonus struct {
	ID         uuid.UUID
	ReferralID uuid.UUID
	UserID     string
	Amount     int64
	Type       BonusType
	CreatedAt  time.Time
}

type Referrals interface {
	// Insert records a referral. A referee can only ever be referred once.
	Insert(ctx context.Context, tx *sql.Tx, r Referral) (Referral, error)
	InsertBonus(ctx context.Context, tx *sql.Tx, b Bonus) (Bonus, error)
	CountByReferrer(ctx context.Context, referrerID string) (int, error)
	ListBonuses(ctx context.Context, referralID uuid.UUID) ([]Bonus, error)
}
