package counters

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when the mirror holds no value for the key.
var ErrMiss = errors.New("cache miss")

// CachedBalance is the mirrored view of a credit balance. Version is the
// balance row version it was read at.
type CachedBalance struct {
	Credits   int64 `redis:"balance"`
	Version   int64 `redis:"version"`
	UpdatedAt int64 `redis:"updated_at"`
}

// Store is the Redis side of the economy: a non-authoritative balance mirror,
// the referral code index and per-day counters.
type Store interface {
	GetBalance(ctx context.Context, userID string) (CachedBalance, error)
	// SetBalance stores b unless the mirror already holds the same or a newer
	// version, and reports whether it was stored.
	SetBalance(ctx context.Context, userID string, b CachedBalance) (bool, error)
	DeleteBalance(ctx context.Context, userIDs ...string) error

	ReferralCode(ctx context.Context, userID string) (string, error)
	ReferrerByCode(ctx context.Context, code string) (string, error)
	SetReferralCode(ctx context.Context, userID, code string) error

	// IncrDaily bumps the counter for key on the given UTC day and returns the new value.
	IncrDaily(ctx context.Context, key string, day time.Time) (int64, error)
	DecrDaily(ctx context.Context, key string, day time.Time) error
}
