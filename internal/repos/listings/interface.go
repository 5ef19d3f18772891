package listings

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/google/uuid"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrAlreadyListed   = errors.New("pack already has a live listing")
	ErrNotLockable     = errors.New("listing not lockable")
	ErrLockNotHeld     = errors.New("listing lock not held")
	ErrTxNotFound      = errors.New("marketplace transaction not found")
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusLocked    Status = "LOCKED"
	StatusSold      Status = "SOLD"
	StatusCancelled Status = "CANCELLED"
)

type Listing struct {
	ID          uuid.UUID
	PackID      uuid.UUID
	SellerID    string
	Price       int64
	Status      Status
	LockToken   uuid.NullUUID
	LockedUntil *time.Time
	SoldAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Purchasable reports whether a buyer may start a purchase at now: the
// listing is ACTIVE, or LOCKED by an attempt whose lock has expired.
func (l Listing) Purchasable(now time.Time) bool {
	switch l.Status {
	case StatusActive:
		return true
	case StatusLocked:
		return l.LockedUntil != nil && !now.Before(*l.LockedUntil)
	default:
		return false
	}
}

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// Transaction records one purchase attempt against a listing.
type Transaction struct {
	ID          uuid.UUID
	ListingID   uuid.UUID
	BuyerID     string
	SellerID    string
	Amount      int64
	Status      TxStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type Listings interface {
	Insert(ctx context.Context, tx *sql.Tx, l Listing) (Listing, error)
	Get(ctx context.Context, q pgutils.Querier, id uuid.UUID) (Listing, error)
	HasLive(ctx context.Context, q pgutils.Querier, packID uuid.UUID) (bool, error)
	ListActive(ctx context.Context, limit, offset int) ([]Listing, error)

	// AcquireLock moves a purchasable listing to LOCKED under token until
	// ttl elapses. ErrNotLockable when another attempt holds it or it left
	// the active states.
	AcquireLock(ctx context.Context, tx *sql.Tx, id, token uuid.UUID, ttl time.Duration) (Listing, error)
	// ReleaseLock returns a listing locked under token to ACTIVE.
	ReleaseLock(ctx context.Context, id, token uuid.UUID) (bool, error)
	// MarkSold consumes the lock held under token.
	MarkSold(ctx context.Context, tx *sql.Tx, id, token uuid.UUID) (Listing, error)
	Cancel(ctx context.Context, id uuid.UUID, sellerID string) (Listing, error)
	// ReleaseExpiredLocks returns every LOCKED listing past its deadline to
	// ACTIVE and reports the affected ids.
	ReleaseExpiredLocks(ctx context.Context, tx *sql.Tx) ([]uuid.UUID, error)
}

type Transactions interface {
	Insert(ctx context.Context, tx *sql.Tx, t Transaction) (Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	Complete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
	FailPendingForListings(ctx context.Context, tx *sql.Tx, listingIDs []uuid.UUID) (int64, error)
}
