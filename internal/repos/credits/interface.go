package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/google/uuid"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrDuplicatePurchase   = errors.New("duplicate payment intent")
)

// TxType classifies a ledger row.
type TxType string

const (
	TxPurchase TxType = "PURCHASE"
	TxUsage    TxType = "USAGE"
	TxSystem   TxType = "SYSTEM"
	TxRefund   TxType = "REFUND"
	TxBonus    TxType = "BONUS"
	TxReferral TxType = "REFERRAL"
)

func (t TxType) Valid() bool {
	switch t {
	case TxPurchase, TxUsage, TxSystem, TxRefund, TxBonus, TxReferral:
		return true
	default:
		return false
	}
}

// Entry is one append-only ledger row. Amount is signed.
type Entry struct {
	ID          uuid.UUID
	UserID      string
	Amount      int64
	Type        TxType
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

type Purchase struct {
	ID              uuid.UUID
	UserID          string
	PackageID       string
	Amount          int64
	CostCents       int64
	Status          PurchaseStatus
	PaymentIntentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Balance is a stored balance with its row version. Every change bumps the
// version, so a higher version is always the newer balance.
type Balance struct {
	Credits int64
	Version int64
}

type Balances interface {
	// Create inserts a zero balance row and reports whether it was new.
	Create(ctx context.Context, tx *sql.Tx, userID string) (bool, error)
	Get(ctx context.Context, q pgutils.Querier, userID string) (Balance, error)
	LockAndGet(ctx context.Context, tx *sql.Tx, userID string) (int64, error)
	Increase(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error)
	Decrease(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

type Ledger interface {
	Append(ctx context.Context, tx *sql.Tx, e Entry) (Entry, error)
	Sum(ctx context.Context, q pgutils.Querier, userID string) (int64, error)
	List(ctx context.Context, userID string, limit int) ([]Entry, error)
}

type Purchases interface {
	Insert(ctx context.Context, tx *sql.Tx, p Purchase) (Purchase, error)
	LockByPaymentIntent(ctx context.Context, tx *sql.Tx, intentID string) (Purchase, error)
	// Transition moves a purchase from one status to another and reports
	// whether the row was in the expected status.
	Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to PurchaseStatus) (bool, error)
}
