package packs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/google/uuid"
)

// Capacity is the number of cards a complete pack holds.
const Capacity = 10

var (
	ErrPackNotFound  = errors.New("pack not found")
	ErrCardNotInPack = errors.New("card not in pack")
	ErrPositionTaken = errors.New("pack position already taken")
	ErrCardAlreadyIn = errors.New("card already in pack")
	ErrOwnerMismatch = errors.New("pack owner mismatch")
)

type Pack struct {
	ID          uuid.UUID
	UserID      string
	Name        string
	Description string
	// DeliveredAt is set once the pack was sold and its cards handed to the buyer.
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Pack) Delivered() bool {
	return p.DeliveredAt != nil
}

// Entry is one card slot of a pack.
type Entry struct {
	PackID     uuid.UUID
	CardID     uuid.UUID
	TemplateID uuid.UUID
	Position   int
	CreatedAt  time.Time
}

type Packs interface {
	Insert(ctx context.Context, p Pack) (Pack, error)
	Get(ctx context.Context, q pgutils.Querier, id uuid.UUID) (Pack, error)
	LockForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Pack, error)
	ListByOwner(ctx context.Context, userID string) ([]Pack, error)

	// Entries returns the pack's slots ordered by position.
	Entries(ctx context.Context, q pgutils.Querier, packID uuid.UUID) ([]Entry, error)
	CountEntries(ctx context.Context, q pgutils.Querier, packID uuid.UUID) (int, error)
	InsertEntry(ctx context.Context, tx *sql.Tx, packID, cardID uuid.UUID, position int) (Entry, error)
	// RemoveEntry deletes the card's slot and shifts later slots down by one.
	RemoveEntry(ctx context.Context, tx *sql.Tx, packID, cardID uuid.UUID) error

	// Deliver moves the pack from one owner to another and stamps DeliveredAt.
	Deliver(ctx context.Context, tx *sql.Tx, packID uuid.UUID, fromUserID, toUserID string) error
	// Reopen clears DeliveredAt once the pack's cards are back in the pool.
	Reopen(ctx context.Context, tx *sql.Tx, packID uuid.UUID) error
}
