package cards

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/google/uuid"
)

var (
	ErrCardNotFound     = errors.New("card not found")
	ErrCardNotOwned     = errors.New("card not owned by user")
	ErrCardNotPooled    = errors.New("card not in pool")
	ErrTemplateNotFound = errors.New("card template not found")
)

type PowerStats struct {
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Speed   int `json:"speed"`
}

// Template is the immutable design a card instance is stamped from.
// At most one exists per source image.
type Template struct {
	ID            uuid.UUID
	Name          string
	Description   string
	ElementalType string
	Rarity        string
	Stats         PowerStats
	SourceImageID string
	CreatorID     string
	CreatedAt     time.Time
}

// Valid reports whether the template carries the data a listed card needs.
func (t Template) Valid() bool {
	return t.ID != uuid.Nil && t.Name != "" && t.ElementalType != "" && t.Rarity != ""
}

type CustodyKind string

const (
	CustodyOwned  CustodyKind = "owned"
	CustodyPooled CustodyKind = "pooled"
)

// Custody says who holds a card: a user directly, or the global pool on
// behalf of a pack. Exactly one applies at any time.
type Custody struct {
	Kind            CustodyKind
	UserID          string    // set when Kind == CustodyOwned
	PackID          uuid.UUID // set when Kind == CustodyPooled
	OriginalOwnerID string    // set when Kind == CustodyPooled
}

type Card struct {
	ID         uuid.UUID
	TemplateID uuid.UUID
	Custody    Custody
	CreatedAt  time.Time
}

// CollectionCard is a card as shown in a user's collection.
type CollectionCard struct {
	Card     Card
	Template Template
}

func (c CollectionCard) InPack() bool {
	return c.Card.Custody.Kind == CustodyPooled
}

type Cards interface {
	// InsertTemplate stores t unless its source image already has a
	// template, in which case the existing one is returned with created=false.
	InsertTemplate(ctx context.Context, tx *sql.Tx, t Template) (Template, bool, error)
	GetTemplates(ctx context.Context, q pgutils.Querier, ids []uuid.UUID) (map[uuid.UUID]Template, error)

	InsertCard(ctx context.Context, tx *sql.Tx, templateID uuid.UUID, ownerID string) (Card, error)
	Get(ctx context.Context, q pgutils.Querier, id uuid.UUID) (Card, error)
	// LockOwned locks and returns the subset of ids currently owned by ownerID.
	LockOwned(ctx context.Context, tx *sql.Tx, ownerID string, ids []uuid.UUID) ([]uuid.UUID, error)
	// ListCollection returns cards owned by userID plus cards userID placed in the pool.
	ListCollection(ctx context.Context, userID string) ([]CollectionCard, error)
}

// Pool moves cards between direct ownership and pool custody. Every method
// performs both halves of the move inside the caller's transaction.
type Pool interface {
	Deposit(ctx context.Context, tx *sql.Tx, cardID uuid.UUID, packID uuid.UUID, ownerID string) error
	Withdraw(ctx context.Context, tx *sql.Tx, cardID uuid.UUID, toUserID string) error
	// ReleasePack hands every pooled card of packID to toUserID and returns how many moved.
	ReleasePack(ctx context.Context, tx *sql.Tx, packID uuid.UUID, toUserID string) (int, error)
	CountInPack(ctx context.Context, q pgutils.Querier, packID uuid.UUID) (int, error)
}
