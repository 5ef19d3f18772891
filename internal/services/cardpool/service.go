package cardpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/cards"
	pgcards "github.com/fastprodman/pulsecards/internal/repos/cards/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	pglistings "github.com/fastprodman/pulsecards/internal/repos/listings/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/packs"
	pgpacks "github.com/fastprodman/pulsecards/internal/repos/packs/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/users"
	pgusers "github.com/fastprodman/pulsecards/internal/repos/users/postgres"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

const (
	templateCacheSize = 4096
	maxNameLen        = 100
)

type Service struct {
	db        *sql.DB
	users     users.Users
	cards     cards.Cards
	pool      cards.Pool
	packs     packs.Packs
	listings  listings.Listings
	templates *lru.Cache
	lockWait  time.Duration
	log       *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func New(db *sql.DB, lockWait time.Duration) *Service {
	// size is a positive constant, New cannot fail
	templates, _ := lru.New(templateCacheSize)

	return &Service{
		db:        db,
		users:     pgusers.New(db),
		cards:     pgcards.New(db),
		pool:      pgcards.NewPool(db),
		packs:     pgpacks.New(db),
		listings:  pglistings.New(db),
		templates: templates,
		lockWait:  lockWait,
		log:       logging.Component("cardpool"),
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

type MintRequest struct {
	ImageID     string
	Name        string
	Description string
}

// MintCard stamps a new card for userID. The design is created on the first
// mint of an image and reused afterwards.
func (s *Service) MintCard(ctx context.Context, userID string, req MintRequest) (cards.CollectionCard, error) {
	req.ImageID = strings.TrimSpace(req.ImageID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ImageID == "" || req.Name == "" || len(req.Name) > maxNameLen {
		return cards.CollectionCard{}, ErrInvalidCard
	}

	s.rndMu.Lock()
	draft := rollTemplate(s.rnd, cards.Template{
		Name:          req.Name,
		Description:   req.Description,
		SourceImageID: req.ImageID,
		CreatorID:     userID,
	})
	s.rndMu.Unlock()

	var out cards.CollectionCard

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		terr := s.users.Ensure(ctx, tx, userID)
		if terr != nil {
			return terr
		}

		tmpl, created, terr := s.cards.InsertTemplate(ctx, tx, draft)
		if terr != nil {
			return terr
		}

		card, terr := s.cards.InsertCard(ctx, tx, tmpl.ID, userID)
		if terr != nil {
			return terr
		}

		out = cards.CollectionCard{Card: card, Template: tmpl}

		if created {
			s.log.Info("template created", "template_id", tmpl.ID, "image_id", req.ImageID, "rarity", tmpl.Rarity)
		}

		return nil
	})
	if err != nil {
		return cards.CollectionCard{}, fmt.Errorf("mint card: %w", err)
	}

	s.templates.Add(out.Template.ID, out.Template)

	return out, nil
}

// ListCards returns the user's collection including cards parked in packs.
func (s *Service) ListCards(ctx context.Context, userID string) ([]cards.CollectionCard, error) {
	list, err := s.cards.ListCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	return list, nil
}

func (s *Service) CreatePack(ctx context.Context, userID, name, description string) (packs.Pack, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return packs.Pack{}, ErrInvalidPack
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.users.Ensure(ctx, tx, userID)
	})
	if err != nil {
		return packs.Pack{}, fmt.Errorf("create pack: %w", err)
	}

	p, err := s.packs.Insert(ctx, packs.Pack{UserID: userID, Name: name, Description: description})
	if err != nil {
		return packs.Pack{}, fmt.Errorf("create pack: %w", err)
	}

	return p, nil
}

func (s *Service) ListPacks(ctx context.Context, userID string) ([]packs.Pack, error) {
	list, err := s.packs.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}

	return list, nil
}

type PackCard struct {
	Position int
	CardID   uuid.UUID
	Template cards.Template
}

type PackView struct {
	Pack  packs.Pack
	Cards []PackCard
}

func (v PackView) Complete() bool {
	return len(v.Cards) == packs.Capacity
}

func (s *Service) GetPack(ctx context.Context, packID uuid.UUID) (PackView, error) {
	p, err := s.packs.Get(ctx, s.db, packID)
	if err != nil {
		return PackView{}, fmt.Errorf("get pack: %w", err)
	}

	entries, err := s.packs.Entries(ctx, s.db, packID)
	if err != nil {
		return PackView{}, fmt.Errorf("get pack: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.TemplateID)
	}

	tmpls, err := s.Templates(ctx, s.db, ids)
	if err != nil {
		return PackView{}, fmt.Errorf("get pack: %w", err)
	}

	view := PackView{Pack: p, Cards: make([]PackCard, 0, len(entries))}
	for _, e := range entries {
		view.Cards = append(view.Cards, PackCard{Position: e.Position, CardID: e.CardID, Template: tmpls[e.TemplateID]})
	}

	return view, nil
}

// Templates resolves template ids through the LRU. A missing or incomplete
// template is reported as ErrTemplateMissing.
func (s *Service) Templates(ctx context.Context, q pgutils.Querier, ids []uuid.UUID) (map[uuid.UUID]cards.Template, error) {
	out := make(map[uuid.UUID]cards.Template, len(ids))

	var missing []uuid.UUID
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}

		if v, ok := s.templates.Get(id); ok {
			out[id] = v.(cards.Template)
			continue
		}

		missing = append(missing, id)
	}

	if len(missing) > 0 {
		loaded, err := s.cards.GetTemplates(ctx, q, missing)
		if err != nil {
			return nil, err
		}

		for id, t := range loaded {
			s.templates.Add(id, t)
			out[id] = t
		}
	}

	for _, id := range ids {
		t, ok := out[id]
		if !ok || !t.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, id)
		}
	}

	return out, nil
}

// AddCardsToPack moves the cards from the user's collection into pool
// custody for the pack, appending them in request order.
func (s *Service) AddCardsToPack(
	ctx context.Context, packID uuid.UUID, userID string, cardIDs []uuid.UUID,
) ([]packs.Entry, error) {
	if len(cardIDs) == 0 || len(cardIDs) > packs.Capacity {
		return nil, ErrInvalidSelection
	}

	distinct := slices.Clone(cardIDs)
	slices.SortFunc(distinct, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	if len(slices.Compact(distinct)) != len(cardIDs) {
		return nil, ErrInvalidSelection
	}

	var out []packs.Entry

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, terr := s.lockEditable(ctx, tx, packID, userID)
		if terr != nil {
			return terr
		}

		count, terr := s.packs.CountEntries(ctx, tx, p.ID)
		if terr != nil {
			return terr
		}

		if count+len(cardIDs) > packs.Capacity {
			return fmt.Errorf("%w: has %d, adding %d", ErrPackFull, count, len(cardIDs))
		}

		owned, terr := s.cards.LockOwned(ctx, tx, userID, cardIDs)
		if terr != nil {
			return terr
		}

		if len(owned) != len(cardIDs) {
			return s.explainNotOwned(ctx, tx, userID, cardIDs, owned)
		}

		out = make([]packs.Entry, 0, len(cardIDs))
		for i, cardID := range cardIDs {
			terr = s.pool.Deposit(ctx, tx, cardID, p.ID, userID)
			if terr != nil {
				return terr
			}

			var e packs.Entry

			e, terr = s.packs.InsertEntry(ctx, tx, p.ID, cardID, count+i+1)
			if terr != nil {
				return terr
			}

			out = append(out, e)
		}

		return nil
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		return nil, fmt.Errorf("add cards to pack: %w", err)
	}

	s.log.Info("cards added to pack", "pack_id", packID, "user_id", userID, "cards", len(out))

	return out, nil
}

// RemoveCardFromPack hands a card back to the pack owner and closes the gap
// in positions.
func (s *Service) RemoveCardFromPack(ctx context.Context, packID uuid.UUID, userID string, cardID uuid.UUID) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, terr := s.lockEditable(ctx, tx, packID, userID)
		if terr != nil {
			return terr
		}

		terr = s.packs.RemoveEntry(ctx, tx, p.ID, cardID)
		if terr != nil {
			return terr
		}

		return s.pool.Withdraw(ctx, tx, cardID, userID)
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		return fmt.Errorf("remove card from pack: %w", err)
	}

	return nil
}

// RestockPack puts the cards of a delivered pack back into pool custody so
// its new owner can edit or list it again. Every card must still be in the
// owner's collection.
func (s *Service) RestockPack(ctx context.Context, packID uuid.UUID, userID string) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, terr := s.packs.LockForUpdate(ctx, tx, packID)
		if terr != nil {
			return terr
		}

		if p.UserID != userID {
			return ErrNotPackOwner
		}
		if !p.Delivered() {
			return ErrPackNotDelivered
		}

		entries, terr := s.packs.Entries(ctx, tx, p.ID)
		if terr != nil {
			return terr
		}

		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.CardID)
		}

		owned, terr := s.cards.LockOwned(ctx, tx, userID, ids)
		if terr != nil {
			return terr
		}

		if len(owned) != len(ids) {
			return s.explainNotOwned(ctx, tx, userID, ids, owned)
		}

		for _, id := range ids {
			terr = s.pool.Deposit(ctx, tx, id, p.ID, userID)
			if terr != nil {
				return terr
			}
		}

		return s.packs.Reopen(ctx, tx, p.ID)
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		return fmt.Errorf("restock pack: %w", err)
	}

	s.log.Info("pack restocked", "pack_id", packID, "user_id", userID)

	return nil
}

func (s *Service) lockEditable(ctx context.Context, tx *sql.Tx, packID uuid.UUID, userID string) (packs.Pack, error) {
	p, err := s.packs.LockForUpdate(ctx, tx, packID)
	if err != nil {
		return packs.Pack{}, err
	}

	if p.UserID != userID {
		return packs.Pack{}, ErrNotPackOwner
	}
	if p.Delivered() {
		return packs.Pack{}, ErrPackDelivered
	}

	live, err := s.listings.HasLive(ctx, tx, packID)
	if err != nil {
		return packs.Pack{}, err
	}
	if live {
		return packs.Pack{}, ErrPackListed
	}

	return p, nil
}

// explainNotOwned picks the error for the first requested card the user
// does not hold directly.
func (s *Service) explainNotOwned(
	ctx context.Context, tx *sql.Tx, userID string, requested, owned []uuid.UUID,
) error {
	for _, id := range requested {
		if slices.Contains(owned, id) {
			continue
		}

		c, err := s.cards.Get(ctx, tx, id)
		if errors.Is(err, cards.ErrCardNotFound) {
			return fmt.Errorf("%w: %s", ErrCardsNotOwned, id)
		}
		if err != nil {
			return err
		}

		if c.Custody.Kind == cards.CustodyPooled && c.Custody.OriginalOwnerID == userID {
			return fmt.Errorf("%w: %s", ErrCardInPack, id)
		}

		return fmt.Errorf("%w: %s", ErrCardsNotOwned, id)
	}

	return ErrCardsNotOwned
}
