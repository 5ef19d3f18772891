package marketplace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/cards"
	pgcards "github.com/fastprodman/pulsecards/internal/repos/cards/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	pglistings "github.com/fastprodman/pulsecards/internal/repos/listings/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/packs"
	pgpacks "github.com/fastprodman/pulsecards/internal/repos/packs/postgres"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/google/uuid"
)

const maxPageSize = 100

type Service struct {
	db       *sql.DB
	packs    packs.Packs
	pool     cards.Pool
	listings listings.Listings
	txns     listings.Transactions
	credits  *credits.Service
	cards    *cardpool.Service
	lockTTL  time.Duration
	lockWait time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func New(db *sql.DB, creditsSvc *credits.Service, cardsSvc *cardpool.Service, cfg config.EconomyConfig) *Service {
	return &Service{
		db:       db,
		packs:    pgpacks.New(db),
		pool:     pgcards.NewPool(db),
		listings: pglistings.New(db),
		txns:     pglistings.NewTransactions(db),
		credits:  creditsSvc,
		cards:    cardsSvc,
		lockTTL:  cfg.ListingLockTTL,
		lockWait: cfg.LockWaitTimeout,
		now:      time.Now,
		log:      logging.Component("marketplace"),
	}
}

// CreateListing offers a complete pack for sale. Completeness, custody and
// card designs are checked against the database, not the caller.
func (s *Service) CreateListing(ctx context.Context, sellerID string, packID uuid.UUID, price int64) (listings.Listing, error) {
	if price <= 0 {
		return listings.Listing{}, ErrInvalidPrice
	}

	var out listings.Listing

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, terr := s.packs.LockForUpdate(ctx, tx, packID)
		if terr != nil {
			return terr
		}

		if p.UserID != sellerID {
			return ErrNotPackOwner
		}
		if p.Delivered() {
			return ErrPackDelivered
		}

		entries, terr := s.packs.Entries(ctx, tx, packID)
		if terr != nil {
			return terr
		}

		if len(entries) != packs.Capacity {
			return fmt.Errorf("%w: has %d", ErrPackIncomplete, len(entries))
		}

		pooled, terr := s.pool.CountInPack(ctx, tx, packID)
		if terr != nil {
			return terr
		}

		if pooled != packs.Capacity {
			return fmt.Errorf("%w: pack %s has %d entries but %d pooled cards",
				ErrIntegrity, packID, len(entries), pooled)
		}

		templateIDs := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			templateIDs = append(templateIDs, e.TemplateID)
		}

		_, terr = s.cards.Templates(ctx, tx, templateIDs)
		if terr != nil {
			return terr
		}

		live, terr := s.listings.HasLive(ctx, tx, packID)
		if terr != nil {
			return terr
		}
		if live {
			return ErrAlreadyListed
		}

		out, terr = s.listings.Insert(ctx, tx, listings.Listing{
			PackID:   packID,
			SellerID: sellerID,
			Price:    price,
		})
		return terr
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		if pgutils.IsContention(err) {
			return listings.Listing{}, fmt.Errorf("%w: %w", ErrTransactionInProgress, err)
		}

		return listings.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	s.log.Info("listing created", "listing_id", out.ID, "pack_id", packID, "seller_id", sellerID, "price", price)

	return out, nil
}

// CancelListing withdraws an ACTIVE listing. Only its seller may cancel.
func (s *Service) CancelListing(ctx context.Context, listingID uuid.UUID, sellerID string) (listings.Listing, error) {
	l, err := s.listings.Cancel(ctx, listingID, sellerID)
	if err != nil {
		return listings.Listing{}, fmt.Errorf("cancel listing: %w", err)
	}

	s.log.Info("listing cancelled", "listing_id", listingID, "seller_id", sellerID)

	return l, nil
}

func (s *Service) GetListing(ctx context.Context, listingID uuid.UUID) (listings.Listing, error) {
	l, err := s.listings.Get(ctx, s.db, listingID)
	if err != nil {
		return listings.Listing{}, fmt.Errorf("get listing: %w", err)
	}

	return l, nil
}

func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]listings.Listing, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset = max(offset, 0)

	list, err := s.listings.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	return list, nil
}

// ReleaseExpiredLocks returns listings whose purchase attempt outlived its
// lock to ACTIVE and fails the abandoned attempts.
func (s *Service) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	var released []uuid.UUID

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var terr error

		released, terr = s.listings.ReleaseExpiredLocks(ctx, tx)
		if terr != nil {
			return terr
		}

		if len(released) == 0 {
			return nil
		}

		_, terr = s.txns.FailPendingForListings(ctx, tx, released)
		return terr
	})
	if err != nil {
		return 0, fmt.Errorf("release expired locks: %w", err)
	}

	if len(released) > 0 {
		metrics.ListingLocksReleased.Add(float64(len(released)))
		s.log.Warn("expired listing locks released", "listings", released)
	}

	return len(released), nil
}
