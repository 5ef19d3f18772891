package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/fastprodman/pulsecards/internal/repos/packs"
	"github.com/google/uuid"
)

// PurchaseListing sells the listing to buyerID.
//
// The listing is first locked under a fresh token in its own short
// transaction, so competing buyers fail fast instead of queueing on row
// locks. The transfer then runs as one transaction: buyer debit, seller
// credit, pack delivery, card release from the pool, SOLD, completed
// record. Any failure rolls the transfer back, returns the listing to
// ACTIVE and marks the attempt failed.
func (s *Service) PurchaseListing(ctx context.Context, listingID uuid.UUID, buyerID string) (listings.Transaction, error) {
	l, err := s.listings.Get(ctx, s.db, listingID)
	if err != nil {
		return listings.Transaction{}, fmt.Errorf("purchase listing: %w", err)
	}

	if !l.Purchasable(s.now()) {
		return listings.Transaction{}, s.unavailable(l)
	}

	if l.SellerID == buyerID {
		return listings.Transaction{}, ErrSelfPurchase
	}

	enough, err := s.credits.HasEnoughCredits(ctx, buyerID, l.Price)
	if err != nil {
		return listings.Transaction{}, fmt.Errorf("purchase listing: %w", err)
	}
	if !enough {
		metrics.MarketplacePurchases.WithLabelValues("insufficient").Inc()
		return listings.Transaction{}, ErrInsufficientCredits
	}

	token := uuid.New()

	attempt, err := s.lock(ctx, l, buyerID, token)
	if err != nil {
		metrics.MarketplacePurchases.WithLabelValues("contended").Inc()
		return listings.Transaction{}, err
	}

	err = s.transfer(ctx, l, attempt, token)
	if err != nil {
		s.abort(ctx, l, attempt, token, err)
		return listings.Transaction{}, classify(err)
	}

	s.credits.RefreshBalance(ctx, buyerID, l.SellerID)

	metrics.MarketplacePurchases.WithLabelValues("success").Inc()
	s.log.Info("listing sold",
		"listing_id", l.ID, "pack_id", l.PackID, "seller_id", l.SellerID,
		"buyer_id", buyerID, "price", l.Price, "transaction_id", attempt.ID)

	attempt.Status = listings.TxCompleted

	return attempt, nil
}

func (s *Service) lock(ctx context.Context, l listings.Listing, buyerID string, token uuid.UUID) (listings.Transaction, error) {
	var attempt listings.Transaction

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, terr := s.listings.AcquireLock(ctx, tx, l.ID, token, s.lockTTL)
		if terr != nil {
			return terr
		}

		// a lock taken over after expiry leaves the old attempt behind
		_, terr = s.txns.FailPendingForListings(ctx, tx, []uuid.UUID{l.ID})
		if terr != nil {
			return terr
		}

		attempt, terr = s.txns.Insert(ctx, tx, listings.Transaction{
			ListingID: l.ID,
			BuyerID:   buyerID,
			SellerID:  l.SellerID,
			Amount:    l.Price,
		})
		return terr
	}, pgutils.WithLockTimeout(s.lockWait))
	if errors.Is(err, listings.ErrNotLockable) {
		current, gerr := s.listings.Get(ctx, s.db, l.ID)
		if gerr != nil {
			return listings.Transaction{}, ErrListingUnavailable
		}

		return listings.Transaction{}, s.unavailable(current)
	}
	if err != nil {
		return listings.Transaction{}, classify(fmt.Errorf("lock listing: %w", err))
	}

	return attempt, nil
}

func (s *Service) transfer(
	ctx context.Context, l listings.Listing, attempt listings.Transaction, token uuid.UUID,
) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	meta := func(role string) map[string]any {
		return map[string]any{
			"listingId":     l.ID.String(),
			"packId":        l.PackID.String(),
			"transactionId": attempt.ID.String(),
			"role":          role,
		}
	}

	return pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, terr := s.credits.LockAccounts(ctx, tx, attempt.BuyerID, l.SellerID)
		if terr != nil {
			return terr
		}

		_, terr = s.credits.Apply(ctx, tx, creditsrepo.Entry{
			UserID:      attempt.BuyerID,
			Amount:      -l.Price,
			Type:        creditsrepo.TxUsage,
			Description: "marketplace purchase",
			Metadata:    meta("buyer"),
		})
		if terr != nil {
			return terr
		}

		_, terr = s.credits.Apply(ctx, tx, creditsrepo.Entry{
			UserID:      l.SellerID,
			Amount:      l.Price,
			Type:        creditsrepo.TxSystem,
			Description: "marketplace sale",
			Metadata:    meta("seller"),
		})
		if terr != nil {
			return terr
		}

		terr = s.packs.Deliver(ctx, tx, l.PackID, l.SellerID, attempt.BuyerID)
		if errors.Is(terr, packs.ErrOwnerMismatch) {
			return fmt.Errorf("%w: pack %s no longer owned by seller", ErrIntegrity, l.PackID)
		}
		if terr != nil {
			return terr
		}

		moved, terr := s.pool.ReleasePack(ctx, tx, l.PackID, attempt.BuyerID)
		if terr != nil {
			return terr
		}
		if moved != packs.Capacity {
			return fmt.Errorf("%w: pack %s released %d cards", ErrIntegrity, l.PackID, moved)
		}

		_, terr = s.listings.MarkSold(ctx, tx, l.ID, token)
		if terr != nil {
			return terr
		}

		return s.txns.Complete(ctx, tx, attempt.ID)
	}, pgutils.WithLockTimeout(s.lockWait))
}

// abort undoes the listing lock after a failed transfer. It runs even when
// the request context is already done.
func (s *Service) abort(ctx context.Context, l listings.Listing, attempt listings.Transaction, token uuid.UUID, cause error) {
	ctx = context.WithoutCancel(ctx)

	released, err := s.listings.ReleaseLock(ctx, l.ID, token)
	if err != nil {
		s.log.Error("release listing lock failed", "listing_id", l.ID, logging.Err(err))
	} else if !released {
		s.log.Warn("listing lock already gone", "listing_id", l.ID)
	}

	err = s.txns.Fail(ctx, attempt.ID)
	if err != nil {
		s.log.Error("fail marketplace transaction failed", "transaction_id", attempt.ID, logging.Err(err))
	}

	s.credits.InvalidateBalance(ctx, attempt.BuyerID, l.SellerID)

	outcome := "failed"
	level := slog.LevelWarn
	if errors.Is(cause, ErrIntegrity) || pgutils.IsIntegrityViolation(cause) {
		outcome = "integrity"
		level = slog.LevelError
	}

	metrics.MarketplacePurchases.WithLabelValues(outcome).Inc()
	s.log.Log(ctx, level, "purchase aborted",
		"listing_id", l.ID, "buyer_id", attempt.BuyerID, "transaction_id", attempt.ID, logging.Err(cause))
}

func (s *Service) unavailable(l listings.Listing) error {
	if l.Status == listings.StatusLocked && !l.Purchasable(s.now()) {
		return ErrTransactionInProgress
	}

	return fmt.Errorf("%w: listing is %s", ErrListingUnavailable, l.Status)
}

// classify maps storage failures onto the errors callers act on.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientCredits), errors.Is(err, ErrIntegrity):
		return err
	case errors.Is(err, listings.ErrLockNotHeld):
		return fmt.Errorf("%w: listing lock expired", ErrTransactionInProgress)
	case pgutils.IsContention(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTransactionInProgress, err)
	case pgutils.IsIntegrityViolation(err):
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	default:
		return fmt.Errorf("purchase listing: %w", err)
	}
}
