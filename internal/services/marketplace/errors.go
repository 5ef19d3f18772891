package marketplace

import (
	"errors"

	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/credits"
)

var (
	ErrInvalidPrice       = errors.New("price must be a positive integer")
	ErrPackIncomplete     = errors.New("pack must hold exactly 10 cards")
	ErrListingUnavailable = errors.New("listing unavailable")
	ErrSelfPurchase       = errors.New("cannot buy your own listing")

	// ErrIntegrity marks state that should be impossible: pool custody out
	// of step with a pack, or a pack changing hands under the seller.
	ErrIntegrity = errors.New("marketplace integrity violation")

	ErrListingNotFound       = listings.ErrListingNotFound
	ErrAlreadyListed         = listings.ErrAlreadyListed
	ErrNotPackOwner          = cardpool.ErrNotPackOwner
	ErrPackDelivered         = cardpool.ErrPackDelivered
	ErrInsufficientCredits   = credits.ErrInsufficientCredits
	ErrTransactionInProgress = credits.ErrTransactionInProgress
)
