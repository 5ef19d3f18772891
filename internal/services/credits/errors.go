package credits

import (
	"errors"

	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
)

var (
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrInvalidPackage = errors.New("invalid package")
	ErrPaymentFailed  = errors.New("payment failed")

	// ErrTransactionInProgress reports lock contention; the caller may retry.
	ErrTransactionInProgress = errors.New("transaction in progress")

	ErrInsufficientCredits = creditsrepo.ErrInsufficientCredits
	ErrPurchaseNotFound    = creditsrepo.ErrPurchaseNotFound
)
