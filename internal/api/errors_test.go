package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/fastprodman/pulsecards/internal/services/marketplace"
	"github.com/fastprodman/pulsecards/internal/services/progression"
	"github.com/fastprodman/pulsecards/internal/services/referral"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"validation", fmt.Errorf("create listing: %w", marketplace.ErrInvalidPrice), http.StatusBadRequest, false},
		{"bad json", badRequest("invalid JSON"), http.StatusBadRequest, false},
		{"invalid package", credits.ErrInvalidPackage, http.StatusBadRequest, false},
		{"self referral", referral.ErrSelfReferral, http.StatusBadRequest, false},
		{"pack incomplete", marketplace.ErrPackIncomplete, http.StatusBadRequest, false},
		{"not owner", cardpool.ErrNotPackOwner, http.StatusNotFound, false},
		{"listing missing", marketplace.ErrListingNotFound, http.StatusNotFound, false},
		{"reward missing", progression.ErrRewardNotFound, http.StatusNotFound, false},
		{"insufficient", fmt.Errorf("purchase: %w", marketplace.ErrInsufficientCredits), http.StatusConflict, false},
		{"unavailable", marketplace.ErrListingUnavailable, http.StatusConflict, false},
		{"already listed", marketplace.ErrAlreadyListed, http.StatusConflict, false},
		{"already claimed", progression.ErrAlreadyClaimed, http.StatusConflict, false},
		{"expired challenge", challenges.ErrChallengeExpired, http.StatusConflict, false},
		{"contention", fmt.Errorf("%w: lock timeout", credits.ErrTransactionInProgress), http.StatusLocked, true},
		{"gateway", fmt.Errorf("%w: card declined", credits.ErrPaymentFailed), http.StatusUnprocessableEntity, true},
		{"integrity", fmt.Errorf("transfer: %w", marketplace.ErrIntegrity), http.StatusInternalServerError, false},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, false},
		{"unauthenticated", errUnauthenticated, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			class, _ := classify(tt.err)
			if class.status != tt.status {
				t.Fatalf("status = %d, want %d", class.status, tt.status)
			}
			if class.retryable != tt.retryable {
				t.Fatalf("retryable = %v, want %v", class.retryable, tt.retryable)
			}
		})
	}
}

func TestPublicMessage_HidesWrappedContext(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create listing for pack 42: %w", marketplace.ErrPackIncomplete)
	class, matched := classify(err)

	if got := publicMessage(err, matched, class); got != marketplace.ErrPackIncomplete.Error() {
		t.Fatalf("message = %q", got)
	}

	err = fmt.Errorf("query: %w", errors.New("pq: relation missing"))
	class, matched = classify(err)

	if got := publicMessage(err, matched, class); got != "internal error" {
		t.Fatalf("message = %q", got)
	}
}
