package api

import (
	"errors"
	"net/http"

	"github.com/fastprodman/pulsecards/internal/repos/cards"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/fastprodman/pulsecards/internal/services/marketplace"
	"github.com/fastprodman/pulsecards/internal/services/progression"
	"github.com/fastprodman/pulsecards/internal/services/referral"
	"github.com/fastprodman/pulsecards/internal/services/sharing"
)

var errUnauthenticated = errors.New("missing user identity")

type errorClass struct {
	status    int
	code      string
	retryable bool
}

type errorRule struct {
	class errorClass
	errs  []error
}

var (
	classBadRequest   = errorClass{status: http.StatusBadRequest, code: "invalid_request"}
	classNotFound     = errorClass{status: http.StatusNotFound, code: "not_found"}
	classConflict     = errorClass{status: http.StatusConflict, code: "conflict"}
	classInsufficient = errorClass{status: http.StatusConflict, code: "insufficient_credits"}
	classBusy         = errorClass{status: http.StatusLocked, code: "transaction_in_progress", retryable: true}
	classGateway      = errorClass{status: http.StatusUnprocessableEntity, code: "payment_error", retryable: true}
	classIntegrity    = errorClass{status: http.StatusInternalServerError, code: "integrity_violation"}
	classInternal     = errorClass{status: http.StatusInternalServerError, code: "internal"}
	classUnauth       = errorClass{status: http.StatusUnauthorized, code: "unauthenticated"}
)

// First match wins; contention must come before the conflict rules since
// it wraps the underlying pg error alongside domain errors.
var errorRules = []errorRule{
	{classUnauth, []error{errUnauthenticated}},
	{classBusy, []error{credits.ErrTransactionInProgress}},
	{classIntegrity, []error{marketplace.ErrIntegrity, cardpool.ErrTemplateMissing}},
	{classGateway, []error{credits.ErrPaymentFailed}},
	{classInsufficient, []error{credits.ErrInsufficientCredits}},
	{classBadRequest, []error{
		errBadRequest,
		credits.ErrInvalidAmount,
		credits.ErrInvalidType,
		credits.ErrInvalidPackage,
		sharing.ErrInvalidTarget,
		referral.ErrInvalidCode,
		referral.ErrSelfReferral,
		cardpool.ErrInvalidCard,
		cardpool.ErrInvalidPack,
		cardpool.ErrInvalidSelection,
		cardpool.ErrPackFull,
		cardpool.ErrCardsNotOwned,
		cardpool.ErrCardInPack,
		marketplace.ErrInvalidPrice,
		marketplace.ErrPackIncomplete,
		progression.ErrInvalidAmount,
		challenges.ErrInvalidIncrement,
	}},
	{classNotFound, []error{
		credits.ErrPurchaseNotFound,
		cardpool.ErrPackNotFound,
		cardpool.ErrCardNotInPack,
		cardpool.ErrNotPackOwner,
		cards.ErrCardNotFound,
		marketplace.ErrListingNotFound,
		progression.ErrRewardNotFound,
		challenges.ErrChallengeNotFound,
	}},
	{classConflict, []error{
		referral.ErrAlreadyReferred,
		cardpool.ErrPackListed,
		cardpool.ErrPackDelivered,
		cardpool.ErrPackNotDelivered,
		marketplace.ErrAlreadyListed,
		marketplace.ErrListingUnavailable,
		marketplace.ErrSelfPurchase,
		progression.ErrAlreadyClaimed,
		challenges.ErrChallengeExpired,
	}},
}

func classify(err error) (errorClass, error) {
	for _, rule := range errorRules {
		for _, target := range rule.errs {
			if errors.Is(err, target) {
				return rule.class, target
			}
		}
	}

	return classInternal, nil
}

// publicMessage names the matched sentinel rather than the wrapped chain so
// internal context never reaches the client.
func publicMessage(err, matched error, c errorClass) string {
	switch {
	case c.status >= http.StatusInternalServerError || matched == nil:
		return "internal error"
	case errors.Is(matched, errBadRequest):
		return err.Error()
	default:
		return matched.Error()
	}
}
