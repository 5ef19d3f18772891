package api

import (
	"net/http"

	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter registers every route of the configured services. gatewayTok,
// when set, is required as a bearer token on everything but /healthz and
// /metrics.
func NewRouter(svc Services, gatewayTok string) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logging.Component("http")))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(gatewayToken(gatewayTok))
		r.Use(h.requireUser)

		if svc.Credits != nil {
			r.Route("/credits", func(r chi.Router) {
				r.Get("/", h.GetCreditsHandler)
				r.Get("/history", h.CreditHistoryHandler)
				r.Get("/packages", h.PackagesHandler)
				r.Post("/use", h.UseCreditsHandler)
				r.Post("/generation", h.GenerationHandler)
				r.Post("/purchase", h.PurchaseHandler)
				r.Post("/purchase/complete", h.CompletePurchaseHandler)
			})
		}

		if svc.Sharing != nil {
			r.Post("/share", h.ShareHandler)
		}

		if svc.Referral != nil {
			r.Post("/referral/generate", h.GenerateReferralHandler)
			r.Post("/referral/use", h.UseReferralHandler)
		}

		if svc.Cards != nil {
			r.Get("/cards", h.ListCardsHandler)
			r.Post("/cards/mint", h.MintCardHandler)

			r.Route("/card-packs", func(r chi.Router) {
				r.Get("/", h.ListPacksHandler)
				r.Post("/", h.CreatePackHandler)
				r.Get("/{packId}", h.GetPackHandler)
				r.Post("/{packId}/cards", h.AddCardsHandler)
				r.Delete("/{packId}/cards/{cardId}", h.RemoveCardHandler)
				r.Post("/{packId}/restock", h.RestockPackHandler)
			})
		}

		if svc.Marketplace != nil {
			r.Route("/marketplace/listings", func(r chi.Router) {
				r.Get("/", h.ListListingsHandler)
				r.Post("/", h.CreateListingHandler)
				r.Get("/{listingId}", h.GetListingHandler)
				r.Post("/{listingId}/purchase", h.PurchaseListingHandler)
				r.Post("/{listingId}/cancel", h.CancelListingHandler)
			})
		}

		if svc.Progression != nil {
			r.Get("/xp", h.ProgressHandler)
			r.Post("/xp/award", h.AwardXPHandler)
			r.Post("/rewards/{rewardId}/claim", h.ClaimRewardHandler)
		}

		if svc.Challenges != nil {
			r.Get("/challenges/today", h.TodayChallengesHandler)
			r.Post("/challenges/{challengeId}/progress", h.ChallengeProgressHandler)
		}
	})

	return r
}
