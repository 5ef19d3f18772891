package api

import (
	"net/http"
	"strings"

	"github.com/fastprodman/pulsecards/internal/services/credits"
)

const defaultHistoryLimit = 50

// GetCreditsHandler handles GET /credits
func (h *HandlerProvider) GetCreditsHandler(w http.ResponseWriter, r *http.Request) {
	bal, err := h.svc.Credits.GetCredits(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"credits": bal})
}

// CreditHistoryHandler handles GET /credits/history?limit=
func (h *HandlerProvider) CreditHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultHistoryLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.svc.Credits.History(r.Context(), userID(r), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": toLedgerEntries(entries)})
}

// PackagesHandler handles GET /credits/packages
func (h *HandlerProvider) PackagesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"packages": h.svc.Credits.Packages()})
}

type useCreditsRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// UseCreditsHandler handles POST /credits/use
func (h *HandlerProvider) UseCreditsHandler(w http.ResponseWriter, r *http.Request) {
	var req useCreditsRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ok, err := h.svc.Credits.UseCredits(r.Context(), userID(r), req.Amount, strings.TrimSpace(req.Description))
	h.writeSpend(w, r, ok, err)
}

// GenerationHandler handles POST /credits/generation, charging the image
// generation cost before the task is submitted elsewhere.
func (h *HandlerProvider) GenerationHandler(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.Credits.ChargeGeneration(r.Context(), userID(r))
	h.writeSpend(w, r, ok, err)
}

func (h *HandlerProvider) writeSpend(w http.ResponseWriter, r *http.Request, ok bool, err error) {
	if err == nil && !ok {
		err = credits.ErrInsufficientCredits
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type purchaseRequest struct {
	PackageID string `json:"packageId"`
}

// PurchaseHandler handles POST /credits/purchase
func (h *HandlerProvider) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	intent, err := h.svc.Credits.CreatePurchaseIntent(r.Context(), userID(r), strings.TrimSpace(req.PackageID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, intent)
}

type completePurchaseRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// CompletePurchaseHandler handles POST /credits/purchase/complete
func (h *HandlerProvider) CompletePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req completePurchaseRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if strings.TrimSpace(req.PaymentIntentID) == "" {
		h.writeError(w, r, badRequest("paymentIntentId required"))
		return
	}

	res, err := h.svc.Credits.CompletePurchase(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// completion still credits the owner; do not echo their balance to a stranger
	if res.Purchase.UserID != userID(r) {
		h.writeError(w, r, credits.ErrPurchaseNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"purchaseId": res.Purchase.ID,
		"amount":     res.Purchase.Amount,
		"credited":   res.Credited,
		"credits":    res.Balance,
	})
}
