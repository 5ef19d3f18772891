package api

import (
	"net/http"

	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/google/uuid"
)

const defaultPageSize = 20

// ListListingsHandler handles GET /marketplace/listings?limit=&offset=
func (h *HandlerProvider) ListListingsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.svc.Marketplace.ListActive(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]listingView, 0, len(list))
	for _, l := range list {
		out = append(out, toListing(l))
	}

	writeJSON(w, http.StatusOK, map[string]any{"listings": out})
}

type createListingRequest struct {
	PackID string `json:"packId"`
	Price  int64  `json:"price"`
}

// CreateListingHandler handles POST /marketplace/listings
func (h *HandlerProvider) CreateListingHandler(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	packID, err := uuid.Parse(req.PackID)
	if err != nil {
		h.writeError(w, r, badRequest("invalid packId"))
		return
	}

	l, err := h.svc.Marketplace.CreateListing(r.Context(), userID(r), packID, req.Price)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordAction(r.Context(), userID(r), challenges.ActionCreateListing)

	writeJSON(w, http.StatusOK, toListing(l))
}

// GetListingHandler handles GET /marketplace/listings/{listingId}
func (h *HandlerProvider) GetListingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "listingId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	l, err := h.svc.Marketplace.GetListing(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListing(l))
}

// PurchaseListingHandler handles POST /marketplace/listings/{listingId}/purchase
func (h *HandlerProvider) PurchaseListingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "listingId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.svc.Marketplace.PurchaseListing(r.Context(), id, userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordAction(r.Context(), userID(r), challenges.ActionBuyListing)

	writeJSON(w, http.StatusOK, toTransaction(tx))
}

// CancelListingHandler handles POST /marketplace/listings/{listingId}/cancel
func (h *HandlerProvider) CancelListingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "listingId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	l, err := h.svc.Marketplace.CancelListing(r.Context(), id, userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListing(l))
}
