package api

import (
	"net/http"

	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/google/uuid"
)

// ListCardsHandler handles GET /cards
func (h *HandlerProvider) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Cards.ListCards(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]cardView, 0, len(list))
	for _, c := range list {
		out = append(out, toCard(c))
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": out})
}

type mintRequest struct {
	ImageID     string `json:"imageId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MintCardHandler handles POST /cards/mint
func (h *HandlerProvider) MintCardHandler(w http.ResponseWriter, r *http.Request) {
	var req mintRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	card, err := h.svc.Cards.MintCard(r.Context(), userID(r), cardpool.MintRequest{
		ImageID:     req.ImageID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordAction(r.Context(), userID(r), challenges.ActionMintCard)

	writeJSON(w, http.StatusOK, toCard(card))
}

type createPackRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreatePackHandler handles POST /card-packs
func (h *HandlerProvider) CreatePackHandler(w http.ResponseWriter, r *http.Request) {
	var req createPackRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.svc.Cards.CreatePack(r.Context(), userID(r), req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPack(p))
}

// ListPacksHandler handles GET /card-packs
func (h *HandlerProvider) ListPacksHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Cards.ListPacks(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]packView, 0, len(list))
	for _, p := range list {
		out = append(out, toPack(p))
	}

	writeJSON(w, http.StatusOK, map[string]any{"packs": out})
}

// GetPackHandler handles GET /card-packs/{packId}
func (h *HandlerProvider) GetPackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "packId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pv, err := h.svc.Cards.GetPack(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPackView(pv))
}

type addCardsRequest struct {
	CardIDs []string `json:"cardIds"`
}

// AddCardsHandler handles POST /card-packs/{packId}/cards
func (h *HandlerProvider) AddCardsHandler(w http.ResponseWriter, r *http.Request) {
	packID, err := uuidParam(r, "packId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req addCardsRequest

	err = decodeJSON(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.CardIDs))
	for _, raw := range req.CardIDs {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			h.writeError(w, r, badRequest("invalid card id %q", raw))
			return
		}

		ids = append(ids, id)
	}

	entries, err := h.svc.Cards.AddCardsToPack(r.Context(), packID, userID(r), ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": toPackEntries(entries)})
}

// RemoveCardHandler handles DELETE /card-packs/{packId}/cards/{cardId}
func (h *HandlerProvider) RemoveCardHandler(w http.ResponseWriter, r *http.Request) {
	packID, err := uuidParam(r, "packId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cardID, err := uuidParam(r, "cardId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	err = h.svc.Cards.RemoveCardFromPack(r.Context(), packID, userID(r), cardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RestockPackHandler handles POST /card-packs/{packId}/restock
func (h *HandlerProvider) RestockPackHandler(w http.ResponseWriter, r *http.Request) {
	packID, err := uuidParam(r, "packId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	err = h.svc.Cards.RestockPack(r.Context(), packID, userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pv, err := h.svc.Cards.GetPack(r.Context(), packID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPackView(pv))
}
