package cardpool

import (
	"errors"

	"github.com/fastprodman/pulsecards/internal/repos/packs"
)

var (
	ErrInvalidCard      = errors.New("invalid card")
	ErrInvalidPack      = errors.New("invalid pack")
	ErrInvalidSelection = errors.New("select between 1 and 10 distinct cards")
	ErrNotPackOwner     = errors.New("pack not owned by user")
	ErrPackFull         = errors.New("pack would exceed capacity")
	ErrPackListed       = errors.New("pack is listed on the marketplace")
	ErrPackDelivered    = errors.New("pack was sold; restock it to edit or list it again")
	ErrPackNotDelivered = errors.New("pack already holds its cards")
	ErrCardsNotOwned    = errors.New("cards not owned by user")
	ErrCardInPack       = errors.New("card already in a pack")

	// ErrTemplateMissing means a card points at a template that does not exist.
	ErrTemplateMissing = errors.New("card template missing")

	ErrPackNotFound  = packs.ErrPackNotFound
	ErrCardNotInPack = packs.ErrCardNotInPack
)
