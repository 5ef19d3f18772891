package cards

import (
	"database/sql"

	"github.com/fastprodman/pulsecards/internal/repos/cards"
)

var (
	_ cards.Cards = (*cardsRepo)(nil)
	_ cards.Pool  = (*poolRepo)(nil)
)

type cardsRepo struct{ db *sql.DB }

func New(db *sql.DB) *cardsRepo {
	return &cardsRepo{db: db}
}

type poolRepo struct{ db *sql.DB }

func NewPool(db *sql.DB) *poolRepo {
	return &poolRepo{db: db}
}
