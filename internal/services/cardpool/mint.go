package cardpool

import (
	"math/rand/v2"

	"github.com/fastprodman/pulsecards/internal/repos/cards"
)

var elements = []string{"FIRE", "WATER", "EARTH", "AIR", "LIGHT", "SHADOW"}

type rarity struct {
	name   string
	weight int
	base   int
}

// Weights sum to 100.
var rarities = []rarity{
	{name: "COMMON", weight: 60, base: 10},
	{name: "RARE", weight: 25, base: 25},
	{name: "EPIC", weight: 12, base: 45},
	{name: "LEGENDARY", weight: 3, base: 70},
}

const statSpread = 30

// rollTemplate picks the random parts of a new design.
func rollTemplate(r *rand.Rand, t cards.Template) cards.Template {
	t.ElementalType = elements[r.IntN(len(elements))]

	pick := r.IntN(100)
	rr := rarities[0]
	for _, candidate := range rarities {
		if pick < candidate.weight {
			rr = candidate
			break
		}
		pick -= candidate.weight
	}

	t.Rarity = rr.name
	t.Stats = cards.PowerStats{
		Attack:  rr.base + r.IntN(statSpread),
		Defense: rr.base + r.IntN(statSpread),
		Speed:   rr.base + r.IntN(statSpread),
	}

	return t
}
