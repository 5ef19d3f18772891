package challenges

import (
	"time"

	"github.com/fastprodman/pulsecards/internal/repos/challenges"
)

const (
	ActionShare         = "share"
	ActionMintCard      = "mint_card"
	ActionCreateListing = "create_listing"
	ActionBuyListing    = "buy_listing"
)

type template struct {
	action   string
	title    string
	desc     string
	required int
	reward   int64
}

var catalog = []template{
	{ActionShare, "Spread the word", "Share three cards or packs", 3, 2},
	{ActionMintCard, "Fresh ink", "Mint two new cards", 2, 3},
	{ActionCreateListing, "Open shop", "List a pack on the marketplace", 1, 2},
	{ActionBuyListing, "Collector's eye", "Buy a pack from the marketplace", 1, 5},
}

// forDay expands the catalog for the UTC day containing day. Challenges
// expire at the following UTC midnight.
func forDay(day time.Time) []challenges.Challenge {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	out := make([]challenges.Challenge, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, challenges.Challenge{
			Action:        t.action,
			Title:         t.title,
			Description:   t.desc,
			RequiredCount: t.required,
			CreditReward:  t.reward,
			ActiveDate:    start,
			ExpiresAt:     end,
		})
	}

	return out
}
