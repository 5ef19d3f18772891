package referral

import "math"

type tier struct {
	upTo  int
	bonus int64
}

// Tiers are inclusive on upTo and ordered by it.
var tiers = []tier{
	{upTo: 5, bonus: 5},
	{upTo: 10, bonus: 7},
	{upTo: 15, bonus: 10},
	{upTo: math.MaxInt, bonus: 15},
}

// TierBonus returns the per-referral bonus for a referrer whose lifetime
// count, including the referral being paid, is count.
func TierBonus(count int) int64 {
	for _, t := range tiers {
		if count <= t.upTo {
			return t.bonus
		}
	}

	return tiers[len(tiers)-1].bonus
}
