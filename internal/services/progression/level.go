package progression

// xpUnit scales the level curve: level L starts at (L-1)^2 * xpUnit XP.
const xpUnit = 100

// LevelForXP is floor(sqrt(xp/100)) + 1. XPForLevel is its exact inverse
// at level boundaries; change both together.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}

	return int(isqrt(xp/xpUnit)) + 1
}

// XPForLevel is the XP at which level starts.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}

	n := int64(level - 1)

	return n * n * xpUnit
}

func isqrt(n int64) int64 {
	if n < 2 {
		return n
	}

	// Newton's method from an overestimate.
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}

	return x
}
