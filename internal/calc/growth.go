package calc

// Growth rate names as PokeAPI spells them.
const (
	GrowthSlow        = "slow"
	GrowthMedium      = "medium"
	GrowthFast        = "fast"
	GrowthMediumSlow  = "medium-slow"
	GrowthErratic     = "slow-then-very-fast"
	GrowthFluctuating = "fast-then-very-slow"
)

// ExpForLevel returns the total experience needed to reach level n on the
// given curve. Unknown curves use the medium (n^3) curve.
func ExpForLevel(growthRate string, n int) int {
	if n <= 1 {
		return 0
	}
	if n > 100 {
		n = 100
	}
	cube := n * n * n
	var exp int
	switch growthRate {
	case GrowthFast:
		exp = 4 * cube / 5
	case GrowthSlow:
		exp = 5 * cube / 4
	case GrowthMediumSlow:
		exp = 6*cube/5 - 15*n*n + 100*n - 140
	case GrowthErratic:
		switch {
		case n < 50:
			exp = cube * (100 - n) / 50
		case n < 68:
			exp = cube * (150 - n) / 100
		case n < 98:
			exp = cube * ((1911 - 10*n) / 3) / 500
		default:
			exp = cube * (160 - n) / 100
		}
	case GrowthFluctuating:
		switch {
		case n < 15:
			exp = cube * ((n+1)/3 + 24) / 50
		case n < 36:
			exp = cube * (n + 14) / 50
		default:
			exp = cube * (n/2 + 32) / 50
		}
	default:
		exp = cube
	}
	if exp < 0 {
		return 0
	}
	return exp
}

// XPPercent returns progress from the current level toward the next one,
// in [0, 100]. Level 100 is always 100.
func XPPercent(growthRate string, level, xp int) float64 {
	if level >= 100 {
		return 100
	}
	lo := ExpForLevel(growthRate, level)
	hi := ExpForLevel(growthRate, level+1)
	if hi <= lo {
		return 0
	}
	pct := float64(xp-lo) * 100 / float64(hi-lo)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
