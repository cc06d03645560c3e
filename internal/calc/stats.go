// Package calc holds the pure game-math functions: stat formulas, natures,
// gender derivation and experience curves. Nothing here does I/O.
package calc

import "github.com/fleveque/pokemmo-companion/internal/model"

// HPStat computes the HP stat. A base of 1 is the zero-growth special case
// and always yields 1.
func HPStat(base, iv, ev, level int) int {
	if base == 1 {
		return 1
	}
	return (2*base+iv+ev/4)*level/100 + level + 10
}

// OtherStat computes a non-HP stat. modifier is the nature multiplier in percent
// (110, 90 or 100); the result is floored after applying it.
func OtherStat(base, iv, ev, level, modifier int) int {
	raw := (2*base+iv+ev/4)*level/100 + 5
	return raw * modifier / 100
}

// Stats computes the full stat block for a Pokemon.
func Stats(base, ivs, evs model.StatBlock, level int, nature Nature) model.StatBlock {
	b, i, e := base.Values(), ivs.Values(), evs.Values()
	var out [6]int
	out[StatHP] = HPStat(b[StatHP], i[StatHP], e[StatHP], level)
	for s := StatAttack; s <= StatSpeed; s++ {
		out[s] = OtherStat(b[s], i[s], e[s], level, nature.Modifier(s))
	}
	return model.StatBlock{
		HP:             out[StatHP],
		Attack:         out[StatAttack],
		Defense:        out[StatDefense],
		SpecialAttack:  out[StatSpecialAttack],
		SpecialDefense: out[StatSpecialDefense],
		Speed:          out[StatSpeed],
	}
}

// PerfectIVs counts IVs equal to 31.
func PerfectIVs(ivs model.StatBlock) int {
	n := 0
	for _, v := range ivs.Values() {
		if v == 31 {
			n++
		}
	}
	return n
}

// HPPercent returns current/max HP as a percentage clamped to [0, 100].
func HPPercent(current, max int) float64 {
	if max <= 0 {
		return 0
	}
	pct := float64(current) * 100 / float64(max)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// HPTierFor buckets an HP percentage: above 50 green, 20 to 50 yellow,
// below 20 red.
func HPTierFor(pct float64) model.HPTier {
	switch {
	case pct > 50:
		return model.HPGreen
	case pct >= 20:
		return model.HPYellow
	default:
		return model.HPRed
	}
}
