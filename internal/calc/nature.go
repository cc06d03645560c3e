package calc

import "strings"

// Stat indexes a stat in a model.StatBlock's canonical order.
type Stat int

const (
	StatHP Stat = iota
	StatAttack
	StatDefense
	StatSpecialAttack
	StatSpecialDefense
	StatSpeed
)

// Nature is one of the 25 fixed natures. Neutral natures boost and lower the
// same stat, which cancels out.
type Nature struct {
	Name  string
	Boost Stat
	Cut   Stat
}

// Neutral reports whether the nature has no effect.
func (n Nature) Neutral() bool {
	return n.Boost == n.Cut
}

// Modifier returns the nature multiplier for a stat, expressed in percent
// (110, 90 or 100). HP is never affected.
func (n Nature) Modifier(s Stat) int {
	if s == StatHP || n.Neutral() {
		return 100
	}
	switch s {
	case n.Boost:
		return 110
	case n.Cut:
		return 90
	default:
		return 100
	}
}

// natures is keyed by lowercase name.
var natures = map[string]Nature{
	"hardy":   {"Hardy", StatAttack, StatAttack},
	"lonely":  {"Lonely", StatAttack, StatDefense},
	"brave":   {"Brave", StatAttack, StatSpeed},
	"adamant": {"Adamant", StatAttack, StatSpecialAttack},
	"naughty": {"Naughty", StatAttack, StatSpecialDefense},
	"bold":    {"Bold", StatDefense, StatAttack},
	"docile":  {"Docile", StatDefense, StatDefense},
	"relaxed": {"Relaxed", StatDefense, StatSpeed},
	"impish":  {"Impish", StatDefense, StatSpecialAttack},
	"lax":     {"Lax", StatDefense, StatSpecialDefense},
	"timid":   {"Timid", StatSpeed, StatAttack},
	"hasty":   {"Hasty", StatSpeed, StatDefense},
	"serious": {"Serious", StatSpeed, StatSpeed},
	"jolly":   {"Jolly", StatSpeed, StatSpecialAttack},
	"naive":   {"Naive", StatSpeed, StatSpecialDefense},
	"modest":  {"Modest", StatSpecialAttack, StatAttack},
	"mild":    {"Mild", StatSpecialAttack, StatDefense},
	"quiet":   {"Quiet", StatSpecialAttack, StatSpeed},
	"bashful": {"Bashful", StatSpecialAttack, StatSpecialAttack},
	"rash":    {"Rash", StatSpecialAttack, StatSpecialDefense},
	"calm":    {"Calm", StatSpecialDefense, StatAttack},
	"gentle":  {"Gentle", StatSpecialDefense, StatDefense},
	"sassy":   {"Sassy", StatSpecialDefense, StatSpeed},
	"careful": {"Careful", StatSpecialDefense, StatSpecialAttack},
	"quirky":  {"Quirky", StatSpecialDefense, StatSpecialDefense},
}

// LookupNature finds a nature by name, case-insensitively.
func LookupNature(name string) (Nature, bool) {
	n, ok := natures[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// NatureOrNeutral returns the named nature, or Hardy when the name is
// unknown or empty.
func NatureOrNeutral(name string) Nature {
	if n, ok := LookupNature(name); ok {
		return n
	}
	return natures["hardy"]
}

// Natures returns all 25 natures.
func Natures() []Nature {
	out := make([]Nature, 0, len(natures))
	for _, n := range natures {
		out = append(out, n)
	}
	return out
}
