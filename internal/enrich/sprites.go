package enrich

import (
	"strconv"
	"strings"
)

// DefaultSpriteBaseURL is the root of the PokeAPI sprite repository.
const DefaultSpriteBaseURL = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon"

// lastBlackWhiteID is the highest national dex number with Black/White
// sprites. Later species only have the generic sprite path.
const lastBlackWhiteID = 649

// BrokenChecker reports sprite URLs that already failed to load. The sprite
// service implements it.
type BrokenChecker interface {
	IsBroken(url string) bool
}

// StaticSpriteURL builds the deterministic static sprite URL for a pokemon id.
func StaticSpriteURL(base string, id int, shiny bool) string {
	if base == "" {
		base = DefaultSpriteBaseURL
	}
	base = strings.TrimRight(base, "/")
	if id <= lastBlackWhiteID {
		base += "/versions/generation-v/black-white"
	}
	if shiny {
		base += "/shiny"
	}
	return base + "/" + strconv.Itoa(id) + ".png"
}
