// Package enrich turns raw captured records into display-ready records.
//
// The flow is: ResolveKey picks the species key for each record, the
// Pipeline batch-fetches whatever species, moves and abilities are missing
// from the shared caches, and the Merger combines a record with whatever
// data the caches hold at that moment. Missing data never fails a record;
// the matching optional fields are simply left unset.
package enrich

import (
	"strconv"
	"strings"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// ResolveKey derives the species cache key for a record. A non-blank
// override slug wins outright; otherwise a non-zero form yields the
// composite "id-{species}-form-{form}" key; otherwise the species id.
func ResolveKey(override string, speciesID, formID int) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if formID != 0 {
		return "id-" + strconv.Itoa(speciesID) + "-form-" + strconv.Itoa(formID)
	}
	return strconv.Itoa(speciesID)
}

// SpeciesKey is ResolveKey applied to a record.
func SpeciesKey(rec model.RawRecord) string {
	return ResolveKey(rec.SpeciesSlug, rec.SpeciesID, rec.FormID)
}

// MoveKey is the cache key for a move id.
func MoveKey(id int) string { return strconv.Itoa(id) }

// AbilityKey is the cache key for an ability id.
func AbilityKey(id int) string { return strconv.Itoa(id) }

// AbilityIDFromURL extracts the numeric id from a PokeAPI ability URL such
// as "https://pokeapi.co/api/v2/ability/65/". It returns 0 when there is none.
func AbilityIDFromURL(url string) int {
	trimmed := strings.TrimRight(url, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return 0
	}
	id, err := strconv.Atoi(trimmed[i+1:])
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// matchAbility finds the species ability the record refers to. The id match
// comes first; the slot match covers captures where the hidden ability id
// is missing.
func matchAbility(ref model.AbilityRef, abilities []model.SpeciesAbility) (model.SpeciesAbility, bool) {
	if ref.ID > 0 {
		for _, a := range abilities {
			if AbilityIDFromURL(a.URL) == ref.ID {
				return a, true
			}
		}
	}
	if ref.Slot > 0 {
		for _, a := range abilities {
			if a.Slot == ref.Slot {
				return a, true
			}
		}
	}
	return model.SpeciesAbility{}, false
}

// abilityKeyFor returns the ability cache key needed for a record. With
// species data it is the key of the ability the merge will show, which may
// differ from the record's id when the slot fallback applies. Without it
// the record's own id is the best guess. ok is false when no key can be
// derived.
func abilityKeyFor(rec model.RawRecord, sp *model.Species) (string, bool) {
	if sp == nil {
		if rec.Ability.ID > 0 {
			return AbilityKey(rec.Ability.ID), true
		}
		return "", false
	}
	if a, ok := matchAbility(rec.Ability, sp.Abilities); ok {
		if id := AbilityIDFromURL(a.URL); id > 0 {
			return AbilityKey(id), true
		}
	}
	return "", false
}
