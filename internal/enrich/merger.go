package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fleveque/pokemmo-companion/internal/calc"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// Lookup is the read side of a resource cache. *cache.Cache satisfies it.
type Lookup[T any] interface {
	Lookup(key string) (T, bool)
}

// placeholderName matches the synthetic nickname the capture agent emits
// when a Pokemon has none.
var placeholderName = regexp.MustCompile(`^Species \d+$`)

// Merger combines raw records with resolved resource data.
type Merger struct {
	spriteBase string
	broken     BrokenChecker
}

// NewMerger creates a Merger. broken may be nil when no sprite failures are
// tracked.
func NewMerger(spriteBase string, broken BrokenChecker) *Merger {
	if spriteBase == "" {
		spriteBase = DefaultSpriteBaseURL
	}
	return &Merger{spriteBase: spriteBase, broken: broken}
}

func (m *Merger) isBroken(url string) bool {
	return m.broken != nil && m.broken.IsBroken(url)
}

// Enrich builds the enriched view of rec. Without species data the result
// carries only the raw record. moves and abilities may be nil.
func (m *Merger) Enrich(rec model.RawRecord, species *model.Species, moves Lookup[model.Move], abilities Lookup[model.Ability]) model.EnrichedRecord {
	out := model.EnrichedRecord{RawRecord: rec}
	if species == nil {
		return out
	}

	sp := *species
	out.Species = &sp

	stats := calc.Stats(sp.BaseStats, rec.IVs, rec.EVs, rec.Level, calc.NatureOrNeutral(rec.Nature))
	hpPct := calc.HPPercent(rec.CurrentHP, stats.HP)
	out.Computed = &model.Computed{
		Gender:      calc.Gender(sp.GenderRate, rec.PersonalityValue),
		Stats:       stats,
		DisplayName: DisplayName(rec, &sp),
		HPPercent:   hpPct,
		HPTier:      calc.HPTierFor(hpPct),
		XPPercent:   calc.XPPercent(sp.GrowthRate, rec.Level, rec.XP),
		SpriteURL:   m.SpriteURL(&sp, rec.IsShiny),
		PerfectIVs:  calc.PerfectIVs(rec.IVs),
		IVTotal:     rec.IVs.Sum(),
		EVTotal:     rec.EVs.Sum(),
	}

	if moves != nil {
		for _, ref := range rec.Moves {
			mv, ok := moves.Lookup(MoveKey(ref.MoveID))
			if !ok {
				continue
			}
			out.MovesData = append(out.MovesData, model.MoveDetail{Move: mv, CurrentPP: ref.PP})
		}
	}

	out.ActiveAbility = resolveAbility(rec.Ability, &sp, abilities)
	return out
}

// SpriteURL picks the sprite for a species: the animated sprite for the
// requested variant when it exists and has not failed, otherwise the
// templated static URL.
func (m *Merger) SpriteURL(sp *model.Species, shiny bool) string {
	animated := sp.Sprites.Animated
	if shiny {
		animated = sp.Sprites.ShinyAnimated
	}
	if animated != "" && !m.isBroken(animated) {
		return animated
	}
	return StaticSpriteURL(m.spriteBase, sp.ID, shiny)
}

// DisplayName applies the naming policy: a real nickname, then the species
// name, then the "Species {id}" placeholder.
func DisplayName(rec model.RawRecord, sp *model.Species) string {
	nick := strings.TrimSpace(rec.Nickname)
	if nick != "" && !placeholderName.MatchString(nick) {
		return nick
	}
	if sp != nil {
		if sp.DisplayName != "" {
			return sp.DisplayName
		}
		if sp.Name != "" {
			return model.TitleCase(sp.Name)
		}
	}
	return "Species " + strconv.Itoa(rec.SpeciesID)
}

func resolveAbility(ref model.AbilityRef, sp *model.Species, abilities Lookup[model.Ability]) *model.ActiveAbility {
	match, ok := matchAbility(ref, sp.Abilities)
	if !ok {
		return nil
	}
	id := AbilityIDFromURL(match.URL)
	active := &model.ActiveAbility{
		ID:          id,
		Name:        match.Name,
		DisplayName: model.TitleCase(match.Name),
		IsHidden:    match.IsHidden,
	}
	if abilities != nil && id > 0 {
		if ab, ok := abilities.Lookup(AbilityKey(id)); ok {
			if ab.DisplayName != "" {
				active.DisplayName = ab.DisplayName
			}
			active.Description = ab.FlavorText
			if active.Description == "" {
				active.Description = ab.ShortEffect
			}
		}
	}
	return active
}
