package provider

import (
	"strings"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// The structs below mirror only the parts of the PokeAPI responses we read.
// encoding/json ignores every field without a matching struct field.

type namedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type localizedName struct {
	Name     string        `json:"name"`
	Language namedResource `json:"language"`
}

type flavorTextEntry struct {
	FlavorText string        `json:"flavor_text"`
	Language   namedResource `json:"language"`
}

type effectEntry struct {
	Effect      string        `json:"effect"`
	ShortEffect string        `json:"short_effect"`
	Language    namedResource `json:"language"`
}

type spritePair struct {
	FrontDefault string `json:"front_default"`
	FrontShiny   string `json:"front_shiny"`
}

type pokemonResponse struct {
	ID      int           `json:"id"`
	Name    string        `json:"name"`
	Species namedResource `json:"species"`
	Types   []struct {
		Slot int           `json:"slot"`
		Type namedResource `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int           `json:"base_stat"`
		Stat     namedResource `json:"stat"`
	} `json:"stats"`
	Abilities []struct {
		Ability  namedResource `json:"ability"`
		IsHidden bool          `json:"is_hidden"`
		Slot     int           `json:"slot"`
	} `json:"abilities"`
	Sprites struct {
		spritePair
		Other struct {
			Showdown spritePair `json:"showdown"`
		} `json:"other"`
		Versions struct {
			GenerationV struct {
				BlackWhite struct {
					spritePair
					Animated spritePair `json:"animated"`
				} `json:"black-white"`
			} `json:"generation-v"`
		} `json:"versions"`
	} `json:"sprites"`
}

type speciesResponse struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	GenderRate        int               `json:"gender_rate"`
	GrowthRate        namedResource     `json:"growth_rate"`
	Names             []localizedName   `json:"names"`
	FlavorTextEntries []flavorTextEntry `json:"flavor_text_entries"`
	Varieties         []struct {
		IsDefault bool          `json:"is_default"`
		Pokemon   namedResource `json:"pokemon"`
	} `json:"varieties"`
}

type moveResponse struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Names             []localizedName   `json:"names"`
	Type              namedResource     `json:"type"`
	Power             *int              `json:"power"`
	Accuracy          *int              `json:"accuracy"`
	PP                int               `json:"pp"`
	Priority          int               `json:"priority"`
	DamageClass       namedResource     `json:"damage_class"`
	FlavorTextEntries []flavorTextEntry `json:"flavor_text_entries"`
}

type abilityResponse struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Names             []localizedName   `json:"names"`
	FlavorTextEntries []flavorTextEntry `json:"flavor_text_entries"`
	EffectEntries     []effectEntry     `json:"effect_entries"`
}

const english = "en"

// cleanText collapses the hard line breaks and form feeds PokeAPI keeps from
// the game text into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// englishName returns the English localized name, falling back to the
// title-cased slug.
func englishName(names []localizedName, slug string) string {
	for _, n := range names {
		if n.Language.Name == english && n.Name != "" {
			return n.Name
		}
	}
	return model.TitleCase(slug)
}

// englishFlavor returns the newest English flavor text. PokeAPI lists
// entries oldest game first.
func englishFlavor(entries []flavorTextEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Language.Name == english {
			return cleanText(entries[i].FlavorText)
		}
	}
	return ""
}

func englishShortEffect(entries []effectEntry) string {
	for _, e := range entries {
		if e.Language.Name == english {
			return cleanText(e.ShortEffect)
		}
	}
	return ""
}

func flattenSpecies(p *pokemonResponse, s *speciesResponse) model.Species {
	out := model.Species{
		ID:          p.ID,
		SpeciesID:   s.ID,
		Name:        p.Name,
		DisplayName: englishName(s.Names, s.Name),
		GenderRate:  s.GenderRate,
		GrowthRate:  s.GrowthRate.Name,
		FlavorText:  englishFlavor(s.FlavorTextEntries),
		Types:       make([]string, 0, len(p.Types)),
		Abilities:   make([]model.SpeciesAbility, 0, len(p.Abilities)),
	}
	// Alternate forms keep the species display name but their own slug.
	if p.Name != s.Name {
		out.DisplayName = model.TitleCase(p.Name)
	}

	for _, t := range p.Types {
		out.Types = append(out.Types, t.Type.Name)
	}
	for _, st := range p.Stats {
		switch st.Stat.Name {
		case "hp":
			out.BaseStats.HP = st.BaseStat
		case "attack":
			out.BaseStats.Attack = st.BaseStat
		case "defense":
			out.BaseStats.Defense = st.BaseStat
		case "special-attack":
			out.BaseStats.SpecialAttack = st.BaseStat
		case "special-defense":
			out.BaseStats.SpecialDefense = st.BaseStat
		case "speed":
			out.BaseStats.Speed = st.BaseStat
		}
	}
	for _, a := range p.Abilities {
		out.Abilities = append(out.Abilities, model.SpeciesAbility{
			Name:     a.Ability.Name,
			URL:      a.Ability.URL,
			IsHidden: a.IsHidden,
			Slot:     a.Slot,
		})
	}

	sp := p.Sprites
	out.Sprites = model.SpriteSet{
		Static:        sp.FrontDefault,
		ShinyStatic:   sp.FrontShiny,
		Animated:      firstNonEmpty(sp.Versions.GenerationV.BlackWhite.Animated.FrontDefault, sp.Other.Showdown.FrontDefault),
		ShinyAnimated: firstNonEmpty(sp.Versions.GenerationV.BlackWhite.Animated.FrontShiny, sp.Other.Showdown.FrontShiny),
	}
	return out
}

func flattenMove(m *moveResponse) model.Move {
	return model.Move{
		ID:          m.ID,
		Name:        m.Name,
		DisplayName: englishName(m.Names, m.Name),
		Type:        m.Type.Name,
		Power:       m.Power,
		Accuracy:    m.Accuracy,
		PP:          m.PP,
		Priority:    m.Priority,
		DamageClass: m.DamageClass.Name,
		FlavorText:  englishFlavor(m.FlavorTextEntries),
	}
}

func flattenAbility(a *abilityResponse) model.Ability {
	return model.Ability{
		ID:          a.ID,
		Name:        a.Name,
		DisplayName: englishName(a.Names, a.Name),
		FlavorText:  englishFlavor(a.FlavorTextEntries),
		ShortEffect: englishShortEffect(a.EffectEntries),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
