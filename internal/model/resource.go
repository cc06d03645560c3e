package model

import (
	"encoding/json"
	"time"
)

// ResourceKind identifies one family of external lookups. Each kind gets its
// own cache and its own slice of persisted entries.
type ResourceKind string

const (
	KindSpecies ResourceKind = "species"
	KindMove    ResourceKind = "move"
	KindAbility ResourceKind = "ability"
)

// AllKinds is the ordered list of resource kinds.
var AllKinds = []ResourceKind{KindSpecies, KindMove, KindAbility}

// ValidKind checks if a string is a valid ResourceKind.
func ValidKind(s string) bool {
	for _, k := range AllKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// SpriteSet holds the sprite URLs PokeAPI publishes for a species.
// Any of them may be empty.
type SpriteSet struct {
	Static        string `json:"static,omitempty"`
	Animated      string `json:"animated,omitempty"`
	ShinyStatic   string `json:"shiny_static,omitempty"`
	ShinyAnimated string `json:"shiny_animated,omitempty"`
}

// SpeciesAbility is one entry of a species' ability list. URL embeds the
// numeric ability id (".../ability/65/").
type SpeciesAbility struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	IsHidden bool   `json:"is_hidden"`
	Slot     int    `json:"slot"`
}

// Species is the flattened species/pokemon data the dashboard needs.
type Species struct {
	ID          int              `json:"id"`
	SpeciesID   int              `json:"species_id"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Sprites     SpriteSet        `json:"sprites"`
	Types       []string         `json:"types"`
	BaseStats   StatBlock        `json:"base_stats"`
	GenderRate  int              `json:"gender_rate"`
	Abilities   []SpeciesAbility `json:"abilities"`
	GrowthRate  string           `json:"growth_rate"`
	FlavorText  string           `json:"flavor_text,omitempty"`
}

// Move is the flattened move data. Power and Accuracy are nil for moves
// that have none (status moves, never-miss moves).
type Move struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Power       *int   `json:"power"`
	Accuracy    *int   `json:"accuracy"`
	PP          int    `json:"pp"`
	Priority    int    `json:"priority"`
	DamageClass string `json:"damage_class"`
	FlavorText  string `json:"flavor_text,omitempty"`
}

// Ability is the flattened ability data.
type Ability struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	FlavorText  string `json:"flavor_text,omitempty"`
	ShortEffect string `json:"short_effect,omitempty"`
}

// CacheRecord is the persisted form of one cache entry. Data is the JSON
// encoding of the cached value so persisters stay type-agnostic.
type CacheRecord struct {
	Key       string          `db:"cache_key" json:"key"`
	Data      json.RawMessage `db:"data" json:"data"`
	FetchedAt time.Time       `db:"fetched_at" json:"fetched_at"`
}

// UpstreamFetch tracks each call to PokeAPI, for the admin stats endpoint.
type UpstreamFetch struct {
	ID         int64        `db:"id" json:"id"`
	Kind       ResourceKind `db:"kind" json:"kind"`
	Key        string       `db:"resource_key" json:"key"`
	Success    bool         `db:"success" json:"success"`
	StatusCode int          `db:"status_code" json:"status_code"`
	DurationMs int64        `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
