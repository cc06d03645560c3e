package model

// Gender is the resolved gender of a Pokemon.
type Gender string

const (
	GenderMale       Gender = "male"
	GenderFemale     Gender = "female"
	GenderGenderless Gender = "genderless"
)

// HPTier buckets the current HP percentage for display.
type HPTier string

const (
	HPGreen  HPTier = "green"
	HPYellow HPTier = "yellow"
	HPRed    HPTier = "red"
)

// Computed holds the values derived from a raw record plus its species.
type Computed struct {
	Gender      Gender    `json:"gender"`
	Stats       StatBlock `json:"stats"`
	DisplayName string    `json:"display_name"`
	HPPercent   float64   `json:"hp_percent"`
	HPTier      HPTier    `json:"hp_tier"`
	XPPercent   float64   `json:"xp_percent"`
	SpriteURL   string    `json:"sprite_url"`
	PerfectIVs  int       `json:"perfect_ivs"`
	IVTotal     int       `json:"iv_total"`
	EVTotal     int       `json:"ev_total"`
}

// MoveDetail is a cached move merged with the remaining PP from the record.
type MoveDetail struct {
	Move
	CurrentPP int `json:"current_pp"`
}

// ActiveAbility is the resolved ability of one Pokemon.
type ActiveAbility struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	IsHidden    bool   `json:"is_hidden"`
	Description string `json:"description,omitempty"`
}

// EnrichedRecord is a RawRecord plus whatever enrichment has resolved so
// far. Species and Computed stay nil until the species lookup succeeds, so
// consumers must treat every added field as optional.
type EnrichedRecord struct {
	RawRecord
	Species       *Species       `json:"species,omitempty"`
	Computed      *Computed      `json:"computed,omitempty"`
	MovesData     []MoveDetail   `json:"moves_data,omitempty"`
	ActiveAbility *ActiveAbility `json:"active_ability,omitempty"`
}

// Enriched reports whether species data has been merged in.
func (e *EnrichedRecord) Enriched() bool {
	return e.Species != nil && e.Computed != nil
}
