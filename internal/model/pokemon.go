// Package model defines the core data types for the companion service.
// Struct tags map fields for JSON (`json:"..."`), request validation
// (`binding:"..."`, read by gin's validator) and sqlx scanning (`db:"..."`).
package model

// ContainerType names a Pokemon storage group captured by the agent.
type ContainerType string

const (
	ContainerParty   ContainerType = "party"
	ContainerDaycare ContainerType = "daycare"
	ContainerPCBoxes ContainerType = "pc_boxes"
)

// AllContainers is the ordered list of containers for iteration.
var AllContainers = []ContainerType{ContainerParty, ContainerDaycare, ContainerPCBoxes}

// ValidContainer checks if a string names a known container.
func ValidContainer(s string) bool {
	for _, c := range AllContainers {
		if string(c) == s {
			return true
		}
	}
	return false
}

// StatBlock holds one value per stat. It is used for IVs, EVs, base stats
// and calculated stats alike.
type StatBlock struct {
	HP             int `json:"hp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	SpecialAttack  int `json:"special_attack"`
	SpecialDefense int `json:"special_defense"`
	Speed          int `json:"speed"`
}

// Values returns the stats in canonical order: hp, atk, def, spa, spd, spe.
func (s StatBlock) Values() [6]int {
	return [6]int{s.HP, s.Attack, s.Defense, s.SpecialAttack, s.SpecialDefense, s.Speed}
}

// Sum adds up all six stats.
func (s StatBlock) Sum() int {
	total := 0
	for _, v := range s.Values() {
		total += v
	}
	return total
}

// MoveRef is a move slot as captured: the move id and its remaining PP.
type MoveRef struct {
	MoveID int `json:"move_id" binding:"min=1"`
	PP     int `json:"pp" binding:"min=0"`
}

// AbilityRef points at the active ability. ID is sometimes missing (0) for
// hidden abilities in captured data; Slot is the fallback.
type AbilityRef struct {
	ID   int `json:"id" binding:"min=0"`
	Slot int `json:"slot" binding:"min=0,max=3"`
}

// RawRecord is one Pokemon's captured state. It is produced by the capture
// agent and never modified by this service.
type RawRecord struct {
	SpeciesID        int        `json:"species_id" binding:"required,min=1"`
	FormID           int        `json:"form_id" binding:"min=0"`
	SpeciesSlug      string     `json:"species_slug,omitempty"`
	Nickname         string     `json:"nickname,omitempty"`
	PersonalityValue uint32     `json:"personality_value"`
	IsShiny          bool       `json:"is_shiny"`
	IsAlpha          bool       `json:"is_alpha"`
	Level            int        `json:"level" binding:"required,min=1,max=100"`
	Nature           string     `json:"nature" binding:"omitempty,nature"`
	CurrentHP        int        `json:"current_hp" binding:"min=0"`
	XP               int        `json:"xp" binding:"min=0"`
	Happiness        int        `json:"happiness" binding:"min=0,max=255"`
	Status           string     `json:"status,omitempty"`
	IVs              StatBlock  `json:"ivs"`
	EVs              StatBlock  `json:"evs"`
	Moves            []MoveRef  `json:"moves" binding:"max=4,dive"`
	Ability          AbilityRef `json:"ability"`
	Slot             int        `json:"slot" binding:"min=0"`
}

// Source describes where a snapshot was captured.
type Source struct {
	PacketClass   string        `json:"packet_class" binding:"required"`
	ContainerID   int           `json:"container_id" binding:"min=0"`
	ContainerType ContainerType `json:"container_type" binding:"required,oneof=party daycare pc_boxes"`
}

// Box is one PC box inside a pc_boxes snapshot.
type Box struct {
	Index   int         `json:"box_index" binding:"min=0"`
	Name    string      `json:"name,omitempty"`
	Pokemon []RawRecord `json:"pokemon" binding:"dive"`
}

// Envelope wraps a captured snapshot plus its metadata. PC-box snapshots
// carry Boxes; the other containers carry Pokemon.
type Envelope struct {
	SchemaVersion int         `json:"schema_version" binding:"required,min=1"`
	CapturedAtMs  int64       `json:"captured_at_ms" binding:"required,gt=0"`
	Source        Source      `json:"source"`
	Pokemon       []RawRecord `json:"pokemon" binding:"dive"`
	Boxes         []Box       `json:"boxes,omitempty" binding:"omitempty,dive"`
}

// FindBox returns the box with the given index, if present.
func (e *Envelope) FindBox(index int) (*Box, bool) {
	for i := range e.Boxes {
		if e.Boxes[i].Index == index {
			return &e.Boxes[i], true
		}
	}
	return nil, false
}

// EmptyEnvelope builds the snapshot returned for a container that has never
// been ingested.
func EmptyEnvelope(container ContainerType, nowMs int64) *Envelope {
	return &Envelope{
		SchemaVersion: 1,
		CapturedAtMs:  nowMs,
		Source:        Source{ContainerType: container},
		Pokemon:       []RawRecord{},
	}
}
