// Package provider talks to the upstream sources of static game data:
// PokeAPI for species, moves and abilities, and the sprite CDN for images.
package provider

import (
	"context"
	"errors"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// ErrNotFound is returned when upstream has no resource for the key.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("resource not found upstream")

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("upstream unavailable")

// ResourceSource is the interface for species/move/ability lookups.
// The PokeAPI client implements it; tests substitute fakes.
type ResourceSource interface {
	// Species resolves a species key: a numeric id, an
	// "id-{species}-form-{n}" composite key, or an override slug.
	Species(ctx context.Context, key string) (model.Species, error)
	Move(ctx context.Context, id string) (model.Move, error)
	Ability(ctx context.Context, id string) (model.Ability, error)
}

// ImageSource downloads sprite images.
type ImageSource interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// WarmStats tracks the results of a cache warm-up run.
type WarmStats struct {
	Total   int
	Fetched int
	Skipped int // Already cached or in flight
	Failed  int
	Errors  []string
}
