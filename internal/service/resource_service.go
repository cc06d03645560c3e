package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/enrich"
	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/provider"
)

// ResourceService serves species, moves and abilities from the shared
// caches, going upstream only for keys nobody has fetched yet. It reads the
// same caches the enrichment pipeline fills, so a resource fetched for one
// consumer is never fetched again for another.
type ResourceService struct {
	species   *cache.Fetcher[model.Species]
	moves     *cache.Fetcher[model.Move]
	abilities *cache.Fetcher[model.Ability]
	pipeline  *enrich.Pipeline
	logger    *zap.Logger
}

// NewResourceService wires the service to the shared fetchers.
func NewResourceService(
	species *cache.Fetcher[model.Species],
	moves *cache.Fetcher[model.Move],
	abilities *cache.Fetcher[model.Ability],
	pipeline *enrich.Pipeline,
	logger *zap.Logger,
) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{species: species, moves: moves, abilities: abilities, pipeline: pipeline, logger: logger}
}

// Species returns one species by resource key (id, form key or slug).
func (s *ResourceService) Species(ctx context.Context, key string) (model.Species, error) {
	return lookup(ctx, s.species, key)
}

// Move returns one move by id.
func (s *ResourceService) Move(ctx context.Context, id string) (model.Move, error) {
	return lookup(ctx, s.moves, id)
}

// Ability returns one ability by id.
func (s *ResourceService) Ability(ctx context.Context, id string) (model.Ability, error) {
	return lookup(ctx, s.abilities, id)
}

// lookup maps every "could not resolve" outcome to ErrNotFound and keeps
// other failures (breaker open, timeouts) distinct for the caller to log.
//
// Go note: methods can't have type parameters, so the shared logic lives in
// a generic function instead.
func lookup[T any](ctx context.Context, f *cache.Fetcher[T], key string) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrNotFound
	}
	data, ok, err := f.Fetch(ctx, key)
	switch {
	case ok:
		return data, nil
	case err == nil, errors.Is(err, provider.ErrNotFound):
		return zero, fmt.Errorf("%w: %s", ErrNotFound, key)
	default:
		return zero, err
	}
}

// Warm prefetches every resource the records reference, the way enrichment
// would, and reports what happened.
func (s *ResourceService) Warm(ctx context.Context, records []model.RawRecord) provider.WarmStats {
	_, report := s.pipeline.Run(ctx, records)

	var stats provider.WarmStats
	for _, res := range []cache.Result{report.Species, report.Moves, report.Abilities} {
		stats.Fetched += len(res.Fetched)
		stats.Skipped += len(res.Skipped)
		stats.Failed += len(res.Failed)
		for _, key := range res.FailedKeys() {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s %s: %v", res.Kind, key, res.Failed[key]))
		}
	}
	stats.Total = stats.Fetched + stats.Skipped + stats.Failed

	s.logger.Info("cache warm-up finished",
		zap.Int("total", stats.Total),
		zap.Int("fetched", stats.Fetched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats
}

// CacheStats initializes the caches if needed and returns their stats in
// kind order.
func (s *ResourceService) CacheStats(ctx context.Context) []cache.Stats {
	s.species.Cache().Init(ctx)
	s.moves.Cache().Init(ctx)
	s.abilities.Cache().Init(ctx)
	return []cache.Stats{
		s.species.Cache().Stats(),
		s.moves.Cache().Stats(),
		s.abilities.Cache().Stats(),
	}
}

// ClearCache empties one kind's cache in memory and in the persister.
func (s *ResourceService) ClearCache(ctx context.Context, kind model.ResourceKind) error {
	var err error
	switch kind {
	case model.KindSpecies:
		err = s.species.Cache().Clear(ctx)
	case model.KindMove:
		err = s.moves.Cache().Clear(ctx)
	case model.KindAbility:
		err = s.abilities.Cache().Clear(ctx)
	default:
		return fmt.Errorf("unknown resource kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("clearing %s cache: %w", kind, err)
	}
	s.logger.Info("resource cache cleared", zap.String("kind", string(kind)))
	return nil
}
