package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// KindError reports a resource kind whose every attempted lookup failed in
// one pipeline run.
type KindError struct {
	Kind   model.ResourceKind
	Failed []string
}

func (e *KindError) Error() string {
	return fmt.Sprintf("all %s lookups failed (%s)", e.Kind, strings.Join(e.Failed, ", "))
}

// Report collects the batch results of one pipeline run.
type Report struct {
	Species   cache.Result
	Moves     cache.Result
	Abilities cache.Result
}

// Err returns nil unless some kind failed for every key it attempted.
// Individual key failures alone are not an error: the records simply stay
// partially enriched and the keys are retried on the next run.
func (r Report) Err() error {
	var errs []error
	for _, res := range []cache.Result{r.Species, r.Moves, r.Abilities} {
		if res.AllFailed() {
			errs = append(errs, &KindError{Kind: res.Kind, Failed: res.FailedKeys()})
		}
	}
	return errors.Join(errs...)
}

// Pipeline sequences the batch fetches for a set of records and merges the
// results. Species go first because ability keys may depend on the species
// ability list; moves and abilities then load in parallel.
type Pipeline struct {
	species   *cache.Fetcher[model.Species]
	moves     *cache.Fetcher[model.Move]
	abilities *cache.Fetcher[model.Ability]
	merger    *Merger
	logger    *zap.Logger
}

// NewPipeline wires the three fetchers and a merger together.
func NewPipeline(
	species *cache.Fetcher[model.Species],
	moves *cache.Fetcher[model.Move],
	abilities *cache.Fetcher[model.Ability],
	merger *Merger,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{species: species, moves: moves, abilities: abilities, merger: merger, logger: logger}
}

// Run fetches every missing resource the records need, then merges.
// Keys another consumer is already fetching are awaited rather than
// requested again.
func (p *Pipeline) Run(ctx context.Context, records []model.RawRecord) ([]model.EnrichedRecord, Report) {
	var report Report

	speciesKeys := make([]string, 0, len(records))
	for _, rec := range records {
		speciesKeys = append(speciesKeys, SpeciesKey(rec))
	}
	report.Species = p.species.FetchMissing(ctx, speciesKeys)
	p.await(ctx, p.species.Cache().Await, speciesKeys)

	var moveKeys, abilityKeys []string
	for _, rec := range records {
		for _, ref := range rec.Moves {
			moveKeys = append(moveKeys, MoveKey(ref.MoveID))
		}
		sp, ok := p.species.Cache().Lookup(SpeciesKey(rec))
		var spPtr *model.Species
		if ok {
			spPtr = &sp
		}
		if key, ok := abilityKeyFor(rec, spPtr); ok {
			abilityKeys = append(abilityKeys, key)
		}
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		report.Moves = p.moves.FetchMissing(ctx, moveKeys)
		p.await(ctx, p.moves.Cache().Await, moveKeys)
	})
	wg.Go(func() {
		report.Abilities = p.abilities.FetchMissing(ctx, abilityKeys)
		p.await(ctx, p.abilities.Cache().Await, abilityKeys)
	})
	wg.Wait()

	if err := report.Err(); err != nil {
		p.logger.Warn("enrichment incomplete", zap.Error(err))
	}
	return p.Merge(records), report
}

// Merge enriches records from whatever the caches hold right now, without
// fetching anything.
func (p *Pipeline) Merge(records []model.RawRecord) []model.EnrichedRecord {
	out := make([]model.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		var spPtr *model.Species
		if sp, ok := p.species.Cache().Lookup(SpeciesKey(rec)); ok {
			spPtr = &sp
		}
		out = append(out, p.merger.Enrich(rec, spPtr, p.moves.Cache(), p.abilities.Cache()))
	}
	return out
}

// Keys lists the distinct resource keys records reference, per kind. The
// CLI warm command uses it. Ability keys that depend on species data are
// only known once that species is cached.
func (p *Pipeline) Keys(records []model.RawRecord) map[model.ResourceKind][]string {
	seen := map[model.ResourceKind]map[string]struct{}{
		model.KindSpecies: {}, model.KindMove: {}, model.KindAbility: {},
	}
	out := make(map[model.ResourceKind][]string)
	add := func(kind model.ResourceKind, key string) {
		if _, dup := seen[kind][key]; dup {
			return
		}
		seen[kind][key] = struct{}{}
		out[kind] = append(out[kind], key)
	}
	for _, rec := range records {
		add(model.KindSpecies, SpeciesKey(rec))
		for _, ref := range rec.Moves {
			add(model.KindMove, MoveKey(ref.MoveID))
		}
		var spPtr *model.Species
		if sp, ok := p.species.Cache().Lookup(SpeciesKey(rec)); ok {
			spPtr = &sp
		}
		if key, ok := abilityKeyFor(rec, spPtr); ok {
			add(model.KindAbility, key)
		}
	}
	return out
}

func (p *Pipeline) await(ctx context.Context, wait func(context.Context, ...string) error, keys []string) {
	if err := wait(ctx, keys...); err != nil {
		p.logger.Debug("stopped waiting for in-flight lookups", zap.Error(err))
	}
}
