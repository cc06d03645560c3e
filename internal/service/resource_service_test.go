package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/enrich"
	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/provider"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

// fakeSource answers species 25, move 85 and ability 9; key "500" is an
// upstream outage and everything else is unknown.
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) hit(kind, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[kind+"/"+key]++
	if key == "500" {
		return provider.ErrUnavailable
	}
	return nil
}

func (f *fakeSource) count(kind, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind+"/"+key]
}

func (f *fakeSource) Species(_ context.Context, key string) (model.Species, error) {
	if err := f.hit("species", key); err != nil {
		return model.Species{}, err
	}
	if key != "25" {
		return model.Species{}, fmt.Errorf("%w: species %s", provider.ErrNotFound, key)
	}
	return model.Species{
		ID: 25, SpeciesID: 25, Name: "pikachu", DisplayName: "Pikachu",
		Sprites:   model.SpriteSet{Static: "https://sprites.test/25.png", ShinyStatic: "https://sprites.test/shiny/25.png"},
		Abilities: []model.SpeciesAbility{{Name: "static", URL: "https://pokeapi.co/api/v2/ability/9/", Slot: 1}},
	}, nil
}

func (f *fakeSource) Move(_ context.Context, id string) (model.Move, error) {
	if err := f.hit("move", id); err != nil {
		return model.Move{}, err
	}
	if id != "85" {
		return model.Move{}, provider.ErrNotFound
	}
	return model.Move{ID: 85, Name: "thunderbolt", DisplayName: "Thunderbolt", PP: 15}, nil
}

func (f *fakeSource) Ability(_ context.Context, id string) (model.Ability, error) {
	if err := f.hit("ability", id); err != nil {
		return model.Ability{}, err
	}
	if id != "9" {
		return model.Ability{}, provider.ErrNotFound
	}
	return model.Ability{ID: 9, Name: "static", DisplayName: "Static"}, nil
}

type testFetchers struct {
	species   *cache.Fetcher[model.Species]
	moves     *cache.Fetcher[model.Move]
	abilities *cache.Fetcher[model.Ability]
}

func newTestFetchers(src provider.ResourceSource) testFetchers {
	p := storage.NewMemoryPersister()
	return testFetchers{
		species:   cache.NewFetcher(cache.New[model.Species](model.KindSpecies, p, 0, nil), src.Species, 4, nil),
		moves:     cache.NewFetcher(cache.New[model.Move](model.KindMove, p, 0, nil), src.Move, 4, nil),
		abilities: cache.NewFetcher(cache.New[model.Ability](model.KindAbility, p, 0, nil), src.Ability, 4, nil),
	}
}

func newTestResourceService(src *fakeSource) *ResourceService {
	f := newTestFetchers(src)
	pipeline := enrich.NewPipeline(f.species, f.moves, f.abilities, enrich.NewMerger("", nil), nil)
	return NewResourceService(f.species, f.moves, f.abilities, pipeline, nil)
}

func TestResourceService_CacheFirst(t *testing.T) {
	src := &fakeSource{}
	svc := newTestResourceService(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sp, err := svc.Species(ctx, "25")
		if err != nil {
			t.Fatalf("Species: %v", err)
		}
		if sp.DisplayName != "Pikachu" {
			t.Errorf("display name = %q", sp.DisplayName)
		}
	}
	if n := src.count("species", "25"); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	mv, err := svc.Move(ctx, "85")
	if err != nil || mv.PP != 15 {
		t.Errorf("Move = %+v, %v", mv, err)
	}
	ab, err := svc.Ability(ctx, "9")
	if err != nil || ab.Name != "static" {
		t.Errorf("Ability = %+v, %v", ab, err)
	}
}

func TestResourceService_NotFoundAndUnavailable(t *testing.T) {
	src := &fakeSource{}
	svc := newTestResourceService(src)
	ctx := context.Background()

	if _, err := svc.Species(ctx, "9999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Species(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty key, got %v", err)
	}

	_, err := svc.Move(ctx, "500")
	if errors.Is(err, ErrNotFound) || !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable to pass through, got %v", err)
	}

	// Failures are not cached: the next call goes upstream again.
	svc.Species(ctx, "9999")
	if n := src.count("species", "9999"); n != 2 {
		t.Errorf("upstream calls for missing key = %d, want 2", n)
	}
}

func TestResourceService_WarmAndStats(t *testing.T) {
	src := &fakeSource{}
	svc := newTestResourceService(src)
	ctx := context.Background()

	records := []model.RawRecord{
		{SpeciesID: 25, Level: 50, Moves: []model.MoveRef{{MoveID: 85, PP: 15}, {MoveID: 86, PP: 20}}, Ability: model.AbilityRef{ID: 9, Slot: 1}},
		{SpeciesID: 25, Level: 12, Moves: []model.MoveRef{{MoveID: 85, PP: 3}}},
	}

	stats := svc.Warm(ctx, records)
	if stats.Fetched != 3 || stats.Failed != 1 || stats.Total != 4 {
		t.Errorf("unexpected warm stats: %+v", stats)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("expected one error line, got %v", stats.Errors)
	}

	again := svc.Warm(ctx, records)
	if again.Fetched != 0 || again.Skipped != 3 || again.Failed != 1 {
		t.Errorf("second warm should only retry the failed key: %+v", again)
	}

	byKind := map[model.ResourceKind]cache.Stats{}
	for _, st := range svc.CacheStats(ctx) {
		byKind[st.Kind] = st
	}
	if byKind[model.KindSpecies].Entries != 1 || byKind[model.KindMove].Entries != 1 || byKind[model.KindAbility].Entries != 1 {
		t.Errorf("unexpected cache stats: %+v", byKind)
	}

	if err := svc.ClearCache(ctx, model.KindMove); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	for _, st := range svc.CacheStats(ctx) {
		if st.Kind == model.KindMove && st.Entries != 0 {
			t.Errorf("move cache not cleared: %+v", st)
		}
	}
	if err := svc.ClearCache(ctx, "berry"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

// fakeImages serves canned PNGs by URL and counts downloads.
type fakeImages struct {
	mu     sync.Mutex
	images map[string][]byte
	calls  map[string]int
}

func (f *fakeImages) FetchImage(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	if data, ok := f.images[url]; ok {
		return data, nil
	}
	return nil, provider.ErrNotFound
}

func TestSpriteService_FallbackChain(t *testing.T) {
	png := createTestPNG(96, 96, color.RGBA{R: 250, G: 210, B: 0, A: 255})
	base := "https://sprites.test/pokemon"
	images := &fakeImages{images: map[string][]byte{
		"https://sprites.test/25.png":          png,
		enrich.StaticSpriteURL(base, 7, false): png,
		enrich.StaticSpriteURL(base, 25, true): png,
	}}
	f := newTestFetchers(&fakeSource{})
	fs := newTestFS(t)
	svc := NewSpriteService(f.species, images, fs, NewImageProcessor(fs), base, nil)
	ctx := context.Background()

	t.Run("species sprite then disk", func(t *testing.T) {
		sp, err := svc.Sprite(ctx, "25", false, model.SizeM)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Source != SpriteFromSpecies {
			t.Errorf("source = %s, want species", sp.Source)
		}
		sp, err = svc.Sprite(ctx, "25", false, model.SizeXL)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Source != SpriteFromDisk {
			t.Errorf("second request source = %s, want disk", sp.Source)
		}
	})

	t.Run("broken species sprite falls back to template", func(t *testing.T) {
		sp, err := svc.Sprite(ctx, "25", true, model.SizeS)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Source != SpriteFromTemplate {
			t.Errorf("source = %s, want template", sp.Source)
		}
		if !svc.IsBroken("https://sprites.test/shiny/25.png") {
			t.Error("failed species sprite should be marked broken")
		}
	})

	t.Run("unknown species uses template by id", func(t *testing.T) {
		sp, err := svc.Sprite(ctx, "7", false, model.SizeS)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Source != SpriteFromTemplate {
			t.Errorf("source = %s, want template", sp.Source)
		}
	})

	t.Run("nothing works yields placeholder", func(t *testing.T) {
		sp, err := svc.Sprite(ctx, "151", false, model.SizeXS)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Source != SpriteFromPlaceholder || len(sp.Data) == 0 {
			t.Errorf("expected placeholder, got %s", sp.Source)
		}
		broken := enrich.StaticSpriteURL(base, 151, false)
		if !svc.IsBroken(broken) {
			t.Errorf("template url %s should be marked broken", broken)
		}

		// Broken URLs are not retried.
		svc.Sprite(ctx, "151", false, model.SizeXS)
		if n := images.calls[broken]; n != 1 {
			t.Errorf("broken url downloaded %d times, want 1", n)
		}
	})

	if _, err := svc.Sprite(ctx, "25", false, "huge"); err == nil {
		t.Error("expected error for invalid size")
	}
}
