package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

const pikachuPokemon = `{
  "id": 25, "name": "pikachu",
  "species": {"name": "pikachu", "url": "https://pokeapi.co/api/v2/pokemon-species/25/"},
  "types": [{"slot": 1, "type": {"name": "electric"}}],
  "stats": [
    {"base_stat": 35, "stat": {"name": "hp"}},
    {"base_stat": 55, "stat": {"name": "attack"}},
    {"base_stat": 40, "stat": {"name": "defense"}},
    {"base_stat": 50, "stat": {"name": "special-attack"}},
    {"base_stat": 50, "stat": {"name": "special-defense"}},
    {"base_stat": 90, "stat": {"name": "speed"}}
  ],
  "abilities": [
    {"ability": {"name": "static", "url": "https://pokeapi.co/api/v2/ability/9/"}, "is_hidden": false, "slot": 1},
    {"ability": {"name": "lightning-rod", "url": "https://pokeapi.co/api/v2/ability/31/"}, "is_hidden": true, "slot": 3}
  ],
  "sprites": {
    "front_default": "https://sprites.test/25.png",
    "front_shiny": "https://sprites.test/shiny/25.png",
    "versions": {"generation-v": {"black-white": {"animated": {
      "front_default": "https://sprites.test/anim/25.gif",
      "front_shiny": "https://sprites.test/anim/shiny/25.gif"
    }}}}
  }
}`

const pikachuSpecies = `{
  "id": 25, "name": "pikachu", "gender_rate": 4,
  "growth_rate": {"name": "medium"},
  "names": [{"name": "ピカチュウ", "language": {"name": "ja"}}, {"name": "Pikachu", "language": {"name": "en"}}],
  "flavor_text_entries": [
    {"flavor_text": "Old\ntext.", "language": {"name": "en"}},
    {"flavor_text": "When several of\nthese POKéMON\fgather, their\nelectricity could\nbuild.", "language": {"name": "en"}},
    {"flavor_text": "Texte.", "language": {"name": "fr"}}
  ],
  "varieties": [
    {"is_default": true, "pokemon": {"name": "pikachu"}},
    {"is_default": false, "pokemon": {"name": "pikachu-rock-star"}}
  ]
}`

const rockStarPokemon = `{
  "id": 10080, "name": "pikachu-rock-star",
  "species": {"name": "pikachu"},
  "types": [{"slot": 1, "type": {"name": "electric"}}],
  "stats": [{"base_stat": 35, "stat": {"name": "hp"}}],
  "abilities": [],
  "sprites": {"front_default": "https://sprites.test/10080.png"}
}`

const thunderboltMove = `{
  "id": 85, "name": "thunderbolt", "power": 90, "accuracy": 100, "pp": 15, "priority": 0,
  "type": {"name": "electric"}, "damage_class": {"name": "special"},
  "names": [{"name": "Thunderbolt", "language": {"name": "en"}}],
  "flavor_text_entries": [{"flavor_text": "A strong electric\nblast.", "language": {"name": "en"}}]
}`

const growlMove = `{
  "id": 45, "name": "growl", "power": null, "accuracy": 100, "pp": 40, "priority": 0,
  "type": {"name": "normal"}, "damage_class": {"name": "status"}, "names": [], "flavor_text_entries": []
}`

const staticAbility = `{
  "id": 9, "name": "static",
  "names": [{"name": "Static", "language": {"name": "en"}}],
  "flavor_text_entries": [{"flavor_text": "Contact may\ncause paralysis.", "language": {"name": "en"}}],
  "effect_entries": [{"effect": "long", "short_effect": "Has a 30% chance of paralyzing attacking Pokémon on contact.", "language": {"name": "en"}}]
}`

// fakePokeAPI serves canned PokeAPI documents and counts requests.
func fakePokeAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	docs := map[string]string{
		"/pokemon/25":                pikachuPokemon,
		"/pokemon/pikachu":           pikachuPokemon,
		"/pokemon/pikachu-rock-star": rockStarPokemon,
		"/pokemon-species/25":        pikachuSpecies,
		"/pokemon-species/pikachu":   pikachuSpecies,
		"/move/85":                   thunderboltMove,
		"/move/45":                   growlMove,
		"/ability/9":                 staticAbility,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/move/500" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(t *testing.T, baseURL string, failures uint32) (*PokeAPI, storage.FetchLogRepository) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := storage.NewFetchLogRepository(db)
	return NewPokeAPI(PokeAPIConfig{
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
		BreakerFailures:   failures,
		BreakerTimeout:    time.Minute,
	}, repo, nil), repo
}

func TestPokeAPI_SpeciesByID(t *testing.T) {
	srv, _ := fakePokeAPI(t)
	api, repo := newTestClient(t, srv.URL, 5)
	ctx := context.Background()

	sp, err := api.Species(ctx, "25")
	if err != nil {
		t.Fatalf("Species: %v", err)
	}
	if sp.ID != 25 || sp.SpeciesID != 25 || sp.DisplayName != "Pikachu" {
		t.Errorf("unexpected identity: %+v", sp)
	}
	if sp.BaseStats.Speed != 90 || sp.BaseStats.SpecialAttack != 50 {
		t.Errorf("unexpected base stats: %+v", sp.BaseStats)
	}
	if sp.GenderRate != 4 || sp.GrowthRate != "medium" {
		t.Errorf("unexpected gender/growth: %d %s", sp.GenderRate, sp.GrowthRate)
	}
	if sp.Sprites.Animated != "https://sprites.test/anim/25.gif" || sp.Sprites.ShinyStatic != "https://sprites.test/shiny/25.png" {
		t.Errorf("unexpected sprites: %+v", sp.Sprites)
	}
	if len(sp.Abilities) != 2 || !sp.Abilities[1].IsHidden {
		t.Errorf("unexpected abilities: %+v", sp.Abilities)
	}
	want := "When several of these POKéMON gather, their electricity could build."
	if sp.FlavorText != want {
		t.Errorf("flavor text = %q, want %q", sp.FlavorText, want)
	}

	count, err := repo.CountByKey(ctx, model.KindSpecies, "25")
	if err != nil || count != 1 {
		t.Errorf("expected one logged fetch, got %d (%v)", count, err)
	}
}

func TestPokeAPI_SpeciesFormAndSlug(t *testing.T) {
	srv, _ := fakePokeAPI(t)
	api, _ := newTestClient(t, srv.URL, 5)
	ctx := context.Background()

	form, err := api.Species(ctx, "id-25-form-1")
	if err != nil {
		t.Fatalf("form key: %v", err)
	}
	if form.ID != 10080 || form.SpeciesID != 25 || form.DisplayName != "Pikachu Rock Star" {
		t.Errorf("unexpected form species: %+v", form)
	}

	slug, err := api.Species(ctx, "pikachu-rock-star")
	if err != nil {
		t.Fatalf("slug: %v", err)
	}
	if slug.ID != 10080 {
		t.Errorf("expected slug to resolve the form pokemon, got %d", slug.ID)
	}

	if _, err := api.Species(ctx, "id-25-form-7"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing form, got %v", err)
	}
}

func TestPokeAPI_NotFound(t *testing.T) {
	srv, _ := fakePokeAPI(t)
	api, repo := newTestClient(t, srv.URL, 5)
	ctx := context.Background()

	_, err := api.Species(ctx, "99999")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	recent, err := repo.Recent(ctx, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("expected a logged fetch, got %v (%v)", recent, err)
	}
	if recent[0].Success || recent[0].StatusCode != http.StatusNotFound {
		t.Errorf("unexpected log row: %+v", recent[0])
	}
}

func TestPokeAPI_MoveAndAbility(t *testing.T) {
	srv, _ := fakePokeAPI(t)
	api, _ := newTestClient(t, srv.URL, 5)
	ctx := context.Background()

	mv, err := api.Move(ctx, "85")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if mv.Power == nil || *mv.Power != 90 || mv.DamageClass != "special" || mv.FlavorText != "A strong electric blast." {
		t.Errorf("unexpected move: %+v", mv)
	}

	growl, err := api.Move(ctx, "45")
	if err != nil {
		t.Fatalf("Move(45): %v", err)
	}
	if growl.Power != nil {
		t.Error("expected nil power for a status move")
	}
	if growl.DisplayName != "Growl" {
		t.Errorf("expected title-cased fallback name, got %q", growl.DisplayName)
	}

	ab, err := api.Ability(ctx, "9")
	if err != nil {
		t.Fatalf("Ability: %v", err)
	}
	if ab.DisplayName != "Static" || !strings.HasPrefix(ab.ShortEffect, "Has a 30% chance") {
		t.Errorf("unexpected ability: %+v", ab)
	}
}

func TestPokeAPI_BreakerOpensOnServerErrorsOnly(t *testing.T) {
	srv, hits := fakePokeAPI(t)
	api, _ := newTestClient(t, srv.URL, 2)
	ctx := context.Background()

	// 404s are answers, not failures.
	for i := 0; i < 3; i++ {
		if _, err := api.Move(ctx, "404404"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if api.BreakerState() != "closed" {
		t.Fatalf("expected breaker closed after 404s, got %s", api.BreakerState())
	}

	for i := 0; i < 2; i++ {
		if _, err := api.Move(ctx, "500"); err == nil {
			t.Fatal("expected server error")
		}
	}
	if api.BreakerState() != "open" {
		t.Fatalf("expected breaker open, got %s", api.BreakerState())
	}

	before := hits.Load()
	if _, err := api.Move(ctx, "85"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable while open, got %v", err)
	}
	if hits.Load() != before {
		t.Error("open breaker must not reach upstream")
	}
}

func TestPokeAPI_FetchImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(png)
	}))
	defer srv.Close()

	api, _ := newTestClient(t, srv.URL, 5)
	data, err := api.FetchImage(context.Background(), srv.URL+"/25.png")
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("unexpected bytes %x", data)
	}
	if _, err := api.FetchImage(context.Background(), srv.URL+"/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
