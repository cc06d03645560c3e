// Go testing basics:
// - Test files must end with _test.go (they're excluded from production builds)
// - Test functions must start with Test and take *testing.T
// - Run with: go test ./internal/storage/ -v
// - t.Fatal stops the test immediately; t.Error continues to find more failures
package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// setupTestDB creates a temporary SQLite database for testing.
// t.TempDir() is removed automatically when the test finishes.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rec(key, data string, at time.Time) model.CacheRecord {
	return model.CacheRecord{Key: key, Data: json.RawMessage(data), FetchedAt: at}
}

// persisterContract runs the same checks against every backend that can run
// without external services.
func persisterContract(t *testing.T, p cache.Persister) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := p.Save(ctx, model.KindMove, []model.CacheRecord{
		rec("1", `{"name":"pound"}`, now),
		rec("2", `{"name":"karate-chop"}`, now),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := p.Save(ctx, model.KindAbility, []model.CacheRecord{rec("65", `{"name":"overgrow"}`, now)}); err != nil {
		t.Fatalf("save ability: %v", err)
	}

	// Upsert replaces the existing row instead of duplicating it.
	later := now.Add(time.Minute)
	if err := p.Save(ctx, model.KindMove, []model.CacheRecord{rec("1", `{"name":"pound-v2"}`, later)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	moves, err := p.Load(ctx, model.KindMove)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("expected 2 move records, got %d", len(moves))
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].Key < moves[j].Key })
	if string(moves[0].Data) != `{"name":"pound-v2"}` {
		t.Errorf("expected upserted data, got %s", moves[0].Data)
	}
	if !moves[0].FetchedAt.Equal(later) {
		t.Errorf("expected fetched_at %v, got %v", later, moves[0].FetchedAt)
	}

	if err := p.Clear(ctx, model.KindMove); err != nil {
		t.Fatalf("clear: %v", err)
	}
	moves, err = p.Load(ctx, model.KindMove)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if len(moves) != 0 {
		t.Errorf("expected no moves after clear, got %d", len(moves))
	}

	abilities, err := p.Load(ctx, model.KindAbility)
	if err != nil {
		t.Fatalf("load abilities: %v", err)
	}
	if len(abilities) != 1 {
		t.Errorf("clearing moves must not touch abilities, got %d", len(abilities))
	}
}

func TestSQLitePersister(t *testing.T) {
	persisterContract(t, NewSQLitePersister(setupTestDB(t)))
}

func TestJSONFilePersister(t *testing.T) {
	persisterContract(t, NewJSONFilePersister(filepath.Join(t.TempDir(), "cache", "resources.json")))
}

func TestMemoryPersister(t *testing.T) {
	persisterContract(t, NewMemoryPersister())
}

func TestJSONFilePersister_MissingFileLoadsEmpty(t *testing.T) {
	p := NewJSONFilePersister(filepath.Join(t.TempDir(), "nope.json"))
	records, err := p.Load(context.Background(), model.KindSpecies)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty load, got %d", len(records))
	}
}

func TestNewPersister(t *testing.T) {
	db := setupTestDB(t)
	tests := []struct {
		engine  string
		opts    PersisterOptions
		wantErr bool
	}{
		{"", PersisterOptions{DB: db}, false},
		{EngineSQLite, PersisterOptions{}, true},
		{EngineJSON, PersisterOptions{CacheFile: filepath.Join(t.TempDir(), "c.json")}, false},
		{EngineJSON, PersisterOptions{}, true},
		{EngineMemory, PersisterOptions{}, false},
		// ParseURL does not dial, so this succeeds without a server.
		{EngineRedis, PersisterOptions{RedisURL: "redis://localhost:6379/0"}, false},
		{EngineRedis, PersisterOptions{RedisURL: "::bad::"}, true},
		{"etcd", PersisterOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			p, closeFn, err := NewPersister(tt.engine, tt.opts)
			if closeFn == nil {
				t.Fatal("closer must never be nil")
			}
			defer closeFn()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil || p == nil {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestCacheOverSQLite_SurvivesRestart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := cache.New[model.Move](model.KindMove, NewSQLitePersister(db), time.Hour, nil)
	first.Init(ctx)
	first.Put(ctx, "33", model.Move{ID: 33, Name: "tackle", PP: 35})

	second := cache.New[model.Move](model.KindMove, NewSQLitePersister(db), time.Hour, nil)
	second.Init(ctx)
	got, ok := second.Lookup("33")
	if !ok {
		t.Fatal("expected entry to be loaded from sqlite")
	}
	if got.Name != "tackle" || got.PP != 35 {
		t.Errorf("unexpected move: %+v", got)
	}
}

func TestFetchLogRepository(t *testing.T) {
	repo := NewFetchLogRepository(setupTestDB(t))
	ctx := context.Background()

	fetches := []model.UpstreamFetch{
		{Kind: model.KindSpecies, Key: "25", Success: true, StatusCode: 200, DurationMs: 120},
		{Kind: model.KindSpecies, Key: "25", Success: true, StatusCode: 200, DurationMs: 80},
		{Kind: model.KindSpecies, Key: "99999", Success: false, StatusCode: 404, DurationMs: 40},
		{Kind: model.KindMove, Key: "1", Success: true, StatusCode: 200, DurationMs: 50},
	}
	for i := range fetches {
		if err := repo.Create(ctx, &fetches[i]); err != nil {
			t.Fatalf("creating fetch %d: %v", i, err)
		}
		if fetches[i].ID == 0 {
			t.Error("expected ID to be set after create")
		}
	}

	count, err := repo.CountByKey(ctx, model.KindSpecies, "25")
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 calls for species 25, got %d", count)
	}

	stats, err := repo.StatsByKind(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 kinds, got %d", len(stats))
	}
	// Ordered by kind: move < species.
	if stats[1].Kind != model.KindSpecies || stats[1].Total != 3 || stats[1].Failed != 1 {
		t.Errorf("unexpected species stats: %+v", stats[1])
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Kind != model.KindMove {
		t.Errorf("expected newest first, got %+v", recent)
	}
}
