package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("address = %s", cfg.Server.Address())
	}
	if cfg.Storage.CacheEngine != "sqlite" {
		t.Errorf("cache engine = %s", cfg.Storage.CacheEngine)
	}
	if cfg.Flow.PollInterval != 3*time.Second {
		t.Errorf("poll interval = %s", cfg.Flow.PollInterval)
	}
	if cfg.PokeAPI.Timeout != 10*time.Second || cfg.PokeAPI.BreakerFailures != 5 {
		t.Errorf("unexpected pokeapi defaults: %+v", cfg.PokeAPI)
	}
	if cfg.Cache.TTL != 0 {
		t.Errorf("cache ttl = %s, want 0", cfg.Cache.TTL)
	}
	if len(cfg.Auth.IngestKeys) != 0 || len(cfg.Auth.AdminKeys) != 0 {
		t.Errorf("auth should be open by default: %+v", cfg.Auth)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
storage:
  cache_engine: json
  cache_file: /tmp/pokemmo/cache.json
flow:
  poll_interval: 500ms
cache:
  ttl: 24h
auth:
  admin_keys: ["root"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POKEMMO_SERVER_PORT", "9100")
	t.Setenv("POKEMMO_AUTH_INGEST_KEYS", "agent-a,agent-b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("env should win over file: port = %d", cfg.Server.Port)
	}
	if cfg.Storage.CacheEngine != "json" {
		t.Errorf("cache engine = %s", cfg.Storage.CacheEngine)
	}
	if cfg.Flow.PollInterval != 500*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.Flow.PollInterval)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("ttl = %s", cfg.Cache.TTL)
	}
	if len(cfg.Auth.AdminKeys) != 1 || cfg.Auth.AdminKeys[0] != "root" {
		t.Errorf("admin keys = %v", cfg.Auth.AdminKeys)
	}
	if len(cfg.Auth.IngestKeys) != 2 || cfg.Auth.IngestKeys[1] != "agent-b" {
		t.Errorf("ingest keys = %v", cfg.Auth.IngestKeys)
	}

	dirs := cfg.Storage.Dirs()
	if dirs[len(dirs)-1] != "/tmp/pokemmo" {
		t.Errorf("json engine should add the cache file dir: %v", dirs)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown engine", map[string]string{"POKEMMO_STORAGE_CACHE_ENGINE": "mongo"}},
		{"zero poll interval", map[string]string{"POKEMMO_FLOW_POLL_INTERVAL": "0s"}},
		{"negative ttl", map[string]string{"POKEMMO_CACHE_TTL": "-1h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}
