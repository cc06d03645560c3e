// Package config handles application configuration using Viper.
// Viper merges defaults, a YAML file and environment variables, in that
// priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PokeAPI   PokeAPIConfig   `mapstructure:"pokeapi"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Flow      FlowConfig      `mapstructure:"flow"`
	Events    EventsConfig    `mapstructure:"events"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig locates everything the service writes to disk.
// CacheEngine is one of sqlite, json, memory or redis.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	DatabasePath string `mapstructure:"database_path"`
	SpriteDir    string `mapstructure:"sprite_dir"`
	CacheEngine  string `mapstructure:"cache_engine"`
	CacheFile    string `mapstructure:"cache_file"`
	RedisURL     string `mapstructure:"redis_url"`
}

type PokeAPIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	SpriteBaseURL     string        `mapstructure:"sprite_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
}

// CacheConfig controls resource cache expiry. A zero TTL keeps entries
// forever; PokeAPI data for a given id does not change.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type FlowConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// EventsConfig selects the ingest event bus. An empty NATSURL keeps events
// in process.
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type AuthConfig struct {
	IngestKeys []string `mapstructure:"ingest_keys"`
	AdminKeys  []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value, and callers must check them.
// This pattern replaces try/catch: if err != nil { handle it }.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults. These apply when neither file nor env provides a value.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.data_dir", "./storage/data")
	v.SetDefault("storage.database_path", "./storage/pokemmo.db")
	v.SetDefault("storage.sprite_dir", "./storage/sprites")
	v.SetDefault("storage.cache_engine", "sqlite")
	v.SetDefault("storage.cache_file", "./storage/cache.json")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("pokeapi.base_url", "https://pokeapi.co/api/v2")
	v.SetDefault("pokeapi.sprite_base_url", "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon")
	v.SetDefault("pokeapi.timeout", "10s")
	v.SetDefault("pokeapi.requests_per_second", 20)
	v.SetDefault("pokeapi.burst", 10)
	v.SetDefault("pokeapi.max_concurrent", 8)
	v.SetDefault("pokeapi.breaker_failures", 5)
	v.SetDefault("pokeapi.breaker_timeout", "30s")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("flow.poll_interval", "3s")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "pokemmo.ingest")
	v.SetDefault("auth.ingest_keys", []string{})
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found": defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// POKEMMO_ prefix + nested keys: POKEMMO_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("POKEMMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into our Config struct. Viper's default decode hooks turn
	// "3s" into a time.Duration and comma-separated env values into slices.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.CacheEngine {
	case "sqlite", "json", "memory", "redis":
	default:
		return fmt.Errorf("storage.cache_engine: unsupported engine %q", c.Storage.CacheEngine)
	}
	if c.Flow.PollInterval <= 0 {
		return fmt.Errorf("flow.poll_interval must be positive, got %s", c.Flow.PollInterval)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
// This is a method on ServerConfig: Go attaches methods to types via receiver syntax.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Dirs lists the directories the server creates at startup.
func (s StorageConfig) Dirs() []string {
	dirs := []string{s.DataDir, s.SpriteDir, filepath.Dir(s.DatabasePath)}
	if s.CacheEngine == "json" {
		dirs = append(dirs, filepath.Dir(s.CacheFile))
	}
	return dirs
}
