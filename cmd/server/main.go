// Package main is the entry point for the pokemmo-companion HTTP server.
// In Go, the `main` package with a `main()` function is what gets executed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/config"
	"github.com/fleveque/pokemmo-companion/internal/enrich"
	"github.com/fleveque/pokemmo-companion/internal/events"
	"github.com/fleveque/pokemmo-companion/internal/flow"
	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/provider"
	"github.com/fleveque/pokemmo-companion/internal/server"
	"github.com/fleveque/pokemmo-companion/internal/service"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

func main() {
	// os.Exit ensures the process exits with a non-zero code on failure.
	// We call run() separately so deferred cleanup functions execute properly
	// (deferred functions don't run when os.Exit is called directly).
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("POKEMMO_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// zap outputs JSON in production and human-readable lines in development.
	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync flushes buffered log entries. We intentionally ignore the error here
	// because Sync commonly fails on stdout/stderr.
	defer func() { _ = logger.Sync() }()

	for _, dir := range cfg.Storage.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	persister, closePersister, err := storage.NewPersister(cfg.Storage.CacheEngine, storage.PersisterOptions{
		DB:        db,
		CacheFile: cfg.Storage.CacheFile,
		RedisURL:  cfg.Storage.RedisURL,
	})
	if err != nil {
		return fmt.Errorf("creating cache persister: %w", err)
	}
	defer func() { _ = closePersister() }()

	dumps, err := storage.NewDumpStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("creating dump store: %w", err)
	}
	fs, err := storage.NewFileSystem(cfg.Storage.SpriteDir)
	if err != nil {
		return fmt.Errorf("creating sprite store: %w", err)
	}

	fetchLog := storage.NewFetchLogRepository(db)
	api := provider.NewPokeAPI(provider.PokeAPIConfig{
		BaseURL:           cfg.PokeAPI.BaseURL,
		Timeout:           cfg.PokeAPI.Timeout,
		RequestsPerSecond: cfg.PokeAPI.RequestsPerSecond,
		Burst:             cfg.PokeAPI.Burst,
		BreakerFailures:   cfg.PokeAPI.BreakerFailures,
		BreakerTimeout:    cfg.PokeAPI.BreakerTimeout,
	}, fetchLog, logger)

	// One fetcher per resource kind, shared by the proxy endpoints, the
	// orchestrators and the sprite service so they see the same in-flight set.
	ttl, workers := cfg.Cache.TTL, cfg.PokeAPI.MaxConcurrent
	speciesF := cache.NewFetcher(cache.New[model.Species](model.KindSpecies, persister, ttl, logger), api.Species, workers, logger)
	movesF := cache.NewFetcher(cache.New[model.Move](model.KindMove, persister, ttl, logger), api.Move, workers, logger)
	abilitiesF := cache.NewFetcher(cache.New[model.Ability](model.KindAbility, persister, ttl, logger), api.Ability, workers, logger)

	sprites := service.NewSpriteService(speciesF, api, fs, service.NewImageProcessor(fs), cfg.PokeAPI.SpriteBaseURL, logger)
	merger := enrich.NewMerger(cfg.PokeAPI.SpriteBaseURL, sprites)
	pipeline := enrich.NewPipeline(speciesF, movesF, abilitiesF, merger, logger)
	resources := service.NewResourceService(speciesF, movesF, abilitiesF, pipeline, logger)

	bus, err := newBus(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("creating event bus: %w", err)
	}
	defer bus.Close()

	states := service.NewStateService(dumps, bus, logger)
	manager := flow.NewManager(states, pipeline, bus, cfg.Flow.PollInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting orchestrators: %w", err)
	}
	defer manager.Stop()

	srv := server.New(cfg, server.Deps{
		States:    states,
		Resources: resources,
		Sprites:   sprites,
		Manager:   manager,
		FetchLog:  fetchLog,
		Breaker:   api,
	}, logger)

	// Graceful shutdown: listen for SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// select is like a switch for channels: it waits until one is ready.
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Cancelling first ends the open SSE streams, which Shutdown would
	// otherwise wait on until the timeout.
	cancel()
	manager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// newBus connects to NATS when a URL is configured so several server
// instances see each other's ingests; otherwise events stay in process.
func newBus(cfg config.EventsConfig, logger *zap.Logger) (events.Bus, error) {
	if cfg.NATSURL == "" {
		return events.NewLocalBus(logger), nil
	}
	bus, err := events.NewNATSBus(cfg.NATSURL, cfg.SubjectPrefix, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing ingest events over NATS", zap.String("url", cfg.NATSURL))
	return bus, nil
}
