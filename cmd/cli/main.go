// Package main provides the CLI tool for pokemmo-companion.
// Uses Cobra for command parsing. Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/cli warm --source all
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/config"
	"github.com/fleveque/pokemmo-companion/internal/enrich"
	"github.com/fleveque/pokemmo-companion/internal/events"
	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/provider"
	"github.com/fleveque/pokemmo-companion/internal/service"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// pokemmo-cli warm --source party
// pokemmo-cli cache stats
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pokemmo-cli",
		Short: "PokeMMO companion CLI tools",
	}

	root.AddCommand(warmCmd(), cacheCmd(), ingestCmd())
	return root
}

func warmCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prefetch every resource the stored snapshots reference",
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			containers, err := sourceContainers(source)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				records, err := a.states.Records(ctx, containers)
				if err != nil {
					return fmt.Errorf("reading snapshots: %w", err)
				}
				a.logger.Info("warming cache", zap.Int("records", len(records)))

				stats := a.resources.Warm(ctx, records)
				fmt.Fprintf(cmd.OutOrStdout(), "total %d, fetched %d, skipped %d, failed %d\n",
					stats.Total, stats.Fetched, stats.Skipped, stats.Failed)
				for _, e := range stats.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "all", "Snapshots to read: all, party, daycare, pc_boxes")
	return cmd
}

func sourceContainers(source string) ([]model.ContainerType, error) {
	if source == "all" {
		return model.AllContainers, nil
	}
	if !model.ValidContainer(source) {
		return nil, fmt.Errorf("unknown source: %s", source)
	}
	return []model.ContainerType{model.ContainerType(source)}, nil
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the resource caches",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and ages per resource kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				printStats(cmd, a.resources.CacheStats(ctx))
				return nil
			})
		},
	}

	var kind string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached entries for one resource kind, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := model.AllKinds
			if kind != "all" {
				if !model.ValidKind(kind) {
					return fmt.Errorf("unknown kind: %s", kind)
				}
				kinds = []model.ResourceKind{model.ResourceKind(kind)}
			}
			return withApp(func(ctx context.Context, a *app) error {
				for _, k := range kinds {
					if err := a.resources.ClearCache(ctx, k); err != nil {
						return fmt.Errorf("clearing %s: %w", k, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", k)
				}
				return nil
			})
		},
	}
	clearCmd.Flags().StringVar(&kind, "kind", "all", "Resource kind: all, species, move, ability")

	cmd.AddCommand(stats, clearCmd)
	return cmd
}

func printStats(cmd *cobra.Command, stats []cache.Stats) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tENTRIES\tEXPIRED\tOLDEST\tNEWEST")
	for _, st := range stats {
		oldest, newest := "-", "-"
		if !st.Oldest.IsZero() {
			oldest = humanize.Time(st.Oldest)
			newest = humanize.Time(st.Newest)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			st.Kind, humanize.Comma(int64(st.Entries)), humanize.Comma(int64(st.Expired)), oldest, newest)
	}
	_ = w.Flush()
}

func ingestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Validate and store a snapshot file, as the capture agent would",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			return withApp(func(ctx context.Context, a *app) error {
				env, err := a.states.Ingest(ctx, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s snapshot: %d pokemon, %d boxes (%s)\n",
					env.Source.ContainerType, len(env.Pokemon), len(env.Boxes), humanize.Bytes(uint64(len(data))))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to an envelope JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// app is the slice of the server's wiring the CLI commands need.
type app struct {
	states    *service.StateService
	resources *service.ResourceService
	logger    *zap.Logger
}

// withApp loads config, opens storage, builds the services and runs fn with
// a context that Ctrl+C cancels.
func withApp(fn func(ctx context.Context, a *app) error) error {
	configPath := os.Getenv("POKEMMO_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for the CLI
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
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

	api := provider.NewPokeAPI(provider.PokeAPIConfig{
		BaseURL:           cfg.PokeAPI.BaseURL,
		Timeout:           cfg.PokeAPI.Timeout,
		RequestsPerSecond: cfg.PokeAPI.RequestsPerSecond,
		Burst:             cfg.PokeAPI.Burst,
		BreakerFailures:   cfg.PokeAPI.BreakerFailures,
		BreakerTimeout:    cfg.PokeAPI.BreakerTimeout,
	}, storage.NewFetchLogRepository(db), logger)

	ttl, workers := cfg.Cache.TTL, cfg.PokeAPI.MaxConcurrent
	speciesF := cache.NewFetcher(cache.New[model.Species](model.KindSpecies, persister, ttl, logger), api.Species, workers, logger)
	movesF := cache.NewFetcher(cache.New[model.Move](model.KindMove, persister, ttl, logger), api.Move, workers, logger)
	abilitiesF := cache.NewFetcher(cache.New[model.Ability](model.KindAbility, persister, ttl, logger), api.Ability, workers, logger)
	pipeline := enrich.NewPipeline(speciesF, movesF, abilitiesF, enrich.NewMerger(cfg.PokeAPI.SpriteBaseURL, nil), logger)

	// A running server only hears about a CLI ingest over NATS; with the
	// local bus it picks the new file up on its next poll.
	var bus events.Bus = events.NewLocalBus(logger)
	if cfg.Events.NATSURL != "" {
		natsBus, err := events.NewNATSBus(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		bus = natsBus
	}
	defer bus.Close()

	// Set up context with cancellation (Ctrl+C stops a warm run gracefully)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx, &app{
		states:    service.NewStateService(dumps, bus, logger),
		resources: service.NewResourceService(speciesF, movesF, abilitiesF, pipeline, logger),
		logger:    logger,
	})
}
