package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/talentsync/talentsync/internal/engine"
	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/conflict"
	"github.com/talentsync/talentsync/pkg/connector/registry"
	"github.com/talentsync/talentsync/pkg/dedupe"
	jsonpool "github.com/talentsync/talentsync/pkg/json"
	"github.com/talentsync/talentsync/pkg/logger"
	"github.com/talentsync/talentsync/pkg/models"
	"github.com/talentsync/talentsync/pkg/observability"
	"github.com/talentsync/talentsync/pkg/state"

	// Importing an adapter package registers its factory.
	"github.com/talentsync/talentsync/pkg/connector/adapters/fixture"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string
	var logLevel string

	root := &cobra.Command{
		Use:   "talentsync",
		Short: "TalentSync - Recruiting data synchronization engine",
		Long: `TalentSync keeps a recruiting platform in sync with external sources such
as CRM, HRIS and talent network systems. It runs resilient incremental syncs,
flags duplicate candidates, resolves update conflicts and tracks per-source
health.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "talentsync.yaml", "Path to engine configuration YAML file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override configured log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TalentSync v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "adapters",
		Short: "List registered adapter kinds",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Registered adapter kinds:")
			for _, kind := range registry.Kinds() {
				fmt.Printf("  - %s\n", kind)
			}
		},
	})

	var syncTimeout time.Duration
	var fullSync bool
	syncCmd := &cobra.Command{
		Use:   "sync [source...]",
		Short: "Synchronize sources with the platform",
		Long: `Synchronize the named sources, or every configured source when none are
named. Each source reports a run outcome; the command fails when any run
does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configFile, logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			if fullSync {
				for i := range app.cfg.Sources {
					app.cfg.Sources[i].Sync.FullSync = true
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
			defer cancel()

			var runs []*models.SyncRun
			if len(args) == 0 {
				runs = app.engine.SyncAll(ctx, models.TriggerManual)
			} else {
				for _, name := range args {
					runs = append(runs, app.engine.SyncSource(ctx, name, models.TriggerManual))
				}
			}

			failed := 0
			for _, run := range runs {
				printRun(run)
				if run.State == models.RunStateFailed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sync runs failed", failed, len(runs))
			}
			return nil
		},
	}
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 10*time.Minute, "Overall sync timeout")
	syncCmd.Flags().BoolVar(&fullSync, "full", false, "Ignore stored watermarks and scan everything")
	root.AddCommand(syncCmd)

	var healthJSON bool
	healthCmd := &cobra.Command{
		Use:   "health [source]",
		Short: "Show per-source health",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configFile, logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var report []*models.SourceHealth
			if len(args) == 1 {
				h, err := app.engine.Health(ctx, args[0])
				if err != nil {
					return err
				}
				report = append(report, h)
			} else {
				report, err = app.engine.HealthAll(ctx)
				if err != nil {
					return err
				}
			}

			if healthJSON {
				out, err := jsonpool.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			for _, h := range report {
				printHealth(h)
			}
			return nil
		},
	}
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the report as JSON")
	root.AddCommand(healthCmd)

	root.AddCommand(&cobra.Command{
		Use:   "check <source>",
		Short: "Test connectivity of one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configFile, logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			ok, detail, err := app.engine.CheckSource(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("source %s unreachable: %s", args[0], detail)
			}
			fmt.Printf("%s: ok (%s)\n", args[0], detail)
			return nil
		},
	})

	conflictsCmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Manage the manual conflict review queue",
	}
	conflictsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conflicts awaiting manual resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configFile, logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resolver := conflict.NewResolver(app.store, app.cfg.Retention.Conflicts)
			pending, err := resolver.Pending(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("No conflicts awaiting resolution.")
				return nil
			}
			for _, d := range pending {
				fmt.Printf("%-10s %-20s recorded %s\n",
					d.EntityType, d.EntityID, d.DecidedAt.Format(time.RFC3339))
			}
			fmt.Printf("%d conflict(s) pending. Resolve in the platform, then run 'talentsync conflicts discard'.\n", len(pending))
			return nil
		},
	})
	conflictsCmd.AddCommand(&cobra.Command{
		Use:   "discard <entity-type> <entity-id>",
		Short: "Drop a resolved conflict from the queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configFile, logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resolver := conflict.NewResolver(app.store, app.cfg.Retention.Conflicts)
			if err := resolver.Discard(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Discarded conflict %s/%s\n", args[0], args[1])
			return nil
		},
	})
	root.AddCommand(conflictsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg     *config.EngineConfig
	store   state.Store
	engine  *engine.Engine
	metrics *http.Server
	log     *zap.Logger
}

// newApp loads configuration and brings up logging, tracing, the state
// store, the candidate store and the engine.
func newApp(configFile, logLevel string) (*app, error) {
	cfg, err := config.LoadEngineConfig(configFile)
	if err != nil {
		return nil, err
	}

	if logLevel == "" {
		logLevel = cfg.Observability.LogLevel
	}
	if err := logger.Init(logger.Config{
		Level:    logLevel,
		Encoding: cfg.Observability.LogFormat,
	}); err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("component", "talentsync-cli"))

	if err := observability.Init(cfg.Observability, version); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := state.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	people, err := seedCandidateStore(cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := engine.New(cfg, store, dedupe.NewDetector(people), log)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{cfg: cfg, store: store, engine: eng, log: log}

	if cfg.Observability.EnableMetrics && cfg.Observability.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metrics = &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("metrics server listening", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	return a, nil
}

// seedCandidateStore loads fixture candidate files into the in-memory
// platform store so duplicate detection has records to match against.
func seedCandidateStore(cfg *config.EngineConfig, log *zap.Logger) (*dedupe.MemoryCandidateStore, error) {
	people := dedupe.NewMemoryCandidateStore()

	for i := range cfg.Sources {
		sc := &cfg.Sources[i]
		path := sc.Options[fixture.OptionCandidatesFile]
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("source %s: failed to read candidates file: %w", sc.Name, err)
		}
		var candidates []*models.Candidate
		if err := jsonpool.Unmarshal(data, &candidates); err != nil {
			return nil, fmt.Errorf("source %s: failed to parse candidates file: %w", sc.Name, err)
		}
		for _, candidate := range candidates {
			people.Put(candidate)
		}
		log.Debug("seeded candidate store",
			zap.String("source", sc.Name),
			zap.Int("candidates", len(candidates)))
	}

	return people, nil
}

// Close shuts the app down in reverse bring-up order.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.log.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	if err := a.engine.Close(); err != nil {
		a.log.Warn("engine close failed", zap.Error(err))
	}
	if err := observability.Shutdown(ctx); err != nil {
		a.log.Warn("tracing shutdown failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("state store close failed", zap.Error(err))
	}
	_ = logger.Sync()
}

func printRun(run *models.SyncRun) {
	line := fmt.Sprintf("%-14s %-8s %8s", run.Source, run.State, run.Duration().Round(time.Millisecond))
	if run.Result != nil {
		line += fmt.Sprintf("  processed=%d created=%d updated=%d failed=%d",
			run.Result.RecordsProcessed, run.Result.RecordsCreated,
			run.Result.RecordsUpdated, run.Result.RecordsFailed)
	}
	if run.Error != "" {
		line += "  error: " + run.Error
	}
	fmt.Println(line)
}

func printHealth(h *models.SourceHealth) {
	line := fmt.Sprintf("%-14s %-8s failures=%d", h.Source, h.State, h.ConsecutiveFailures)
	if h.Watermark != nil {
		line += fmt.Sprintf("  last_sync=%s (%s ago)",
			h.Watermark.Format(time.RFC3339),
			time.Since(*h.Watermark).Round(time.Minute))
	} else {
		line += "  last_sync=never"
	}
	if h.LastFailureReason != "" {
		line += "  last_failure: " + h.LastFailureReason
	}
	fmt.Println(line)
}
