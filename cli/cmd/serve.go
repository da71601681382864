package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/facetql/internal/api"
	"github.com/fluxbase-eu/facetql/internal/middleware"
	"github.com/fluxbase-eu/facetql/internal/observability"
	"github.com/fluxbase-eu/facetql/internal/results"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

The entity schema is loaded before the listener opens. With
schema.reload_schedule set, it is reloaded on that cron schedule; with the
redis source and a channel configured, it is also reloaded whenever an
update is announced.

Examples:
  facetql serve
  facetql serve --config /etc/facetql/facetql.yaml
  FACETQL_SEARCH_BACKEND=memory FACETQL_SEARCH_FIXTURES_PATH=works.json facetql serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	source, redisSource := newSchemaSource(cfg, registry)
	cache := schema.NewCache(source)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		middleware.SetRateLimiterMetrics(metrics)
	}

	reload := func(ctx context.Context) {
		snap, err := cache.Reload(ctx)
		if metrics != nil {
			entities := 0
			if snap != nil {
				entities = len(snap.Entities())
			}
			metrics.RecordSchemaReload(cfg.Schema.Source, entities, err)
		}
		if err != nil {
			log.Error().Err(err).Msg("Schema reload failed, keeping previous snapshot")
		}
	}

	if _, err := cache.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load entity schema: %w", err)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	opts := results.Options{
		DefaultFilters: cfg.DefaultFilters(),
		CacheSize:      cfg.Cache.FilterCacheSize,
		Pagination:     cfg.Pagination,
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	assembler, err := results.New(registry, cache, backend, opts)
	if err != nil {
		return err
	}

	if cfg.Schema.ReloadSchedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Schema.ReloadSchedule, func() { reload(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule schema reload: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", cfg.Schema.ReloadSchedule).Msg("Scheduled schema reloads")
	}

	if redisSource != nil {
		go func() {
			if err := redisSource.Watch(ctx, reload); err != nil {
				log.Error().Err(err).Msg("Schema watch stopped")
			}
		}()
	}

	startedAt := time.Now()
	var metricsServer *observability.MetricsServer
	if metrics != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					metrics.UpdateUptime(startedAt)
				}
			}
		}()
		if cfg.Metrics.Port != 0 {
			metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
			go func() {
				if err := metricsServer.Start(); err != nil {
					log.Error().Err(err).Msg("Metrics server stopped")
				}
			}()
		}
	}

	server := api.NewServer(cfg, assembler, cache, metrics)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	return errors.Join(errs...)
}
