package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-service/internal/acquire"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/fanfar"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/fswatch"
	httpadapter "github.com/couchcryptid/flood-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/wigos"
	"github.com/couchcryptid/flood-risk-service/internal/config"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	registry, err := pipeline.NewRegistry(cfg.SchemaPath, cfg.RulesPath, logger, metrics)
	if err != nil {
		logger.Error("failed to load schema", "error", err)
		os.Exit(1)
	}

	// Sources: WIGOS with an Open-Meteo fallback for meteo, FANFAR for hydro,
	// each behind its own TTL cache.
	wigosClient := wigos.NewClient(cfg.WigosBaseURL, cfg.WigosStationID, cfg.SourceTimeout, metrics, logger)
	fanfarClient := fanfar.NewClient(cfg.FanfarBaseURL, cfg.FanfarModel, cfg.FanfarSubID, cfg.FanfarY, cfg.SourceTimeout, metrics, logger)
	primary := acquire.NewCachedMeteo(wigosClient, wigos.Source, cfg.CacheTTL, cfg.SourceCacheSize, clock, metrics)
	fallback := acquire.NewCachedMeteo(
		openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.Latitude, cfg.Longitude, cfg.SourceTimeout, metrics, logger),
		openmeteo.Source, cfg.CacheTTL, cfg.SourceCacheSize, clock, metrics)
	hydro := acquire.NewCachedHydro(fanfarClient, fanfar.Source, cfg.CacheTTL, clock, metrics)
	collector := acquire.NewCollector(acquire.NewFallbackMeteo(primary, fallback, logger, metrics), hydro, clock, logger)

	var (
		publisher pipeline.Publisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	evaluator := pipeline.NewEvaluator(registry, cfg.ClosureMaxPasses, cfg.GraphMaxIndividuals, clock, logger, metrics)
	cache := pipeline.NewEvaluationCache(cfg.CacheTTL, clock)
	scheduler := pipeline.NewScheduler(collector, evaluator, cache, publisher, cfg.RefreshInterval, clock, logger, metrics)

	meteoHistory := acquire.NewCachedMeteoHistory(wigosClient, wigos.Source+"-history",
		cfg.CacheTTL, cfg.SourceCacheSize, clock, metrics)
	hydroHistory := acquire.NewCachedHydroHistory(fanfarClient, fanfar.Source+"-history",
		cfg.CacheTTL, cfg.SourceCacheSize, clock, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, registry, httpadapter.Options{
		MaxPasses:      cfg.ClosureMaxPasses,
		MaxIndividuals: cfg.GraphMaxIndividuals,
		ZoneKind:       cfg.ZoneKind,
		MeteoHistory:   meteoHistory,
		HydroHistory:   hydroHistory,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the refresh loop.
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	if cfg.SchemaWatch {
		watcher, err := fswatch.NewWatcher([]string{cfg.SchemaPath, cfg.RulesPath}, registry, fswatch.DefaultDebounce, clock, logger)
		if err != nil {
			logger.Error("failed to watch definition files", "error", err)
		} else {
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Error("definition watcher error", "error", err)
				}
			}()
			logger.Info("watching definition files", "schema", cfg.SchemaPath, "rules", cfg.RulesPath)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
