package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/purple-haze-etl/internal/adapter/cache"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesink"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesource"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/geo"
	httpadapter "github.com/couchcryptid/purple-haze-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/purple-haze-etl/internal/adapter/kafka"
	"github.com/couchcryptid/purple-haze-etl/internal/config"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
	"github.com/couchcryptid/purple-haze-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	tracts, err := geo.LoadTracts(cfg.TractsGeoJSON, cfg.TractIDProperty)
	if err != nil {
		logger.Error("failed to load tracts", "path", cfg.TractsGeoJSON, "error", err)
		return err
	}
	logger.Info("tracts loaded", "path", cfg.TractsGeoJSON, "tracts", len(tracts.Tracts()))

	aggregator, err := domain.NewTractAggregator(cfg.StudyStart.Time, cfg.StudyEnd.Time, cfg.SmokeWindow())
	if err != nil {
		logger.Error("invalid study window", "error", err)
		return err
	}

	fileSink, err := filesink.NewWriter(cfg.OutputDir, cfg.OutputFormat, logger)
	if err != nil {
		logger.Error("failed to create file sink", "error", err)
		return err
	}
	sinks := []pipeline.ReportLoader{fileSink}

	// Kafka publishing is feature-flagged via KAFKA_BROKERS.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	loader := cache.NewCachedLoader(cache.LoaderFunc(domain.LoadSeries), cfg.SeriesCacheSize, metrics)
	p := pipeline.New(
		filesource.Dir{Path: cfg.DataDir, Pattern: cfg.FilePattern},
		loader,
		tracts,
		aggregator,
		sinks,
		pipeline.Options{
			Workers:      cfg.Workers,
			Threshold:    float64(cfg.AQIThreshold),
			IncludeSmoke: cfg.IncludeSmoke,
		},
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	report, runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
	} else {
		logger.Info("pipeline finished", "tracts", len(report.Tracts), "files", len(report.Files), "output_dir", cfg.OutputDir)
	}

	if cfg.ServeAfterRun && ctx.Err() == nil {
		logger.Info("serving report until signalled", "addr", cfg.HTTPAddr)
		<-ctx.Done()
	}
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
	return runErr
}
