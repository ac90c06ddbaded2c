// Package main runs the citation index HTTP dispatcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-index-service/internal/app"
	"github.com/helixir/citation-index-service/internal/config"
	"github.com/helixir/citation-index-service/internal/observability"
	httpserver "github.com/helixir/citation-index-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.WithComponent(observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	}), "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	components, err := app.Build(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("wire operations: %w", err)
	}
	logger.Info().
		Str("meta_sparql", cfg.Upstream.MetaSPARQL.URL).
		Str("index_sparql", cfg.Upstream.IndexSPARQL.URL).
		Str("metadata_source", cfg.Pipeline.MetadataSource).
		Strs("transforms", components.Registry.TransformNames()).
		Strs("preprocessors", components.Registry.ParamNames()).
		Msg("operations registered")

	api := httpserver.NewServer(httpserver.Config{
		Address:      cfg.Server.HTTPAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, components.Registry, logger)

	metricsSrv := newMetricsServer(cfg)

	errCh := make(chan error, 2)
	go func() {
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	if metricsSrv != nil {
		go func() {
			logger.Info().Str("address", metricsSrv.Addr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}
	logger.Info().Str("http_address", cfg.Server.HTTPAddress()).Msg("citation-index-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	shutdown(cfg.Server.ShutdownTimeout, logger, api, metricsSrv)
	return nil
}

// newMetricsServer returns nil when metrics are disabled.
func newMetricsServer(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	return &http.Server{
		Addr:         cfg.Server.MetricsAddress(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout,
	}
}

// shutdown drains the API first so in-flight transforms can finish while
// the metrics endpoint still reports them.
func shutdown(timeout time.Duration, logger zerolog.Logger, api *httpserver.Server, metricsSrv *http.Server) {
	logger.Info().Dur("timeout", timeout).Msg("shutting down citation-index-service")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
	logger.Info().Msg("citation-index-service shutdown complete")
}
