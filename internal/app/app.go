// Package app assembles the process: configuration, logging, metrics, the
// hub and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	server "arena/server"
	"arena/server/internal/config"
	servernet "arena/server/internal/net"
	"arena/server/internal/net/ws"
	"arena/server/internal/observability"
	"arena/server/internal/telemetry"
	"arena/server/logging"
	loggingSinks "arena/server/logging/sinks"
)

const shutdownGrace = 5 * time.Second

type Options struct {
	Config config.Config
	// Logger overrides the process logger; defaults to zerolog on stderr.
	Logger *zerolog.Logger
}

// NewLogger builds the zerolog logger for level.
func NewLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(parsed).
		With().Timestamp().Str("service", "arena").Logger()
}

// Run serves until ctx is cancelled, then closes every connection with an
// ERROR frame and drains the background workers.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	var zlog zerolog.Logger
	if opts.Logger != nil {
		zlog = *opts.Logger
	} else {
		zlog = NewLogger(cfg.Log.Level)
	}
	logger := telemetry.WrapZerolog(zlog)

	router, err := newRouter(cfg.Log, zlog)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("[app] failed to close logging router: %v", cerr)
		}
	}()

	counters := telemetry.NewCounters()
	metrics := []telemetry.Metrics{counters}
	if cfg.Metrics.Otel {
		metrics = append(metrics, telemetry.NewOtelMetrics(nil, func(err error) {
			logger.Printf("[otel] instrument error: %v", err)
		}))
	}

	hub, err := server.NewHub(server.HubConfig{
		Config:    cfg,
		Logger:    logger,
		Metrics:   telemetry.Tee(metrics...),
		Publisher: router,
	})
	if err != nil {
		return fmt.Errorf("failed to construct hub: %w", err)
	}

	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)
	go hub.Scheduler().Run(workers)

	if cfg.Metrics.InfluxEnabled {
		exporter := telemetry.NewInfluxExporter(telemetry.InfluxConfig{
			URL:      cfg.Metrics.InfluxURL,
			Token:    cfg.Metrics.InfluxToken,
			Org:      cfg.Metrics.InfluxOrg,
			Bucket:   cfg.Metrics.InfluxBucket,
			Interval: cfg.Metrics.InfluxInterval,
		}, counters, logger)
		go exporter.Run(workers)
	}

	sockets := ws.NewHandler(hub, ws.HandlerConfig{
		Server:     cfg.Server,
		RateLimits: cfg.RateLimits,
		Logger:     logger,
		Publisher:  router,
	})
	handler := servernet.NewHTTPHandler(hub, sockets, servernet.HTTPHandlerConfig{
		Logger:        logger,
		Observability: observability.Config{EnablePprof: cfg.Metrics.Pprof},
		Router:        router,
		Started:       time.Now(),
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("[app] server listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Printf("[app] shutting down")
	sockets.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(cfg config.Log, zlog zerolog.Logger) (*logging.Router, error) {
	var sinks []logging.NamedSink
	if cfg.Console {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(zlog)})
	}
	if cfg.GelfEnabled {
		gelf, err := loggingSinks.NewGelfSink(cfg.GelfAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to construct gelf sink: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{Name: "gelf", Sink: gelf})
	}
	sinks = append(sinks, logging.NamedSink{Name: "memory", Sink: loggingSinks.NewMemorySink(1024)})

	routerCfg := logging.DefaultConfig()
	routerCfg.MinimumSeverity = logging.ParseSeverity(cfg.Level)
	return logging.NewRouter(logging.SystemClock{}, routerCfg, zlog, sinks), nil
}
