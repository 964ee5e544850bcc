// Package main provides the entry point for the write proxy.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/tsdb-client-go/internal/apierrors"
	"github.com/devrev/tsdb-client-go/internal/config"
	"github.com/devrev/tsdb-client-go/internal/handler"
	"github.com/devrev/tsdb-client-go/internal/health"
	"github.com/devrev/tsdb-client-go/internal/ledger"
	"github.com/devrev/tsdb-client-go/internal/metrics"
	"github.com/devrev/tsdb-client-go/internal/server"
	"github.com/devrev/tsdb-client-go/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger settings live in the config, so fall back to a default one
		logger, _ := zap.NewProduction()
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting write proxy",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("route_mode", cfg.Client.RouteMode),
		zap.String("ledger_backend", cfg.Ledger.Backend),
	)

	var m *metrics.Metrics
	opts := []client.Option{client.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewMetrics(reg)
		opts = append(opts, client.WithRecorder(m))
	}

	c, err := client.New(cfg.Client, opts...)
	if err != nil {
		logger.Fatal("failed to create client", zap.Error(err))
	}
	defer c.Close()

	ctx := context.Background()
	l, closeLedger, err := newLedger(ctx, cfg.Ledger)
	if err != nil {
		logger.Fatal("failed to create ledger", zap.Error(err))
	}
	defer closeLedger()

	errorHandler := apierrors.NewHandler(logger)
	var recorder handler.LedgerRecorder
	if m != nil {
		recorder = m
	}
	handlers := handler.NewHandlers(c, l, recorder, errorHandler, logger, handler.Config{
		Timeout:      cfg.Server.RequestTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		ListLimit:    cfg.Ledger.ListLimit,
	})
	hc := health.NewHealthCheck(map[string]health.Pinger{
		"ledger":      l,
		"route_cache": c,
	}, logger)

	httpServer := server.NewServer(cfg, handlers, hc, m, errorHandler, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	logger.Info("write proxy shutdown complete")
}

func newLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, func(), error) {
	if cfg.Backend != "postgres" {
		return ledger.NewMemoryLedger(), func() {}, nil
	}
	pg, err := ledger.NewPostgresLedger(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// initLogger builds the zap logger from the logging config.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
