package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gerenciador/internal/cache"
	"gerenciador/internal/cli"
	"gerenciador/internal/config"
	apphttp "gerenciador/internal/http"
	"gerenciador/internal/log"
	"gerenciador/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ledger, err := cli.InitLedger(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	}()

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(ledger.Service.SnapshotCache())
	if cfg.SnapshotCacheTTL > 0 {
		cacheManager.StartCleanup(cfg.SnapshotCacheTTL)
	}

	var listener *services.EventListener
	if ledger.Backend.Events != nil {
		listener = services.NewEventListener(ledger.Backend.Events, ledger.Service, logger)
		if err := listener.Start(context.Background()); err != nil {
			logger.Error("Failed to start change event listener", log.FieldError, err)
			os.Exit(1)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger.Service, apphttp.Options{Logger: logger})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if listener != nil {
			if err := listener.Stop(ctx); err != nil {
				logger.Warn("Event listener stop error", log.FieldError, err)
			}
		}
		cacheManager.Stop()
	})

	logger.Info("Starting gerenciador server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"change_events", listener != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
