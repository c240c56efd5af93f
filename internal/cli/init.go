// Package cli provides the startup steps shared by cmd/gerenciador and
// cmd/sheets-export.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gerenciador/internal/backend"
	"gerenciador/internal/config"
	"gerenciador/internal/groups"
	"gerenciador/internal/log"
	"gerenciador/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at level and makes it the default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Ledger bundles the service with the backend it runs on.
type Ledger struct {
	Service *services.LedgerService
	Backend *backend.BackendResult
}

// Close releases the backend.
func (l *Ledger) Close() error {
	return l.Backend.Close()
}

// InitLedger opens the configured backend and builds the service on top.
func InitLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Ledger, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	var events services.EventPublisher
	if res.Events != nil {
		events = res.Events
	}
	svc := services.NewLedgerService(res.Store, groups.Default(), events, services.Options{
		MaxInstallments: cfg.RecurrenceMaxCount,
		SnapshotTTL:     cfg.SnapshotCacheTTL,
		Locale:          cfg.Locale(),
		Logger:          logger,
	})
	return &Ledger{Service: svc, Backend: res}, nil
}

// GracefulShutdown runs cleanup on SIGINT or SIGTERM with a context bounded
// by timeout. The returned context is cancelled when the signal arrives and
// the channel is closed once cleanup returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
