// Package cli holds the bootstrap shared by cmd/fireflyctl and
// cmd/firefly-worker and the fireflyctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fireflyiii/internal/config"
	applog "fireflyiii/internal/log"
	"fireflyiii/internal/storage"
	"fireflyiii/pkg/firefly"
)

// Version is set at build time with -ldflags "-X fireflyiii/internal/cli.Version=...".
var Version = "dev"

// LoadEnvFile loads a .env file for local development. A missing file is not
// an error; production reads the real environment.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) (*applog.Logger, error) {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger, nil
}

// NewFireflyClient builds the API client for cfg, logging through logger.
func NewFireflyClient(cfg *config.Config, logger *applog.Logger, opts ...firefly.Option) (*firefly.Client, error) {
	opts = append([]firefly.Option{
		firefly.WithLogger(logger.WithComponent(applog.ComponentFirefly).Logger),
	}, opts...)
	client, err := firefly.New(cfg.FireflyURL, cfg.FireflyToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firefly client: %w", err)
	}
	return client, nil
}

// InitLedger opens the import ledger, creating its directory and schema.
func InitLedger(cfg *config.Config) (*storage.SQLiteRepository, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open import ledger %s: %w", cfg.SQLiteDBPath, err)
	}
	return repo, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once the signal arrives; done closes when it has returned or timeout
// elapsed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}
