// Package cli provides common initialization for the moneywise binaries.
// This package consolidates the startup sequence shared by cmd/moneywise,
// cmd/moneywise-worker and cmd/moneywisectl.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"moneywise/internal/backend"
	"moneywise/internal/config"
	"moneywise/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the environment and runs validate over the result.
func LoadConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if validate != nil {
		if err := validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SetupLogger installs the process logger described by cfg.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	return log.Setup(cfg.LogLevel, cfg.LogFormat, component)
}

// OpenStore opens (and migrates) the store selected by DATA_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", bcfg.Type, err)
	}
	return res, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
