package backend

import (
	"context"
	"fmt"
	"log/slog"

	"moneywise/internal/log"
	"moneywise/internal/storage/memory"
	"moneywise/internal/storage/postgres"
	"moneywise/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend opens and migrates the configured store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := sqlite.Open(ctx, config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized PostgreSQL backend")
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	store := memory.New()
	f.logger.WarnContext(ctx, "Initialized memory backend; data is lost on restart")
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// Migrate applies pending schema migrations without keeping a store open.
// The memory backend has no schema.
func Migrate(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	switch config.Type {
	case SQLiteBackend:
		return sqlite.Migrate(config.SQLiteDBPath)
	case PostgresBackend:
		return postgres.Migrate(config.DatabaseURL)
	case MemoryBackend:
		return nil
	default:
		return fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
