// Package postgres is the PostgreSQL ledger store built on pgx.
//
// Units of work run at READ COMMITTED; wallets that a unit mutates are read
// with SELECT ... FOR UPDATE so concurrent units on the same wallet queue up.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL store ready")
	return &Store{pool: pool}, nil
}

// Migrate applies pending migrations. The golang-migrate pgx driver is
// addressed with the pgx5:// scheme.
func Migrate(databaseURL string) error {
	return storage.MigrateURL(storage.DialectPostgres, migrateURL(databaseURL))
}

func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return core.Internal("begin transaction", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return core.Internal("commit transaction", err)
	}
	return nil
}

type tx struct {
	tx pgx.Tx
}

func translate(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFound(op, "%s not found", entity)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return core.Conflict(op, "%s already exists", entity)
		case pgerrcode.ForeignKeyViolation:
			return core.Conflict(op, "%s is referenced by other records", entity)
		case pgerrcode.NumericValueOutOfRange:
			return core.Validation(op, "amount out of range")
		}
	}
	return core.Internal(op, err)
}

func notFoundIfNone(tag pgconn.CommandTag, op, entity string) error {
	if tag.RowsAffected() == 0 {
		return core.NotFound(op, "%s not found", entity)
	}
	return nil
}

func parseMoney(s string) (core.Money, error) {
	return core.MoneyFromString(s)
}
