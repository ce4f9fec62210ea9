// Package sqlite is the default ledger store, backed by modernc.org/sqlite.
//
// All access goes through a single connection and every unit of work is an
// IMMEDIATE transaction, so writers are serialized and a wallet read inside a
// unit cannot be changed underneath it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"

	"moneywise/internal/core"
	"moneywise/internal/storage"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Store implements storage.Store.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// DSN returns the connection string used for path.
func DSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "SQLite store ready", "path", path)

	return &Store{
		db:   db,
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Migrate creates the database directory if needed and applies pending
// migrations on a dedicated connection; the migrate driver closes the handle
// it is given.
func Migrate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	migrateDB, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlitemigrate.WithInstance(migrateDB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	if err := storage.Migrate(storage.DialectSQLite, driver); err != nil {
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithinTx runs fn inside one IMMEDIATE transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Internal("begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, &tx{tx: sqlTx, now: s.now}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return core.Internal("commit transaction", err)
	}
	committed = true
	return nil
}

// tx implements storage.Tx on top of *sql.Tx.
type tx struct {
	tx  *sql.Tx
	now func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mustAffect(res sql.Result, notFound func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
