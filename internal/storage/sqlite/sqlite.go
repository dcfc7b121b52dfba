// Package sqlite opens the token store on a SQLite file using mattn/go-sqlite3
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/storage"
	"marketplace-oauth/internal/storage/sqlstore"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	storage.Register("sqlite", func(ctx context.Context, opts storage.Options) (storage.TokenStore, error) {
		return Open(ctx, opts.Config.DatabasePath, opts.Logger)
	})
}

// DSN adds the connection settings the store relies on to a file path
func DSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_busy_timeout=5000"
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
}

// Open opens the database at path and applies migrations. A failing schema
// bootstrap is logged and the store is returned anyway: the table may already
// exist from an earlier deployment.
func Open(ctx context.Context, path string, logger logging.Logger) (*sqlstore.Store, error) {
	if path == "" {
		return nil, errors.ConfigError("database path is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, errors.ConnectionError("failed to open sqlite database", err)
	}
	// A single connection keeps writers from tripping over SQLITE_BUSY and
	// keeps :memory: databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		logger.Error("Schema bootstrap failed, continuing with existing schema", err,
			logging.String("database", path),
		)
	} else {
		logger.Info("Database: SQLite", logging.String("path", path))
	}

	return sqlstore.New(db, sqlstore.SQLite), nil
}

// Migrate applies the embedded migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}
