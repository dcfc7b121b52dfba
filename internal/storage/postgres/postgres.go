// Package postgres opens the token store on PostgreSQL through the pgx stdlib driver
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/storage"
	"marketplace-oauth/internal/storage/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	storage.Register("postgres", func(ctx context.Context, opts storage.Options) (storage.TokenStore, error) {
		return Open(ctx, opts.Config.PostgresDSN(), opts.Logger)
	})
}

// Open connects with dsn and applies migrations. Like the sqlite backend, a
// failing schema bootstrap is logged rather than returned; Health reports an
// unreachable server afterwards.
func Open(ctx context.Context, dsn string, logger logging.Logger) (*sqlstore.Store, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.ConnectionError("failed to open postgres connection", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("PostgreSQL unreachable, skipping schema bootstrap", err)
	} else if err := Migrate(ctx, db); err != nil {
		logger.Error("Schema bootstrap failed, continuing with existing schema", err)
	} else {
		logger.Info("Database: PostgreSQL")
	}

	return sqlstore.New(db, sqlstore.Postgres), nil
}

// Migrate applies the embedded migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}
