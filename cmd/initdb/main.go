// Command initdb creates the token table ahead of the first deployment. The
// service bootstraps the schema on start as well; this is for setups where
// the runtime database user may not run DDL.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/config"
	"marketplace-oauth/internal/storage/postgres"
	"marketplace-oauth/internal/storage/sqlite"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dbType := flag.String("type", "", "database type (sqlite or postgres), defaults to DATABASE_TYPE")
	timeout := flag.Duration("timeout", time.Minute, "give up after this long")
	flag.Parse()

	cfg := config.Load()
	if *dbType != "" {
		cfg.DatabaseType = *dbType
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	logging.Info("Schema is up to date", logging.String("type", cfg.DatabaseType))
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		db      *sql.DB
		err     error
		migrate func(context.Context, *sql.DB) error
	)

	switch cfg.DatabaseType {
	case "sqlite":
		db, err = sql.Open("sqlite3", sqlite.DSN(cfg.DatabasePath))
		migrate = sqlite.Migrate
	case "postgres":
		db, err = sql.Open("pgx", cfg.PostgresDSN())
		migrate = postgres.Migrate
	default:
		log.Printf("database type %q has no schema to create", cfg.DatabaseType)
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	return migrate(ctx, db)
}
