package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	migrationsPath  = "migrations"
	migrationsTable = "schema_migrations"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnsureInitialized creates the schema if missing and applies all pending
// migrations. Safe to call repeatedly.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	createSchema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize())
	if _, err := s.pool.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return s.migrate(ctx)
}

// migrate applies the embedded migrations over a dedicated connection whose
// search_path is pinned to the schema, so unqualified DDL lands inside it.
func (s *Store) migrate(ctx context.Context) error {
	connCfg, err := pgx.ParseConfig(s.cfg.dsn())
	if err != nil {
		return fmt.Errorf("migrate: parse config: %w", err)
	}
	connCfg.RuntimeParams["search_path"] = pgx.Identifier{s.schema}.Sanitize()
	// Migration files hold multiple statements per version; the simple
	// protocol executes them as a script.
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	db := stdlib.OpenDB(*connCfg)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: ping: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("migrate: init source: %w", err)
	}

	dbDriver, err := migratepgx.WithInstance(db, &migratepgx.Config{
		MigrationsTable: migrationsTable,
		SchemaName:      s.schema,
	})
	if err != nil {
		return fmt.Errorf("migrate: init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: init migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}
