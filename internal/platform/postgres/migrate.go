package postgres

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"

	"github.com/phrazzld/bespoke/internal/platform/migrations"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver used for PostgreSQL.
const DriverName = "pgx"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open opens a PostgreSQL connection pool and verifies it with a ping.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrations.Up(ctx, db, "postgres", migrationFS, logger)
}

// MigrateDown rolls back the latest embedded migration.
func MigrateDown(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrations.Down(ctx, db, "postgres", migrationFS, logger)
}

// MigrationStatus logs the state of each embedded migration.
func MigrationStatus(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrations.Status(ctx, db, "postgres", migrationFS, logger)
}
