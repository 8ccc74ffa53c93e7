// Package cardstore opens the card store backend selected in the
// configuration and runs its schema migrations.
package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bespoke/internal/config"
	"github.com/phrazzld/bespoke/internal/platform/memory"
	"github.com/phrazzld/bespoke/internal/platform/postgres"
	"github.com/phrazzld/bespoke/internal/platform/sqlite"
	"github.com/phrazzld/bespoke/internal/store"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Migration commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

var (
	// ErrUnknownDriver is returned for a driver other than memory, sqlite or postgres.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrUnknownCommand is returned for a migration command other than up, down or status.
	ErrUnknownCommand = errors.New("unknown migration command")
)

// Store is a card store that also supports batch writes.
type Store interface {
	store.CardStore
	store.CardBatchWriter
}

// Handle is an open card store. DB is nil for the memory driver.
type Handle struct {
	Cards  Store
	DB     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{
		driver: cfg.Driver,
		logger: logger.With(slog.String("component", "cardstore"), slog.String("driver", cfg.Driver)),
	}

	switch cfg.Driver {
	case DriverMemory:
		h.Cards = memory.NewCardStore(logger)
	case DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		h.DB = db
		h.Cards = sqlite.NewSQLiteCardStore(db, logger)
	case DriverPostgres:
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		h.DB = db
		h.Cards = postgres.NewPostgresCardStore(db, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	h.logger.Info("card store opened")
	return h, nil
}

// Migrate runs a migration command. The memory driver has no schema and
// accepts every command as a no-op.
func (h *Handle) Migrate(ctx context.Context, command string) error {
	type migrateFunc func(context.Context, *sql.DB, *slog.Logger) error

	var up, down, status migrateFunc
	switch h.driver {
	case DriverSQLite:
		up, down, status = sqlite.Migrate, sqlite.MigrateDown, sqlite.MigrationStatus
	case DriverPostgres:
		up, down, status = postgres.Migrate, postgres.MigrateDown, postgres.MigrationStatus
	}

	var fn migrateFunc
	switch command {
	case MigrateUp:
		fn = up
	case MigrateDown:
		fn = down
	case MigrateStatus:
		fn = status
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	if h.DB == nil {
		h.logger.Debug("memory store has no schema", slog.String("command", command))
		return nil
	}
	h.logger.Info("running migrations", slog.String("command", command))
	return fn(ctx, h.DB, h.logger)
}

// Close releases the database connection, if any.
func (h *Handle) Close() error {
	if h.DB == nil {
		return nil
	}
	return h.DB.Close()
}
