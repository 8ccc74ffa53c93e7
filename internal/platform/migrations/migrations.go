// Package migrations applies the embedded goose migrations of the SQL card
// stores.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

// Dir is the directory inside each backend's embedded FS holding the SQL files.
const Dir = "migrations"

// goose keeps its base FS, dialect and logger in package state.
var gooseMu sync.Mutex

// slogGooseLogger adapts the goose logger interface to use slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements goose.Logger by forwarding messages to Info.
func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements goose.Logger by forwarding messages to Error.
// It does not exit; the error is returned to the caller instead.
func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Up applies all pending migrations found under Dir in fsys.
func Up(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, logger *slog.Logger) error {
	return run(ctx, db, dialect, fsys, logger, func() error {
		return goose.UpContext(ctx, db, Dir)
	})
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, logger *slog.Logger) error {
	return run(ctx, db, dialect, fsys, logger, func() error {
		return goose.DownContext(ctx, db, Dir)
	})
}

// Status logs the applied state of every migration.
func Status(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, logger *slog.Logger) error {
	return run(ctx, db, dialect, fsys, logger, func() error {
		return goose.StatusContext(ctx, db, Dir)
	})
}

func run(
	ctx context.Context,
	db *sql.DB,
	dialect string,
	fsys fs.FS,
	logger *slog.Logger,
	fn func() error,
) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "migrations"), slog.String("dialect", dialect))

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&slogGooseLogger{logger: logger})

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect %q: %w", dialect, err)
	}
	if err := fn(); err != nil {
		logger.ErrorContext(ctx, "migration failed", slog.String("error", err.Error()))
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
