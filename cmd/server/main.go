// Package main runs the bespoke session server: it serves the learning
// session API over HTTP and applies card store migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/bespoke/internal/config"
	"github.com/phrazzld/bespoke/internal/platform/cardstore"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	migrate := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *migrate); err != nil {
		slog.Error("server failed", slog.String("error", redact.Error(err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, migrate string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver))

	cards, err := cardstore.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	if migrate != "" {
		defer closeStore(cards, log)
		return cards.Migrate(ctx, migrate)
	}

	app, err := newApplication(cfg, log, cards)
	if err != nil {
		closeStore(cards, log)
		return err
	}
	return app.Run(ctx)
}

func closeStore(cards *cardstore.Handle, log *slog.Logger) {
	if err := cards.Close(); err != nil {
		log.Error("failed to close card store", slog.String("error", redact.Error(err)))
	}
}
