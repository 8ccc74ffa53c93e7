package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/bespoke/internal/api"
	"github.com/phrazzld/bespoke/internal/config"
	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/domain/srs"
	"github.com/phrazzld/bespoke/internal/language"
	"github.com/phrazzld/bespoke/internal/platform/audiofs"
	"github.com/phrazzld/bespoke/internal/platform/cardstore"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
	"github.com/phrazzld/bespoke/internal/service/session"
	"github.com/spf13/afero"
)

// application holds the shared dependencies of the server.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	fs        afero.Fs
	cards     *cardstore.Handle
	languages *language.Registry
	scheduler scheduler.Service
	audio     *audiofs.Store
}

// appOption adjusts an application before its dependencies are built.
type appOption func(*application)

// withFs replaces the OS filesystem used for language data and audio.
func withFs(fs afero.Fs) appOption {
	return func(app *application) {
		app.fs = fs
	}
}

// newApplication wires the services over an open card store.
func newApplication(cfg *config.Config, logger *slog.Logger, cards *cardstore.Handle, opts ...appOption) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
		cards:  cards,
	}
	for _, opt := range opts {
		opt(app)
	}

	// sqlite is the local single-learner deck and keeps its schema current
	if cfg.Database.Driver == cardstore.DriverSQLite {
		if err := cards.Migrate(context.Background(), cardstore.MigrateUp); err != nil {
			return nil, fmt.Errorf("failed to migrate card store: %w", err)
		}
	}

	params, err := srs.NewParams(cfg.SRS)
	if err != nil {
		return nil, fmt.Errorf("invalid SRS parameters: %w", err)
	}
	srsService, err := srs.NewServiceWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create SRS service: %w", err)
	}
	app.scheduler = scheduler.NewService(cards.Cards, srsService, logger)

	app.languages, err = language.LoadRegistry(app.fs, cfg.Language.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load languages: %w", err)
	}
	if len(app.languages.Codes()) == 0 {
		logger.Warn("no language definitions found, session languages are not checked",
			slog.String("data_dir", cfg.Language.DataDir))
	}

	app.audio, err = audiofs.New(app.fs, cfg.Audio.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio store: %w", err)
	}

	logger.Info("application initialized",
		slog.Int("languages", len(app.languages.Codes())),
		slog.String("audio_dir", cfg.Audio.Dir))
	return app, nil
}

// newSession creates the controller for a new learning session.
func (app *application) newSession() *session.Controller {
	var opts []session.Option
	if len(app.languages.Codes()) > 0 {
		opts = append(opts, session.WithLanguages(app.languages))
	}
	return session.NewController(app.scheduler, app.logger, opts...)
}

// sessionDefaults converts the configured defaults. Invalid mode names are
// rejected by config validation.
func (app *application) sessionDefaults() api.SessionDefaults {
	modes := make([]domain.Mode, 0, len(app.config.Session.DefaultModes))
	for _, name := range app.config.Session.DefaultModes {
		if m, err := domain.ParseMode(name); err == nil {
			modes = append(modes, m)
		}
	}
	return api.SessionDefaults{
		Modes:         modes,
		NewCardLimit:  app.config.Session.NewCardLimit,
		RecencyWindow: app.config.Session.RecencyWindow,
	}
}

// setupRouter builds the HTTP handler tree.
func (app *application) setupRouter() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Sessions:       api.NewSessionHandler(app.newSession, app.sessionDefaults(), app.logger),
		Audio:          api.NewAudioHandler(app.audio, app.logger),
		AllowedOrigins: app.config.Server.AllowedOrigins,
		Logger:         app.logger,
	})
}

// Run serves HTTP until ctx is canceled, then releases resources.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	closeStore(app.cards, app.logger)
	app.logger.Info("application shutdown completed")
}
