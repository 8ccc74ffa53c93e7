package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/bespoke/internal/api/middleware"
	"github.com/phrazzld/bespoke/internal/api/shared"
)

// RouterConfig holds the handlers and settings of the HTTP API.
type RouterConfig struct {
	Sessions       *SessionHandler
	Audio          *AudioHandler // optional
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter registers the API routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Sessions == nil {
		panic("session handler cannot be nil")
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewCORS(cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/", cfg.Sessions.Start)
			r.Get("/", cfg.Sessions.Get)
			r.Delete("/", cfg.Sessions.End)
			r.Get("/next", cfg.Sessions.Next)
			r.Post("/outcome", cfg.Sessions.Outcome)
			r.Get("/stats", cfg.Sessions.Stats)
		})
		if cfg.Audio != nil {
			r.Get("/audio/{name}", cfg.Audio.Get)
		}
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
	})

	return r
}
