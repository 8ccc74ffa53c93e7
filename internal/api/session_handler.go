package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/phrazzld/bespoke/internal/api/shared"
	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/service/session"
)

// SessionFactory creates the controller for a new session.
type SessionFactory func() *session.Controller

// SessionDefaults fill in the fields a start request leaves out.
type SessionDefaults struct {
	Modes         []domain.Mode
	NewCardLimit  int
	RecencyWindow int
}

// SessionHandler serves the single learner's current session. A new session
// can be started once the previous one has ended.
type SessionHandler struct {
	newSession SessionFactory
	defaults   SessionDefaults
	logger     *slog.Logger

	mu      sync.Mutex
	current *session.Controller
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(factory SessionFactory, defaults SessionDefaults, logger *slog.Logger) *SessionHandler {
	if factory == nil {
		panic("session factory cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		newSession: factory,
		defaults:   defaults,
		logger:     logger.With(slog.String("component", "session_handler")),
	}
}

// controller returns the current session or ErrNotStarted.
func (h *SessionHandler) controller() (*session.Controller, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, session.ErrNotStarted
	}
	return h.current, nil
}

// Start handles POST /api/session.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req StartSessionRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.respondDecodeError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}
	cfg, err := h.sessionConfig(req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil && h.current.State() != session.StateEnded {
		h.respondError(w, r, session.ErrAlreadyStarted)
		return
	}

	c := h.newSession()
	if err := c.Start(r.Context(), cfg); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.current = c

	log.Info("session opened", slog.String("session_id", c.ID()))
	shared.RespondWithJSON(w, r, http.StatusCreated, c.Snapshot())
}

func (h *SessionHandler) sessionConfig(req StartSessionRequest) (session.Config, error) {
	cfg := session.Config{
		TargetLanguage: req.TargetLanguage,
		NativeLanguage: req.NativeLanguage,
		Difficulty:     req.Difficulty,
		Modes:          slices.Clone(h.defaults.Modes),
		NewCardLimit:   h.defaults.NewCardLimit,
		RecencyWindow:  h.defaults.RecencyWindow,
	}
	if req.Modes != nil {
		cfg.Modes = make([]domain.Mode, 0, len(req.Modes))
		for _, name := range req.Modes {
			m, err := domain.ParseMode(name)
			if err != nil {
				return session.Config{}, err
			}
			cfg.Modes = append(cfg.Modes, m)
		}
	}
	if req.NewCardLimit != nil {
		cfg.NewCardLimit = *req.NewCardLimit
	}
	if req.RecencyWindow != nil {
		cfg.RecencyWindow = *req.RecencyWindow
	}
	return cfg, nil
}

// Get handles GET /api/session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, c.Snapshot())
}

// Next handles GET /api/session/next. Exhaustion is a 200 response whose
// state is "exhausted".
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	step, err := c.PresentNext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, step)
}

// Outcome handles POST /api/session/outcome.
func (h *SessionHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	c, err := h.controller()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req OutcomeRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.respondDecodeError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}
	answer, err := req.answer()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	state, err := c.SubmitOutcome(r.Context(), answer)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	log.Debug("outcome accepted",
		slog.String("session_id", c.ID()),
		slog.String("rating", req.Rating),
		slog.Int("item_ratings", len(req.Items)),
		slog.Bool("reported", req.Reported))
	shared.RespondWithJSON(w, r, http.StatusOK, outcomeToResponse(c.State(), state))
}

// Stats handles GET /api/session/stats.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	stats, err := c.Stats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// End handles DELETE /api/session. Ending an ended session succeeds.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := c.End(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	var opts []shared.ResponseOption
	if status == http.StatusConflict {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err, opts...)
}

func (h *SessionHandler) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "Invalid request format"
	if errors.Is(err, shared.ErrEmptyBody) {
		msg = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, fmt.Errorf("decode request: %w", err))
}
