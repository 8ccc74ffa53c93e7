package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/bespoke/internal/api/shared"
	"github.com/phrazzld/bespoke/internal/platform/logger"
)

// AudioReader reads stored WAV clips by name.
type AudioReader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// AudioHandler serves the clips referenced by presentations.
type AudioHandler struct {
	audio  AudioReader
	logger *slog.Logger
}

// NewAudioHandler creates an AudioHandler.
func NewAudioHandler(audio AudioReader, logger *slog.Logger) *AudioHandler {
	if audio == nil {
		panic("audio reader cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioHandler{
		audio:  audio,
		logger: logger.With(slog.String("component", "audio_handler")),
	}
}

// Get handles GET /api/audio/{name}.
func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.audio.Read(r.Context(), name)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// clips are immutable once written
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).
			Warn("failed to write audio response", slog.String("name", name), slog.String("error", err.Error()))
	}
}
