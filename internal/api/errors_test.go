package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/audiofs"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
	"github.com/phrazzld/bespoke/internal/service/session"
	"github.com/phrazzld/bespoke/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"invalid config", fmt.Errorf("%w: no modes", session.ErrInvalidConfig), http.StatusBadRequest},
		{"invalid rating", domain.ErrInvalidReviewOutcome, http.StatusBadRequest},
		{"rated word not on card", fmt.Errorf("%w: \"犬\"", domain.ErrUnknownItem), http.StatusBadRequest},
		{"invalid mode", domain.ErrInvalidMode, http.StatusBadRequest},
		{"invalid audio name", audiofs.ErrInvalidName, http.StatusBadRequest},
		{"unknown card", scheduler.ErrUnknownCard, http.StatusNotFound},
		{"card not found", store.ErrCardNotFound, http.StatusNotFound},
		{"audio not found", audiofs.ErrNotFound, http.StatusNotFound},
		{"out of sequence", session.ErrOutOfSequence, http.StatusConflict},
		{"not started", session.ErrNotStarted, http.StatusConflict},
		{"ended", session.ErrEnded, http.StatusConflict},
		{"already started", session.ErrAlreadyStarted, http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"ended before not started", session.ErrEnded, "Session has ended"},
		{"not started", session.ErrNotStarted, "No session is running"},
		{"wrapped unknown card", fmt.Errorf("record: %w", scheduler.ErrUnknownCard), "Card not found"},
		{"internal details hidden", errors.New("pq: password=hunter22"), "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	v := validator.New()
	err := v.Struct(&OutcomeRequest{Rating: "great"})
	assert.Equal(t, "Invalid rating: invalid value", SanitizeValidationError(err))

	err = v.Struct(&OutcomeRequest{})
	assert.Equal(t, "Invalid rating: rating or item ratings required", SanitizeValidationError(err))

	assert.NoError(t, v.Struct(&OutcomeRequest{Items: map[string]string{"猫": "good"}}))
	assert.Error(t, v.Struct(&OutcomeRequest{Items: map[string]string{"猫": "great"}}))

	err = v.Struct(&StartSessionRequest{TargetLanguage: "ja", NativeLanguage: "ja", Difficulty: "A1"})
	assert.Equal(t, "Invalid native_language: must differ from the target language", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
