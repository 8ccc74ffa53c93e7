package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/bespoke/internal/api/shared"
	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/audiofs"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
	"github.com/phrazzld/bespoke/internal/service/session"
	"github.com/phrazzld/bespoke/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking their messages.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidReviewOutcome),
		errors.Is(err, domain.ErrUnknownItem),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, audiofs.ErrInvalidName),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, scheduler.ErrUnknownCard),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, audiofs.ErrNotFound):
		return http.StatusNotFound

	// ErrEnded wraps ErrNotStarted
	case errors.Is(err, session.ErrOutOfSequence),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrAlreadyStarted):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, session.ErrInvalidConfig):
		return "Invalid session configuration"
	case errors.Is(err, domain.ErrInvalidReviewOutcome):
		return "Invalid rating"
	case errors.Is(err, domain.ErrUnknownItem):
		return "Rated word is not on the card"
	case errors.Is(err, domain.ErrInvalidMode):
		return "Invalid mode"
	case errors.Is(err, domain.ErrInvalidDifficulty):
		return "Invalid difficulty"
	case errors.Is(err, audiofs.ErrInvalidName):
		return "Invalid audio name"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, scheduler.ErrUnknownCard), errors.Is(err, store.ErrNotFound):
		return "Card not found"
	case errors.Is(err, audiofs.ErrNotFound):
		return "Audio not found"
	case errors.Is(err, session.ErrOutOfSequence):
		return "No card is awaiting a rating"
	case errors.Is(err, session.ErrEnded):
		return "Session has ended"
	case errors.Is(err, session.ErrNotStarted):
		return "No session is running"
	case errors.Is(err, session.ErrAlreadyStarted):
		return "A session is already running"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message naming
// the first offending field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", toSnake(fe.Field()), validationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "required_without":
		return "rating or item ratings required"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "nefield":
		return "must differ from the target language"
	case "gte":
		return "must not be negative"
	default:
		return "validation failed"
	}
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
