package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORS allows the browser frontend served from origins to call the API.
// With no origins every cross-origin request is refused.
func NewCORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", TraceHeader},
		ExposedHeaders: []string{TraceHeader},
		MaxAge:         300,
	}).Handler
}
