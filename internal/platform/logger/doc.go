// Package logger sets up the JSON slog logger shared by the server and the
// generator, and carries request-scoped loggers through contexts.
package logger
