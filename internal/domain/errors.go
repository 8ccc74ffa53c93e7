// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidReviewOutcome is returned when a review outcome is not valid.
	ErrInvalidReviewOutcome = errors.New("invalid review outcome")

	// ErrInvalidMode is returned when a mode name is not one of listen, speak, read, write.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrUnknownItem is returned when a rating names a vocabulary item the
	// card does not teach.
	ErrUnknownItem = errors.New("unknown vocabulary item")

	// ErrInvalidDifficulty is returned when a difficulty tier is not recognized.
	ErrInvalidDifficulty = errors.New("invalid difficulty tier")
)
