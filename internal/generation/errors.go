package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a card cannot be generated for any general reason
	ErrGenerationFailed = errors.New("failed to generate card")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrInvalidRequest is returned when a generation request is missing required input
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrTooManyFailures is returned when deck building stops after repeated failed calls
	ErrTooManyFailures = errors.New("too many consecutive generation failures")
)
