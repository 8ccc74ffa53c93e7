package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when a request would send an empty prompt.
	ErrEmptyPrompt = errors.New("prompt text cannot be empty")
)
