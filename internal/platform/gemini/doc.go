// Package gemini implements the generation.TextModel and generation.Speaker
// interfaces on top of Google's Gemini API.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting deck generation to the external Gemini service without
// exposing the details of the service to the rest of the application.
//
// Key components:
//
//  1. Client: owns the genai client, retries transient failures with
//     exponential backoff and jitter, and maps API failures to the
//     generation package errors.
//  2. Prompts: embedded text templates for sentence creation, tagging,
//     translation and phonetic transcription.
//  3. Response processing: tags are requested with a JSON response schema;
//     speech is returned as raw PCM from the inline audio parts.
package gemini
