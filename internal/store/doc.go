// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing the scheduler and session logic to
// remain independent of specific database technologies or persistence details.
//
// Implementations live under internal/platform: memory (tests and ephemeral
// decks), sqlite (local single-learner decks) and postgres (hosted decks).
package store
