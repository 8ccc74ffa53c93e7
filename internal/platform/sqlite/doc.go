// Package sqlite provides the SQLite implementation of store.CardStore for
// local single-learner decks kept in one file next to the audio clips.
package sqlite
