// Package postgres provides the PostgreSQL implementation of store.CardStore
// for hosted decks. It handles query execution, mapping between domain cards
// and rows, translation of PostgreSQL errors into store errors, and the
// embedded schema migrations.
package postgres
