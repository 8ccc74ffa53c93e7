// Package domain contains the core entities and value objects of the
// application: vocabulary cards, presentation modes, difficulty tiers, review
// outcomes and the scheduling state derived from them. It is independent of
// any storage backend, AI provider or delivery mechanism.
package domain
