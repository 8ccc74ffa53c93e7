package store

import (
	"context"
	"slices"

	"github.com/phrazzld/bespoke/internal/domain"
)

// CardFilter narrows the cards returned by GetCards.
// Zero-valued fields do not filter.
type CardFilter struct {
	TargetLanguage string
	NativeLanguage string
	Difficulty     *domain.DifficultyFilter
	VocabularyItem string
}

// Matches reports whether the card satisfies every set field of the filter.
// Implementations that cannot push a field down to the backend use it to
// filter in memory.
func (f CardFilter) Matches(c *domain.Card) bool {
	if f.TargetLanguage != "" && c.TargetLanguage != f.TargetLanguage {
		return false
	}
	if f.NativeLanguage != "" && c.NativeLanguage != f.NativeLanguage {
		return false
	}
	if f.Difficulty != nil && !f.Difficulty.Contains(c.Difficulty) {
		return false
	}
	if f.VocabularyItem != "" && !slices.Contains(c.VocabularyItems, f.VocabularyItem) {
		return false
	}
	return true
}

// CardStore defines the interface for card data persistence.
// Cards are keyed by their ID. The store is the only persistence boundary
// of the scheduler and holds both the write-once content and the
// append-only review history of every card.
type CardStore interface {
	// GetCards returns every card matching the filter, ordered by ID.
	// An empty store yields an empty slice, not an error.
	// Returned cards are copies; mutating them does not affect the store.
	GetCards(ctx context.Context, filter CardFilter) ([]*domain.Card, error)

	// GetByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id string) (*domain.Card, error)

	// Upsert inserts the card or replaces the stored card with the same ID.
	// The card must be valid according to domain validation rules;
	// otherwise an error wrapping ErrInvalidEntity is returned.
	Upsert(ctx context.Context, card *domain.Card) error
}

// CardBatchWriter is implemented by stores that can write several cards
// atomically. Callers fall back to repeated Upsert calls otherwise.
type CardBatchWriter interface {
	UpsertMany(ctx context.Context, cards []*domain.Card) error
}
