// Package memory provides an in-process implementation of store.CardStore.
// It backs tests and ephemeral sessions that do not need persistence.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/store"
)

// CardStore keeps cards in a map keyed by id. Cards are cloned on the way in
// and out so callers never share memory with the store.
type CardStore struct {
	mu     sync.RWMutex
	cards  map[string]*domain.Card
	logger *slog.Logger
}

var (
	_ store.CardStore       = (*CardStore)(nil)
	_ store.CardBatchWriter = (*CardStore)(nil)
)

// NewCardStore creates an empty store. If logger is nil, a default logger
// will be used.
func NewCardStore(logger *slog.Logger) *CardStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardStore{
		cards:  make(map[string]*domain.Card),
		logger: logger.With(slog.String("component", "card_store"), slog.String("backend", "memory")),
	}
}

// GetCards implements store.CardStore.GetCards.
func (s *CardStore) GetCards(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cards := make([]*domain.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if filter.Matches(c) {
			cards = append(cards, c.Clone())
		}
	}
	slices.SortFunc(cards, func(a, b *domain.Card) int {
		return strings.Compare(a.ID, b.ID)
	})
	return cards, nil
}

// GetByID implements store.CardStore.GetByID.
func (s *CardStore) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return c.Clone(), nil
}

// Upsert implements store.CardStore.Upsert.
func (s *CardStore) Upsert(ctx context.Context, card *domain.Card) error {
	return s.UpsertMany(ctx, []*domain.Card{card})
}

// UpsertMany validates every card before writing any of them.
func (s *CardStore) UpsertMany(ctx context.Context, cards []*domain.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, card := range cards {
		if card == nil {
			return fmt.Errorf("%w: nil card", store.ErrInvalidEntity)
		}
		if err := card.Validate(); err != nil {
			return store.NewStoreError("card", "upsert", "invalid card", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, card := range cards {
		s.cards[card.ID] = card.Clone()
	}
	logger.FromContextOrDefault(ctx, s.logger).Debug("cards stored", slog.Int("count", len(cards)))
	return nil
}

// Len returns the number of stored cards.
func (s *CardStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}
