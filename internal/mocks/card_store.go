package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/store"
)

// MockCardStore implements store.CardStore for testing.
// Unset function fields return the default values.
type MockCardStore struct {
	GetCardsFn func(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error)
	GetByIDFn  func(ctx context.Context, id string) (*domain.Card, error)
	UpsertFn   func(ctx context.Context, card *domain.Card) error

	// Default response values
	Cards []*domain.Card
	Err   error

	// Call tracking for verification
	mu          sync.Mutex
	Filters     []store.CardFilter
	RequestedID []string
	Upserted    []*domain.Card
}

var _ store.CardStore = (*MockCardStore)(nil)

// GetCards implements store.CardStore.
func (m *MockCardStore) GetCards(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error) {
	m.mu.Lock()
	m.Filters = append(m.Filters, filter)
	m.mu.Unlock()

	if m.GetCardsFn != nil {
		return m.GetCardsFn(ctx, filter)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	cards := make([]*domain.Card, 0, len(m.Cards))
	for _, c := range m.Cards {
		if filter.Matches(c) {
			cards = append(cards, c.Clone())
		}
	}
	return cards, nil
}

// GetByID implements store.CardStore.
func (m *MockCardStore) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	m.mu.Lock()
	m.RequestedID = append(m.RequestedID, id)
	m.mu.Unlock()

	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	for _, c := range m.Cards {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return nil, store.ErrCardNotFound
}

// Upsert implements store.CardStore.
func (m *MockCardStore) Upsert(ctx context.Context, card *domain.Card) error {
	m.mu.Lock()
	m.Upserted = append(m.Upserted, card)
	m.mu.Unlock()

	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, card)
	}
	return m.Err
}

// UpsertCalls returns the number of Upsert calls so far.
func (m *MockCardStore) UpsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Upserted)
}
