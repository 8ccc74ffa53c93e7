package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/domain/srs"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
)

// MockScheduler implements scheduler.Service for testing.
type MockScheduler struct {
	NextCardFn      func(ctx context.Context, q scheduler.Query) (*domain.Card, error)
	RecordOutcomeFn func(ctx context.Context, o scheduler.Outcome) (domain.SchedulingState, error)
	StatsFn         func(ctx context.Context, q scheduler.Query) (scheduler.Stats, error)
	ModeUsageFn     func(ctx context.Context, card *domain.Card) (map[domain.Mode]time.Time, error)
	MasteryFn       func(ctx context.Context, targetLanguage string) (map[string]srs.Mastery, error)

	// Default response values
	Card  *domain.Card
	State domain.SchedulingState
	Err   error

	// Call tracking for verification
	mu       sync.Mutex
	Queries  []scheduler.Query
	Outcomes []scheduler.Outcome
}

var _ scheduler.Service = (*MockScheduler)(nil)

// NextCard implements scheduler.Service.
func (m *MockScheduler) NextCard(ctx context.Context, q scheduler.Query) (*domain.Card, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	m.mu.Unlock()

	if m.NextCardFn != nil {
		return m.NextCardFn(ctx, q)
	}
	return m.Card, m.Err
}

// RecordOutcome implements scheduler.Service.
func (m *MockScheduler) RecordOutcome(ctx context.Context, o scheduler.Outcome) (domain.SchedulingState, error) {
	m.mu.Lock()
	m.Outcomes = append(m.Outcomes, o)
	m.mu.Unlock()

	if m.RecordOutcomeFn != nil {
		return m.RecordOutcomeFn(ctx, o)
	}
	return m.State, m.Err
}

// Stats implements scheduler.Service.
func (m *MockScheduler) Stats(ctx context.Context, q scheduler.Query) (scheduler.Stats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx, q)
	}
	return scheduler.Stats{}, m.Err
}

// ModeUsage implements scheduler.Service.
func (m *MockScheduler) ModeUsage(ctx context.Context, card *domain.Card) (map[domain.Mode]time.Time, error) {
	if m.ModeUsageFn != nil {
		return m.ModeUsageFn(ctx, card)
	}
	return map[domain.Mode]time.Time{}, m.Err
}

// Mastery implements scheduler.Service.
func (m *MockScheduler) Mastery(ctx context.Context, targetLanguage string) (map[string]srs.Mastery, error) {
	if m.MasteryFn != nil {
		return m.MasteryFn(ctx, targetLanguage)
	}
	return map[string]srs.Mastery{}, m.Err
}

// LastQuery returns the most recent NextCard query.
func (m *MockScheduler) LastQuery() scheduler.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Queries) == 0 {
		return scheduler.Query{}
	}
	return m.Queries[len(m.Queries)-1]
}

// LastOutcome returns the most recent recorded outcome.
func (m *MockScheduler) LastOutcome() scheduler.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Outcomes) == 0 {
		return scheduler.Outcome{}
	}
	return m.Outcomes[len(m.Outcomes)-1]
}

// OutcomeCalls returns the number of RecordOutcome calls so far.
func (m *MockScheduler) OutcomeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Outcomes)
}
