package srs

import (
	"errors"
	"slices"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
)

// Common errors
var (
	ErrInvalidOutcome = errors.New("invalid review outcome")
	ErrInvalidTier    = errors.New("invalid difficulty tier")
)

// Mastery is the scheduling trajectory of one vocabulary item, replayed from
// the merged reviews of every card that exercises it.
type Mastery struct {
	Item     string                 `json:"item"`
	State    domain.SchedulingState `json:"state"`
	Strength float64                `json:"strength"`
	Cards    int                    `json:"cards"`
}

// Satisfied reports whether the item is currently known: it has an unbroken
// run of passes and is not yet due again.
func (m Mastery) Satisfied(now time.Time) bool {
	return m.State.ConsecutiveCorrect > 0 && m.State.NextDueAt.After(now)
}

// Service defines the interface for SRS algorithm operations
type Service interface {
	// CalculateNextReview computes the state after one more review
	CalculateNextReview(
		state domain.SchedulingState,
		outcome domain.ReviewOutcome,
		at time.Time,
		tier domain.Difficulty,
	) (domain.SchedulingState, error)

	// Replay derives a state from a full review history
	Replay(history []domain.Review, tier domain.Difficulty) domain.SchedulingState

	// ItemMastery computes one Mastery per vocabulary item across the cards
	ItemMastery(cards []*domain.Card, now time.Time) map[string]Mastery
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() (Service, error) {
	return NewServiceWithParams(NewDefaultParams())
}

// NewServiceWithParams creates a new SRS service with custom parameters
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{params: params}, nil
}

// CalculateNextReview implements the Service interface for calculating updated state
func (s *defaultService) CalculateNextReview(
	state domain.SchedulingState,
	outcome domain.ReviewOutcome,
	at time.Time,
	tier domain.Difficulty,
) (domain.SchedulingState, error) {
	if !outcome.Valid() {
		return state, ErrInvalidOutcome
	}
	if !tier.Valid() {
		return state, ErrInvalidTier
	}
	return Next(state, outcome, at, tier, s.params), nil
}

// Replay implements the Service interface
func (s *defaultService) Replay(history []domain.Review, tier domain.Difficulty) domain.SchedulingState {
	return Replay(history, tier, s.params)
}

// ItemMastery implements the Service interface.
// An item exercised by cards of several tiers is paced at the lowest of them.
// A review that rated words individually counts for each item with its own rating.
func (s *defaultService) ItemMastery(cards []*domain.Card, now time.Time) map[string]Mastery {
	type itemAcc struct {
		tier    domain.Difficulty
		reviews []domain.Review
		cards   int
	}
	acc := make(map[string]*itemAcc)
	for _, card := range cards {
		for _, item := range card.VocabularyItems {
			a, ok := acc[item]
			if !ok {
				a = &itemAcc{tier: card.Difficulty}
				acc[item] = a
			}
			a.tier = min(a.tier, card.Difficulty)
			for _, r := range card.ReviewHistory {
				r.Outcome = r.OutcomeFor(item)
				a.reviews = append(a.reviews, r)
			}
			a.cards++
		}
	}

	result := make(map[string]Mastery, len(acc))
	for item, a := range acc {
		slices.SortStableFunc(a.reviews, func(x, y domain.Review) int {
			return x.At.Compare(y.At)
		})
		state := Replay(a.reviews, a.tier, s.params)
		result[item] = Mastery{
			Item:     item,
			State:    state,
			Strength: Strength(state, now),
			Cards:    a.cards,
		}
	}
	return result
}
