// Package scheduler selects the next card to review and records review
// outcomes. It is the spaced-repetition core that sits between the card store
// and the session controller.
package scheduler

import (
	"context"
	"slices"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/domain/srs"
	"github.com/phrazzld/bespoke/internal/store"
)

// Query describes which cards are eligible for selection.
type Query struct {
	TargetLanguage string
	// NativeLanguage narrows the deck when set.
	NativeLanguage string
	// Difficulty is a tier or tier range; the zero value accepts every tier.
	Difficulty domain.DifficultyFilter
	Modes      domain.ModeSet
	// Recent holds the ids presented most recently in the session. They are
	// only selected when nothing else is available.
	Recent []string
	// NewCardLimit caps the unseen cards introduced in one session.
	NewCardLimit int
	// Introduced is the number of unseen cards already introduced.
	Introduced int
}

func (q Query) storeFilter() store.CardFilter {
	return store.CardFilter{
		TargetLanguage: q.TargetLanguage,
		NativeLanguage: q.NativeLanguage,
	}
}

// Matches reports whether the card passes the language, tier and mode filters.
func (q Query) Matches(c *domain.Card) bool {
	if c.TargetLanguage != q.TargetLanguage {
		return false
	}
	if q.NativeLanguage != "" && c.NativeLanguage != q.NativeLanguage {
		return false
	}
	if q.Difficulty != (domain.DifficultyFilter{}) && !q.Difficulty.Contains(c.Difficulty) {
		return false
	}
	return !c.Modes.Intersect(q.Modes).IsEmpty()
}

func (q Query) isRecent(id string) bool {
	return slices.Contains(q.Recent, id)
}

// Outcome is a learner's rating of one presentation.
type Outcome struct {
	CardID string      `json:"card_id"`
	Mode   domain.Mode `json:"mode"`
	// Rating may be left empty when Items is set; the card is then rated as
	// its weakest item.
	Rating   domain.ReviewOutcome            `json:"rating"`
	Items    map[string]domain.ReviewOutcome `json:"items,omitempty"`
	Latency  time.Duration                   `json:"latency"`
	Reported bool                            `json:"reported"`
}

// Stats summarises the deck under a query.
type Stats struct {
	// Matching is the number of cards passing the query filters.
	Matching int `json:"matching"`
	// Due is the number of reviewed matching cards that are due now.
	Due int `json:"due"`
	// Unseen is the number of matching cards never reviewed.
	Unseen int `json:"unseen"`
	// Waiting is the number of reviewed matching cards not yet due.
	Waiting int `json:"waiting"`
	// Reported is the number of matching cards whose last review flagged them.
	Reported int `json:"reported"`
	// KnownItems counts vocabulary items of matching cards that are satisfied.
	KnownItems int `json:"known_items"`
	// ToDoItems counts the remaining vocabulary items of matching cards.
	ToDoItems int `json:"todo_items"`
}

// Service selects cards and records outcomes.
type Service interface {
	// NextCard returns the card most worth reviewing now.
	//
	// Returns:
	//   - (*domain.Card, nil): the selected card
	//   - (nil, ErrNoMatchingCards): no card passes the filters, including
	//     when the store is empty
	//   - (nil, ErrNothingDue): matching cards exist but none can be shown now
	//   - (nil, error): any other error, typically from the store
	//
	// NextCard never mutates state, so repeated calls return the same card.
	NextCard(ctx context.Context, q Query) (*domain.Card, error)

	// RecordOutcome appends a review to the card and recomputes its
	// scheduling state from the full history.
	//
	// Returns ErrUnknownCard for an id the store does not hold,
	// domain.ErrInvalidReviewOutcome for an unknown rating and
	// ErrModeNotSupported for a mode the card lacks. The store is not
	// touched in any of these cases.
	RecordOutcome(ctx context.Context, o Outcome) (domain.SchedulingState, error)

	// Stats counts matching, due, unseen and waiting cards along with known
	// and to-do vocabulary items.
	Stats(ctx context.Context, q Query) (Stats, error)

	// ModeUsage returns the last time each mode was reviewed for any of the
	// card's vocabulary items. Modes never used are absent.
	ModeUsage(ctx context.Context, card *domain.Card) (map[domain.Mode]time.Time, error)

	// Mastery returns the mastery of every vocabulary item in a language.
	Mastery(ctx context.Context, targetLanguage string) (map[string]srs.Mastery, error)
}
