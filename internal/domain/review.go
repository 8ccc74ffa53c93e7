package domain

import (
	"errors"
	"fmt"
	"time"
)

// ReviewOutcome represents the result of a card review
type ReviewOutcome string

// Possible review outcome values
const (
	ReviewOutcomeAgain ReviewOutcome = "again"
	ReviewOutcomeHard  ReviewOutcome = "hard"
	ReviewOutcomeGood  ReviewOutcome = "good"
	ReviewOutcomeEasy  ReviewOutcome = "easy"
)

// Common validation errors for reviews and scheduling state
var (
	ErrInvalidInterval   = errors.New("interval must be greater than or equal to 0")
	ErrInvalidEaseFactor = errors.New("ease factor must be greater than 1.0")
	ErrReviewTimeZero    = errors.New("review time cannot be zero")
)

// ParseReviewOutcome converts a rating name into a ReviewOutcome.
func ParseReviewOutcome(s string) (ReviewOutcome, error) {
	o := ReviewOutcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReviewOutcome, s)
	}
	return o, nil
}

// Valid reports whether o is one of the known ratings.
func (o ReviewOutcome) Valid() bool {
	switch o {
	case ReviewOutcomeAgain, ReviewOutcomeHard, ReviewOutcomeGood, ReviewOutcomeEasy:
		return true
	}
	return false
}

// Passed reports whether the rating counts as a successful recall.
func (o ReviewOutcome) Passed() bool {
	return o == ReviewOutcomeHard || o == ReviewOutcomeGood || o == ReviewOutcomeEasy
}

func (o ReviewOutcome) rank() int {
	switch o {
	case ReviewOutcomeAgain:
		return 0
	case ReviewOutcomeHard:
		return 1
	case ReviewOutcomeGood:
		return 2
	case ReviewOutcomeEasy:
		return 3
	}
	return -1
}

// CombineOutcomes derives a card rating from per-item ratings: the card is
// rated as its weakest item. It returns "" for an empty map.
func CombineOutcomes(items map[string]ReviewOutcome) ReviewOutcome {
	var worst ReviewOutcome
	for _, o := range items {
		if worst == "" || o.rank() < worst.rank() {
			worst = o
		}
	}
	return worst
}

// Review is one entry of a card's append-only review history.
type Review struct {
	At       time.Time     `json:"at"`
	Mode     Mode          `json:"mode"`
	Outcome  ReviewOutcome `json:"outcome"`
	Latency  time.Duration `json:"latency"`
	Reported bool          `json:"reported,omitempty"`
	// Items holds per vocabulary item ratings when the learner rated words
	// individually. Items without an entry take Outcome.
	Items map[string]ReviewOutcome `json:"items,omitempty"`
}

// OutcomeFor returns the rating the review gave to one vocabulary item.
func (r Review) OutcomeFor(item string) ReviewOutcome {
	if o, ok := r.Items[item]; ok {
		return o
	}
	return r.Outcome
}

// Validate checks if the Review has valid data.
func (r Review) Validate() error {
	if r.At.IsZero() {
		return ErrReviewTimeZero
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, r.Mode)
	}
	if !r.Outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReviewOutcome, r.Outcome)
	}
	for item, o := range r.Items {
		if !o.Valid() {
			return fmt.Errorf("%w: %q for %q", ErrInvalidReviewOutcome, o, item)
		}
	}
	return nil
}

// SchedulingState is the spaced-repetition state of a card or vocabulary item.
// It is always recomputed from the review history.
type SchedulingState struct {
	Interval           time.Duration `json:"interval"`
	EaseFactor         float64       `json:"ease_factor"`
	ConsecutiveCorrect int           `json:"consecutive_correct"`
	ReviewCount        int           `json:"review_count"`
	Lapses             int           `json:"lapses"`
	LastReviewedAt     time.Time     `json:"last_reviewed_at"`
	NextDueAt          time.Time     `json:"next_due_at"`
}

// Validate checks if the SchedulingState has valid data.
// The zero value is the state of a never reviewed card and is valid.
func (s SchedulingState) Validate() error {
	if s.Interval < 0 {
		return ErrInvalidInterval
	}
	if s.ReviewCount > 0 && s.EaseFactor <= 1.0 {
		return ErrInvalidEaseFactor
	}
	return nil
}
