// Package session drives a learning session: it pulls cards from the
// scheduler, picks a presentation mode, applies the autoplay rule and feeds
// the learner's ratings back.
package session

import (
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
)

// State is the position of a session in its lifecycle.
type State string

// Session states. Presented and Answered are the two halves of InSession.
const (
	StateNotStarted State = "not_started"
	StatePresented  State = "presented"
	StateAnswered   State = "answered"
	StateExhausted  State = "exhausted"
	StateEnded      State = "ended"
)

// Exhaustion reasons reported in a Step.
const (
	ReasonNothingDue      = "nothing_due"
	ReasonNoMatchingCards = "no_matching_cards"
)

// Config is the learner-supplied session configuration.
type Config struct {
	TargetLanguage string `json:"target_language" validate:"required"`
	NativeLanguage string `json:"native_language" validate:"required,nefield=TargetLanguage"`
	// Difficulty is a tier such as "A1" or a range such as "A1-B1".
	Difficulty string `json:"difficulty" validate:"required"`
	// Modes lists the enabled modes in the learner's order of preference.
	Modes         []domain.Mode `json:"modes" validate:"required,min=1,dive,oneof=listen speak read write"`
	NewCardLimit  int           `json:"new_card_limit" validate:"gte=0"`
	RecencyWindow int           `json:"recency_window" validate:"gte=0"`
}

// Presentation is what the frontend needs to show one card.
type Presentation struct {
	CardID         string        `json:"card_id"`
	Mode           domain.Mode   `json:"mode"`
	Autoplay       bool          `json:"autoplay"`
	Sentence       string        `json:"sentence"`
	NativeSentence string        `json:"native_sentence"`
	Phonetic       string        `json:"phonetic,omitempty"`
	AudioRef       string        `json:"audio_ref,omitempty"`
	SlowAudioRef   string        `json:"slow_audio_ref,omitempty"`
	NativeAudioRef string        `json:"native_audio_ref,omitempty"`
	Prompt         string        `json:"prompt,omitempty"`
	Answer         string        `json:"answer,omitempty"`
	Parts          []domain.Part `json:"parts"`
	Notes          []string      `json:"notes,omitempty"`
	Difficulty     string        `json:"difficulty"`
	New            bool          `json:"new"`
	PresentedAt    time.Time     `json:"presented_at"`
}

// Step is the result of PresentNext. Exactly one of Presentation or Reason
// is set.
type Step struct {
	State        State         `json:"state"`
	Reason       string        `json:"reason,omitempty"`
	Presentation *Presentation `json:"presentation,omitempty"`
}

// Answer is the learner's rating of the pending presentation. Items rates
// words individually, keyed by vocabulary item; when Rating is empty the card
// takes the rating of its weakest item.
type Answer struct {
	Rating   domain.ReviewOutcome            `json:"rating"`
	Items    map[string]domain.ReviewOutcome `json:"items,omitempty"`
	Reported bool                            `json:"reported"`
}

func (a Answer) cardRating() domain.ReviewOutcome {
	if a.Rating != "" {
		return a.Rating
	}
	return domain.CombineOutcomes(a.Items)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID             string                  `json:"id"`
	State          State                   `json:"state"`
	TargetLanguage string                  `json:"target_language"`
	NativeLanguage string                  `json:"native_language"`
	Difficulty     domain.DifficultyFilter `json:"-"`
	DifficultyName string                  `json:"difficulty"`
	EnabledModes   []domain.Mode           `json:"enabled_modes"`
	NewCardLimit   int                     `json:"new_card_limit"`
	RecencyWindow  int                     `json:"recency_window"`
	StartedAt      time.Time               `json:"started_at"`
	PresentedIDs   []string                `json:"presented_ids"`
	FirstCardShown bool                    `json:"first_card_shown"`
	Introduced     int                     `json:"introduced"`
	// ExhaustedReason is set while the session is Exhausted.
	ExhaustedReason string `json:"exhausted_reason,omitempty"`
}

// Stats combines the deck counts under the session filters with the
// session's own counters.
type Stats struct {
	Reviewed   int `json:"reviewed"`
	Introduced int `json:"introduced"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Matching   int `json:"matching"`
	Due        int `json:"due"`
	Unseen     int `json:"unseen"`
	Waiting    int `json:"waiting"`
	Reported   int `json:"reported"`
	KnownItems int `json:"known_items"`
	ToDoItems  int `json:"todo_items"`
}
