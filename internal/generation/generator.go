package generation

import (
	"context"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/language"
)

// Request describes a single card to generate from an already tagged sentence.
type Request struct {
	TargetLanguage language.Language
	NativeLanguage language.Language
	Difficulty     domain.Difficulty
	Sentence       string
	// UnitTags maps each word as written in Sentence to its vocabulary item.
	UnitTags map[string]string
	Notes    []string
}

// Generator defines the interface for generating learning cards.
// This interface serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
type Generator interface {
	// Generate produces a validated card with empty review history, or an
	// error if the card cannot be produced. Partial failures that leave a
	// usable card degrade its modes instead of failing.
	Generate(ctx context.Context, req Request) (*domain.Card, error)
}

// SentenceRequest asks for example sentences covering a set of units.
type SentenceRequest struct {
	Language   language.Language
	Difficulty domain.Difficulty
	Grammar    string
	Units      []string
}

// Tag maps a word as it occurs in a sentence to its dictionary form.
type Tag struct {
	Word string `json:"occurrence"`
	Item string `json:"dictionary_entry"`
}

// TextModel is the text side of a generative provider.
type TextModel interface {
	// CreateSentences returns up to len(req.Units) example sentences that
	// together use every unit and the grammar concept.
	CreateSentences(ctx context.Context, req SentenceRequest) ([]string, error)

	// TagSentence maps words of the sentence to vocabulary items. The hint
	// lists items that are likely to occur.
	TagSentence(ctx context.Context, sentence string, lang language.Language, hint []string) ([]Tag, error)

	// Translate translates the sentence into the given language.
	Translate(ctx context.Context, sentence string, to language.Language) (string, error)

	// ToPhonetic transcribes the sentence into the phonetic system of the
	// language. Returns an empty string when the language has none.
	ToPhonetic(ctx context.Context, sentence string, lang language.Language) (string, error)
}

// Speaker synthesizes speech. Audio is returned as 16-bit little-endian
// mono PCM.
type Speaker interface {
	Speak(ctx context.Context, text string, slowly bool) ([]byte, error)
}

// AudioStore persists synthesized audio clips by name.
type AudioStore interface {
	Save(ctx context.Context, name string, pcm []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]string, error)
}
