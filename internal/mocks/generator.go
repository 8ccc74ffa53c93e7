package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/generation"
	"github.com/phrazzld/bespoke/internal/language"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, req generation.Request) (*domain.Card, error)

	// Err is returned when GenerateFn is unset. With no error the card is
	// built from the request with domain.NewCard and read/write content only.
	Err error

	mu       sync.Mutex
	Requests []generation.Request
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements generation.Generator
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (*domain.Card, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return domain.NewCard(req.TargetLanguage.Code, req.NativeLanguage.Code, req.Difficulty, domain.CardContent{
		Sentence:       req.Sentence,
		NativeSentence: "translation of " + req.Sentence,
		UnitTags:       req.UnitTags,
		Notes:          req.Notes,
	})
}

// RequestCount returns the number of Generate calls
func (m *MockGenerator) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockTextModel implements generation.TextModel for testing.
// Unset function fields return simple deterministic values.
type MockTextModel struct {
	CreateSentencesFn func(ctx context.Context, req generation.SentenceRequest) ([]string, error)
	TagSentenceFn     func(ctx context.Context, sentence string, lang language.Language, hint []string) ([]generation.Tag, error)
	TranslateFn       func(ctx context.Context, sentence string, to language.Language) (string, error)
	ToPhoneticFn      func(ctx context.Context, sentence string, lang language.Language) (string, error)

	mu               sync.Mutex
	SentenceRequests []generation.SentenceRequest
	TagCalls         int
	TranslateCalls   int
	PhoneticCalls    int
}

var _ generation.TextModel = (*MockTextModel)(nil)

// CreateSentences implements generation.TextModel. By default it returns one
// sentence per unit containing that unit.
func (m *MockTextModel) CreateSentences(ctx context.Context, req generation.SentenceRequest) ([]string, error) {
	m.mu.Lock()
	m.SentenceRequests = append(m.SentenceRequests, req)
	m.mu.Unlock()

	if m.CreateSentencesFn != nil {
		return m.CreateSentencesFn(ctx, req)
	}
	sentences := make([]string, 0, len(req.Units))
	for _, u := range req.Units {
		sentences = append(sentences, strings.TrimSpace(u+" "+req.Grammar))
	}
	return sentences, nil
}

// TagSentence implements generation.TextModel. By default it tags every
// hint entry occurring in the sentence.
func (m *MockTextModel) TagSentence(
	ctx context.Context,
	sentence string,
	lang language.Language,
	hint []string,
) ([]generation.Tag, error) {
	m.mu.Lock()
	m.TagCalls++
	m.mu.Unlock()

	if m.TagSentenceFn != nil {
		return m.TagSentenceFn(ctx, sentence, lang, hint)
	}
	var tags []generation.Tag
	for _, h := range hint {
		if strings.Contains(sentence, h) {
			tags = append(tags, generation.Tag{Word: h, Item: h})
		}
	}
	return tags, nil
}

// Translate implements generation.TextModel.
func (m *MockTextModel) Translate(ctx context.Context, sentence string, to language.Language) (string, error) {
	m.mu.Lock()
	m.TranslateCalls++
	m.mu.Unlock()

	if m.TranslateFn != nil {
		return m.TranslateFn(ctx, sentence, to)
	}
	return "[" + to.Code + "] " + sentence, nil
}

// ToPhonetic implements generation.TextModel.
func (m *MockTextModel) ToPhonetic(ctx context.Context, sentence string, lang language.Language) (string, error) {
	m.mu.Lock()
	m.PhoneticCalls++
	m.mu.Unlock()

	if m.ToPhoneticFn != nil {
		return m.ToPhoneticFn(ctx, sentence, lang)
	}
	return "phonetic " + sentence, nil
}

// MockSpeaker implements generation.Speaker for testing.
type MockSpeaker struct {
	SpeakFn func(ctx context.Context, text string, slowly bool) ([]byte, error)

	// Default response values
	PCM []byte
	Err error

	mu    sync.Mutex
	Texts []string
}

var _ generation.Speaker = (*MockSpeaker)(nil)

// Speak implements generation.Speaker. By default it returns PCM, or two
// bytes of silence when PCM is unset.
func (m *MockSpeaker) Speak(ctx context.Context, text string, slowly bool) ([]byte, error) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()

	if m.SpeakFn != nil {
		return m.SpeakFn(ctx, text, slowly)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.PCM != nil {
		return m.PCM, nil
	}
	return []byte{0, 0}, nil
}

// CallCount returns the number of Speak calls
func (m *MockSpeaker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Texts)
}
