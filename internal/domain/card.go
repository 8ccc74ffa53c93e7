package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardLanguageEmpty is returned when a card has no target or native language.
	ErrCardLanguageEmpty = errors.New("card languages cannot be empty")

	// ErrCardModesEmpty is returned when a card supports no presentation mode.
	ErrCardModesEmpty = errors.New("card must support at least one mode")

	// ErrCardModesInconsistent is returned when a card claims a mode its content cannot back.
	ErrCardModesInconsistent = errors.New("card modes are inconsistent with its content")

	// ErrCardContentEmpty is returned when a card has no sentence.
	ErrCardContentEmpty = errors.New("card sentence cannot be empty")

	// ErrReviewHistoryUnordered is returned when review timestamps decrease.
	ErrReviewHistoryUnordered = errors.New("review history must be in chronological order")
)

// cardNamespace seeds name-based card IDs.
var cardNamespace = uuid.MustParse("6f1c2a4e-3d0b-5c8e-9a7f-1b2c3d4e5f60")

// CardID derives the stable identifier of a card from its language and sentence.
// Regenerating the same sentence always yields the same ID.
func CardID(targetLanguage, sentence string) string {
	return uuid.NewSHA1(cardNamespace, []byte(targetLanguage+"\x00"+sentence)).String()
}

// CardContent holds the material a card presents.
type CardContent struct {
	Sentence       string            `json:"sentence"`
	NativeSentence string            `json:"native_sentence,omitempty"`
	Phonetic       string            `json:"phonetic,omitempty"`
	AudioRef       string            `json:"audio_ref,omitempty"`
	SlowAudioRef   string            `json:"slow_audio_ref,omitempty"`
	NativeAudioRef string            `json:"native_audio_ref,omitempty"`
	Prompt         string            `json:"prompt,omitempty"`
	Answer         string            `json:"answer,omitempty"`
	UnitTags       map[string]string `json:"unit_tags,omitempty"` // word as written -> vocabulary item
	Notes          []string          `json:"notes,omitempty"`
}

// WritePair returns the prompt shown and the answer expected in write mode.
// An explicit Prompt/Answer pair wins over the sentence translation.
func (c CardContent) WritePair() (prompt, answer string) {
	if c.Prompt != "" && c.Answer != "" {
		return c.Prompt, c.Answer
	}
	return c.NativeSentence, c.Sentence
}

// DeriveModes returns the largest set of modes the content can support.
func DeriveModes(c CardContent) ModeSet {
	var modes ModeSet
	if c.AudioRef != "" {
		modes = modes.With(ModeListen).With(ModeSpeak)
	}
	if strings.TrimSpace(c.Sentence) != "" {
		modes = modes.With(ModeRead)
	}
	if prompt, answer := c.WritePair(); prompt != "" && answer != "" {
		modes = modes.With(ModeWrite)
	}
	return modes
}

// Card is a unit of learning material in the target language together with
// its review history and the scheduling state derived from that history.
type Card struct {
	ID              string          `json:"id"`
	TargetLanguage  string          `json:"target_language"`
	NativeLanguage  string          `json:"native_language"`
	Difficulty      Difficulty      `json:"difficulty"`
	Modes           ModeSet         `json:"modes"`
	Content         CardContent     `json:"content"`
	VocabularyItems []string        `json:"vocabulary_items"`
	ReviewHistory   []Review        `json:"review_history"`
	Scheduling      SchedulingState `json:"scheduling"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewCard creates a new, never reviewed Card.
// The ID is derived from the sentence, modes are derived from the content
// and vocabulary items are collected from the unit tags.
// Returns an error if validation fails.
func NewCard(targetLanguage, nativeLanguage string, difficulty Difficulty, content CardContent) (*Card, error) {
	now := time.Now().UTC()
	items := make([]string, 0, len(content.UnitTags))
	for _, item := range content.UnitTags {
		items = append(items, item)
	}

	card := &Card{
		ID:              CardID(targetLanguage, content.Sentence),
		TargetLanguage:  targetLanguage,
		NativeLanguage:  nativeLanguage,
		Difficulty:      difficulty,
		Modes:           DeriveModes(content),
		Content:         content,
		VocabularyItems: NormalizeItems(items),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// NormalizeItems trims, deduplicates and sorts vocabulary items.
func NormalizeItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Validate checks if the Card has valid data.
// Returns an error if any field fails validation.
func (c *Card) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrCardIDEmpty
	}

	if c.TargetLanguage == "" || c.NativeLanguage == "" {
		return ErrCardLanguageEmpty
	}

	if !c.Difficulty.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDifficulty, int(c.Difficulty))
	}

	if strings.TrimSpace(c.Content.Sentence) == "" {
		return ErrCardContentEmpty
	}

	if c.Modes.IsEmpty() {
		return ErrCardModesEmpty
	}

	supported := DeriveModes(c.Content)
	for _, m := range c.Modes.Modes() {
		if !supported.Has(m) {
			return fmt.Errorf("%w: %s", ErrCardModesInconsistent, m)
		}
	}

	for i, r := range c.ReviewHistory {
		if err := r.Validate(); err != nil {
			return err
		}
		for item := range r.Items {
			if !slices.Contains(c.VocabularyItems, item) {
				return fmt.Errorf("%w: %q", ErrUnknownItem, item)
			}
		}
		if i > 0 && r.At.Before(c.ReviewHistory[i-1].At) {
			return ErrReviewHistoryUnordered
		}
	}

	return nil
}

// IsUnseen reports whether the card has never been reviewed.
func (c *Card) IsUnseen() bool {
	return len(c.ReviewHistory) == 0
}

// IsDue reports whether a reviewed card is due at the given time.
// Unseen cards are never due; they are introduced separately.
func (c *Card) IsDue(now time.Time) bool {
	return !c.IsUnseen() && !c.Scheduling.NextDueAt.After(now)
}

// IsReported reports whether the most recent review flagged the card as faulty.
func (c *Card) IsReported() bool {
	if len(c.ReviewHistory) == 0 {
		return false
	}
	return c.ReviewHistory[len(c.ReviewHistory)-1].Reported
}

// LastReviewedAt returns the time of the latest review, or the zero time.
func (c *Card) LastReviewedAt() time.Time {
	if len(c.ReviewHistory) == 0 {
		return time.Time{}
	}
	return c.ReviewHistory[len(c.ReviewHistory)-1].At
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	clone := *c
	clone.VocabularyItems = slices.Clone(c.VocabularyItems)
	clone.ReviewHistory = slices.Clone(c.ReviewHistory)
	for i := range clone.ReviewHistory {
		clone.ReviewHistory[i].Items = maps.Clone(c.ReviewHistory[i].Items)
	}
	clone.Content.Notes = slices.Clone(c.Content.Notes)
	if c.Content.UnitTags != nil {
		clone.Content.UnitTags = make(map[string]string, len(c.Content.UnitTags))
		for k, v := range c.Content.UnitTags {
			clone.Content.UnitTags[k] = v
		}
	}
	return &clone
}

// Part is a segment of a card sentence. Item is empty for untagged text.
type Part struct {
	Text string `json:"text"`
	Item string `json:"item,omitempty"`
}

// SplitIntoParts segments the sentence into tagged words and untagged text.
// Longer words are matched first so that compounds win over their components.
// Each tagged word is matched at most once, at its first untagged occurrence.
func (c CardContent) SplitIntoParts() []Part {
	type tag struct{ word, item string }
	tags := make([]tag, 0, len(c.UnitTags))
	for word, item := range c.UnitTags {
		if word != "" {
			tags = append(tags, tag{word, item})
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		wi, wj := utf8.RuneCountInString(tags[i].word), utf8.RuneCountInString(tags[j].word)
		if wi != wj {
			return wi > wj
		}
		ii, ij := utf8.RuneCountInString(tags[i].item), utf8.RuneCountInString(tags[j].item)
		if ii != ij {
			return ii > ij
		}
		return tags[i].word < tags[j].word
	})

	parts := []Part{{Text: c.Sentence}}
	for _, t := range tags {
		next := make([]Part, 0, len(parts)+2)
		found := false
		for _, p := range parts {
			if found || p.Item != "" {
				next = append(next, p)
				continue
			}
			prefix, suffix, ok := strings.Cut(p.Text, t.word)
			if !ok {
				next = append(next, p)
				continue
			}
			if s := strings.TrimSpace(prefix); s != "" {
				next = append(next, Part{Text: s})
			}
			next = append(next, Part{Text: t.word, Item: t.item})
			if s := strings.TrimSpace(suffix); s != "" {
				next = append(next, Part{Text: s})
			}
			found = true
		}
		parts = next
	}
	return parts
}

// String renders the card with tagged words marked, for logs and CLIs.
func (c *Card) String() string {
	var b strings.Builder
	for _, p := range c.Content.SplitIntoParts() {
		if p.Item == "" {
			b.WriteString(p.Text)
			continue
		}
		fmt.Fprintf(&b, "[%s](%s)", p.Text, p.Item)
	}
	return fmt.Sprintf("Card: %s = %s", b.String(), c.Content.NativeSentence)
}
