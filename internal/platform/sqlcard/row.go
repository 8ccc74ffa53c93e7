// Package sqlcard maps domain cards to and from the relational row layout
// shared by the SQL card stores, and builds the WHERE clause for card filters
// in a dialect-neutral way.
package sqlcard

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/store"
)

// Columns lists the card columns in the order used by Row.Args and Scan.
const Columns = "id, target_language, native_language, difficulty, modes, content, " +
	"vocabulary_items, review_history, scheduling, next_due_at, created_at, updated_at"

// ColumnCount is the number of entries in Columns.
const ColumnCount = 12

// Row is the relational form of a card. JSON columns hold the nested parts.
type Row struct {
	ID              string
	TargetLanguage  string
	NativeLanguage  string
	Difficulty      int
	Modes           int
	Content         []byte
	VocabularyItems []byte
	ReviewHistory   []byte
	Scheduling      []byte
	NextDueAt       sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Encode converts a card into a row.
func Encode(card *domain.Card) (*Row, error) {
	content, err := json.Marshal(card.Content)
	if err != nil {
		return nil, fmt.Errorf("encoding content: %w", err)
	}
	items := card.VocabularyItems
	if items == nil {
		items = []string{}
	}
	vocabulary, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding vocabulary items: %w", err)
	}
	history := card.ReviewHistory
	if history == nil {
		history = []domain.Review{}
	}
	reviews, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encoding review history: %w", err)
	}
	scheduling, err := json.Marshal(card.Scheduling)
	if err != nil {
		return nil, fmt.Errorf("encoding scheduling: %w", err)
	}

	row := &Row{
		ID:              card.ID,
		TargetLanguage:  card.TargetLanguage,
		NativeLanguage:  card.NativeLanguage,
		Difficulty:      int(card.Difficulty),
		Modes:           int(card.Modes),
		Content:         content,
		VocabularyItems: vocabulary,
		ReviewHistory:   reviews,
		Scheduling:      scheduling,
		CreatedAt:       card.CreatedAt.UTC(),
		UpdatedAt:       card.UpdatedAt.UTC(),
	}
	if !card.IsUnseen() {
		row.NextDueAt = sql.NullTime{Time: card.Scheduling.NextDueAt.UTC(), Valid: true}
	}
	return row, nil
}

// Args returns the row values in column order.
func (r *Row) Args() []any {
	return []any{
		r.ID, r.TargetLanguage, r.NativeLanguage, r.Difficulty, r.Modes,
		r.Content, r.VocabularyItems, r.ReviewHistory, r.Scheduling,
		r.NextDueAt, r.CreatedAt, r.UpdatedAt,
	}
}

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Scan reads one row in column order and decodes it into a card.
// Decoding failures wrap store.ErrInternal.
func Scan(s Scanner) (*domain.Card, error) {
	var r Row
	if err := s.Scan(
		&r.ID, &r.TargetLanguage, &r.NativeLanguage, &r.Difficulty, &r.Modes,
		&r.Content, &r.VocabularyItems, &r.ReviewHistory, &r.Scheduling,
		&r.NextDueAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return r.Decode()
}

// Decode converts the row back into a card.
func (r *Row) Decode() (*domain.Card, error) {
	card := &domain.Card{
		ID:             r.ID,
		TargetLanguage: r.TargetLanguage,
		NativeLanguage: r.NativeLanguage,
		Difficulty:     domain.Difficulty(r.Difficulty),
		Modes:          domain.ModeSet(r.Modes),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	for name, part := range map[string]struct {
		data []byte
		dest any
	}{
		"content":          {r.Content, &card.Content},
		"vocabulary items": {r.VocabularyItems, &card.VocabularyItems},
		"review history":   {r.ReviewHistory, &card.ReviewHistory},
		"scheduling":       {r.Scheduling, &card.Scheduling},
	} {
		if len(part.data) == 0 {
			continue
		}
		if err := json.Unmarshal(part.data, part.dest); err != nil {
			return nil, fmt.Errorf("%w: decoding %s of card %s: %v", store.ErrInternal, name, r.ID, err)
		}
	}
	if len(card.ReviewHistory) == 0 {
		card.ReviewHistory = nil
	}
	return card, nil
}

// Dialect captures the SQL differences between backends.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// ItemContains renders a predicate testing that the vocabulary_items
	// JSON array contains the bound string.
	ItemContains func(placeholder string) string
}

// Where builds the WHERE clause (including the keyword, or empty) and its
// arguments for a card filter.
func (d Dialect) Where(filter store.CardFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(format string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(format, d.Placeholder(len(args))))
	}

	if filter.TargetLanguage != "" {
		add("target_language = %s", filter.TargetLanguage)
	}
	if filter.NativeLanguage != "" {
		add("native_language = %s", filter.NativeLanguage)
	}
	if filter.Difficulty != nil {
		add("difficulty >= %s", int(filter.Difficulty.Min))
		add("difficulty <= %s", int(filter.Difficulty.Max))
	}
	if filter.VocabularyItem != "" {
		args = append(args, filter.VocabularyItem)
		conds = append(conds, d.ItemContains(d.Placeholder(len(args))))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Placeholders renders n consecutive placeholders starting at 1, comma separated.
func (d Dialect) Placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}
