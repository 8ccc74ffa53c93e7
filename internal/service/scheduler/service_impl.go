package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/domain/srs"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"github.com/phrazzld/bespoke/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*schedulerImpl)(nil)

// Option configures the scheduler.
type Option func(*schedulerImpl)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *schedulerImpl) {
		if now != nil {
			s.now = now
		}
	}
}

type schedulerImpl struct {
	cards  store.CardStore
	srs    srs.Service
	now    func() time.Time
	logger *slog.Logger

	// serialises read-modify-write of review histories
	writeMu sync.Mutex
}

// NewService creates a scheduler over the given card store.
func NewService(
	cards store.CardStore,
	srsService srs.Service,
	logger *slog.Logger,
	opts ...Option,
) Service {
	if cards == nil {
		panic("cards cannot be nil")
	}
	if srsService == nil {
		panic("srsService cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &schedulerImpl{
		cards:  cards,
		srs:    srsService,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "scheduler")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadDeck reads the cards matching filter and recomputes each scheduling
// state from its review history. The stored state is only a cache and may
// predate the current SRS parameters.
func (s *schedulerImpl) loadDeck(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error) {
	deck, err := s.cards.GetCards(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, c := range deck {
		c.Scheduling = s.srs.Replay(c.ReviewHistory, c.Difficulty)
	}
	return deck, nil
}

// candidate is a selectable card with its weakest item strength.
type candidate struct {
	card     *domain.Card
	weakest  float64
	deferred bool // recent or reported
}

// NextCard implements Service.NextCard.
func (s *schedulerImpl) NextCard(ctx context.Context, q Query) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	deck, err := s.loadDeck(ctx, q.storeFilter())
	if err != nil {
		log.Error("failed to load cards", slog.String("error", redact.Error(err)))
		return nil, NewServiceError("next_card", "failed to load cards", err)
	}

	var due, unseen []*domain.Card
	matching := 0
	for _, c := range deck {
		if !q.Matches(c) {
			continue
		}
		matching++
		switch {
		case c.IsUnseen():
			unseen = append(unseen, c)
		case c.IsDue(now):
			due = append(due, c)
		}
	}

	if matching == 0 {
		log.Debug("no cards match query",
			slog.String("target_language", q.TargetLanguage),
			slog.String("difficulty", q.Difficulty.String()),
			slog.String("modes", q.Modes.String()))
		return nil, ErrNoMatchingCards
	}

	pool := due
	if len(pool) == 0 && q.Introduced < q.NewCardLimit {
		pool = unseen
	}
	if len(pool) == 0 {
		log.Debug("nothing due",
			slog.Int("matching", matching),
			slog.Int("unseen", len(unseen)),
			slog.Int("introduced", q.Introduced))
		return nil, ErrNothingDue
	}

	mastery := s.srs.ItemMastery(deck, now)
	best := s.pick(pool, mastery, q)

	log.Debug("selected card",
		slog.String("card_id", best.card.ID),
		slog.Bool("unseen", best.card.IsUnseen()),
		slog.Bool("deferred", best.deferred),
		slog.Float64("weakest_strength", best.weakest))
	return best.card, nil
}

// pick orders the pool by deferral, weakest item strength and id.
func (s *schedulerImpl) pick(pool []*domain.Card, mastery map[string]srs.Mastery, q Query) candidate {
	candidates := make([]candidate, 0, len(pool))
	for _, c := range pool {
		candidates = append(candidates, candidate{
			card:     c,
			weakest:  weakestStrength(c, mastery),
			deferred: q.isRecent(c.ID) || c.IsReported(),
		})
	}
	return slices.MinFunc(candidates, func(a, b candidate) int {
		if a.deferred != b.deferred {
			if a.deferred {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.weakest, b.weakest); c != 0 {
			return c
		}
		return strings.Compare(a.card.ID, b.card.ID)
	})
}

// weakestStrength is the lowest mastery strength among the card's items.
// Items without mastery and cards without items count as unknown.
func weakestStrength(c *domain.Card, mastery map[string]srs.Mastery) float64 {
	if len(c.VocabularyItems) == 0 {
		return 0
	}
	weakest := math.Inf(1)
	for _, item := range c.VocabularyItems {
		weakest = min(weakest, mastery[item].Strength)
	}
	return weakest
}

// RecordOutcome implements Service.RecordOutcome.
func (s *schedulerImpl) RecordOutcome(ctx context.Context, o Outcome) (domain.SchedulingState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("card_id", o.CardID))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	card, err := s.cards.GetByID(ctx, o.CardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			log.Warn("outcome for unknown card")
			return domain.SchedulingState{}, fmt.Errorf("%w: %s: %w", ErrUnknownCard, o.CardID, err)
		}
		log.Error("failed to load card", slog.String("error", redact.Error(err)))
		return domain.SchedulingState{}, NewServiceError("record_outcome", "failed to load card", err)
	}

	if o.Rating == "" {
		o.Rating = domain.CombineOutcomes(o.Items)
	}
	if !o.Rating.Valid() {
		log.Warn("invalid rating", slog.String("rating", string(o.Rating)))
		return domain.SchedulingState{}, fmt.Errorf("%w: %q", domain.ErrInvalidReviewOutcome, o.Rating)
	}
	for item, rating := range o.Items {
		if !rating.Valid() {
			log.Warn("invalid item rating", slog.String("item", item), slog.String("rating", string(rating)))
			return domain.SchedulingState{}, fmt.Errorf("%w: %q for %q", domain.ErrInvalidReviewOutcome, rating, item)
		}
		if !slices.Contains(card.VocabularyItems, item) {
			log.Warn("rating for item not on card", slog.String("item", item))
			return domain.SchedulingState{}, fmt.Errorf("%w: %q", domain.ErrUnknownItem, item)
		}
	}
	if !o.Mode.Valid() || !card.Modes.Has(o.Mode) {
		log.Warn("mode not supported",
			slog.String("mode", string(o.Mode)),
			slog.String("card_modes", card.Modes.String()))
		return domain.SchedulingState{}, fmt.Errorf("%w: %q not in %s", ErrModeNotSupported, o.Mode, card.Modes)
	}

	at := s.now()
	if last := card.LastReviewedAt(); at.Before(last) {
		at = last
	}

	card.ReviewHistory = append(card.ReviewHistory, domain.Review{
		At:       at,
		Mode:     o.Mode,
		Outcome:  o.Rating,
		Latency:  max(o.Latency, 0),
		Reported: o.Reported,
		Items:    maps.Clone(o.Items),
	})
	card.Scheduling = s.srs.Replay(card.ReviewHistory, card.Difficulty)
	card.UpdatedAt = at

	if err := s.cards.Upsert(ctx, card); err != nil {
		log.Error("failed to store review", slog.String("error", redact.Error(err)))
		return domain.SchedulingState{}, NewServiceError("record_outcome", "failed to store review", err)
	}

	log.Debug("recorded outcome",
		slog.String("mode", string(o.Mode)),
		slog.String("rating", string(o.Rating)),
		slog.Int("item_ratings", len(o.Items)),
		slog.Bool("reported", o.Reported),
		slog.Duration("interval", card.Scheduling.Interval),
		slog.Time("next_due_at", card.Scheduling.NextDueAt))
	return card.Scheduling, nil
}

// Stats implements Service.Stats.
func (s *schedulerImpl) Stats(ctx context.Context, q Query) (Stats, error) {
	now := s.now()
	deck, err := s.loadDeck(ctx, q.storeFilter())
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load cards",
			slog.String("error", redact.Error(err)))
		return Stats{}, NewServiceError("stats", "failed to load cards", err)
	}

	var stats Stats
	items := make(map[string]struct{})
	for _, c := range deck {
		if !q.Matches(c) {
			continue
		}
		stats.Matching++
		switch {
		case c.IsUnseen():
			stats.Unseen++
		case c.IsDue(now):
			stats.Due++
		default:
			stats.Waiting++
		}
		if c.IsReported() {
			stats.Reported++
		}
		for _, item := range c.VocabularyItems {
			items[item] = struct{}{}
		}
	}

	mastery := s.srs.ItemMastery(deck, now)
	for item := range items {
		if mastery[item].Satisfied(now) {
			stats.KnownItems++
		} else {
			stats.ToDoItems++
		}
	}
	return stats, nil
}

// ModeUsage implements Service.ModeUsage.
func (s *schedulerImpl) ModeUsage(ctx context.Context, card *domain.Card) (map[domain.Mode]time.Time, error) {
	if card == nil {
		return nil, fmt.Errorf("%w: nil card", ErrUnknownCard)
	}

	related := []*domain.Card{card}
	if len(card.VocabularyItems) > 0 {
		deck, err := s.cards.GetCards(ctx, store.CardFilter{TargetLanguage: card.TargetLanguage})
		if err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to load cards",
				slog.String("error", redact.Error(err)))
			return nil, NewServiceError("mode_usage", "failed to load cards", err)
		}
		for _, c := range deck {
			if c.ID != card.ID && sharesItem(c, card) {
				related = append(related, c)
			}
		}
	}

	usage := make(map[domain.Mode]time.Time)
	for _, c := range related {
		for _, r := range c.ReviewHistory {
			if last, ok := usage[r.Mode]; !ok || r.At.After(last) {
				usage[r.Mode] = r.At
			}
		}
	}
	return usage, nil
}

func sharesItem(a, b *domain.Card) bool {
	for _, item := range a.VocabularyItems {
		if _, found := slices.BinarySearch(b.VocabularyItems, item); found {
			return true
		}
	}
	return false
}

// Mastery implements Service.Mastery.
func (s *schedulerImpl) Mastery(ctx context.Context, targetLanguage string) (map[string]srs.Mastery, error) {
	deck, err := s.cards.GetCards(ctx, store.CardFilter{TargetLanguage: targetLanguage})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load cards",
			slog.String("error", redact.Error(err)))
		return nil, NewServiceError("mastery", "failed to load cards", err)
	}
	return s.srs.ItemMastery(deck, s.now()), nil
}
