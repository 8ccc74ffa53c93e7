package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
)

var validate = validator.New()

// Languages reports whether a language code is known.
type Languages interface {
	Known(code string) bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLanguages rejects sessions whose languages are not in the registry.
func WithLanguages(l Languages) Option {
	return func(c *Controller) {
		c.languages = l
	}
}

// pending is the presentation awaiting a rating.
type pending struct {
	card *domain.Card
	step Step
}

// Controller runs one learning session. It is safe for concurrent use.
type Controller struct {
	scheduler scheduler.Service
	languages Languages
	now       func() time.Time
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	id         string
	cfg        Config
	difficulty domain.DifficultyFilter
	modes      domain.ModeSet
	startedAt  time.Time
	presented  []string
	firstShown bool
	introduced int
	passed     int
	failed     int
	current    *pending
	lastReason string
}

// NewController creates a controller in the NotStarted state.
func NewController(sched scheduler.Service, logger *slog.Logger, opts ...Option) *Controller {
	if sched == nil {
		panic("scheduler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		scheduler: sched,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With(slog.String("component", "session")),
		state:     StateNotStarted,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start validates the configuration and begins the session.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, c.logger)

	if c.state != StateNotStarted {
		return ErrAlreadyStarted
	}

	difficulty, modes, err := c.validateConfig(cfg)
	if err != nil {
		log.Warn("rejected session config", slog.String("error", err.Error()))
		return err
	}

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}

	c.id = id
	c.cfg = cfg
	c.cfg.Modes = slices.Clone(cfg.Modes)
	c.difficulty = difficulty
	c.modes = modes
	c.startedAt = c.now()
	c.state = StateAnswered

	log.Info("session started",
		slog.String("session_id", id),
		slog.String("target_language", cfg.TargetLanguage),
		slog.String("native_language", cfg.NativeLanguage),
		slog.String("difficulty", difficulty.String()),
		slog.String("modes", modes.String()))
	return nil
}

func (c *Controller) validateConfig(cfg Config) (domain.DifficultyFilter, domain.ModeSet, error) {
	if len(cfg.Modes) == 0 {
		return domain.DifficultyFilter{}, 0, fmt.Errorf("%w: no modes enabled", ErrInvalidConfig)
	}
	if err := validate.Struct(cfg); err != nil {
		return domain.DifficultyFilter{}, 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	difficulty, err := domain.ParseDifficultyFilter(cfg.Difficulty)
	if err != nil {
		return domain.DifficultyFilter{}, 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.languages != nil {
		for _, code := range []string{cfg.TargetLanguage, cfg.NativeLanguage} {
			if !c.languages.Known(code) {
				return domain.DifficultyFilter{}, 0, fmt.Errorf("%w: unknown language %q", ErrInvalidConfig, code)
			}
		}
	}
	return difficulty, domain.NewModeSet(cfg.Modes...), nil
}

// PresentNext selects the next card and how to present it.
//
// Exhaustion is reported as a Step in the Exhausted state, not as an error,
// and calling PresentNext again re-queries the scheduler. While a
// presentation is pending the same Step is returned unchanged.
func (c *Controller) PresentNext(ctx context.Context) (*Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, c.logger).With(slog.String("session_id", c.id))

	switch c.state {
	case StateNotStarted:
		return nil, ErrNotStarted
	case StateEnded:
		return nil, ErrEnded
	case StatePresented:
		step := c.current.step
		return &step, nil
	}

	card, err := c.scheduler.NextCard(ctx, c.query())
	if err != nil {
		if errors.Is(err, scheduler.ErrExhausted) {
			reason := ReasonNothingDue
			if errors.Is(err, scheduler.ErrNoMatchingCards) {
				reason = ReasonNoMatchingCards
			}
			c.state = StateExhausted
			c.lastReason = reason
			log.Info("session exhausted", slog.String("reason", reason))
			return &Step{State: StateExhausted, Reason: reason}, nil
		}
		log.Error("failed to select next card", slog.String("error", redact.Error(err)))
		return nil, err
	}

	mode, err := c.chooseMode(ctx, card)
	if err != nil {
		log.Error("failed to choose mode", slog.String("card_id", card.ID), slog.String("error", redact.Error(err)))
		return nil, err
	}

	autoplay := c.firstShown && mode == domain.ModeListen
	c.firstShown = true

	step := Step{
		State:        StatePresented,
		Presentation: present(card, mode, autoplay, c.now()),
	}
	c.current = &pending{card: card, step: step}
	c.state = StatePresented
	c.lastReason = ""

	log.Debug("presenting card",
		slog.String("card_id", card.ID),
		slog.String("mode", string(mode)),
		slog.Bool("autoplay", autoplay))
	return &step, nil
}

func (c *Controller) query() scheduler.Query {
	return scheduler.Query{
		TargetLanguage: c.cfg.TargetLanguage,
		NativeLanguage: c.cfg.NativeLanguage,
		Difficulty:     c.difficulty,
		Modes:          c.modes,
		Recent:         c.recent(),
		NewCardLimit:   c.cfg.NewCardLimit,
		Introduced:     c.introduced,
	}
}

// recent returns the last RecencyWindow presented ids.
func (c *Controller) recent() []string {
	n := min(c.cfg.RecencyWindow, len(c.presented))
	if n <= 0 {
		return nil
	}
	return slices.Clone(c.presented[len(c.presented)-n:])
}

// chooseMode picks among the enabled modes the card supports. Modes never
// used for the card's vocabulary come first, then the least recently used;
// ties follow the learner's order of enabled modes.
func (c *Controller) chooseMode(ctx context.Context, card *domain.Card) (domain.Mode, error) {
	var available []domain.Mode
	for _, m := range c.cfg.Modes {
		if card.Modes.Has(m) && !slices.Contains(available, m) {
			available = append(available, m)
		}
	}
	if len(available) == 0 {
		return "", fmt.Errorf("%w: card %s has modes %s", scheduler.ErrModeNotSupported, card.ID, card.Modes)
	}
	if len(available) == 1 {
		return available[0], nil
	}

	usage, err := c.scheduler.ModeUsage(ctx, card)
	if err != nil {
		return "", err
	}

	best := available[0]
	for _, m := range available[1:] {
		if lessRecentlyUsed(usage, m, best) {
			best = m
		}
	}
	return best, nil
}

// lessRecentlyUsed reports whether a was used strictly less recently than b.
func lessRecentlyUsed(usage map[domain.Mode]time.Time, a, b domain.Mode) bool {
	ta, usedA := usage[a]
	tb, usedB := usage[b]
	switch {
	case !usedA && !usedB:
		return false
	case !usedA:
		return true
	case !usedB:
		return false
	default:
		return ta.Before(tb)
	}
}

func present(card *domain.Card, mode domain.Mode, autoplay bool, at time.Time) *Presentation {
	p := &Presentation{
		CardID:         card.ID,
		Mode:           mode,
		Autoplay:       autoplay,
		Sentence:       card.Content.Sentence,
		NativeSentence: card.Content.NativeSentence,
		Phonetic:       card.Content.Phonetic,
		AudioRef:       card.Content.AudioRef,
		SlowAudioRef:   card.Content.SlowAudioRef,
		NativeAudioRef: card.Content.NativeAudioRef,
		Parts:          card.Content.SplitIntoParts(),
		Notes:          slices.Clone(card.Content.Notes),
		Difficulty:     card.Difficulty.String(),
		New:            card.IsUnseen(),
		PresentedAt:    at,
	}
	if mode == domain.ModeWrite {
		p.Prompt, p.Answer = card.Content.WritePair()
	}
	return p
}

// SubmitOutcome records the learner's rating of the pending presentation.
// Latency is measured from the presentation time.
func (c *Controller) SubmitOutcome(ctx context.Context, answer Answer) (domain.SchedulingState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, c.logger).With(slog.String("session_id", c.id))

	switch c.state {
	case StateNotStarted:
		return domain.SchedulingState{}, ErrNotStarted
	case StateEnded:
		return domain.SchedulingState{}, ErrEnded
	case StatePresented:
	default:
		log.Warn("outcome without pending presentation", slog.String("state", string(c.state)))
		return domain.SchedulingState{}, ErrOutOfSequence
	}

	p := c.current.step.Presentation
	rating := answer.cardRating()
	state, err := c.scheduler.RecordOutcome(ctx, scheduler.Outcome{
		CardID:   p.CardID,
		Mode:     p.Mode,
		Rating:   rating,
		Items:    answer.Items,
		Latency:  c.now().Sub(p.PresentedAt),
		Reported: answer.Reported,
	})
	if errors.Is(err, scheduler.ErrUnknownCard) {
		// The card left the store while presented; nothing remains to rate.
		log.Warn("presented card no longer exists", slog.String("card_id", p.CardID))
		c.current = nil
		c.state = StateAnswered
		return domain.SchedulingState{}, err
	}
	if err != nil {
		return domain.SchedulingState{}, err
	}

	c.presented = append(c.presented, p.CardID)
	if c.current.card.IsUnseen() {
		c.introduced++
	}
	if rating.Passed() {
		c.passed++
	} else {
		c.failed++
	}
	c.current = nil
	c.state = StateAnswered

	log.Debug("outcome recorded",
		slog.String("card_id", p.CardID),
		slog.String("rating", string(rating)),
		slog.Time("next_due_at", state.NextDueAt))
	return state, nil
}

// End terminates the session. Ending twice is a no-op.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateNotStarted {
		return ErrNotStarted
	}
	if c.state == StateEnded {
		return nil
	}
	c.state = StateEnded
	c.current = nil
	logger.FromContextOrDefault(ctx, c.logger).Info("session ended",
		slog.String("session_id", c.id),
		slog.Int("reviewed", len(c.presented)),
		slog.Int("introduced", c.introduced))
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the session id, empty before Start.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		ID:             c.id,
		State:          c.state,
		TargetLanguage: c.cfg.TargetLanguage,
		NativeLanguage: c.cfg.NativeLanguage,
		Difficulty:     c.difficulty,
		EnabledModes:   slices.Clone(c.cfg.Modes),
		NewCardLimit:   c.cfg.NewCardLimit,
		RecencyWindow:  c.cfg.RecencyWindow,
		StartedAt:      c.startedAt,
		PresentedIDs:   slices.Clone(c.presented),
		FirstCardShown: c.firstShown,
		Introduced:     c.introduced,

		ExhaustedReason: c.lastReason,
	}
	if c.state != StateNotStarted {
		s.DifficultyName = c.difficulty.String()
	}
	return s
}

// Stats returns the deck counts under the session filters together with
// the session counters.
func (c *Controller) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateNotStarted {
		return Stats{}, ErrNotStarted
	}

	q := c.query()
	q.Recent = nil
	deck, err := c.scheduler.Stats(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Reviewed:   len(c.presented),
		Introduced: c.introduced,
		Passed:     c.passed,
		Failed:     c.failed,
		Matching:   deck.Matching,
		Due:        deck.Due,
		Unseen:     deck.Unseen,
		Waiting:    deck.Waiting,
		Reported:   deck.Reported,
		KnownItems: deck.KnownItems,
		ToDoItems:  deck.ToDoItems,
	}, nil
}
