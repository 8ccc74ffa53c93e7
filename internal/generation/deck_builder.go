package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/language"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"github.com/phrazzld/bespoke/internal/store"
	"github.com/phrazzld/bespoke/internal/task"
)

// LanguageData provides the vocabulary and grammar lists of a language.
// It is satisfied by *language.Registry.
type LanguageData interface {
	Vocabulary(code string, tier domain.Difficulty) ([]string, error)
	FullVocabulary(code string) ([]string, error)
	Grammar(code string, tier domain.Difficulty) ([]string, error)
}

// DeckConfig tunes deck building.
type DeckConfig struct {
	// CardsPerUnit is the number of fitting cards each unit should get.
	CardsPerUnit int
	// CardsPerCall is the number of units drawn per sentence request.
	CardsPerCall int
	// Workers is the number of cards assembled concurrently.
	Workers int
	// QueueSize bounds the pending assembly tasks.
	QueueSize int
	// MaxCalls stops building after this many sentence requests. Zero means no limit.
	MaxCalls int
	// MaxConsecutiveFailures stops building after this many sentence
	// requests in a row produced no card. Zero means 3.
	MaxConsecutiveFailures int
}

// BuildReport summarizes a deck building run.
type BuildReport struct {
	Existing   int
	Calls      int
	Sentences  int
	Duplicates int
	Created    int
	Failed     int
	Pending    int
	Duration   time.Duration
}

// DeckBuilder creates cards for every vocabulary unit of a target language
// until each unit has enough cards.
type DeckBuilder struct {
	target    language.Language
	native    language.Language
	data      LanguageData
	text      TextModel
	generator Generator
	cards     store.CardStore
	ingestor  *Ingestor
	config    DeckConfig
	logger    *slog.Logger
	rand      *rand.Rand
}

// DeckOption configures a DeckBuilder.
type DeckOption func(*DeckBuilder)

// WithRand sets the source used to sample grammar concepts.
func WithRand(r *rand.Rand) DeckOption {
	return func(b *DeckBuilder) {
		b.rand = r
	}
}

// NewDeckBuilder creates a DeckBuilder.
// It panics if any of the required dependencies are nil.
func NewDeckBuilder(
	target, native language.Language,
	data LanguageData,
	text TextModel,
	generator Generator,
	cards store.CardStore,
	config DeckConfig,
	log *slog.Logger,
	opts ...DeckOption,
) *DeckBuilder {
	if data == nil {
		panic("language data cannot be nil")
	}
	if text == nil {
		panic("text model cannot be nil")
	}
	if generator == nil {
		panic("generator cannot be nil")
	}
	if cards == nil {
		panic("card store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(
		slog.String("component", "deck_builder"),
		slog.String("target_language", target.Code),
		slog.String("native_language", native.Code))

	if config.CardsPerUnit <= 0 {
		config.CardsPerUnit = 1
	}
	if config.CardsPerCall <= 0 {
		config.CardsPerCall = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.CardsPerCall
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = 3
	}

	b := &DeckBuilder{
		target:    target,
		native:    native,
		data:      data,
		text:      text,
		generator: generator,
		cards:     cards,
		ingestor:  NewIngestor(cards, log),
		config:    config,
		logger:    log,
		rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// build holds the state of a single Build run.
type build struct {
	mu       sync.Mutex
	units    *UnitProducer
	tiers    map[string]domain.Difficulty
	vocab    map[string]struct{}
	full     []string
	seen     map[string]struct{}
	grammar  map[domain.Difficulty][]string
	created  int
	failed   int
	progress int
}

// Build generates and stores cards until every unit has CardsPerUnit
// fitting cards, the call limit is reached or generation keeps failing.
// Cards already in the store count towards their units.
func (b *DeckBuilder) Build(ctx context.Context) (BuildReport, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)
	start := time.Now()
	var report BuildReport

	st, err := b.prepare(ctx)
	if err != nil {
		return report, err
	}
	report.Existing = len(st.seen)
	log.InfoContext(ctx, "deck builder initialized",
		slog.Int("existing_cards", report.Existing),
		slog.Int("vocabulary", len(st.full)))

	queue := task.NewTaskQueue(b.config.QueueSize, log)
	pool := task.NewWorkerPool(queue, task.WorkerPoolConfig{WorkerCount: b.config.Workers}, log)
	pool.Start(ctx)
	defer func() {
		queue.Close()
		pool.Wait()
	}()

	failures := 0
	for {
		st.mu.Lock()
		done := st.units.Done()
		st.mu.Unlock()
		if done {
			break
		}
		if b.config.MaxCalls > 0 && report.Calls >= b.config.MaxCalls {
			log.InfoContext(ctx, "call limit reached", slog.Int("calls", report.Calls))
			break
		}
		if err := ctx.Err(); err != nil {
			return b.finish(st, report, start), err
		}

		st.mu.Lock()
		units, tier := st.units.Draw(b.config.CardsPerCall)
		st.mu.Unlock()
		grammar := b.sampleGrammar(st, tier)

		report.Calls++
		sentences, err := b.text.CreateSentences(ctx, SentenceRequest{
			Language:   b.target,
			Difficulty: tier,
			Grammar:    grammar,
			Units:      units,
		})
		if err != nil {
			log.WarnContext(ctx, "sentence creation failed",
				slog.String("tier", tier.String()),
				slog.String("error", redact.Error(err)))
			failures++
			if failures >= b.config.MaxConsecutiveFailures {
				return b.finish(st, report, start), fmt.Errorf("%w: last error: %w", ErrTooManyFailures, err)
			}
			continue
		}

		fresh := make([]string, 0, len(sentences))
		for _, sentence := range sentences {
			report.Sentences++
			if _, dup := st.seen[sentence]; dup {
				log.DebugContext(ctx, "skipping duplicate sentence", slog.String("sentence", sentence))
				report.Duplicates++
				continue
			}
			st.seen[sentence] = struct{}{}
			fresh = append(fresh, sentence)
		}

		finished := make(chan struct{}, len(fresh))
		for _, sentence := range fresh {
			t := task.NewFuncTask(task.TaskTypeCardAssembly, func(ctx context.Context) error {
				err := b.assemble(ctx, st, sentence, units, tier, grammar)
				if err != nil {
					st.mu.Lock()
					st.failed++
					st.mu.Unlock()
				}
				finished <- struct{}{}
				return err
			})
			if err := queue.EnqueueWait(ctx, t); err != nil {
				return b.finish(st, report, start), err
			}
		}
		for range fresh {
			select {
			case <-finished:
			case <-ctx.Done():
				return b.finish(st, report, start), ctx.Err()
			}
		}

		st.mu.Lock()
		progress := st.progress
		st.progress = 0
		st.mu.Unlock()
		if progress == 0 {
			failures++
			if failures >= b.config.MaxConsecutiveFailures {
				log.WarnContext(ctx, "stopping after calls without new cards", slog.Int("calls", failures))
				return b.finish(st, report, start), ErrTooManyFailures
			}
		} else {
			failures = 0
		}
	}

	report = b.finish(st, report, start)
	log.InfoContext(ctx, "deck building finished",
		slog.Int("calls", report.Calls),
		slog.Int("created", report.Created),
		slog.Int("failed", report.Failed),
		slog.Int("pending_units", report.Pending),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (b *DeckBuilder) finish(st *build, report BuildReport, start time.Time) BuildReport {
	st.mu.Lock()
	defer st.mu.Unlock()
	report.Created = st.created
	report.Failed = st.failed
	report.Pending = st.units.Pending()
	report.Duration = time.Since(start)
	return report
}

// prepare loads the vocabulary and registers the cards already stored.
func (b *DeckBuilder) prepare(ctx context.Context) (*build, error) {
	st := &build{
		tiers:   make(map[string]domain.Difficulty),
		vocab:   make(map[string]struct{}),
		seen:    make(map[string]struct{}),
		grammar: make(map[domain.Difficulty][]string),
	}

	perTier := make(map[domain.Difficulty][]string, len(domain.AllDifficulties))
	for _, tier := range domain.AllDifficulties {
		units, err := b.data.Vocabulary(b.target.Code, tier)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s vocabulary: %w", tier, err)
		}
		perTier[tier] = units
		for _, u := range units {
			if _, ok := st.tiers[u]; !ok {
				st.tiers[u] = tier
			}
			st.vocab[u] = struct{}{}
		}
	}
	full, err := b.data.FullVocabulary(b.target.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	st.full = full
	st.units = NewUnitProducer(perTier, b.config.CardsPerUnit)

	existing, err := b.cards.GetCards(ctx, store.CardFilter{
		TargetLanguage: b.target.Code,
		NativeLanguage: b.native.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing cards: %w", err)
	}
	for _, card := range existing {
		st.seen[card.Content.Sentence] = struct{}{}
		st.register(card.VocabularyItems)
	}
	return st, nil
}

// register counts a card for each of its units. It must be called with
// mu held or before workers start.
func (st *build) register(items []string) {
	var top domain.Difficulty
	for _, item := range items {
		if tier, ok := st.tiers[item]; ok && tier > top {
			top = tier
		}
	}
	for _, item := range items {
		if _, ok := st.tiers[item]; !ok {
			continue
		}
		st.units.Register(item, st.tiers[item] == top)
	}
}

// assemble tags the sentence, generates the card and ingests it.
func (b *DeckBuilder) assemble(
	ctx context.Context,
	st *build,
	sentence string,
	units []string,
	tier domain.Difficulty,
	grammar string,
) error {
	tags := NewUnitTagsBuilder(sentence, units)
	tags.ExtendHint(st.full)
	for !tags.Done() {
		found, err := b.text.TagSentence(ctx, sentence, b.target, tags.Hint)
		if err != nil {
			return fmt.Errorf("failed to tag %q: %w", sentence, err)
		}
		tags.AddFiltered(found, st.vocab)
	}

	difficulty := tier
	for _, item := range tags.Tags {
		if t := st.tiers[item]; t > difficulty {
			difficulty = t
		}
	}

	var notes []string
	if grammar != "" {
		notes = []string{grammar}
	}
	card, err := b.generator.Generate(ctx, Request{
		TargetLanguage: b.target,
		NativeLanguage: b.native,
		Difficulty:     difficulty,
		Sentence:       sentence,
		UnitTags:       tags.Tags,
		Notes:          notes,
	})
	if err != nil {
		return err
	}

	result, err := b.ingestor.Ingest(ctx, []*domain.Card{card})
	if err != nil {
		return err
	}
	if len(result.Rejected) > 0 {
		return result.Rejected[0].Err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(result.Added) > 0 {
		st.register(card.VocabularyItems)
		st.created++
		st.progress++
	}
	return nil
}

// sampleGrammar draws a grammar concept of the tier or below without
// replacement, reshuffling once every concept has been used.
func (b *DeckBuilder) sampleGrammar(st *build, tier domain.Difficulty) string {
	pool := st.grammar[tier]
	if len(pool) == 0 {
		for _, d := range domain.AllDifficulties {
			concepts, err := b.data.Grammar(b.target.Code, d)
			if err != nil && !errors.Is(err, language.ErrNoLanguageData) {
				b.logger.Warn("failed to load grammar",
					slog.String("tier", d.String()),
					slog.String("error", err.Error()))
			}
			pool = append(pool, concepts...)
			if d == tier {
				break
			}
		}
		b.rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	if len(pool) == 0 {
		return ""
	}
	grammar := pool[len(pool)-1]
	st.grammar[tier] = pool[:len(pool)-1]
	return grammar
}
