package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/domain/srs"
	"github.com/phrazzld/bespoke/internal/mocks"
	"github.com/phrazzld/bespoke/internal/platform/memory"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
	"github.com/phrazzld/bespoke/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *memory.CardStore
	clock *testClock
	svc   scheduler.Service
}

func newFixture(t *testing.T, cards ...*domain.Card) *fixture {
	t.Helper()
	cardStore := memory.NewCardStore(nil)
	require.NoError(t, cardStore.UpsertMany(context.Background(), cards))
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)
	clock := &testClock{now: baseTime}
	return &fixture{
		store: cardStore,
		clock: clock,
		svc:   scheduler.NewService(cardStore, srsService, nil, scheduler.WithClock(clock.Now)),
	}
}

// makeCard builds a Japanese card with a fixed id and the given modes.
func makeCard(t *testing.T, id string, tier domain.Difficulty, modes domain.ModeSet, items ...string) *domain.Card {
	t.Helper()
	tags := make(map[string]string, len(items))
	for _, item := range items {
		tags[item] = item
	}
	card, err := domain.NewCard("ja", "en", tier, domain.CardContent{
		Sentence:       "文" + id,
		NativeSentence: "sentence " + id,
		AudioRef:       id + ".ogg",
		UnitTags:       tags,
	})
	require.NoError(t, err)
	card.ID = id
	card.Modes = modes
	return card
}

// withReviews appends reviews and replays the scheduling state.
func withReviews(card *domain.Card, reviews ...domain.Review) *domain.Card {
	card.ReviewHistory = append(card.ReviewHistory, reviews...)
	card.Scheduling = srs.Replay(card.ReviewHistory, card.Difficulty, srs.NewDefaultParams())
	return card
}

func review(at time.Time, outcome domain.ReviewOutcome) domain.Review {
	return domain.Review{At: at, Mode: domain.ModeRead, Outcome: outcome}
}

var (
	listenRead = domain.NewModeSet(domain.ModeListen, domain.ModeRead)
	allModes   = domain.NewModeSet(domain.AllModes...)
)

func a1Query(modes domain.ModeSet) scheduler.Query {
	return scheduler.Query{
		TargetLanguage: "ja",
		Difficulty:     domain.SingleTier(domain.DifficultyA1),
		Modes:          modes,
		NewCardLimit:   5,
	}
}

func TestNextCard_ThreeCardScenario(t *testing.T) {
	t.Parallel()
	dueAt := baseTime.Add(-3 * 24 * time.Hour)
	card1 := withReviews(makeCard(t, "1", domain.DifficultyA1, listenRead, "猫"), review(dueAt, domain.ReviewOutcomeGood))
	card2 := withReviews(makeCard(t, "2", domain.DifficultyA1, domain.NewModeSet(domain.ModeWrite), "犬"), review(dueAt, domain.ReviewOutcomeGood))
	card3 := withReviews(makeCard(t, "3", domain.DifficultyA1, listenRead, "鳥"), review(baseTime.Add(-time.Hour), domain.ReviewOutcomeGood))
	f := newFixture(t, card1, card2, card3)

	got, err := f.svc.NextCard(context.Background(), a1Query(listenRead))
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
}

func TestNextCard_ReplaysStaleSchedulingState(t *testing.T) {
	t.Parallel()
	card := withReviews(makeCard(t, "1", domain.DifficultyA1, listenRead, "猫"),
		review(baseTime.Add(-3*24*time.Hour), domain.ReviewOutcomeGood))
	// a cached state from older parameters that would keep the card waiting
	card.Scheduling.NextDueAt = baseTime.Add(30 * 24 * time.Hour)
	f := newFixture(t, card)

	got, err := f.svc.NextCard(context.Background(), a1Query(listenRead))
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, baseTime.Add(-2*24*time.Hour), got.Scheduling.NextDueAt)

	stats, err := f.svc.Stats(context.Background(), a1Query(listenRead))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Due)
	assert.Zero(t, stats.Waiting)
}

func TestNextCard_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		makeCard(t, "b", domain.DifficultyA1, listenRead, "猫"),
		makeCard(t, "a", domain.DifficultyA1, listenRead, "犬"),
	)
	q := a1Query(listenRead)

	first, err := f.svc.NextCard(context.Background(), q)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.svc.NextCard(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
	assert.Equal(t, "a", first.ID)
}

func TestNextCard_Exhaustion(t *testing.T) {
	t.Parallel()
	waiting := withReviews(makeCard(t, "w", domain.DifficultyA1, listenRead, "猫"),
		review(baseTime.Add(-time.Hour), domain.ReviewOutcomeGood))
	unseen := makeCard(t, "u", domain.DifficultyA1, listenRead, "犬")

	tests := []struct {
		name    string
		cards   []*domain.Card
		query   scheduler.Query
		wantErr error
	}{
		{
			name:    "empty store",
			query:   a1Query(listenRead),
			wantErr: scheduler.ErrNoMatchingCards,
		},
		{
			name:    "language mismatch",
			cards:   []*domain.Card{waiting},
			query:   scheduler.Query{TargetLanguage: "es", Modes: listenRead, NewCardLimit: 5},
			wantErr: scheduler.ErrNoMatchingCards,
		},
		{
			name:    "tier mismatch",
			cards:   []*domain.Card{waiting},
			query:   scheduler.Query{TargetLanguage: "ja", Difficulty: domain.SingleTier(domain.DifficultyB2), Modes: listenRead, NewCardLimit: 5},
			wantErr: scheduler.ErrNoMatchingCards,
		},
		{
			name:    "mode mismatch",
			cards:   []*domain.Card{waiting},
			query:   a1Query(domain.NewModeSet(domain.ModeWrite)),
			wantErr: scheduler.ErrNoMatchingCards,
		},
		{
			name:    "nothing due",
			cards:   []*domain.Card{waiting},
			query:   a1Query(listenRead),
			wantErr: scheduler.ErrNothingDue,
		},
		{
			name:    "new card cap reached",
			cards:   []*domain.Card{waiting, unseen},
			query:   scheduler.Query{TargetLanguage: "ja", Modes: listenRead, NewCardLimit: 2, Introduced: 2},
			wantErr: scheduler.ErrNothingDue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.cards...)
			card, err := f.svc.NextCard(context.Background(), tt.query)
			assert.Nil(t, card)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, scheduler.ErrExhausted)
		})
	}
}

func TestNextCard_DueBeforeUnseen(t *testing.T) {
	t.Parallel()
	due := withReviews(makeCard(t, "z-due", domain.DifficultyA1, listenRead, "猫"),
		review(baseTime.Add(-48*time.Hour), domain.ReviewOutcomeGood))
	unseen := makeCard(t, "a-new", domain.DifficultyA1, listenRead, "犬")
	f := newFixture(t, due, unseen)

	got, err := f.svc.NextCard(context.Background(), a1Query(listenRead))
	require.NoError(t, err)
	assert.Equal(t, "z-due", got.ID)
}

func TestNextCard_IntroducesUnseenUpToCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t, makeCard(t, "n", domain.DifficultyA1, listenRead, "猫"))

	q := a1Query(listenRead)
	q.NewCardLimit = 1
	got, err := f.svc.NextCard(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "n", got.ID)

	q.Introduced = 1
	_, err = f.svc.NextCard(context.Background(), q)
	assert.ErrorIs(t, err, scheduler.ErrNothingDue)

	q.NewCardLimit = 0
	q.Introduced = 0
	_, err = f.svc.NextCard(context.Background(), q)
	assert.ErrorIs(t, err, scheduler.ErrNothingDue)
}

func TestNextCard_RecentAndReportedAreDeferred(t *testing.T) {
	t.Parallel()
	past := baseTime.Add(-48 * time.Hour)
	a := withReviews(makeCard(t, "a", domain.DifficultyA1, listenRead, "猫"), review(past, domain.ReviewOutcomeGood))
	b := withReviews(makeCard(t, "b", domain.DifficultyA1, listenRead, "犬"), review(past, domain.ReviewOutcomeGood))
	f := newFixture(t, a, b)
	ctx := context.Background()

	q := a1Query(listenRead)
	got, err := f.svc.NextCard(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	q.Recent = []string{"a"}
	got, err = f.svc.NextCard(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	// Every candidate is recent: fall back to the secondary pool.
	q.Recent = []string{"a", "b"}
	got, err = f.svc.NextCard(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	reported := withReviews(a.Clone(), domain.Review{At: past.Add(time.Minute), Mode: domain.ModeRead, Outcome: domain.ReviewOutcomeAgain, Reported: true})
	require.NoError(t, f.store.Upsert(ctx, reported))
	q.Recent = nil
	got, err = f.svc.NextCard(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
}

func TestNextCard_WeakestVocabularyFirst(t *testing.T) {
	t.Parallel()
	// Interval 1d, five days overdue: strength 1/32.
	weak := withReviews(makeCard(t, "b-weak", domain.DifficultyA1, listenRead, "猫"),
		review(baseTime.Add(-5*24*time.Hour), domain.ReviewOutcomeGood))
	// Interval 2d, one day overdue: strength about 0.7.
	strong := withReviews(makeCard(t, "a-strong", domain.DifficultyA1, listenRead, "犬"),
		review(baseTime.Add(-3*24*time.Hour), domain.ReviewOutcomeEasy))
	f := newFixture(t, weak, strong)

	got, err := f.svc.NextCard(context.Background(), a1Query(listenRead))
	require.NoError(t, err)
	assert.Equal(t, "b-weak", got.ID)
}

func TestNextCard_DueCardAlwaysSelected(t *testing.T) {
	t.Parallel()
	for _, tier := range domain.AllDifficulties {
		due := withReviews(makeCard(t, "d-"+tier.String(), tier, allModes, "x"),
			review(baseTime.Add(-10*24*time.Hour), domain.ReviewOutcomeHard))
		f := newFixture(t, due)
		q := scheduler.Query{
			TargetLanguage: "ja",
			Difficulty:     domain.DifficultyFilter{Min: domain.DifficultyA1, Max: domain.DifficultyC2},
			Modes:          domain.NewModeSet(domain.ModeRead),
		}
		got, err := f.svc.NextCard(context.Background(), q)
		require.NoError(t, err, tier.String())
		assert.Equal(t, due.ID, got.ID)
	}
}

func TestNextCard_StoreFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)
	svc := scheduler.NewService(&mocks.MockCardStore{Err: boom}, srsService, nil)

	_, err = svc.NextCard(context.Background(), a1Query(listenRead))
	require.Error(t, err)
	var serviceErr *scheduler.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "next_card", serviceErr.Operation)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, scheduler.ErrExhausted)
}

func TestRecordOutcome_UnknownCard(t *testing.T) {
	t.Parallel()
	cardStore := &mocks.MockCardStore{}
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)
	svc := scheduler.NewService(cardStore, srsService, nil)

	tests := []struct {
		name    string
		outcome scheduler.Outcome
	}{
		{"valid outcome", scheduler.Outcome{CardID: "missing", Mode: domain.ModeRead, Rating: domain.ReviewOutcomeGood}},
		{"invalid rating", scheduler.Outcome{CardID: "missing", Mode: domain.ModeRead, Rating: "bogus"}},
		{"invalid mode", scheduler.Outcome{CardID: "missing", Mode: "sing", Rating: domain.ReviewOutcomeGood}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordOutcome(context.Background(), tt.outcome)
			assert.ErrorIs(t, err, scheduler.ErrUnknownCard)
			assert.ErrorIs(t, err, store.ErrCardNotFound)
		})
	}
	assert.Equal(t, 0, cardStore.UpsertCalls())
}

func TestRecordOutcome_RejectsBeforeMutation(t *testing.T) {
	t.Parallel()
	card := makeCard(t, "c", domain.DifficultyA1, domain.NewModeSet(domain.ModeRead), "猫")
	cardStore := &mocks.MockCardStore{Cards: []*domain.Card{card}}
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)
	svc := scheduler.NewService(cardStore, srsService, nil)

	tests := []struct {
		name    string
		outcome scheduler.Outcome
		wantErr error
	}{
		{"invalid rating", scheduler.Outcome{CardID: "c", Mode: domain.ModeRead, Rating: "perfect"}, domain.ErrInvalidReviewOutcome},
		{"unsupported mode", scheduler.Outcome{CardID: "c", Mode: domain.ModeListen, Rating: domain.ReviewOutcomeGood}, scheduler.ErrModeNotSupported},
		{"invalid mode", scheduler.Outcome{CardID: "c", Mode: "sing", Rating: domain.ReviewOutcomeGood}, scheduler.ErrModeNotSupported},
		{"no rating", scheduler.Outcome{CardID: "c", Mode: domain.ModeRead}, domain.ErrInvalidReviewOutcome},
		{"invalid item rating", scheduler.Outcome{CardID: "c", Mode: domain.ModeRead,
			Items: map[string]domain.ReviewOutcome{"猫": "perfect"}}, domain.ErrInvalidReviewOutcome},
		{"item not on card", scheduler.Outcome{CardID: "c", Mode: domain.ModeRead,
			Items: map[string]domain.ReviewOutcome{"犬": domain.ReviewOutcomeGood}}, domain.ErrUnknownItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordOutcome(context.Background(), tt.outcome)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, cardStore.UpsertCalls())
}

func TestRecordOutcome_AppendsAndReplays(t *testing.T) {
	t.Parallel()
	f := newFixture(t, makeCard(t, "c", domain.DifficultyA1, listenRead, "猫"))
	ctx := context.Background()

	state, err := f.svc.RecordOutcome(ctx, scheduler.Outcome{CardID: "c", Mode: domain.ModeListen, Rating: domain.ReviewOutcomeGood, Latency: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, state.Interval)
	assert.Equal(t, baseTime.Add(24*time.Hour), state.NextDueAt)

	stored, err := f.store.GetByID(ctx, "c")
	require.NoError(t, err)
	require.Len(t, stored.ReviewHistory, 1)
	assert.Equal(t, domain.Review{At: baseTime, Mode: domain.ModeListen, Outcome: domain.ReviewOutcomeGood, Latency: 2 * time.Second}, stored.ReviewHistory[0])
	assert.Equal(t, state, stored.Scheduling)
	assert.Equal(t, srs.Replay(stored.ReviewHistory, stored.Difficulty, srs.NewDefaultParams()), stored.Scheduling)
}

func TestRecordOutcome_PerItemRatings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, makeCard(t, "c", domain.DifficultyA1, listenRead, "猫", "犬"))
	ctx := context.Background()

	items := map[string]domain.ReviewOutcome{"猫": domain.ReviewOutcomeGood, "犬": domain.ReviewOutcomeAgain}
	state, err := f.svc.RecordOutcome(ctx, scheduler.Outcome{CardID: "c", Mode: domain.ModeRead, Items: items})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Lapses, "the card is rated as its weakest item")

	stored, err := f.store.GetByID(ctx, "c")
	require.NoError(t, err)
	require.Len(t, stored.ReviewHistory, 1)
	assert.Equal(t, domain.ReviewOutcomeAgain, stored.ReviewHistory[0].Outcome)
	assert.Equal(t, items, stored.ReviewHistory[0].Items)

	mastery, err := f.svc.Mastery(ctx, "ja")
	require.NoError(t, err)
	assert.Equal(t, 1, mastery["猫"].State.ConsecutiveCorrect)
	assert.Zero(t, mastery["猫"].State.Lapses)
	assert.Equal(t, 1, mastery["犬"].State.Lapses)
	assert.Greater(t, mastery["猫"].Strength, mastery["犬"].Strength)

	// An explicit card rating is kept alongside the item ratings.
	state, err = f.svc.RecordOutcome(ctx, scheduler.Outcome{CardID: "c", Mode: domain.ModeRead,
		Rating: domain.ReviewOutcomeHard, Items: map[string]domain.ReviewOutcome{"犬": domain.ReviewOutcomeAgain}})
	require.NoError(t, err)
	assert.Equal(t, 1, state.ConsecutiveCorrect)
}

func TestRecordOutcome_ClampsClockSkew(t *testing.T) {
	t.Parallel()
	last := baseTime.Add(time.Hour)
	f := newFixture(t, withReviews(makeCard(t, "c", domain.DifficultyA1, listenRead), review(last, domain.ReviewOutcomeGood)))

	state, err := f.svc.RecordOutcome(context.Background(), scheduler.Outcome{CardID: "c", Mode: domain.ModeRead, Rating: domain.ReviewOutcomeGood})
	require.NoError(t, err)
	assert.Equal(t, last, state.LastReviewedAt)

	stored, err := f.store.GetByID(context.Background(), "c")
	require.NoError(t, err)
	assert.NoError(t, stored.Validate())
}

func TestRecordOutcome_PassingRunGrowsAndFailureResets(t *testing.T) {
	t.Parallel()
	f := newFixture(t, makeCard(t, "c", domain.DifficultyB2, listenRead, "猫"))
	ctx := context.Background()
	params := srs.NewDefaultParams()

	ratings := []domain.ReviewOutcome{
		domain.ReviewOutcomeGood, domain.ReviewOutcomeHard, domain.ReviewOutcomeHard,
		domain.ReviewOutcomeEasy, domain.ReviewOutcomeHard, domain.ReviewOutcomeGood,
	}
	var prev domain.SchedulingState
	for i, rating := range ratings {
		state, err := f.svc.RecordOutcome(ctx, scheduler.Outcome{CardID: "c", Mode: domain.ModeRead, Rating: rating})
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, state.Interval, prev.Interval, "review %d", i)
			assert.True(t, state.NextDueAt.After(prev.NextDueAt), "review %d", i)
		}
		prev = state
		f.clock.Advance(state.Interval)
	}

	failed, err := f.svc.RecordOutcome(ctx, scheduler.Outcome{CardID: "c", Mode: domain.ModeRead, Rating: domain.ReviewOutcomeAgain})
	require.NoError(t, err)
	assert.Equal(t, params.MinInterval, failed.Interval)
	assert.Equal(t, f.clock.Now().Add(params.MinInterval), failed.NextDueAt)
	assert.Equal(t, 0, failed.ConsecutiveCorrect)
	assert.Equal(t, 1, failed.Lapses)
}

func TestStats(t *testing.T) {
	t.Parallel()
	past := baseTime.Add(-48 * time.Hour)
	due := withReviews(makeCard(t, "due", domain.DifficultyA1, listenRead, "猫"), review(past, domain.ReviewOutcomeGood))
	waiting := withReviews(makeCard(t, "wait", domain.DifficultyA1, listenRead, "犬"), review(baseTime.Add(-time.Hour), domain.ReviewOutcomeGood))
	unseen := makeCard(t, "new", domain.DifficultyA1, listenRead, "鳥")
	other := makeCard(t, "b2", domain.DifficultyB2, listenRead, "魚")
	f := newFixture(t, due, waiting, unseen, other)

	stats, err := f.svc.Stats(context.Background(), a1Query(listenRead))
	require.NoError(t, err)
	assert.Equal(t, scheduler.Stats{
		Matching:   3,
		Due:        1,
		Unseen:     1,
		Waiting:    1,
		KnownItems: 1,
		ToDoItems:  2,
	}, stats)
}

func TestModeUsage(t *testing.T) {
	t.Parallel()
	t1 := baseTime.Add(-3 * time.Hour)
	t2 := baseTime.Add(-2 * time.Hour)
	t3 := baseTime.Add(-time.Hour)
	card := withReviews(makeCard(t, "c", domain.DifficultyA1, allModes, "猫"),
		domain.Review{At: t1, Mode: domain.ModeListen, Outcome: domain.ReviewOutcomeGood})
	sibling := withReviews(makeCard(t, "s", domain.DifficultyA1, allModes, "猫", "犬"),
		domain.Review{At: t2, Mode: domain.ModeRead, Outcome: domain.ReviewOutcomeGood},
		domain.Review{At: t3, Mode: domain.ModeListen, Outcome: domain.ReviewOutcomeGood})
	unrelated := withReviews(makeCard(t, "u", domain.DifficultyA1, allModes, "鳥"),
		domain.Review{At: t3, Mode: domain.ModeWrite, Outcome: domain.ReviewOutcomeGood})
	f := newFixture(t, card, sibling, unrelated)

	usage, err := f.svc.ModeUsage(context.Background(), card)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Mode]time.Time{
		domain.ModeListen: t3,
		domain.ModeRead:   t2,
	}, usage)
}

func TestMastery(t *testing.T) {
	t.Parallel()
	past := baseTime.Add(-time.Hour)
	a := withReviews(makeCard(t, "a", domain.DifficultyA2, listenRead, "猫"), review(past, domain.ReviewOutcomeGood))
	b := makeCard(t, "b", domain.DifficultyA1, listenRead, "猫", "犬")
	f := newFixture(t, a, b)

	mastery, err := f.svc.Mastery(context.Background(), "ja")
	require.NoError(t, err)
	require.Len(t, mastery, 2)
	assert.Equal(t, 2, mastery["猫"].Cards)
	assert.True(t, mastery["猫"].Satisfied(baseTime))
	assert.Zero(t, mastery["犬"].Strength)
	assert.False(t, mastery["犬"].Satisfied(baseTime))
}

func TestNewService_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)
	assert.Panics(t, func() { scheduler.NewService(nil, srsService, nil) })
	assert.Panics(t, func() { scheduler.NewService(memory.NewCardStore(nil), nil, nil) })
}
