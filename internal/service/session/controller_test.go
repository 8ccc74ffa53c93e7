package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/domain/srs"
	"github.com/phrazzld/bespoke/internal/mocks"
	"github.com/phrazzld/bespoke/internal/platform/memory"
	"github.com/phrazzld/bespoke/internal/service/scheduler"
	"github.com/phrazzld/bespoke/internal/service/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

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

type languageSet map[string]bool

func (l languageSet) Known(code string) bool { return l[code] }

func makeCard(t *testing.T, id string, modes ...domain.Mode) *domain.Card {
	t.Helper()
	card, err := domain.NewCard("ja", "en", domain.DifficultyA1, domain.CardContent{
		Sentence:       "猫" + id,
		NativeSentence: "cat " + id,
		AudioRef:       id + ".ogg",
		UnitTags:       map[string]string{"猫": "猫"},
	})
	require.NoError(t, err)
	card.ID = id
	card.Modes = domain.NewModeSet(modes...)
	return card
}

func validConfig(modes ...domain.Mode) session.Config {
	return session.Config{
		TargetLanguage: "ja",
		NativeLanguage: "en",
		Difficulty:     "A1",
		Modes:          modes,
		NewCardLimit:   10,
		RecencyWindow:  2,
	}
}

// newRealController wires a controller to a scheduler over a memory store.
func newRealController(t *testing.T, cards ...*domain.Card) (*session.Controller, *memory.CardStore, *testClock) {
	t.Helper()
	cardStore := memory.NewCardStore(nil)
	require.NoError(t, cardStore.UpsertMany(context.Background(), cards))
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)
	clock := &testClock{now: baseTime}
	sched := scheduler.NewService(cardStore, srsService, nil, scheduler.WithClock(clock.Now))
	return session.NewController(sched, nil, session.WithClock(clock.Now)), cardStore, clock
}

func TestStart_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  session.Config
	}{
		{"empty modes", validConfig()},
		{"unknown mode", validConfig("sing")},
		{"unknown tier", func() session.Config { c := validConfig(domain.ModeRead); c.Difficulty = "Z9"; return c }()},
		{"inverted range", func() session.Config { c := validConfig(domain.ModeRead); c.Difficulty = "B1-A1"; return c }()},
		{"missing target language", func() session.Config { c := validConfig(domain.ModeRead); c.TargetLanguage = ""; return c }()},
		{"same languages", func() session.Config { c := validConfig(domain.ModeRead); c.NativeLanguage = "ja"; return c }()},
		{"negative new card limit", func() session.Config { c := validConfig(domain.ModeRead); c.NewCardLimit = -1; return c }()},
		{"unknown language", func() session.Config { c := validConfig(domain.ModeRead); c.TargetLanguage = "xx"; return c }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := session.NewController(&mocks.MockScheduler{}, nil,
				session.WithLanguages(languageSet{"ja": true, "en": true}))

			err := c.Start(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, session.ErrInvalidConfig)
			assert.Equal(t, session.StateNotStarted, c.State())
			assert.Empty(t, c.ID())

			_, err = c.PresentNext(context.Background())
			assert.ErrorIs(t, err, session.ErrNotStarted)
		})
	}
}

func TestStart(t *testing.T) {
	t.Parallel()
	c := session.NewController(&mocks.MockScheduler{}, nil)
	cfg := validConfig(domain.ModeRead, domain.ModeListen)
	cfg.Difficulty = "A1-B1"

	require.NoError(t, c.Start(context.Background(), cfg))
	assert.NotEmpty(t, c.ID())

	snap := c.Snapshot()
	assert.Equal(t, "A1-B1", snap.DifficultyName)
	assert.Equal(t, domain.DifficultyFilter{Min: domain.DifficultyA1, Max: domain.DifficultyB1}, snap.Difficulty)
	assert.Equal(t, []domain.Mode{domain.ModeRead, domain.ModeListen}, snap.EnabledModes)
	assert.False(t, snap.FirstCardShown)

	assert.ErrorIs(t, c.Start(context.Background(), cfg), session.ErrAlreadyStarted)
}

func TestPresentNext_AutoplaySuppressedOnFirstCard(t *testing.T) {
	t.Parallel()
	c, _, _ := newRealController(t,
		makeCard(t, "a", domain.ModeListen),
		makeCard(t, "b", domain.ModeListen),
	)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeListen, domain.ModeRead)))

	first, err := c.PresentNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, first.Presentation)
	assert.Equal(t, domain.ModeListen, first.Presentation.Mode)
	assert.False(t, first.Presentation.Autoplay)
	assert.True(t, c.Snapshot().FirstCardShown)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	require.NoError(t, err)

	second, err := c.PresentNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, second.Presentation)
	assert.Equal(t, "b", second.Presentation.CardID)
	assert.Equal(t, domain.ModeListen, second.Presentation.Mode)
	assert.True(t, second.Presentation.Autoplay)
}

func TestPresentNext_NoAutoplayOutsideListenMode(t *testing.T) {
	t.Parallel()
	c, _, _ := newRealController(t,
		makeCard(t, "a", domain.ModeRead),
		makeCard(t, "b", domain.ModeRead, domain.ModeWrite),
	)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeWrite, domain.ModeRead)))

	_, err := c.PresentNext(ctx)
	require.NoError(t, err)
	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	require.NoError(t, err)

	step, err := c.PresentNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeWrite, step.Presentation.Mode)
	assert.False(t, step.Presentation.Autoplay)
	assert.Equal(t, "cat b", step.Presentation.Prompt)
	assert.Equal(t, "猫b", step.Presentation.Answer)
}

func TestSubmitOutcome_OutOfSequence(t *testing.T) {
	t.Parallel()
	c, _, _ := newRealController(t, makeCard(t, "a", domain.ModeRead), makeCard(t, "b", domain.ModeRead))
	ctx := context.Background()

	_, err := c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, session.ErrNotStarted)

	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, session.ErrOutOfSequence)

	_, err = c.PresentNext(ctx)
	require.NoError(t, err)
	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	require.NoError(t, err)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, session.ErrOutOfSequence)
	assert.Len(t, c.Snapshot().PresentedIDs, 1)
}

func TestPresentNext_PendingIsStable(t *testing.T) {
	t.Parallel()
	sched := &mocks.MockScheduler{Card: makeCard(t, "a", domain.ModeRead)}
	c := session.NewController(sched, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))

	first, err := c.PresentNext(ctx)
	require.NoError(t, err)
	second, err := c.PresentNext(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, sched.Queries, 1)
	assert.Equal(t, session.StatePresented, c.State())
}

func TestPresentNext_ExhaustedThenResumes(t *testing.T) {
	t.Parallel()
	c, cardStore, _ := newRealController(t)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))

	step, err := c.PresentNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateExhausted, step.State)
	assert.Equal(t, session.ReasonNoMatchingCards, step.Reason)
	assert.Nil(t, step.Presentation)
	assert.Equal(t, session.StateExhausted, c.State())
	assert.Equal(t, session.ReasonNoMatchingCards, c.Snapshot().ExhaustedReason)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, session.ErrOutOfSequence)

	require.NoError(t, cardStore.Upsert(ctx, makeCard(t, "a", domain.ModeRead)))
	step, err = c.PresentNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatePresented, step.State)
	assert.Equal(t, "a", step.Presentation.CardID)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	require.NoError(t, err)

	step, err = c.PresentNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateExhausted, step.State)
	assert.Equal(t, session.ReasonNothingDue, step.Reason)
}

func TestPresentNext_ChoosesLeastRecentlyUsedMode(t *testing.T) {
	t.Parallel()
	card := makeCard(t, "a", domain.ModeListen, domain.ModeRead, domain.ModeWrite)
	ctx := context.Background()

	tests := []struct {
		name  string
		modes []domain.Mode
		usage map[domain.Mode]time.Time
		want  domain.Mode
	}{
		{
			name:  "never used follows enabled order",
			modes: []domain.Mode{domain.ModeWrite, domain.ModeRead},
			usage: map[domain.Mode]time.Time{},
			want:  domain.ModeWrite,
		},
		{
			name:  "never used beats used",
			modes: []domain.Mode{domain.ModeRead, domain.ModeListen},
			usage: map[domain.Mode]time.Time{domain.ModeRead: baseTime},
			want:  domain.ModeListen,
		},
		{
			name:  "oldest use wins",
			modes: []domain.Mode{domain.ModeRead, domain.ModeListen, domain.ModeWrite},
			usage: map[domain.Mode]time.Time{
				domain.ModeRead:   baseTime.Add(-time.Hour),
				domain.ModeListen: baseTime.Add(-3 * time.Hour),
				domain.ModeWrite:  baseTime.Add(-2 * time.Hour),
			},
			want: domain.ModeListen,
		},
		{
			name:  "equal use follows enabled order",
			modes: []domain.Mode{domain.ModeWrite, domain.ModeRead},
			usage: map[domain.Mode]time.Time{domain.ModeRead: baseTime, domain.ModeWrite: baseTime},
			want:  domain.ModeWrite,
		},
		{
			name:  "unsupported enabled mode ignored",
			modes: []domain.Mode{domain.ModeSpeak, domain.ModeRead},
			usage: map[domain.Mode]time.Time{},
			want:  domain.ModeRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sched := &mocks.MockScheduler{
				Card: card,
				ModeUsageFn: func(context.Context, *domain.Card) (map[domain.Mode]time.Time, error) {
					return tt.usage, nil
				},
			}
			c := session.NewController(sched, nil)
			require.NoError(t, c.Start(ctx, validConfig(tt.modes...)))

			step, err := c.PresentNext(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, step.Presentation.Mode)
		})
	}
}

func TestSubmitOutcome_ForwardsToScheduler(t *testing.T) {
	t.Parallel()
	clock := &testClock{now: baseTime}
	want := domain.SchedulingState{Interval: 24 * time.Hour, EaseFactor: 2.5, ReviewCount: 1}
	sched := &mocks.MockScheduler{Card: makeCard(t, "a", domain.ModeRead), State: want}
	c := session.NewController(sched, nil, session.WithClock(clock.Now))
	ctx := context.Background()

	cfg := validConfig(domain.ModeRead)
	cfg.RecencyWindow = 1
	require.NoError(t, c.Start(ctx, cfg))

	_, err := c.PresentNext(ctx)
	require.NoError(t, err)
	assert.Empty(t, sched.LastQuery().Recent)
	assert.Equal(t, 0, sched.LastQuery().Introduced)

	clock.Advance(3 * time.Second)
	got, err := c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeHard, Reported: true})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, scheduler.Outcome{
		CardID:   "a",
		Mode:     domain.ModeRead,
		Rating:   domain.ReviewOutcomeHard,
		Latency:  3 * time.Second,
		Reported: true,
	}, sched.LastOutcome())

	_, err = c.PresentNext(ctx)
	require.NoError(t, err)
	q := sched.LastQuery()
	assert.Equal(t, []string{"a"}, q.Recent)
	assert.Equal(t, 1, q.Introduced)
	assert.Equal(t, 10, q.NewCardLimit)
	assert.Equal(t, "en", q.NativeLanguage)
}

func TestSubmitOutcome_SchedulerErrorKeepsPresentation(t *testing.T) {
	t.Parallel()
	boom := errors.New("store down")
	sched := &mocks.MockScheduler{
		Card: makeCard(t, "a", domain.ModeRead),
		RecordOutcomeFn: func(context.Context, scheduler.Outcome) (domain.SchedulingState, error) {
			return domain.SchedulingState{}, boom
		},
	}
	c := session.NewController(sched, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))
	_, err := c.PresentNext(ctx)
	require.NoError(t, err)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, session.StatePresented, c.State())
	assert.Empty(t, c.Snapshot().PresentedIDs)
}

func TestSubmitOutcome_UnknownCardReleasesPresentation(t *testing.T) {
	t.Parallel()
	sched := &mocks.MockScheduler{
		Card: makeCard(t, "a", domain.ModeRead),
		RecordOutcomeFn: func(context.Context, scheduler.Outcome) (domain.SchedulingState, error) {
			return domain.SchedulingState{}, fmt.Errorf("%w: a", scheduler.ErrUnknownCard)
		},
	}
	c := session.NewController(sched, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))
	_, err := c.PresentNext(ctx)
	require.NoError(t, err)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, scheduler.ErrUnknownCard)
	assert.Equal(t, session.StateAnswered, c.State())
	assert.Empty(t, c.Snapshot().PresentedIDs)

	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, session.ErrOutOfSequence)
	assert.Equal(t, 1, sched.OutcomeCalls())

	_, err = c.PresentNext(ctx)
	require.NoError(t, err)
	assert.Len(t, sched.Queries, 2, "the next presentation queries the scheduler again")
}

func TestSubmitOutcome_ItemRatings(t *testing.T) {
	t.Parallel()
	sched := &mocks.MockScheduler{Card: makeCard(t, "a", domain.ModeRead)}
	c := session.NewController(sched, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))
	_, err := c.PresentNext(ctx)
	require.NoError(t, err)

	items := map[string]domain.ReviewOutcome{"猫": domain.ReviewOutcomeAgain}
	_, err = c.SubmitOutcome(ctx, session.Answer{Items: items})
	require.NoError(t, err)

	got := sched.LastOutcome()
	assert.Equal(t, domain.ReviewOutcomeAgain, got.Rating)
	assert.Equal(t, items, got.Items)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
}

func TestPresentNext_SchedulerFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("store down")
	c := session.NewController(&mocks.MockScheduler{Err: boom}, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))

	_, err := c.PresentNext(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, session.StateAnswered, c.State())
}

func TestEnd(t *testing.T) {
	t.Parallel()
	c := session.NewController(&mocks.MockScheduler{Card: makeCard(t, "a", domain.ModeRead)}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.End(ctx), session.ErrNotStarted)
	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))
	_, err := c.PresentNext(ctx)
	require.NoError(t, err)

	require.NoError(t, c.End(ctx))
	require.NoError(t, c.End(ctx))
	assert.Equal(t, session.StateEnded, c.State())

	_, err = c.PresentNext(ctx)
	assert.ErrorIs(t, err, session.ErrEnded)
	assert.ErrorIs(t, err, session.ErrNotStarted)
	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeGood})
	assert.ErrorIs(t, err, session.ErrEnded)
}

func TestStats(t *testing.T) {
	t.Parallel()
	c, _, _ := newRealController(t,
		makeCard(t, "a", domain.ModeRead),
		makeCard(t, "b", domain.ModeRead),
	)
	ctx := context.Background()

	_, err := c.Stats(ctx)
	assert.ErrorIs(t, err, session.ErrNotStarted)

	require.NoError(t, c.Start(ctx, validConfig(domain.ModeRead)))
	_, err = c.PresentNext(ctx)
	require.NoError(t, err)
	_, err = c.SubmitOutcome(ctx, session.Answer{Rating: domain.ReviewOutcomeAgain})
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Stats{
		Reviewed:   1,
		Introduced: 1,
		Failed:     1,
		Matching:   2,
		Unseen:     1,
		Waiting:    1,
		ToDoItems:  1,
	}, stats)
}
