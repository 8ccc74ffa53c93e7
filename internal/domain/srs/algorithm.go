package srs

import (
	"math"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor based on the review outcome.
//
// Higher values mean the material is easier and intervals grow faster. The
// adjustment for the outcome is added and the result is clamped to
// [params.MinEaseFactor, params.MaxEaseFactor].
func calculateNewEaseFactor(
	currentEF float64,
	outcome domain.ReviewOutcome,
	params *Params,
) float64 {
	newEF := currentEF + params.EaseFactorAdjustment[outcome]
	return min(max(newEF, params.MinEaseFactor), params.MaxEaseFactor)
}

// growthFactor returns the multiplier applied to the current interval on a
// passing review that is not the first pass of a run.
//
// Algorithm behavior:
//   - "Good" multiplies by the ease factor
//   - "Hard" uses the hard modifier (typically 1.2)
//   - "Easy" uses the easy modifier times the ease factor
//   - The factor is scaled by the tier pacing and floored at MinGrowthFactor,
//     so a pass always lengthens the interval
func growthFactor(
	easeFactor float64,
	outcome domain.ReviewOutcome,
	tier domain.Difficulty,
	params *Params,
) float64 {
	var modifier float64
	switch outcome {
	case domain.ReviewOutcomeGood:
		modifier = easeFactor
	case domain.ReviewOutcomeEasy:
		modifier = params.IntervalModifier[outcome] * easeFactor
	default:
		modifier = params.IntervalModifier[outcome]
	}
	return max(modifier*params.pacing(tier), params.MinGrowthFactor)
}

// calculateNewInterval determines the new interval based on the review outcome and current state.
//
// Algorithm behavior:
//   - "Again" resets the interval to params.MinInterval
//   - The first pass of a run (new card or right after a lapse) uses
//     params.FirstReviewIntervals
//   - Later passes multiply the current interval by growthFactor
func calculateNewInterval(
	currentInterval time.Duration,
	consecutiveCorrect int,
	easeFactor float64,
	outcome domain.ReviewOutcome,
	tier domain.Difficulty,
	params *Params,
) time.Duration {
	if !outcome.Passed() {
		return params.MinInterval
	}

	if consecutiveCorrect == 0 || currentInterval <= 0 {
		return params.FirstReviewIntervals[outcome]
	}

	next := time.Duration(float64(currentInterval) * growthFactor(easeFactor, outcome, tier, params))
	if next <= currentInterval {
		// rounding on very short intervals
		next = currentInterval + time.Second
	}
	return next
}

// Next returns the scheduling state after one more review.
// The input state is not modified.
func Next(
	state domain.SchedulingState,
	outcome domain.ReviewOutcome,
	at time.Time,
	tier domain.Difficulty,
	params *Params,
) domain.SchedulingState {
	next := state

	currentEF := state.EaseFactor
	if state.ReviewCount == 0 || currentEF == 0 {
		currentEF = params.InitialEaseFactor
	}

	next.ReviewCount++
	next.LastReviewedAt = at
	next.EaseFactor = calculateNewEaseFactor(currentEF, outcome, params)
	next.Interval = calculateNewInterval(
		state.Interval,
		state.ConsecutiveCorrect,
		next.EaseFactor,
		outcome,
		tier,
		params,
	)

	if outcome.Passed() {
		next.ConsecutiveCorrect++
	} else {
		next.ConsecutiveCorrect = 0
		next.Lapses++
	}

	next.NextDueAt = at.Add(next.Interval)
	return next
}

// Replay folds the review history into a scheduling state starting from the
// zero state. It is the only way scheduling state is derived.
func Replay(history []domain.Review, tier domain.Difficulty, params *Params) domain.SchedulingState {
	var state domain.SchedulingState
	for _, r := range history {
		state = Next(state, r.Outcome, r.At, tier, params)
	}
	return state
}

// Strength estimates how well the material behind a state is known at now.
//
// It is the current interval in days weighted by a retention curve that halves
// at the due time. Material never reviewed has strength 0 and a freshly failed
// item stays close to 0.
func Strength(state domain.SchedulingState, now time.Time) float64 {
	if state.ReviewCount == 0 || state.Interval <= 0 {
		return 0
	}
	elapsed := max(now.Sub(state.LastReviewedAt), 0)
	retention := math.Pow(0.5, float64(elapsed)/float64(state.Interval))
	return state.Interval.Hours() / 24 * retention
}
