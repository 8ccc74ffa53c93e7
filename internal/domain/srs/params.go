package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
)

// ErrInvalidParams is returned when SRS parameters are inconsistent.
var ErrInvalidParams = errors.New("invalid srs parameters")

// Params defines all configurable parameters for the SRS algorithm
type Params struct {
	// Core limits
	InitialEaseFactor float64
	MinEaseFactor     float64
	MaxEaseFactor     float64

	// Adjustments for different review outcomes
	EaseFactorAdjustment map[domain.ReviewOutcome]float64
	IntervalModifier     map[domain.ReviewOutcome]float64

	// Special case handling
	FirstReviewIntervals map[domain.ReviewOutcome]time.Duration
	MinInterval          time.Duration

	// Growth applied to a passing interval is never below this factor.
	MinGrowthFactor float64

	// Per-tier multiplier on interval growth; harder tiers grow more slowly.
	TierPacing map[domain.Difficulty]float64
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance
type ParamsConfig struct {
	// Core limits
	InitialEaseFactor float64 `mapstructure:"initial_ease_factor"`
	MinEaseFactor     float64 `mapstructure:"min_ease_factor"`
	MaxEaseFactor     float64 `mapstructure:"max_ease_factor"`

	// Ease factor adjustments
	AgainEaseFactorAdjustment float64 `mapstructure:"again_ease_adjustment"`
	HardEaseFactorAdjustment  float64 `mapstructure:"hard_ease_adjustment"`
	EasyEaseFactorAdjustment  float64 `mapstructure:"easy_ease_adjustment"`

	// Interval modifiers
	HardIntervalModifier float64 `mapstructure:"hard_interval_modifier"`
	EasyIntervalModifier float64 `mapstructure:"easy_interval_modifier"`

	// First review intervals
	FirstReviewHardInterval time.Duration `mapstructure:"first_review_hard_interval"`
	FirstReviewGoodInterval time.Duration `mapstructure:"first_review_good_interval"`
	FirstReviewEasyInterval time.Duration `mapstructure:"first_review_easy_interval"`

	// Special timing
	MinInterval     time.Duration `mapstructure:"min_interval"`
	MinGrowthFactor float64       `mapstructure:"min_growth_factor"`

	// Pacing keyed by tier name, e.g. {"C1": 0.85}
	TierPacing map[string]float64 `mapstructure:"tier_pacing"`
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		InitialEaseFactor: 2.5,
		MinEaseFactor:     1.3,
		MaxEaseFactor:     2.5,

		// Default ease factor adjustments
		EaseFactorAdjustment: map[domain.ReviewOutcome]float64{
			domain.ReviewOutcomeAgain: -0.20,
			domain.ReviewOutcomeHard:  -0.15,
			domain.ReviewOutcomeGood:  0.0,
			domain.ReviewOutcomeEasy:  0.15,
		},

		// Good uses the ease factor directly
		IntervalModifier: map[domain.ReviewOutcome]float64{
			domain.ReviewOutcomeAgain: 0.0,
			domain.ReviewOutcomeHard:  1.2,
			domain.ReviewOutcomeGood:  1.0,
			domain.ReviewOutcomeEasy:  1.3,
		},

		FirstReviewIntervals: map[domain.ReviewOutcome]time.Duration{
			domain.ReviewOutcomeHard: 24 * time.Hour,
			domain.ReviewOutcomeGood: 24 * time.Hour,
			domain.ReviewOutcomeEasy: 48 * time.Hour,
		},

		// Review again in 10 minutes
		MinInterval:     10 * time.Minute,
		MinGrowthFactor: 1.1,

		TierPacing: map[domain.Difficulty]float64{
			domain.DifficultyA1: 1.0,
			domain.DifficultyA2: 1.0,
			domain.DifficultyB1: 0.95,
			domain.DifficultyB2: 0.9,
			domain.DifficultyC1: 0.85,
			domain.DifficultyC2: 0.8,
		},
	}
}

// NewParams creates a new Params instance with custom configuration.
// Zero values in the config keep the defaults.
func NewParams(config ParamsConfig) (*Params, error) {
	params := NewDefaultParams()

	// Override core limits if provided
	if config.InitialEaseFactor > 0 {
		params.InitialEaseFactor = config.InitialEaseFactor
	}
	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
	}

	// Override ease factor adjustments if provided
	if config.AgainEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.ReviewOutcomeAgain] = config.AgainEaseFactorAdjustment
	}
	if config.HardEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.ReviewOutcomeHard] = config.HardEaseFactorAdjustment
	}
	if config.EasyEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.ReviewOutcomeEasy] = config.EasyEaseFactorAdjustment
	}

	// Override interval modifiers if provided
	if config.HardIntervalModifier > 0 {
		params.IntervalModifier[domain.ReviewOutcomeHard] = config.HardIntervalModifier
	}
	if config.EasyIntervalModifier > 0 {
		params.IntervalModifier[domain.ReviewOutcomeEasy] = config.EasyIntervalModifier
	}

	// Override first review intervals if provided
	if config.FirstReviewHardInterval > 0 {
		params.FirstReviewIntervals[domain.ReviewOutcomeHard] = config.FirstReviewHardInterval
	}
	if config.FirstReviewGoodInterval > 0 {
		params.FirstReviewIntervals[domain.ReviewOutcomeGood] = config.FirstReviewGoodInterval
	}
	if config.FirstReviewEasyInterval > 0 {
		params.FirstReviewIntervals[domain.ReviewOutcomeEasy] = config.FirstReviewEasyInterval
	}

	// Override special timing if provided
	if config.MinInterval > 0 {
		params.MinInterval = config.MinInterval
	}
	if config.MinGrowthFactor > 0 {
		params.MinGrowthFactor = config.MinGrowthFactor
	}

	for name, pacing := range config.TierPacing {
		tier, err := domain.ParseDifficulty(name)
		if err != nil {
			return nil, fmt.Errorf("%w: tier pacing: %w", ErrInvalidParams, err)
		}
		params.TierPacing[tier] = pacing
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Validate checks that the parameters keep the algorithm's guarantees:
// a passing review always lengthens the interval and a failure always
// resets it to MinInterval.
func (p *Params) Validate() error {
	if p.MinEaseFactor <= 1.0 || p.MaxEaseFactor < p.MinEaseFactor {
		return fmt.Errorf("%w: ease factor bounds [%.2f, %.2f]", ErrInvalidParams, p.MinEaseFactor, p.MaxEaseFactor)
	}
	if p.InitialEaseFactor < p.MinEaseFactor || p.InitialEaseFactor > p.MaxEaseFactor {
		return fmt.Errorf("%w: initial ease factor %.2f outside bounds", ErrInvalidParams, p.InitialEaseFactor)
	}
	if p.MinGrowthFactor <= 1.0 {
		return fmt.Errorf("%w: min growth factor must exceed 1.0", ErrInvalidParams)
	}
	if p.MinInterval <= 0 {
		return fmt.Errorf("%w: min interval must be positive", ErrInvalidParams)
	}
	for _, outcome := range []domain.ReviewOutcome{
		domain.ReviewOutcomeHard, domain.ReviewOutcomeGood, domain.ReviewOutcomeEasy,
	} {
		if p.FirstReviewIntervals[outcome] <= p.MinInterval {
			return fmt.Errorf("%w: first %s interval must exceed min interval", ErrInvalidParams, outcome)
		}
	}
	for tier, pacing := range p.TierPacing {
		if pacing <= 0 {
			return fmt.Errorf("%w: pacing for %s must be positive", ErrInvalidParams, tier)
		}
	}
	return nil
}

// pacing returns the growth multiplier for a tier, 1.0 when unset.
func (p *Params) pacing(tier domain.Difficulty) float64 {
	if v, ok := p.TierPacing[tier]; ok {
		return v
	}
	return 1.0
}
