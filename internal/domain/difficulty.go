package domain

import (
	"fmt"
	"strings"
)

// Difficulty is an ordinal proficiency tier on the CEFR scale.
type Difficulty int

// Difficulty tiers from beginner to near native.
const (
	DifficultyA1 Difficulty = iota + 1
	DifficultyA2
	DifficultyB1
	DifficultyB2
	DifficultyC1
	DifficultyC2
)

// AllDifficulties lists every tier in ascending order.
var AllDifficulties = []Difficulty{
	DifficultyA1, DifficultyA2, DifficultyB1, DifficultyB2, DifficultyC1, DifficultyC2,
}

var difficultyNames = map[Difficulty]string{
	DifficultyA1: "A1",
	DifficultyA2: "A2",
	DifficultyB1: "B1",
	DifficultyB2: "B2",
	DifficultyC1: "C1",
	DifficultyC2: "C2",
}

// ParseDifficulty converts a tier name such as "B1" into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for d, n := range difficultyNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
}

// Valid reports whether d is a recognized tier.
func (d Difficulty) Valid() bool {
	_, ok := difficultyNames[d]
	return ok
}

// String implements fmt.Stringer.
func (d Difficulty) String() string {
	if name, ok := difficultyNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDifficulty, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Difficulty) UnmarshalText(text []byte) error {
	parsed, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DifficultyFilter selects an inclusive range of tiers.
// A single tier is represented with Min == Max.
type DifficultyFilter struct {
	Min Difficulty `json:"min"`
	Max Difficulty `json:"max"`
}

// SingleTier returns a filter matching exactly one tier.
func SingleTier(d Difficulty) DifficultyFilter {
	return DifficultyFilter{Min: d, Max: d}
}

// ParseDifficultyFilter accepts either a tier ("A2") or an inclusive range ("A1-B1").
func ParseDifficultyFilter(s string) (DifficultyFilter, error) {
	lo, hi, isRange := strings.Cut(s, "-")
	minTier, err := ParseDifficulty(lo)
	if err != nil {
		return DifficultyFilter{}, err
	}
	if !isRange {
		return SingleTier(minTier), nil
	}
	maxTier, err := ParseDifficulty(hi)
	if err != nil {
		return DifficultyFilter{}, err
	}
	f := DifficultyFilter{Min: minTier, Max: maxTier}
	if err := f.Validate(); err != nil {
		return DifficultyFilter{}, err
	}
	return f, nil
}

// Validate checks that both bounds are recognized tiers and ordered.
func (f DifficultyFilter) Validate() error {
	if !f.Min.Valid() || !f.Max.Valid() {
		return fmt.Errorf("%w: filter %s", ErrInvalidDifficulty, f)
	}
	if f.Min > f.Max {
		return fmt.Errorf("%w: range %s is inverted", ErrInvalidDifficulty, f)
	}
	return nil
}

// Contains reports whether d lies within the filter.
func (f DifficultyFilter) Contains(d Difficulty) bool {
	return d >= f.Min && d <= f.Max
}

// String implements fmt.Stringer.
func (f DifficultyFilter) String() string {
	if f.Min == f.Max {
		return f.Min.String()
	}
	return f.Min.String() + "-" + f.Max.String()
}
