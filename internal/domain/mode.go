package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode is a way of presenting and exercising a card.
type Mode string

// Supported presentation modes.
const (
	ModeListen Mode = "listen"
	ModeSpeak  Mode = "speak"
	ModeRead   Mode = "read"
	ModeWrite  Mode = "write"
)

// AllModes lists every mode in canonical order.
var AllModes = []Mode{ModeListen, ModeSpeak, ModeRead, ModeWrite}

// ParseMode converts a case-insensitive mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of the four supported modes.
func (m Mode) Valid() bool {
	return m.bit() != 0
}

// NeedsAudio reports whether presenting the mode requires target-language audio.
func (m Mode) NeedsAudio() bool {
	return m == ModeListen || m == ModeSpeak
}

func (m Mode) bit() ModeSet {
	switch m {
	case ModeListen:
		return 1 << 0
	case ModeSpeak:
		return 1 << 1
	case ModeRead:
		return 1 << 2
	case ModeWrite:
		return 1 << 3
	default:
		return 0
	}
}

// ModeSet is a set of modes stored as a bitmask.
// It marshals to JSON as an array of mode names in canonical order.
type ModeSet uint8

// NewModeSet builds a set from the given modes, ignoring invalid ones.
func NewModeSet(modes ...Mode) ModeSet {
	var s ModeSet
	for _, m := range modes {
		s = s.With(m)
	}
	return s
}

// Has reports whether m is in the set.
func (s ModeSet) Has(m Mode) bool {
	b := m.bit()
	return b != 0 && s&b != 0
}

// With returns a copy of the set including m.
func (s ModeSet) With(m Mode) ModeSet {
	return s | m.bit()
}

// Without returns a copy of the set excluding m.
func (s ModeSet) Without(m Mode) ModeSet {
	return s &^ m.bit()
}

// Intersect returns the modes present in both sets.
func (s ModeSet) Intersect(other ModeSet) ModeSet {
	return s & other
}

// IsEmpty reports whether the set has no modes.
func (s ModeSet) IsEmpty() bool {
	return s&NewModeSet(AllModes...) == 0
}

// Modes returns the members of the set in canonical order.
func (s ModeSet) Modes() []Mode {
	modes := make([]Mode, 0, len(AllModes))
	for _, m := range AllModes {
		if s.Has(m) {
			modes = append(modes, m)
		}
	}
	return modes
}

// String implements fmt.Stringer.
func (s ModeSet) String() string {
	names := make([]string, 0, len(AllModes))
	for _, m := range s.Modes() {
		names = append(names, string(m))
	}
	return "{" + strings.Join(names, ",") + "}"
}

// MarshalJSON implements json.Marshaler.
func (s ModeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Modes())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ModeSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set ModeSet
	for _, name := range names {
		m, err := ParseMode(name)
		if err != nil {
			return err
		}
		set = set.With(m)
	}
	*s = set
	return nil
}
