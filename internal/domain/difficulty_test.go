package domain

import (
	"errors"
	"testing"
)

func TestParseDifficultyFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    DifficultyFilter
		wantErr bool
	}{
		{"A1", DifficultyFilter{DifficultyA1, DifficultyA1}, false},
		{"b2", DifficultyFilter{DifficultyB2, DifficultyB2}, false},
		{"A1-B1", DifficultyFilter{DifficultyA1, DifficultyB1}, false},
		{"C1-A2", DifficultyFilter{}, true},
		{"Z9", DifficultyFilter{}, true},
		{"A1-", DifficultyFilter{}, true},
		{"", DifficultyFilter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDifficultyFilter(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDifficulty) {
					t.Errorf("Expected error %v, got %v", ErrInvalidDifficulty, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDifficultyFilterContains(t *testing.T) {
	t.Parallel()

	f := DifficultyFilter{Min: DifficultyA2, Max: DifficultyB2}
	for _, d := range AllDifficulties {
		want := d >= DifficultyA2 && d <= DifficultyB2
		if f.Contains(d) != want {
			t.Errorf("%s: expected Contains %v", d, want)
		}
	}
	if f.String() != "A2-B2" {
		t.Errorf("Unexpected string %s", f)
	}
}

func TestDifficultyText(t *testing.T) {
	t.Parallel()

	text, err := DifficultyC1.MarshalText()
	if err != nil || string(text) != "C1" {
		t.Fatalf("Unexpected marshal result %q, %v", text, err)
	}
	var d Difficulty
	if err := d.UnmarshalText([]byte("c2")); err != nil || d != DifficultyC2 {
		t.Errorf("Unexpected unmarshal result %v, %v", d, err)
	}
	if _, err := Difficulty(42).MarshalText(); !errors.Is(err, ErrInvalidDifficulty) {
		t.Errorf("Expected error %v, got %v", ErrInvalidDifficulty, err)
	}
}
