package generation

import (
	"context"
	"fmt"
	"slices"

	"github.com/phrazzld/bespoke/internal/store"
)

// MissingAudio names an audio clip a card references but the store lacks.
type MissingAudio struct {
	CardID string
	Kind   string
	Name   string
}

// CheckReport lists inconsistencies between the card store and the audio store.
type CheckReport struct {
	Cards   int
	Missing []MissingAudio
	// Unused lists stored clips no card references.
	Unused []string
}

// OK reports whether no inconsistency was found.
func (r CheckReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Unused) == 0
}

// Check compares the audio references of every stored card with the clips
// in the audio store.
func Check(ctx context.Context, cards store.CardStore, audio AudioStore) (CheckReport, error) {
	var report CheckReport

	all, err := cards.GetCards(ctx, store.CardFilter{})
	if err != nil {
		return report, fmt.Errorf("failed to load cards: %w", err)
	}
	names, err := audio.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list audio: %w", err)
	}

	stored := make(map[string]struct{}, len(names))
	for _, name := range names {
		stored[name] = struct{}{}
	}

	referenced := make(map[string]struct{})
	for _, card := range all {
		refs := []struct{ kind, name string }{
			{"target", card.Content.AudioRef},
			{AudioSlow, card.Content.SlowAudioRef},
			{AudioNative, card.Content.NativeAudioRef},
		}
		for _, ref := range refs {
			if ref.name == "" {
				continue
			}
			referenced[ref.name] = struct{}{}
			if _, ok := stored[ref.name]; !ok {
				report.Missing = append(report.Missing, MissingAudio{CardID: card.ID, Kind: ref.kind, Name: ref.name})
			}
		}
	}

	for _, name := range names {
		if _, ok := referenced[name]; !ok {
			report.Unused = append(report.Unused, name)
		}
	}
	slices.Sort(report.Unused)
	report.Cards = len(all)
	return report, nil
}
