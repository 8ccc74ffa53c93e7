package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"github.com/phrazzld/bespoke/internal/store"
)

// Rejection records a card that failed validation during ingestion.
type Rejection struct {
	CardID string
	Err    error
}

// IngestResult summarizes an ingestion.
type IngestResult struct {
	Added    []string
	Skipped  []string
	Rejected []Rejection
}

// Ingestor writes generated cards into the card store. Card content is
// write-once: a card whose id is already stored is skipped, so review
// history is never overwritten by regeneration.
type Ingestor struct {
	cards  store.CardStore
	logger *slog.Logger
}

// NewIngestor creates an Ingestor.
// It panics if the card store is nil.
func NewIngestor(cards store.CardStore, log *slog.Logger) *Ingestor {
	if cards == nil {
		panic("card store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		cards:  cards,
		logger: log.With(slog.String("component", "ingestor")),
	}
}

// Ingest validates the cards and stores the new ones. Modes a card claims
// but its content cannot back are dropped; a card left without any mode,
// or failing validation otherwise, is rejected. Store failures abort the
// ingestion and are returned.
func (i *Ingestor) Ingest(ctx context.Context, cards []*domain.Card) (IngestResult, error) {
	log := logger.FromContextOrDefault(ctx, i.logger)

	var result IngestResult
	fresh := make([]*domain.Card, 0, len(cards))
	seen := make(map[string]struct{}, len(cards))

	for _, c := range cards {
		if c == nil {
			continue
		}
		card := c.Clone()
		card.Modes = degradeModes(card)

		if err := card.Validate(); err != nil {
			log.WarnContext(ctx, "rejecting invalid card",
				slog.String("card_id", card.ID),
				slog.String("error", err.Error()))
			result.Rejected = append(result.Rejected, Rejection{CardID: card.ID, Err: err})
			continue
		}

		if _, dup := seen[card.ID]; dup {
			result.Skipped = append(result.Skipped, card.ID)
			continue
		}
		seen[card.ID] = struct{}{}

		_, err := i.cards.GetByID(ctx, card.ID)
		switch {
		case err == nil:
			result.Skipped = append(result.Skipped, card.ID)
			continue
		case !errors.Is(err, store.ErrNotFound):
			log.ErrorContext(ctx, "failed to look up card",
				slog.String("card_id", card.ID),
				slog.String("error", redact.Error(err)))
			return result, fmt.Errorf("failed to look up card %s: %w", card.ID, err)
		}

		fresh = append(fresh, card)
	}

	if len(fresh) == 0 {
		return result, nil
	}

	if err := i.write(ctx, fresh); err != nil {
		log.ErrorContext(ctx, "failed to store cards",
			slog.Int("count", len(fresh)),
			slog.String("error", redact.Error(err)))
		return result, err
	}

	for _, card := range fresh {
		result.Added = append(result.Added, card.ID)
	}
	log.InfoContext(ctx, "cards ingested",
		slog.Int("added", len(result.Added)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("rejected", len(result.Rejected)))
	return result, nil
}

func (i *Ingestor) write(ctx context.Context, cards []*domain.Card) error {
	if batch, ok := i.cards.(store.CardBatchWriter); ok {
		return batch.UpsertMany(ctx, cards)
	}
	for _, card := range cards {
		if err := i.cards.Upsert(ctx, card); err != nil {
			return err
		}
	}
	return nil
}

// degradeModes restricts the card's modes to those its content supports.
// An unset mode set means every supported mode.
func degradeModes(card *domain.Card) domain.ModeSet {
	supported := domain.DeriveModes(card.Content)
	if card.Modes.IsEmpty() {
		return supported
	}
	return card.Modes.Intersect(supported)
}
