package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/platform/sqlcard"
	"github.com/phrazzld/bespoke/internal/store"
)

var dialect = sqlcard.Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	ItemContains: func(ph string) string {
		return "vocabulary_items @> jsonb_build_array(" + ph + "::text)"
	},
}

var (
	selectCardsSQL = "SELECT " + sqlcard.Columns + " FROM cards"

	getCardSQL = selectCardsSQL + " WHERE id = $1"

	upsertCardSQL = "INSERT INTO cards (" + sqlcard.Columns + ") VALUES (" +
		dialect.Placeholders(sqlcard.ColumnCount) + `)
ON CONFLICT (id) DO UPDATE SET
    target_language = EXCLUDED.target_language,
    native_language = EXCLUDED.native_language,
    difficulty = EXCLUDED.difficulty,
    modes = EXCLUDED.modes,
    content = EXCLUDED.content,
    vocabulary_items = EXCLUDED.vocabulary_items,
    review_history = EXCLUDED.review_history,
    scheduling = EXCLUDED.scheduling,
    next_due_at = EXCLUDED.next_due_at,
    updated_at = EXCLUDED.updated_at`
)

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	sqlDB  *sql.DB // nil when bound to a transaction
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, _ := db.(*sql.DB)
	return &PostgresCardStore{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(slog.String("component", "card_store"), slog.String("backend", "postgres")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// WithTx returns a store that runs its statements inside tx.
func (s *PostgresCardStore) WithTx(tx *sql.Tx) *PostgresCardStore {
	return &PostgresCardStore{db: tx, logger: s.logger}
}

// GetCards implements store.CardStore.GetCards.
func (s *PostgresCardStore) GetCards(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args := dialect.Where(filter)
	rows, err := s.db.QueryContext(ctx, selectCardsSQL+where+" ORDER BY id", args...)
	if err != nil {
		log.Error("failed to query cards", slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	cards := make([]*domain.Card, 0)
	for rows.Next() {
		card, err := sqlcard.Scan(rows)
		if err != nil {
			log.Error("failed to scan card", slog.String("error", err.Error()))
			return nil, store.NewStoreError("card", "list", "scan failed", MapError(err))
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("card", "list", "row iteration failed", MapError(err))
	}

	log.Debug("cards loaded", slog.Int("count", len(cards)))
	return cards, nil
}

// GetByID implements store.CardStore.GetByID.
// Returns store.ErrCardNotFound if the card does not exist.
func (s *PostgresCardStore) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	card, err := sqlcard.Scan(s.db.QueryRowContext(ctx, getCardSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCardNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get card",
			slog.String("card_id", id),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", "get", "query failed", MapError(err))
	}
	return card, nil
}

// Upsert implements store.CardStore.Upsert.
func (s *PostgresCardStore) Upsert(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if card == nil {
		return fmt.Errorf("%w: nil card", store.ErrInvalidEntity)
	}
	if err := card.Validate(); err != nil {
		return store.NewStoreError("card", "upsert", "invalid card", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}

	row, err := sqlcard.Encode(card)
	if err != nil {
		return store.NewStoreError("card", "upsert", "encoding failed", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}

	if _, err := s.db.ExecContext(ctx, upsertCardSQL, row.Args()...); err != nil {
		log.Error("failed to upsert card",
			slog.String("card_id", card.ID),
			slog.String("error", err.Error()))
		return store.NewStoreError("card", "upsert", "exec failed", MapError(err))
	}

	log.Debug("card upserted", slog.String("card_id", card.ID))
	return nil
}

// UpsertMany writes all cards atomically. When the store is already bound to
// a transaction the caller's transaction provides the atomicity.
func (s *PostgresCardStore) UpsertMany(ctx context.Context, cards []*domain.Card) error {
	if s.sqlDB == nil {
		return upsertAll(ctx, s, cards)
	}
	return store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
		return upsertAll(ctx, s.WithTx(tx), cards)
	})
}

func upsertAll(ctx context.Context, s store.CardStore, cards []*domain.Card) error {
	for _, card := range cards {
		if err := s.Upsert(ctx, card); err != nil {
			return err
		}
	}
	return nil
}
