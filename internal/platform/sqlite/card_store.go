package sqlite

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
	Placeholder: func(int) string { return "?" },
	ItemContains: func(ph string) string {
		return "EXISTS (SELECT 1 FROM json_each(cards.vocabulary_items) WHERE json_each.value = " + ph + ")"
	},
}

var (
	selectCardsSQL = "SELECT " + sqlcard.Columns + " FROM cards"

	getCardSQL = selectCardsSQL + " WHERE id = ?"

	upsertCardSQL = "INSERT INTO cards (" + sqlcard.Columns + ") VALUES (" +
		dialect.Placeholders(sqlcard.ColumnCount) + `)
ON CONFLICT (id) DO UPDATE SET
    target_language = excluded.target_language,
    native_language = excluded.native_language,
    difficulty = excluded.difficulty,
    modes = excluded.modes,
    content = excluded.content,
    vocabulary_items = excluded.vocabulary_items,
    review_history = excluded.review_history,
    scheduling = excluded.scheduling,
    next_due_at = excluded.next_due_at,
    updated_at = excluded.updated_at`
)

// SQLiteCardStore implements the store.CardStore interface on a SQLite file.
type SQLiteCardStore struct {
	db     store.DBTX
	sqlDB  *sql.DB // nil when bound to a transaction
	logger *slog.Logger
}

// NewSQLiteCardStore creates a card store on an open, migrated database.
// If logger is nil, a default logger will be used.
func NewSQLiteCardStore(db store.DBTX, logger *slog.Logger) *SQLiteCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, _ := db.(*sql.DB)
	return &SQLiteCardStore{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(slog.String("component", "card_store"), slog.String("backend", "sqlite")),
	}
}

var _ store.CardStore = (*SQLiteCardStore)(nil)

// WithTx returns a store that runs its statements inside tx.
func (s *SQLiteCardStore) WithTx(tx *sql.Tx) *SQLiteCardStore {
	return &SQLiteCardStore{db: tx, logger: s.logger}
}

// GetCards implements store.CardStore.GetCards.
func (s *SQLiteCardStore) GetCards(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error) {
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
	return cards, nil
}

// GetByID implements store.CardStore.GetByID.
func (s *SQLiteCardStore) GetByID(ctx context.Context, id string) (*domain.Card, error) {
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
func (s *SQLiteCardStore) Upsert(ctx context.Context, card *domain.Card) error {
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

	if _, err := s.db.ExecContext(ctx, upsertCardSQL, textArgs(row.Args())...); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to upsert card",
			slog.String("card_id", card.ID),
			slog.String("error", err.Error()))
		return store.NewStoreError("card", "upsert", "exec failed", MapError(err))
	}
	return nil
}

// UpsertMany writes all cards in one transaction.
func (s *SQLiteCardStore) UpsertMany(ctx context.Context, cards []*domain.Card) error {
	if s.sqlDB == nil {
		for _, card := range cards {
			if err := s.Upsert(ctx, card); err != nil {
				return err
			}
		}
		return nil
	}
	return store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
		return s.WithTx(tx).UpsertMany(ctx, cards)
	})
}

// textArgs binds JSON columns as TEXT; SQLite treats BLOB arguments to its
// JSON functions as binary JSONB.
func textArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if b, ok := a.([]byte); ok {
			out[i] = string(b)
			continue
		}
		out[i] = a
	}
	return out
}
