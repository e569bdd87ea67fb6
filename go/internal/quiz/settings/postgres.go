package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/smashquiz/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

type Querier interface {
	GetSetting(ctx context.Context, key string) (Setting, error)
	UpsertSetting(ctx context.Context, arg UpsertSettingParams) (Setting, error)
}

// PostgresStore keeps settings in the quiz_settings table.
type PostgresStore struct {
	queries Querier
}

func NewPostgresStore(queries Querier) *PostgresStore {
	return &PostgresStore{queries: queries}
}

func (p *PostgresStore) Load(ctx context.Context) (Settings, error) {
	row, err := p.queries.GetSetting(ctx, StorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	raw := sqlutil.FromNullRawMessage(row.Value)
	if raw == nil {
		return Settings{}, ErrNotFound
	}
	return decode(raw)
}

func (p *PostgresStore) Save(ctx context.Context, s Settings) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	row, err := p.queries.UpsertSetting(ctx, UpsertSettingParams{
		Key:   StorageKey,
		Value: sqlutil.ToNullRawMessage(value),
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	log.Debug().Str("key", row.Key).Time("updated_at", row.UpdatedAt).Msg("settings saved")
	return nil
}

// Bootstrap creates the table and stores defaults when no record exists, in
// one transaction.
func Bootstrap(ctx context.Context, db *sql.DB, defaults Settings) error {
	value, err := json.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return sqlutil.Run(ctx, db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		if err := q.CreateSchema(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return q.InsertSettingIfAbsent(ctx, UpsertSettingParams{
			Key:   StorageKey,
			Value: sqlutil.ToNullRawMessage(value),
		})
	})
}
