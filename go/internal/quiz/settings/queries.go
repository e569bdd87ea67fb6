package settings

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Schema creates the key/value table settings are stored in.
const Schema = `
CREATE TABLE IF NOT EXISTS quiz_settings (
    key        text PRIMARY KEY,
    value      jsonb,
    updated_at timestamptz NOT NULL DEFAULT now()
)`

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Setting struct {
	Key       string
	Value     pqtype.NullRawMessage
	UpdatedAt time.Time
}

type UpsertSettingParams struct {
	Key   string
	Value pqtype.NullRawMessage
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) CreateSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, Schema)
	return err
}

const getSetting = `SELECT key, value, updated_at FROM quiz_settings WHERE key = $1`

func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	row := q.db.QueryRowContext(ctx, getSetting, key)
	var s Setting
	err := row.Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

const upsertSetting = `
INSERT INTO quiz_settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING key, value, updated_at`

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) (Setting, error) {
	row := q.db.QueryRowContext(ctx, upsertSetting, arg.Key, arg.Value)
	var s Setting
	err := row.Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

const insertSettingIfAbsent = `
INSERT INTO quiz_settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO NOTHING`

func (q *Queries) InsertSettingIfAbsent(ctx context.Context, arg UpsertSettingParams) error {
	_, err := q.db.ExecContext(ctx, insertSettingIfAbsent, arg.Key, arg.Value)
	return err
}
