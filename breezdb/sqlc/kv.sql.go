// Queries of queries/kv.sql, in sqlc's layout.

package sqlc

import (
	"context"
)

const deleteCachedItem = `-- name: DeleteCachedItem :exec
DELETE FROM cached_items WHERE key = $1
`

func (q *Queries) DeleteCachedItem(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteCachedItem, key)
	return err
}

const deleteSetting = `-- name: DeleteSetting :exec
DELETE FROM settings WHERE key = $1
`

func (q *Queries) DeleteSetting(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteSetting, key)
	return err
}

const getCachedItem = `-- name: GetCachedItem :one
SELECT value FROM cached_items WHERE key = $1
`

func (q *Queries) GetCachedItem(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getCachedItem, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const getSetting = `-- name: GetSetting :one
SELECT value FROM settings WHERE key = $1
`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getSetting, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const listSettings = `-- name: ListSettings :many
SELECT key, value FROM settings ORDER BY key
`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Setting
	for rows.Next() {
		var i Setting
		if err := rows.Scan(&i.Key, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCachedItem = `-- name: UpsertCachedItem :exec
INSERT OR REPLACE INTO cached_items (key, value) VALUES ($1, $2)
`

type UpsertCachedItemParams struct {
	Key   string
	Value string
}

func (q *Queries) UpsertCachedItem(ctx context.Context, arg UpsertCachedItemParams) error {
	_, err := q.db.ExecContext(ctx, upsertCachedItem, arg.Key, arg.Value)
	return err
}

const upsertSetting = `-- name: UpsertSetting :exec
INSERT OR REPLACE INTO settings (key, value) VALUES ($1, $2)
`

type UpsertSettingParams struct {
	Key   string
	Value string
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, arg.Key, arg.Value)
	return err
}
