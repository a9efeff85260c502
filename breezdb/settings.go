package breezdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/breez/breez-sdk-go/breezdb/sqlc"
	"github.com/breez/breez-sdk-go/nodeapi"
)

const (
	// nodeStateKey caches the JSON encoded NodeState of the last sync.
	nodeStateKey = "node_state"

	// credentialsKey holds the encrypted node credentials.
	credentialsKey = "gl_credentials"

	// lastSyncTimeKey holds the unix time of the last successful sync.
	lastSyncTimeKey = "last_sync_time"
)

// UpdateSetting sets a user controlled setting.
func (db *BaseDB) UpdateSetting(ctx context.Context, key, value string) error {
	err := db.UpsertSetting(ctx, sqlc.UpsertSettingParams{
		Key:   key,
		Value: value,
	})

	return persistErr("update setting", err)
}

// FetchSetting returns the value of a setting and whether it exists.
func (db *BaseDB) FetchSetting(ctx context.Context, key string) (string, bool,
	error) {

	value, err := db.GetSetting(ctx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil

	case err != nil:
		return "", false, persistErr("get setting", err)
	}

	return value, true, nil
}

// RemoveSetting deletes a setting. Removing an unknown key is not an error.
func (db *BaseDB) RemoveSetting(ctx context.Context, key string) error {
	return persistErr("delete setting", db.DeleteSetting(ctx, key))
}

// FetchSettings returns all settings.
func (db *BaseDB) FetchSettings(ctx context.Context) (map[string]string,
	error) {

	rows, err := db.ListSettings(ctx)
	if err != nil {
		return nil, persistErr("list settings", err)
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}

	return settings, nil
}

// UpdateCachedItem stores a derived value that can be rebuilt from the node.
func (db *BaseDB) UpdateCachedItem(ctx context.Context, key,
	value string) error {

	err := db.UpsertCachedItem(ctx, sqlc.UpsertCachedItemParams{
		Key:   key,
		Value: value,
	})

	return persistErr("update cached item", err)
}

// FetchCachedItem returns a cached value and whether it exists.
func (db *BaseDB) FetchCachedItem(ctx context.Context, key string) (string,
	bool, error) {

	value, err := db.GetCachedItem(ctx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil

	case err != nil:
		return "", false, persistErr("get cached item", err)
	}

	return value, true, nil
}

// RemoveCachedItem deletes a cached value.
func (db *BaseDB) RemoveCachedItem(ctx context.Context, key string) error {
	return persistErr("delete cached item", db.DeleteCachedItem(ctx, key))
}

// SetNodeState caches the node state snapshot.
func (db *BaseDB) SetNodeState(ctx context.Context,
	state *nodeapi.NodeState) error {

	return persistErr("set node state", setNodeState(ctx, db.Queries, state))
}

func setNodeState(ctx context.Context, q *sqlc.Queries,
	state *nodeapi.NodeState) error {

	value, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return q.UpsertCachedItem(ctx, sqlc.UpsertCachedItemParams{
		Key:   nodeStateKey,
		Value: string(value),
	})
}

// GetNodeState returns the node state of the last sync, or nil if the
// wallet never synced.
func (db *BaseDB) GetNodeState(ctx context.Context) (*nodeapi.NodeState,
	error) {

	value, ok, err := db.FetchCachedItem(ctx, nodeStateKey)
	if err != nil || !ok {
		return nil, err
	}

	var state nodeapi.NodeState
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return nil, &PersistError{Op: "decode node state", Err: err}
	}

	return &state, nil
}

// SetCredentials stores the encrypted node credentials.
func (db *BaseDB) SetCredentials(ctx context.Context, encrypted []byte) error {
	return db.UpdateCachedItem(
		ctx, credentialsKey, hex.EncodeToString(encrypted),
	)
}

// GetCredentials returns the encrypted node credentials, or nil.
func (db *BaseDB) GetCredentials(ctx context.Context) ([]byte, error) {
	value, ok, err := db.FetchCachedItem(ctx, credentialsKey)
	if err != nil || !ok {
		return nil, err
	}

	encrypted, err := hex.DecodeString(value)
	if err != nil {
		return nil, &PersistError{Op: "decode credentials", Err: err}
	}

	return encrypted, nil
}

// GetLastSyncTime returns the time of the last successful sync, or zero.
// PersistSync records it.
func (db *BaseDB) GetLastSyncTime(ctx context.Context) (int64, error) {
	value, ok, err := db.FetchCachedItem(ctx, lastSyncTimeKey)
	if err != nil || !ok {
		return 0, err
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &PersistError{Op: "decode last sync time", Err: err}
	}

	return ts, nil
}
