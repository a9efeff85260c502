package breezdb

import (
	"context"
	"strconv"

	"github.com/breez/breez-sdk-go/breezdb/sqlc"
	"github.com/breez/breez-sdk-go/nodeapi"
)

// PersistSync stores the outcome of a sync in a single transaction: the node
// state snapshot, the pulled payments and the reconciled channels. Either
// everything is written or nothing is.
func (db *BaseDB) PersistSync(ctx context.Context, state *nodeapi.NodeState,
	payments []nodeapi.Payment, channels []nodeapi.Channel) error {

	now := db.clock.Now().Unix()
	err := db.ExecTx(ctx, NewSqlWriteOpts(), func(q *sqlc.Queries) error {
		if err := setNodeState(ctx, q, state); err != nil {
			return err
		}

		if err := insertPayments(ctx, q, payments); err != nil {
			return err
		}

		if err := updateChannels(ctx, q, channels, now); err != nil {
			return err
		}

		return q.UpsertCachedItem(ctx, sqlc.UpsertCachedItemParams{
			Key:   lastSyncTimeKey,
			Value: strconv.FormatInt(now, 10),
		})
	})
	if err != nil {
		return persistErr("persist sync", err)
	}

	log.Debugf("Persisted sync: %v payments, %v channels", len(payments),
		len(channels))

	return nil
}
