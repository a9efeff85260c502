package breezdb

import (
	"context"
	"database/sql"

	"github.com/breez/breez-sdk-go/breezdb/sqlc"
	"github.com/breez/breez-sdk-go/nodeapi"
)

// UpdateChannels upserts the given channels by funding txid. Stored
// channels that are not closed and are missing from the list are marked
// closed.
func (db *BaseDB) UpdateChannels(ctx context.Context,
	channels []nodeapi.Channel) error {

	now := db.clock.Now().Unix()
	err := db.ExecTx(ctx, NewSqlWriteOpts(), func(q *sqlc.Queries) error {
		return updateChannels(ctx, q, channels, now)
	})

	return persistErr("update channels", err)
}

func updateChannels(ctx context.Context, q *sqlc.Queries,
	channels []nodeapi.Channel, now int64) error {

	known := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		known[c.FundingTxid] = struct{}{}

		closedAt := c.ClosedAt
		if c.State == nodeapi.ChannelStateClosed && closedAt == 0 {
			closedAt = now
		}

		var outnum sql.NullInt64
		if c.FundingOutnum != nil {
			outnum = sql.NullInt64{
				Int64: int64(*c.FundingOutnum), Valid: true,
			}
		}

		err := q.UpsertChannel(ctx, sqlc.UpsertChannelParams{
			FundingTxid:    c.FundingTxid,
			ShortChannelID: nullString(c.ShortChannelID),
			State:          c.State.String(),
			SpendableMsat:  int64(c.SpendableMsat),
			ReceivableMsat: int64(c.ReceivableMsat),
			ClosedAt:       nullInt64(closedAt),
			FundingOutnum:  outnum,
			AliasLocal:     nullString(c.AliasLocal),
			AliasRemote:    nullString(c.AliasRemote),
			ClosingTxid:    nullString(c.ClosingTxid),
		})
		if err != nil {
			return err
		}
	}

	stored, err := q.ListChannels(ctx)
	if err != nil {
		return err
	}

	for _, c := range stored {
		if _, ok := known[c.FundingTxid]; ok {
			continue
		}
		if c.State == nodeapi.ChannelStateClosed.String() {
			continue
		}

		log.Debugf("Channel %v no longer reported, marking closed",
			c.FundingTxid)

		err := q.CloseChannel(ctx, sqlc.CloseChannelParams{
			FundingTxid: c.FundingTxid,
			ClosedAt:    nullInt64(now),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// FetchChannels returns all known channels, including closed ones.
func (db *BaseDB) FetchChannels(ctx context.Context) ([]nodeapi.Channel,
	error) {

	rows, err := db.ListChannels(ctx)
	if err != nil {
		return nil, persistErr("list channels", err)
	}

	channels := make([]nodeapi.Channel, 0, len(rows))
	for _, row := range rows {
		state, err := nodeapi.ParseChannelState(row.State)
		if err != nil {
			return nil, &PersistError{Op: "decode channel", Err: err}
		}

		c := nodeapi.Channel{
			FundingTxid:    row.FundingTxid,
			ShortChannelID: row.ShortChannelID.String,
			State:          state,
			SpendableMsat:  uint64(row.SpendableMsat),
			ReceivableMsat: uint64(row.ReceivableMsat),
			ClosedAt:       row.ClosedAt.Int64,
			AliasLocal:     row.AliasLocal.String,
			AliasRemote:    row.AliasRemote.String,
			ClosingTxid:    row.ClosingTxid.String,
		}
		if row.FundingOutnum.Valid {
			outnum := uint32(row.FundingOutnum.Int64)
			c.FundingOutnum = &outnum
		}

		channels = append(channels, c)
	}

	return channels, nil
}
