// Queries of queries/channels.sql, in sqlc's layout.

package sqlc

import (
	"context"
	"database/sql"
)

const closeChannel = `-- name: CloseChannel :exec
UPDATE channels
SET state = 'Closed', closed_at = coalesce(closed_at, $2)
WHERE funding_txid = $1
`

type CloseChannelParams struct {
	FundingTxid string
	ClosedAt    sql.NullInt64
}

func (q *Queries) CloseChannel(ctx context.Context, arg CloseChannelParams) error {
	_, err := q.db.ExecContext(ctx, closeChannel, arg.FundingTxid, arg.ClosedAt)
	return err
}

const listChannels = `-- name: ListChannels :many
SELECT
    funding_txid, short_channel_id, state, spendable_msat, receivable_msat,
    closed_at, funding_outnum, alias_local, alias_remote, closing_txid
FROM channels
ORDER BY funding_txid
`

func (q *Queries) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := q.db.QueryContext(ctx, listChannels)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Channel
	for rows.Next() {
		var i Channel
		if err := rows.Scan(
			&i.FundingTxid,
			&i.ShortChannelID,
			&i.State,
			&i.SpendableMsat,
			&i.ReceivableMsat,
			&i.ClosedAt,
			&i.FundingOutnum,
			&i.AliasLocal,
			&i.AliasRemote,
			&i.ClosingTxid,
		); err != nil {
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

const upsertChannel = `-- name: UpsertChannel :exec
INSERT INTO channels (
    funding_txid, short_channel_id, state, spendable_msat, receivable_msat,
    closed_at, funding_outnum, alias_local, alias_remote, closing_txid
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
ON CONFLICT (funding_txid) DO UPDATE SET
    short_channel_id = excluded.short_channel_id,
    state = excluded.state,
    spendable_msat = excluded.spendable_msat,
    receivable_msat = excluded.receivable_msat,
    closed_at = coalesce(closed_at, excluded.closed_at),
    funding_outnum = excluded.funding_outnum,
    alias_local = excluded.alias_local,
    alias_remote = excluded.alias_remote,
    closing_txid = coalesce(excluded.closing_txid, closing_txid)
`

type UpsertChannelParams struct {
	FundingTxid    string
	ShortChannelID sql.NullString
	State          string
	SpendableMsat  int64
	ReceivableMsat int64
	ClosedAt       sql.NullInt64
	FundingOutnum  sql.NullInt64
	AliasLocal     sql.NullString
	AliasRemote    sql.NullString
	ClosingTxid    sql.NullString
}

func (q *Queries) UpsertChannel(ctx context.Context, arg UpsertChannelParams) error {
	_, err := q.db.ExecContext(ctx, upsertChannel,
		arg.FundingTxid,
		arg.ShortChannelID,
		arg.State,
		arg.SpendableMsat,
		arg.ReceivableMsat,
		arg.ClosedAt,
		arg.FundingOutnum,
		arg.AliasLocal,
		arg.AliasRemote,
		arg.ClosingTxid,
	)
	return err
}
