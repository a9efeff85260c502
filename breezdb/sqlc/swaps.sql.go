// Queries of queries/swaps.sql, in sqlc's layout.

package sqlc

import (
	"context"
	"database/sql"
)

const getSwapByAddress = `-- name: GetSwapByAddress :one
SELECT
    s.bitcoin_address, s.created_at, s.lock_height, s.payment_hash,
    s.preimage, s.private_key, s.public_key, s.swapper_public_key, s.script,
    s.min_allowed_deposit, s.max_allowed_deposit, i.bolt11, i.paid_msat,
    i.unconfirmed_sats, i.unconfirmed_tx_ids, i.confirmed_sats,
    i.confirmed_tx_ids, i.status, i.last_redeem_error, i.confirmed_at,
    f.channel_opening_fees,
    (SELECT json_group_array(r.refund_tx_id ORDER BY r.rowid) FROM swap_refunds r
     WHERE r.bitcoin_address = s.bitcoin_address) AS refund_tx_ids
FROM swaps s
LEFT JOIN swaps_info i ON s.bitcoin_address = i.bitcoin_address
LEFT JOIN swaps_fees f ON s.bitcoin_address = f.bitcoin_address
WHERE s.bitcoin_address = $1
`

type GetSwapByAddressRow struct {
	BitcoinAddress     string
	CreatedAt          int64
	LockHeight         int64
	PaymentHash        []byte
	Preimage           []byte
	PrivateKey         []byte
	PublicKey          []byte
	SwapperPublicKey   []byte
	Script             []byte
	MinAllowedDeposit  int64
	MaxAllowedDeposit  int64
	Bolt11             sql.NullString
	PaidMsat           sql.NullInt64
	UnconfirmedSats    sql.NullInt64
	UnconfirmedTxIds   sql.NullString
	ConfirmedSats      sql.NullInt64
	ConfirmedTxIds     sql.NullString
	Status             sql.NullInt64
	LastRedeemError    sql.NullString
	ConfirmedAt        sql.NullInt64
	ChannelOpeningFees sql.NullString
	RefundTxIds        string
}

func (q *Queries) GetSwapByAddress(ctx context.Context, bitcoinAddress string) (GetSwapByAddressRow, error) {
	row := q.db.QueryRowContext(ctx, getSwapByAddress, bitcoinAddress)
	var i GetSwapByAddressRow
	err := row.Scan(
		&i.BitcoinAddress,
		&i.CreatedAt,
		&i.LockHeight,
		&i.PaymentHash,
		&i.Preimage,
		&i.PrivateKey,
		&i.PublicKey,
		&i.SwapperPublicKey,
		&i.Script,
		&i.MinAllowedDeposit,
		&i.MaxAllowedDeposit,
		&i.Bolt11,
		&i.PaidMsat,
		&i.UnconfirmedSats,
		&i.UnconfirmedTxIds,
		&i.ConfirmedSats,
		&i.ConfirmedTxIds,
		&i.Status,
		&i.LastRedeemError,
		&i.ConfirmedAt,
		&i.ChannelOpeningFees,
		&i.RefundTxIds,
	)
	return i, err
}

const getSwapByHash = `-- name: GetSwapByHash :one
SELECT
    s.bitcoin_address, s.created_at, s.lock_height, s.payment_hash,
    s.preimage, s.private_key, s.public_key, s.swapper_public_key, s.script,
    s.min_allowed_deposit, s.max_allowed_deposit, i.bolt11, i.paid_msat,
    i.unconfirmed_sats, i.unconfirmed_tx_ids, i.confirmed_sats,
    i.confirmed_tx_ids, i.status, i.last_redeem_error, i.confirmed_at,
    f.channel_opening_fees,
    (SELECT json_group_array(r.refund_tx_id ORDER BY r.rowid) FROM swap_refunds r
     WHERE r.bitcoin_address = s.bitcoin_address) AS refund_tx_ids
FROM swaps s
LEFT JOIN swaps_info i ON s.bitcoin_address = i.bitcoin_address
LEFT JOIN swaps_fees f ON s.bitcoin_address = f.bitcoin_address
WHERE s.payment_hash = $1
`

type GetSwapByHashRow struct {
	BitcoinAddress     string
	CreatedAt          int64
	LockHeight         int64
	PaymentHash        []byte
	Preimage           []byte
	PrivateKey         []byte
	PublicKey          []byte
	SwapperPublicKey   []byte
	Script             []byte
	MinAllowedDeposit  int64
	MaxAllowedDeposit  int64
	Bolt11             sql.NullString
	PaidMsat           sql.NullInt64
	UnconfirmedSats    sql.NullInt64
	UnconfirmedTxIds   sql.NullString
	ConfirmedSats      sql.NullInt64
	ConfirmedTxIds     sql.NullString
	Status             sql.NullInt64
	LastRedeemError    sql.NullString
	ConfirmedAt        sql.NullInt64
	ChannelOpeningFees sql.NullString
	RefundTxIds        string
}

func (q *Queries) GetSwapByHash(ctx context.Context, paymentHash []byte) (GetSwapByHashRow, error) {
	row := q.db.QueryRowContext(ctx, getSwapByHash, paymentHash)
	var i GetSwapByHashRow
	err := row.Scan(
		&i.BitcoinAddress,
		&i.CreatedAt,
		&i.LockHeight,
		&i.PaymentHash,
		&i.Preimage,
		&i.PrivateKey,
		&i.PublicKey,
		&i.SwapperPublicKey,
		&i.Script,
		&i.MinAllowedDeposit,
		&i.MaxAllowedDeposit,
		&i.Bolt11,
		&i.PaidMsat,
		&i.UnconfirmedSats,
		&i.UnconfirmedTxIds,
		&i.ConfirmedSats,
		&i.ConfirmedTxIds,
		&i.Status,
		&i.LastRedeemError,
		&i.ConfirmedAt,
		&i.ChannelOpeningFees,
		&i.RefundTxIds,
	)
	return i, err
}

const insertSwap = `-- name: InsertSwap :exec
INSERT INTO swaps (
    bitcoin_address, created_at, lock_height, payment_hash, preimage,
    private_key, public_key, swapper_public_key, script,
    min_allowed_deposit, max_allowed_deposit
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
`

type InsertSwapParams struct {
	BitcoinAddress    string
	CreatedAt         int64
	LockHeight        int64
	PaymentHash       []byte
	Preimage          []byte
	PrivateKey        []byte
	PublicKey         []byte
	SwapperPublicKey  []byte
	Script            []byte
	MinAllowedDeposit int64
	MaxAllowedDeposit int64
}

func (q *Queries) InsertSwap(ctx context.Context, arg InsertSwapParams) error {
	_, err := q.db.ExecContext(ctx, insertSwap,
		arg.BitcoinAddress,
		arg.CreatedAt,
		arg.LockHeight,
		arg.PaymentHash,
		arg.Preimage,
		arg.PrivateKey,
		arg.PublicKey,
		arg.SwapperPublicKey,
		arg.Script,
		arg.MinAllowedDeposit,
		arg.MaxAllowedDeposit,
	)
	return err
}

const insertSwapInfo = `-- name: InsertSwapInfo :exec
INSERT INTO swaps_info (
    bitcoin_address, status, bolt11, paid_msat, unconfirmed_sats,
    unconfirmed_tx_ids, confirmed_sats, confirmed_tx_ids, confirmed_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9
)
`

type InsertSwapInfoParams struct {
	BitcoinAddress   string
	Status           int64
	Bolt11           sql.NullString
	PaidMsat         int64
	UnconfirmedSats  int64
	UnconfirmedTxIds string
	ConfirmedSats    int64
	ConfirmedTxIds   string
	ConfirmedAt      sql.NullInt64
}

func (q *Queries) InsertSwapInfo(ctx context.Context, arg InsertSwapInfoParams) error {
	_, err := q.db.ExecContext(ctx, insertSwapInfo,
		arg.BitcoinAddress,
		arg.Status,
		arg.Bolt11,
		arg.PaidMsat,
		arg.UnconfirmedSats,
		arg.UnconfirmedTxIds,
		arg.ConfirmedSats,
		arg.ConfirmedTxIds,
		arg.ConfirmedAt,
	)
	return err
}

const insertSwapRefund = `-- name: InsertSwapRefund :exec
INSERT INTO swap_refunds (bitcoin_address, refund_tx_id) VALUES ($1, $2)
`

type InsertSwapRefundParams struct {
	BitcoinAddress string
	RefundTxID     string
}

func (q *Queries) InsertSwapRefund(ctx context.Context, arg InsertSwapRefundParams) error {
	_, err := q.db.ExecContext(ctx, insertSwapRefund, arg.BitcoinAddress, arg.RefundTxID)
	return err
}

const listSwaps = `-- name: ListSwaps :many
SELECT
    s.bitcoin_address, s.created_at, s.lock_height, s.payment_hash,
    s.preimage, s.private_key, s.public_key, s.swapper_public_key, s.script,
    s.min_allowed_deposit, s.max_allowed_deposit, i.bolt11, i.paid_msat,
    i.unconfirmed_sats, i.unconfirmed_tx_ids, i.confirmed_sats,
    i.confirmed_tx_ids, i.status, i.last_redeem_error, i.confirmed_at,
    f.channel_opening_fees,
    (SELECT json_group_array(r.refund_tx_id ORDER BY r.rowid) FROM swap_refunds r
     WHERE r.bitcoin_address = s.bitcoin_address) AS refund_tx_ids
FROM swaps s
LEFT JOIN swaps_info i ON s.bitcoin_address = i.bitcoin_address
LEFT JOIN swaps_fees f ON s.bitcoin_address = f.bitcoin_address
WHERE $1 IS NULL OR i.status = $1
ORDER BY s.created_at
`

type ListSwapsRow struct {
	BitcoinAddress     string
	CreatedAt          int64
	LockHeight         int64
	PaymentHash        []byte
	Preimage           []byte
	PrivateKey         []byte
	PublicKey          []byte
	SwapperPublicKey   []byte
	Script             []byte
	MinAllowedDeposit  int64
	MaxAllowedDeposit  int64
	Bolt11             sql.NullString
	PaidMsat           sql.NullInt64
	UnconfirmedSats    sql.NullInt64
	UnconfirmedTxIds   sql.NullString
	ConfirmedSats      sql.NullInt64
	ConfirmedTxIds     sql.NullString
	Status             sql.NullInt64
	LastRedeemError    sql.NullString
	ConfirmedAt        sql.NullInt64
	ChannelOpeningFees sql.NullString
	RefundTxIds        string
}

func (q *Queries) ListSwaps(ctx context.Context, status sql.NullInt64) ([]ListSwapsRow, error) {
	rows, err := q.db.QueryContext(ctx, listSwaps, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListSwapsRow
	for rows.Next() {
		var i ListSwapsRow
		if err := rows.Scan(
			&i.BitcoinAddress,
			&i.CreatedAt,
			&i.LockHeight,
			&i.PaymentHash,
			&i.Preimage,
			&i.PrivateKey,
			&i.PublicKey,
			&i.SwapperPublicKey,
			&i.Script,
			&i.MinAllowedDeposit,
			&i.MaxAllowedDeposit,
			&i.Bolt11,
			&i.PaidMsat,
			&i.UnconfirmedSats,
			&i.UnconfirmedTxIds,
			&i.ConfirmedSats,
			&i.ConfirmedTxIds,
			&i.Status,
			&i.LastRedeemError,
			&i.ConfirmedAt,
			&i.ChannelOpeningFees,
			&i.RefundTxIds,
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

const updateSwapBolt11 = `-- name: UpdateSwapBolt11 :execrows
UPDATE swaps_info SET bolt11 = $2 WHERE bitcoin_address = $1
`

type UpdateSwapBolt11Params struct {
	BitcoinAddress string
	Bolt11         sql.NullString
}

func (q *Queries) UpdateSwapBolt11(ctx context.Context, arg UpdateSwapBolt11Params) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSwapBolt11,
		arg.BitcoinAddress,
		arg.Bolt11,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateSwapChainInfo = `-- name: UpdateSwapChainInfo :execrows
UPDATE swaps_info SET
    unconfirmed_sats = $2,
    unconfirmed_tx_ids = $3,
    confirmed_sats = $4,
    confirmed_tx_ids = $5,
    status = $6,
    confirmed_at = $7
WHERE bitcoin_address = $1
`

type UpdateSwapChainInfoParams struct {
	BitcoinAddress   string
	UnconfirmedSats  int64
	UnconfirmedTxIds string
	ConfirmedSats    int64
	ConfirmedTxIds   string
	Status           int64
	ConfirmedAt      sql.NullInt64
}

func (q *Queries) UpdateSwapChainInfo(ctx context.Context, arg UpdateSwapChainInfoParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSwapChainInfo,
		arg.BitcoinAddress,
		arg.UnconfirmedSats,
		arg.UnconfirmedTxIds,
		arg.ConfirmedSats,
		arg.ConfirmedTxIds,
		arg.Status,
		arg.ConfirmedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateSwapPaidAmount = `-- name: UpdateSwapPaidAmount :execrows
UPDATE swaps_info SET paid_msat = $2 WHERE bitcoin_address = $1
`

type UpdateSwapPaidAmountParams struct {
	BitcoinAddress string
	PaidMsat       int64
}

func (q *Queries) UpdateSwapPaidAmount(ctx context.Context, arg UpdateSwapPaidAmountParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSwapPaidAmount,
		arg.BitcoinAddress,
		arg.PaidMsat,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateSwapRedeemError = `-- name: UpdateSwapRedeemError :execrows
UPDATE swaps_info SET last_redeem_error = $2 WHERE bitcoin_address = $1
`

type UpdateSwapRedeemErrorParams struct {
	BitcoinAddress  string
	LastRedeemError sql.NullString
}

func (q *Queries) UpdateSwapRedeemError(ctx context.Context, arg UpdateSwapRedeemErrorParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSwapRedeemError,
		arg.BitcoinAddress,
		arg.LastRedeemError,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateSwapStatus = `-- name: UpdateSwapStatus :execrows
UPDATE swaps_info SET status = $2 WHERE bitcoin_address = $1
`

type UpdateSwapStatusParams struct {
	BitcoinAddress string
	Status         int64
}

func (q *Queries) UpdateSwapStatus(ctx context.Context, arg UpdateSwapStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSwapStatus,
		arg.BitcoinAddress,
		arg.Status,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertSwapFees = `-- name: UpsertSwapFees :exec
INSERT OR REPLACE INTO swaps_fees (
    bitcoin_address, created_at, channel_opening_fees
) VALUES (
    $1, $2, $3
)
`

type UpsertSwapFeesParams struct {
	BitcoinAddress     string
	CreatedAt          int64
	ChannelOpeningFees string
}

func (q *Queries) UpsertSwapFees(ctx context.Context, arg UpsertSwapFeesParams) error {
	_, err := q.db.ExecContext(ctx, upsertSwapFees, arg.BitcoinAddress, arg.CreatedAt, arg.ChannelOpeningFees)
	return err
}
