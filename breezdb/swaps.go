package breezdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/breez/breez-sdk-go/breezdb/sqlc"
)

// InsertSwap stores a new swap together with its status row and its opening
// fee quote. The three inserts share one transaction, so a colliding swap
// identity leaves nothing behind.
func (db *BaseDB) InsertSwap(ctx context.Context, swap *SwapInfo) error {
	if swap.ChannelOpeningFees == nil {
		return &PersistError{Op: "insert swap", Err: ErrMissingOpeningFees}
	}

	fees, err := json.Marshal(swap.ChannelOpeningFees)
	if err != nil {
		return &PersistError{Op: "insert swap", Err: err}
	}
	unconfirmed, err := encodeTxIDs(swap.UnconfirmedTxIDs)
	if err != nil {
		return &PersistError{Op: "insert swap", Err: err}
	}
	confirmed, err := encodeTxIDs(swap.ConfirmedTxIDs)
	if err != nil {
		return &PersistError{Op: "insert swap", Err: err}
	}

	err = db.ExecTx(ctx, NewSqlWriteOpts(), func(q *sqlc.Queries) error {
		err := q.InsertSwap(ctx, sqlc.InsertSwapParams{
			BitcoinAddress:    swap.BitcoinAddress,
			CreatedAt:         swap.CreatedAt,
			LockHeight:        swap.LockHeight,
			PaymentHash:       swap.PaymentHash,
			Preimage:          swap.Preimage,
			PrivateKey:        swap.PrivateKey,
			PublicKey:         swap.PublicKey,
			SwapperPublicKey:  swap.SwapperPublicKey,
			Script:            swap.Script,
			MinAllowedDeposit: swap.MinAllowedDeposit,
			MaxAllowedDeposit: swap.MaxAllowedDeposit,
		})
		if err != nil {
			return err
		}

		err = q.InsertSwapInfo(ctx, sqlc.InsertSwapInfoParams{
			BitcoinAddress:   swap.BitcoinAddress,
			Status:           int64(swap.Status),
			Bolt11:           nullString(swap.Bolt11),
			PaidMsat:         int64(swap.PaidMsat),
			UnconfirmedSats:  int64(swap.UnconfirmedSats),
			UnconfirmedTxIds: unconfirmed,
			ConfirmedSats:    int64(swap.ConfirmedSats),
			ConfirmedTxIds:   confirmed,
			ConfirmedAt:      nullUint32(swap.ConfirmedAt),
		})
		if err != nil {
			return err
		}

		for _, txid := range swap.RefundTxIDs {
			err := q.InsertSwapRefund(ctx, sqlc.InsertSwapRefundParams{
				BitcoinAddress: swap.BitcoinAddress,
				RefundTxID:     txid,
			})
			if err != nil {
				return err
			}
		}

		return q.UpsertSwapFees(ctx, sqlc.UpsertSwapFeesParams{
			BitcoinAddress:     swap.BitcoinAddress,
			CreatedAt:          db.clock.Now().Unix(),
			ChannelOpeningFees: string(fees),
		})
	})

	return persistErr("insert swap", err)
}

// UpdateSwapPaidAmount records how much of the swap invoice was paid.
func (db *BaseDB) UpdateSwapPaidAmount(ctx context.Context, address string,
	paidMsat uint64) error {

	n, err := db.Queries.UpdateSwapPaidAmount(
		ctx, sqlc.UpdateSwapPaidAmountParams{
			BitcoinAddress: address,
			PaidMsat:       int64(paidMsat),
		},
	)

	return checkSwapUpdate("update swap paid amount", n, err)
}

// UpdateSwapRedeemError records the last error seen while redeeming. An
// empty message clears it.
func (db *BaseDB) UpdateSwapRedeemError(ctx context.Context, address,
	redeemErr string) error {

	n, err := db.Queries.UpdateSwapRedeemError(
		ctx, sqlc.UpdateSwapRedeemErrorParams{
			BitcoinAddress:  address,
			LastRedeemError: nullString(redeemErr),
		},
	)

	return checkSwapUpdate("update swap redeem error", n, err)
}

// UpdateSwapBolt11 assigns the invoice the swapper will pay.
func (db *BaseDB) UpdateSwapBolt11(ctx context.Context, address,
	bolt11 string) error {

	n, err := db.Queries.UpdateSwapBolt11(ctx, sqlc.UpdateSwapBolt11Params{
		BitcoinAddress: address,
		Bolt11:         nullString(bolt11),
	})

	return checkSwapUpdate("update swap bolt11", n, err)
}

// UpdateSwapStatus sets the lifecycle status of a swap.
func (db *BaseDB) UpdateSwapStatus(ctx context.Context, address string,
	status SwapStatus) error {

	n, err := db.Queries.UpdateSwapStatus(ctx, sqlc.UpdateSwapStatusParams{
		BitcoinAddress: address,
		Status:         int64(status),
	})

	return checkSwapUpdate("update swap status", n, err)
}

// UpdateSwapChainInfo stores the chain view of a swap address together with
// the status it implies and returns the updated swap.
func (db *BaseDB) UpdateSwapChainInfo(ctx context.Context, address string,
	info *SwapChainInfo, status SwapStatus) (*SwapInfo, error) {

	unconfirmed, err := encodeTxIDs(info.UnconfirmedTxIDs)
	if err != nil {
		return nil, &PersistError{Op: "update swap chain info", Err: err}
	}
	confirmed, err := encodeTxIDs(info.ConfirmedTxIDs)
	if err != nil {
		return nil, &PersistError{Op: "update swap chain info", Err: err}
	}

	n, err := db.Queries.UpdateSwapChainInfo(
		ctx, sqlc.UpdateSwapChainInfoParams{
			BitcoinAddress:   address,
			UnconfirmedSats:  int64(info.UnconfirmedSats),
			UnconfirmedTxIds: unconfirmed,
			ConfirmedSats:    int64(info.ConfirmedSats),
			ConfirmedTxIds:   confirmed,
			Status:           int64(status),
			ConfirmedAt:      nullUint32(info.ConfirmedAt),
		},
	)
	if err := checkSwapUpdate("update swap chain info", n, err); err != nil {
		return nil, err
	}

	return db.GetSwapInfoByAddress(ctx, address)
}

// InsertSwapRefundTxID records a refund transaction of a swap.
func (db *BaseDB) InsertSwapRefundTxID(ctx context.Context, address,
	txid string) error {

	err := db.InsertSwapRefund(ctx, sqlc.InsertSwapRefundParams{
		BitcoinAddress: address,
		RefundTxID:     txid,
	})

	return persistErr("insert swap refund", err)
}

// UpdateSwapFees replaces the opening fee quote of a swap.
func (db *BaseDB) UpdateSwapFees(ctx context.Context, address string,
	fees *OpeningFeeParams) error {

	value, err := json.Marshal(fees)
	if err != nil {
		return &PersistError{Op: "update swap fees", Err: err}
	}

	err = db.UpsertSwapFees(ctx, sqlc.UpsertSwapFeesParams{
		BitcoinAddress:     address,
		CreatedAt:          db.clock.Now().Unix(),
		ChannelOpeningFees: string(value),
	})

	return persistErr("update swap fees", err)
}

// FetchSwaps returns all swaps ordered by creation time.
func (db *BaseDB) FetchSwaps(ctx context.Context) ([]*SwapInfo, error) {
	return db.fetchSwaps(ctx, sql.NullInt64{})
}

// FetchSwapsWithStatus returns the swaps in the given status.
func (db *BaseDB) FetchSwapsWithStatus(ctx context.Context,
	status SwapStatus) ([]*SwapInfo, error) {

	return db.fetchSwaps(ctx, sql.NullInt64{
		Int64: int64(status), Valid: true,
	})
}

func (db *BaseDB) fetchSwaps(ctx context.Context,
	status sql.NullInt64) ([]*SwapInfo, error) {

	rows, err := db.ListSwaps(ctx, status)
	if err != nil {
		return nil, persistErr("list swaps", err)
	}

	swaps := make([]*SwapInfo, 0, len(rows))
	for _, row := range rows {
		swap, err := swapFromRow(sqlc.GetSwapByAddressRow(row))
		if err != nil {
			return nil, err
		}

		swaps = append(swaps, swap)
	}

	return swaps, nil
}

// GetSwapInfoByAddress returns the swap of the given address or
// ErrSwapNotFound.
func (db *BaseDB) GetSwapInfoByAddress(ctx context.Context,
	address string) (*SwapInfo, error) {

	row, err := db.GetSwapByAddress(ctx, address)
	if err != nil {
		return nil, swapLookupErr(err)
	}

	return swapFromRow(row)
}

// GetSwapInfoByHash returns the swap with the given payment hash or
// ErrSwapNotFound.
func (db *BaseDB) GetSwapInfoByHash(ctx context.Context,
	hash []byte) (*SwapInfo, error) {

	row, err := db.GetSwapByHash(ctx, hash)
	if err != nil {
		return nil, swapLookupErr(err)
	}

	return swapFromRow(sqlc.GetSwapByAddressRow(row))
}

func swapLookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &PersistError{Op: "get swap", Err: ErrSwapNotFound}
	}

	return persistErr("get swap", err)
}

func checkSwapUpdate(op string, rows int64, err error) error {
	if err != nil {
		return persistErr(op, err)
	}
	if rows == 0 {
		return &PersistError{Op: op, Err: ErrSwapNotFound}
	}

	return nil
}

func swapFromRow(row sqlc.GetSwapByAddressRow) (*SwapInfo, error) {
	swap := &SwapInfo{
		BitcoinAddress:    row.BitcoinAddress,
		CreatedAt:         row.CreatedAt,
		LockHeight:        row.LockHeight,
		PaymentHash:       row.PaymentHash,
		Preimage:          row.Preimage,
		PrivateKey:        row.PrivateKey,
		PublicKey:         row.PublicKey,
		SwapperPublicKey:  row.SwapperPublicKey,
		Script:            row.Script,
		Bolt11:            row.Bolt11.String,
		PaidMsat:          uint64(row.PaidMsat.Int64),
		UnconfirmedSats:   uint64(row.UnconfirmedSats.Int64),
		ConfirmedSats:     uint64(row.ConfirmedSats.Int64),
		Status:            SwapStatus(row.Status.Int64),
		LastRedeemError:   row.LastRedeemError.String,
		MinAllowedDeposit: row.MinAllowedDeposit,
		MaxAllowedDeposit: row.MaxAllowedDeposit,
	}

	if row.ConfirmedAt.Valid {
		confirmedAt := uint32(row.ConfirmedAt.Int64)
		swap.ConfirmedAt = &confirmedAt
	}

	var err error
	swap.UnconfirmedTxIDs, err = decodeTxIDs(row.UnconfirmedTxIds.String)
	if err != nil {
		return nil, swapDecodeErr(row.BitcoinAddress, err)
	}
	swap.ConfirmedTxIDs, err = decodeTxIDs(row.ConfirmedTxIds.String)
	if err != nil {
		return nil, swapDecodeErr(row.BitcoinAddress, err)
	}
	swap.RefundTxIDs, err = decodeTxIDs(row.RefundTxIds)
	if err != nil {
		return nil, swapDecodeErr(row.BitcoinAddress, err)
	}

	if row.ChannelOpeningFees.Valid {
		var fees OpeningFeeParams
		err := json.Unmarshal([]byte(row.ChannelOpeningFees.String), &fees)
		if err != nil {
			return nil, swapDecodeErr(row.BitcoinAddress, err)
		}
		swap.ChannelOpeningFees = &fees
	}

	return swap, nil
}

func swapDecodeErr(address string, err error) error {
	return &PersistError{
		Op:  "decode swap",
		Err: fmt.Errorf("swap %v: %w", address, err),
	}
}

// encodeTxIDs serializes an ordered list of transaction ids.
func encodeTxIDs(txids []string) (string, error) {
	if txids == nil {
		txids = []string{}
	}

	b, err := json.Marshal(txids)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// decodeTxIDs is the inverse of encodeTxIDs. An empty string decodes to an
// empty list.
func decodeTxIDs(s string) ([]string, error) {
	txids := []string{}
	if s == "" {
		return txids, nil
	}

	if err := json.Unmarshal([]byte(s), &txids); err != nil {
		return nil, err
	}

	return txids, nil
}

func nullUint32(v *uint32) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
