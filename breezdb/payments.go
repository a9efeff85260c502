package breezdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/breez/breez-sdk-go/breezdb/sqlc"
	"github.com/breez/breez-sdk-go/nodeapi"
)

// ListPaymentsRequest filters a payment listing. Zero timestamps are
// unbounded.
type ListPaymentsRequest struct {
	Filter   nodeapi.PaymentTypeFilter
	FromTime int64
	ToTime   int64
}

// PaymentExternalInfo is the metadata an LNURL flow attaches to a payment.
// Empty fields leave stored values untouched.
type PaymentExternalInfo struct {
	LnAddress             string
	LnurlMetadata         string
	LnurlWithdrawEndpoint string
}

// InsertPayments upserts the given payments by id in a single transaction.
func (db *BaseDB) InsertPayments(ctx context.Context,
	payments []nodeapi.Payment) error {

	err := db.ExecTx(ctx, NewSqlWriteOpts(), func(q *sqlc.Queries) error {
		return insertPayments(ctx, q, payments)
	})

	return persistErr("insert payments", err)
}

func insertPayments(ctx context.Context, q *sqlc.Queries,
	payments []nodeapi.Payment) error {

	for i := range payments {
		params, err := upsertPaymentParams(&payments[i])
		if err != nil {
			return err
		}

		if err := q.UpsertPayment(ctx, params); err != nil {
			return err
		}
	}

	return nil
}

func upsertPaymentParams(p *nodeapi.Payment) (sqlc.UpsertPaymentParams,
	error) {

	details, err := json.Marshal(p.Details)
	if err != nil {
		return sqlc.UpsertPaymentParams{}, fmt.Errorf("payment %v "+
			"details: %w", p.ID, err)
	}

	return sqlc.UpsertPaymentParams{
		ID:          p.ID,
		PaymentType: string(p.Type),
		PaymentTime: p.PaymentTime,
		AmountMsat:  int64(p.AmountMsat),
		FeeMsat:     int64(p.FeeMsat),
		Status:      string(p.Status),
		Description: nullString(p.Description),
		Details:     nullString(string(details)),
	}, nil
}

// InsertLnurlSuccessAction stores the success action an LNURL-pay endpoint
// returned for the payment with the given hash.
func (db *BaseDB) InsertLnurlSuccessAction(ctx context.Context,
	paymentHash string, successAction json.RawMessage) error {

	err := db.UpsertPaymentSuccessAction(
		ctx, sqlc.UpsertPaymentSuccessActionParams{
			PaymentID:          paymentHash,
			LnurlSuccessAction: nullString(string(successAction)),
		},
	)

	return persistErr("insert lnurl success action", err)
}

// SetPaymentExternalMetadata attaches LNURL metadata to a payment. It may be
// called before the payment itself is synced from the node.
func (db *BaseDB) SetPaymentExternalMetadata(ctx context.Context,
	paymentHash string, info *PaymentExternalInfo) error {

	err := db.UpsertPaymentExternalMetadata(
		ctx, sqlc.UpsertPaymentExternalMetadataParams{
			PaymentID:     paymentHash,
			LnAddress:     nullString(info.LnAddress),
			LnurlMetadata: nullString(info.LnurlMetadata),
			LnurlWithdrawEndpoint: nullString(
				info.LnurlWithdrawEndpoint,
			),
		},
	)

	return persistErr("set payment external metadata", err)
}

// FetchPayments lists payments matching the request ordered by payment time,
// newest first. The Sent filter includes closed channel payments.
func (db *BaseDB) FetchPayments(ctx context.Context,
	req *ListPaymentsRequest) ([]nodeapi.Payment, error) {

	params := sqlc.ListPaymentsParams{
		FromTime: nullInt64(req.FromTime),
		ToTime:   nullInt64(req.ToTime),
	}
	switch req.Filter {
	case nodeapi.PaymentTypeFilterSent:
		params.IncludeSent = true

	case nodeapi.PaymentTypeFilterReceived:
		params.IncludeReceived = true

	default:
		params.IncludeSent = true
		params.IncludeReceived = true
	}

	rows, err := db.ListPayments(ctx, params)
	if err != nil {
		return nil, persistErr("list payments", err)
	}

	payments := make([]nodeapi.Payment, 0, len(rows))
	for _, row := range rows {
		payment, err := paymentFromRow(sqlc.GetPaymentRow(row))
		if err != nil {
			return nil, err
		}

		payments = append(payments, *payment)
	}

	return payments, nil
}

// GetPaymentByHash returns the payment with the given id or nil if it is
// unknown.
func (db *BaseDB) GetPaymentByHash(ctx context.Context,
	hash string) (*nodeapi.Payment, error) {

	row, err := db.GetPayment(ctx, hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		return nil, persistErr("get payment", err)
	}

	return paymentFromRow(row)
}

// LastPaymentTimestamp returns the time of the newest lightning payment, or
// zero. Closed channel payments are stamped locally and are ignored.
func (db *BaseDB) LastPaymentTimestamp(ctx context.Context) (int64, error) {
	ts, err := db.LastPaymentTime(ctx)
	if err != nil {
		return 0, persistErr("last payment time", err)
	}

	return ts, nil
}

func paymentFromRow(row sqlc.GetPaymentRow) (*nodeapi.Payment, error) {
	payment := &nodeapi.Payment{
		ID:          row.ID,
		Type:        nodeapi.PaymentType(row.PaymentType),
		PaymentTime: row.PaymentTime,
		AmountMsat:  uint64(row.AmountMsat),
		FeeMsat:     uint64(row.FeeMsat),
		Status:      nodeapi.PaymentStatus(row.Status),
		Description: row.Description.String,
	}

	if row.Details.Valid && row.Details.String != "" {
		err := json.Unmarshal(
			[]byte(row.Details.String), &payment.Details,
		)
		if err != nil {
			return nil, &PersistError{
				Op: "decode payment details",
				Err: fmt.Errorf("payment %v: %w", row.ID,
					err),
			}
		}
	}

	if ln := payment.Details.Ln; ln != nil {
		if row.LnurlSuccessAction.Valid {
			ln.LnurlSuccessAction = json.RawMessage(
				row.LnurlSuccessAction.String,
			)
		}
		ln.LnAddress = row.LnAddress.String
		ln.LnurlMetadata = row.LnurlMetadata.String
		ln.LnurlWithdrawEndpoint = row.LnurlWithdrawEndpoint.String
	}

	return payment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(i int64) sql.NullInt64 {
	return sql.NullInt64{Int64: i, Valid: i != 0}
}
