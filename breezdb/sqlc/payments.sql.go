// Queries of queries/payments.sql, in sqlc's layout.

package sqlc

import (
	"context"
	"database/sql"
)

const getPayment = `-- name: GetPayment :one
SELECT
    p.id, p.payment_type, p.payment_time, p.amount_msat, p.fee_msat,
    p.status, p.description, p.details, e.lnurl_success_action,
    e.ln_address, e.lnurl_metadata, e.lnurl_withdraw_endpoint
FROM payments p
LEFT JOIN payments_external_info e ON p.id = e.payment_id
WHERE p.id = $1
`

type GetPaymentRow struct {
	ID                    string
	PaymentType           string
	PaymentTime           int64
	AmountMsat            int64
	FeeMsat               int64
	Status                string
	Description           sql.NullString
	Details               sql.NullString
	LnurlSuccessAction    sql.NullString
	LnAddress             sql.NullString
	LnurlMetadata         sql.NullString
	LnurlWithdrawEndpoint sql.NullString
}

func (q *Queries) GetPayment(ctx context.Context, id string) (GetPaymentRow, error) {
	row := q.db.QueryRowContext(ctx, getPayment, id)
	var i GetPaymentRow
	err := row.Scan(
		&i.ID,
		&i.PaymentType,
		&i.PaymentTime,
		&i.AmountMsat,
		&i.FeeMsat,
		&i.Status,
		&i.Description,
		&i.Details,
		&i.LnurlSuccessAction,
		&i.LnAddress,
		&i.LnurlMetadata,
		&i.LnurlWithdrawEndpoint,
	)
	return i, err
}

const lastPaymentTime = `-- name: LastPaymentTime :one
SELECT CAST(coalesce(max(payment_time), 0) AS INTEGER) FROM payments
WHERE payment_type != 'ClosedChannel'
`

func (q *Queries) LastPaymentTime(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, lastPaymentTime)
	var column_1 int64
	err := row.Scan(&column_1)
	return column_1, err
}

const listPayments = `-- name: ListPayments :many
SELECT
    p.id, p.payment_type, p.payment_time, p.amount_msat, p.fee_msat,
    p.status, p.description, p.details, e.lnurl_success_action,
    e.ln_address, e.lnurl_metadata, e.lnurl_withdraw_endpoint
FROM payments p
LEFT JOIN payments_external_info e ON p.id = e.payment_id
WHERE ($1 IS NULL OR p.payment_time >= $1)
  AND ($2 IS NULL OR p.payment_time <= $2)
  AND (
    ($3 AND p.payment_type IN ('Sent', 'ClosedChannel')) OR
    ($4 AND p.payment_type = 'Received')
  )
ORDER BY p.payment_time DESC
`

type ListPaymentsParams struct {
	FromTime        sql.NullInt64
	ToTime          sql.NullInt64
	IncludeSent     bool
	IncludeReceived bool
}

type ListPaymentsRow struct {
	ID                    string
	PaymentType           string
	PaymentTime           int64
	AmountMsat            int64
	FeeMsat               int64
	Status                string
	Description           sql.NullString
	Details               sql.NullString
	LnurlSuccessAction    sql.NullString
	LnAddress             sql.NullString
	LnurlMetadata         sql.NullString
	LnurlWithdrawEndpoint sql.NullString
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]ListPaymentsRow, error) {
	rows, err := q.db.QueryContext(ctx, listPayments,
		arg.FromTime,
		arg.ToTime,
		arg.IncludeSent,
		arg.IncludeReceived,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPaymentsRow
	for rows.Next() {
		var i ListPaymentsRow
		if err := rows.Scan(
			&i.ID,
			&i.PaymentType,
			&i.PaymentTime,
			&i.AmountMsat,
			&i.FeeMsat,
			&i.Status,
			&i.Description,
			&i.Details,
			&i.LnurlSuccessAction,
			&i.LnAddress,
			&i.LnurlMetadata,
			&i.LnurlWithdrawEndpoint,
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

const upsertPayment = `-- name: UpsertPayment :exec
INSERT OR REPLACE INTO payments (
    id, payment_type, payment_time, amount_msat, fee_msat, status,
    description, details
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8
)
`

type UpsertPaymentParams struct {
	ID          string
	PaymentType string
	PaymentTime int64
	AmountMsat  int64
	FeeMsat     int64
	Status      string
	Description sql.NullString
	Details     sql.NullString
}

func (q *Queries) UpsertPayment(ctx context.Context, arg UpsertPaymentParams) error {
	_, err := q.db.ExecContext(ctx, upsertPayment,
		arg.ID,
		arg.PaymentType,
		arg.PaymentTime,
		arg.AmountMsat,
		arg.FeeMsat,
		arg.Status,
		arg.Description,
		arg.Details,
	)
	return err
}

const upsertPaymentExternalMetadata = `-- name: UpsertPaymentExternalMetadata :exec
INSERT INTO payments_external_info (
    payment_id, ln_address, lnurl_metadata, lnurl_withdraw_endpoint
) VALUES (
    $1, $2, $3, $4
)
ON CONFLICT (payment_id) DO UPDATE SET
    ln_address = coalesce(excluded.ln_address, ln_address),
    lnurl_metadata = coalesce(excluded.lnurl_metadata, lnurl_metadata),
    lnurl_withdraw_endpoint = coalesce(
        excluded.lnurl_withdraw_endpoint, lnurl_withdraw_endpoint
    )
`

type UpsertPaymentExternalMetadataParams struct {
	PaymentID             string
	LnAddress             sql.NullString
	LnurlMetadata         sql.NullString
	LnurlWithdrawEndpoint sql.NullString
}

func (q *Queries) UpsertPaymentExternalMetadata(ctx context.Context, arg UpsertPaymentExternalMetadataParams) error {
	_, err := q.db.ExecContext(ctx, upsertPaymentExternalMetadata,
		arg.PaymentID,
		arg.LnAddress,
		arg.LnurlMetadata,
		arg.LnurlWithdrawEndpoint,
	)
	return err
}

const upsertPaymentSuccessAction = `-- name: UpsertPaymentSuccessAction :exec
INSERT INTO payments_external_info (
    payment_id, lnurl_success_action
) VALUES (
    $1, $2
)
ON CONFLICT (payment_id) DO UPDATE SET
    lnurl_success_action = excluded.lnurl_success_action
`

type UpsertPaymentSuccessActionParams struct {
	PaymentID          string
	LnurlSuccessAction sql.NullString
}

func (q *Queries) UpsertPaymentSuccessAction(ctx context.Context, arg UpsertPaymentSuccessActionParams) error {
	_, err := q.db.ExecContext(ctx, upsertPaymentSuccessAction, arg.PaymentID, arg.LnurlSuccessAction)
	return err
}
