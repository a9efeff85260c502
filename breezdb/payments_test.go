package breezdb

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/stretchr/testify/require"
)

func lnPayment(id string, typ nodeapi.PaymentType, ts int64) nodeapi.Payment {
	return nodeapi.Payment{
		ID:          id,
		Type:        typ,
		PaymentTime: ts,
		AmountMsat:  10_000,
		FeeMsat:     12,
		Status:      nodeapi.PaymentStatusComplete,
		Description: "desc " + id,
		Details: nodeapi.PaymentDetails{
			Ln: &nodeapi.LnPaymentDetails{
				PaymentHash:       id,
				Label:             "label",
				DestinationPubkey: "02aa",
				PaymentPreimage:   "ff",
				Bolt11:            "lnbcrt1" + id,
			},
		},
	}
}

// TestListPaymentsFilter asserts the type filter, the time bounds and the
// newest first ordering of payment listings.
func TestListPaymentsFilter(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)

	closed := nodeapi.Payment{
		ID:          "fundingtx",
		Type:        nodeapi.PaymentTypeClosedChannel,
		PaymentTime: 300,
		AmountMsat:  50_000,
		Status:      nodeapi.PaymentStatusPending,
		Details: nodeapi.PaymentDetails{
			ClosedChannel: &nodeapi.ClosedChannelPaymentDetails{
				ShortChannelID: "1x2x3",
				State:          "PendingClose",
				FundingTxid:    "fundingtx",
			},
		},
	}

	payments := []nodeapi.Payment{
		lnPayment("aa", nodeapi.PaymentTypeSent, 100),
		lnPayment("bb", nodeapi.PaymentTypeReceived, 200),
		closed,
		lnPayment("cc", nodeapi.PaymentTypeReceived, 400),
	}
	require.NoError(t, db.InsertPayments(ctx, payments))

	// Inserting the same rows again changes nothing.
	require.NoError(t, db.InsertPayments(ctx, payments))

	ids := func(filter nodeapi.PaymentTypeFilter, from,
		to int64) []string {

		res, err := db.FetchPayments(ctx, &ListPaymentsRequest{
			Filter:   filter,
			FromTime: from,
			ToTime:   to,
		})
		require.NoError(t, err)

		var ids []string
		for _, p := range res {
			ids = append(ids, p.ID)
		}

		return ids
	}

	require.Equal(
		t, []string{"cc", "fundingtx", "bb", "aa"},
		ids(nodeapi.PaymentTypeFilterAll, 0, 0),
	)
	require.Equal(
		t, []string{"fundingtx", "aa"},
		ids(nodeapi.PaymentTypeFilterSent, 0, 0),
	)
	require.Equal(
		t, []string{"cc", "bb"},
		ids(nodeapi.PaymentTypeFilterReceived, 0, 0),
	)
	require.Equal(
		t, []string{"fundingtx", "bb"},
		ids(nodeapi.PaymentTypeFilterAll, 200, 300),
	)

	last, err := db.LastPaymentTimestamp(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 400, last)

	got, err := db.GetPaymentByHash(ctx, "fundingtx")
	require.NoError(t, err)
	require.Equal(t, &closed, got)
}

// TestPaymentExternalInfo asserts LNURL metadata is merged into payments on
// read, also when it was stored before the payment was synced.
func TestPaymentExternalInfo(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)

	err := db.SetPaymentExternalMetadata(ctx, "aa", &PaymentExternalInfo{
		LnAddress:     "alice@example.com",
		LnurlMetadata: `[["text/plain","hi"]]`,
	})
	require.NoError(t, err)

	action := json.RawMessage(`{"tag":"message","message":"thanks"}`)
	require.NoError(t, db.InsertLnurlSuccessAction(ctx, "aa", action))

	// A later update with only the withdraw endpoint keeps the rest.
	err = db.SetPaymentExternalMetadata(ctx, "aa", &PaymentExternalInfo{
		LnurlWithdrawEndpoint: "https://example.com/withdraw",
	})
	require.NoError(t, err)

	got, err := db.GetPaymentByHash(ctx, "aa")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, db.InsertPayments(ctx, []nodeapi.Payment{
		lnPayment("aa", nodeapi.PaymentTypeSent, 100),
	}))

	got, err = db.GetPaymentByHash(ctx, "aa")
	require.NoError(t, err)

	ln := got.Details.Ln
	require.NotNil(t, ln)
	require.Equal(t, "alice@example.com", ln.LnAddress)
	require.Equal(t, `[["text/plain","hi"]]`, ln.LnurlMetadata)
	require.Equal(t, "https://example.com/withdraw", ln.LnurlWithdrawEndpoint)
	require.JSONEq(t, string(action), string(ln.LnurlSuccessAction))
}

// TestNegativeFeeRejected asserts the schema refuses negative fees.
func TestNegativeFeeRejected(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)

	_, err := db.DB.ExecContext(ctx, `
		INSERT INTO payments (
			id, payment_type, payment_time, amount_msat, fee_msat,
			status
		) VALUES ('x', 'Sent', 1, 1, -1, 'complete')`,
	)
	require.Error(t, err)
}
