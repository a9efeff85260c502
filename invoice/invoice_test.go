package invoice

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/breez/breez-sdk-go/test"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	preimage := lntypes.Preimage{7}
	bolt11, hash := test.NewInvoice(t, test.InvoiceParams{
		Preimage:    preimage,
		AmountMsat:  42_000,
		Description: "coffee",
	})

	inv, err := Parse(bolt11)
	require.NoError(t, err)

	_, payee := test.CreateKey(test.PayeeKeyIndex)
	require.Equal(t, bolt11, inv.Bolt11)
	require.Equal(t, &chaincfg.RegressionNetParams, inv.Network)
	require.Equal(t, hash, inv.PaymentHash)
	require.Equal(t, hex.EncodeToString(payee.SerializeCompressed()),
		inv.PayeePubkey)
	require.Equal(t, "coffee", inv.Description)
	require.Empty(t, inv.DescriptionHash)
	require.Equal(t, uint64(42_000), *inv.AmountMsat)
	require.Equal(t, time.Unix(1_700_000_000, 0).Add(time.Hour),
		inv.ExpiresAt())

	// The uri scheme and surrounding space are ignored.
	inv, err = Parse(" lightning:" + strings.ToUpper(bolt11) + "\n")
	require.NoError(t, err)
	require.Equal(t, hash, inv.PaymentHash)
}

func TestParseAmountless(t *testing.T) {
	bolt11, _ := test.NewInvoice(t, test.InvoiceParams{
		Preimage: lntypes.Preimage{8},
	})

	inv, err := Parse(bolt11)
	require.NoError(t, err)
	require.Nil(t, inv.AmountMsat)
}

func TestParseInvalid(t *testing.T) {
	for _, bolt11 := range []string{"", "lnbc", "lightning:", "bitcoin:x"} {
		_, err := Parse(bolt11)
		require.ErrorIs(t, err, ErrInvalidInvoice, bolt11)
	}
}

func TestParseForNetwork(t *testing.T) {
	bolt11, _ := test.NewInvoice(t, test.InvoiceParams{
		Preimage: lntypes.Preimage{9},
		Net:      &chaincfg.TestNet3Params,
	})

	inv, err := ParseForNetwork(bolt11, &chaincfg.TestNet3Params)
	require.NoError(t, err)
	require.Equal(t, &chaincfg.TestNet3Params, inv.Network)

	_, err = ParseForNetwork(bolt11, &chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrInvalidInvoice)
}
