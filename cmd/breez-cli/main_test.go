package main

import (
	"testing"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	for filter, expected := range map[string]nodeapi.PaymentTypeFilter{
		"all":      nodeapi.PaymentTypeFilterAll,
		"sent":     nodeapi.PaymentTypeFilterSent,
		"received": nodeapi.PaymentTypeFilterReceived,
	} {
		got, err := parseFilter(filter)
		require.NoError(t, err)
		require.Equal(t, expected, got)
	}

	_, err := parseFilter("closed")
	require.Error(t, err)
}

func TestParseAmt(t *testing.T) {
	amt, err := parseAmt("1500")
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(1500), amt)

	for _, bad := range []string{"", "-1", "1.5", "abc"} {
		_, err := parseAmt(bad)
		require.Error(t, err, bad)
	}
}
