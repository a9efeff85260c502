package test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

var (
	// Timeout is the default timeout when tests wait for something to
	// happen.
	Timeout = time.Second * 5

	// ErrTimeout is returned on timeout.
	ErrTimeout = errors.New("test timeout")

	// PayeeKeyIndex is the CreateKey index of the key that signs test
	// invoices.
	PayeeKeyIndex int32 = 5
)

// GetDestAddr deterministically generates a sweep address for testing.
func GetDestAddr(t *testing.T, nr byte) btcutil.Address {
	hash := sha256.Sum256([]byte{nr})
	destAddr, err := btcutil.NewAddressWitnessScriptHash(
		hash[:], &chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)

	return destAddr
}

// EncodePayReq encodes a zpay32 invoice with a fixed key.
func EncodePayReq(payReq *zpay32.Invoice) (string, error) {
	privKey, _ := CreateKey(PayeeKeyIndex)

	return payReq.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			hash := chainhash.HashB(msg)

			return ecdsa.SignCompact(privKey, hash, true), nil
		},
	})
}

// InvoiceParams describes an invoice created by NewInvoice.
type InvoiceParams struct {
	Net         *chaincfg.Params
	Preimage    lntypes.Preimage
	AmountMsat  uint64
	Description string
	Timestamp   time.Time
}

// NewInvoice encodes a signed bolt11 invoice and returns it together with
// its hex payment hash. A zero amount yields an amountless invoice.
func NewInvoice(t *testing.T, params InvoiceParams) (string, string) {
	t.Helper()

	net := params.Net
	if net == nil {
		net = &chaincfg.RegressionNetParams
	}

	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Unix(1_700_000_000, 0)
	}

	opts := []func(*zpay32.Invoice){
		zpay32.Description(params.Description),
		zpay32.PaymentAddr([32]byte{1}),
	}
	if params.AmountMsat > 0 {
		opts = append(opts, zpay32.Amount(
			lnwire.MilliSatoshi(params.AmountMsat),
		))
	}

	hash := params.Preimage.Hash()
	payReq, err := zpay32.NewInvoice(net, hash, ts, opts...)
	require.NoError(t, err)

	bolt11, err := EncodePayReq(payReq)
	require.NoError(t, err)

	return bolt11, hex.EncodeToString(hash[:])
}

// DumpGoroutines dumps all currently running goroutines.
func DumpGoroutines() {
	_ = pprof.Lookup("goroutine").WriteTo(os.Stdout, 1)
}
