package invoice

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// ErrInvalidInvoice is returned when a string can't be decoded as a bolt11
// invoice on any of the supported networks.
var ErrInvalidInvoice = errors.New("invalid bolt11 invoice")

// networks are tried in order when decoding. Regtest must come after
// mainnet's failure since both share the "lnbc" prefix.
var networks = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
	&chaincfg.SigNetParams,
}

// LNInvoice is the decoded form of a bolt11 payment request.
type LNInvoice struct {
	Bolt11          string
	Network         *chaincfg.Params
	PayeePubkey     string
	PaymentHash     string
	Description     string
	DescriptionHash string

	// AmountMsat is nil for zero amount invoices.
	AmountMsat *uint64

	Timestamp               time.Time
	Expiry                  time.Duration
	MinFinalCltvExpiryDelta uint64
}

// ExpiresAt returns the absolute expiry of the invoice.
func (i *LNInvoice) ExpiresAt() time.Time {
	return i.Timestamp.Add(i.Expiry)
}

// Parse decodes a bolt11 string. A "lightning:" scheme prefix is accepted.
func Parse(bolt11 string) (*LNInvoice, error) {
	bolt11 = strings.TrimSpace(bolt11)
	if strings.HasPrefix(strings.ToLower(bolt11), "lightning:") {
		bolt11 = bolt11[len("lightning:"):]
	}

	var lastErr error
	for _, net := range networks {
		inv, err := zpay32.Decode(bolt11, net)
		if err != nil {
			lastErr = err
			continue
		}

		return fromZpay32(bolt11, net, inv), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrInvalidInvoice, lastErr)
}

// ParseForNetwork decodes a bolt11 string and fails if it wasn't issued for
// net.
func ParseForNetwork(bolt11 string, net *chaincfg.Params) (*LNInvoice,
	error) {

	inv, err := Parse(bolt11)
	if err != nil {
		return nil, err
	}

	if inv.Network.Name != net.Name {
		return nil, fmt.Errorf("%w: invoice for %v, expected %v",
			ErrInvalidInvoice, inv.Network.Name, net.Name)
	}

	return inv, nil
}

func fromZpay32(bolt11 string, net *chaincfg.Params,
	inv *zpay32.Invoice) *LNInvoice {

	res := &LNInvoice{
		Bolt11:                  bolt11,
		Network:                 net,
		Timestamp:               inv.Timestamp,
		Expiry:                  inv.Expiry(),
		MinFinalCltvExpiryDelta: inv.MinFinalCLTVExpiry(),
	}

	if inv.Destination != nil {
		res.PayeePubkey = hex.EncodeToString(
			inv.Destination.SerializeCompressed(),
		)
	}
	if inv.PaymentHash != nil {
		res.PaymentHash = hex.EncodeToString(inv.PaymentHash[:])
	}
	if inv.Description != nil {
		res.Description = *inv.Description
	}
	if inv.DescriptionHash != nil {
		res.DescriptionHash = hex.EncodeToString(
			inv.DescriptionHash[:],
		)
	}
	if inv.MilliSat != nil {
		amt := uint64(*inv.MilliSat)
		res.AmountMsat = &amt
	}

	return res
}
