package nodeapi

import (
	"encoding/json"
	"fmt"
)

const (
	// MaxPaymentAmountMsat is the largest single payment the node will
	// route.
	MaxPaymentAmountMsat uint64 = 4_294_967_000

	// MaxInboundLiquidityMsat caps how much the wallet is allowed to
	// receive in total.
	MaxInboundLiquidityMsat uint64 = 4_000_000_000
)

// NodeState is the derived snapshot of the node. It is rebuilt on every
// sync and never patched in place.
type NodeState struct {
	ID                         string                     `json:"id"`
	BlockHeight                uint32                     `json:"block_height"`
	ChannelsBalanceMsat        uint64                     `json:"channels_balance_msat"`
	OnchainBalanceMsat         uint64                     `json:"onchain_balance_msat"`
	Utxos                      []UnspentTransactionOutput `json:"utxos"`
	MaxPayableMsat             uint64                     `json:"max_payable_msat"`
	MaxReceivableMsat          uint64                     `json:"max_receivable_msat"`
	MaxSinglePaymentAmountMsat uint64                     `json:"max_single_payment_amount_msat"`
	MaxChanReserveMsats        uint64                     `json:"max_chan_reserve_msats"`
	ConnectedPeers             []string                   `json:"connected_peers"`
	InboundLiquidityMsats      uint64                     `json:"inbound_liquidity_msats"`
}

// UnspentTransactionOutput is an on-chain output owned by the node.
type UnspentTransactionOutput struct {
	Txid       string `json:"txid"`
	Outnum     uint32 `json:"outnum"`
	AmountMsat uint64 `json:"amount_millisatoshi"`
	Address    string `json:"address"`
	Reserved   bool   `json:"reserved"`
}

// ChannelState is the wallet level view of a channel's lifecycle.
type ChannelState uint8

const (
	ChannelStatePendingOpen ChannelState = iota
	ChannelStateOpened
	ChannelStatePendingClose
	ChannelStateClosed
)

// String returns the persisted name of the state.
func (s ChannelState) String() string {
	switch s {
	case ChannelStatePendingOpen:
		return "PendingOpen"

	case ChannelStateOpened:
		return "Opened"

	case ChannelStatePendingClose:
		return "PendingClose"

	case ChannelStateClosed:
		return "Closed"

	default:
		return "Unknown"
	}
}

// ParseChannelState is the inverse of ChannelState.String.
func ParseChannelState(s string) (ChannelState, error) {
	switch s {
	case "PendingOpen":
		return ChannelStatePendingOpen, nil

	case "Opened":
		return ChannelStateOpened, nil

	case "PendingClose":
		return ChannelStatePendingClose, nil

	case "Closed":
		return ChannelStateClosed, nil

	default:
		return 0, fmt.Errorf("unknown channel state %q", s)
	}
}

// Channel is identified by its funding transaction id across all of its
// states. ShortChannelID stays empty until the funding is confirmed.
type Channel struct {
	FundingTxid    string
	ShortChannelID string
	State          ChannelState
	SpendableMsat  uint64
	ReceivableMsat uint64

	// ClosedAt is the unix time at which the wallet first saw the
	// channel closed, or zero.
	ClosedAt int64

	FundingOutnum *uint32
	AliasLocal    string
	AliasRemote   string
	ClosingTxid   string
}

// PaymentType tells in which direction value moved.
type PaymentType string

const (
	PaymentTypeSent          PaymentType = "Sent"
	PaymentTypeReceived      PaymentType = "Received"
	PaymentTypeClosedChannel PaymentType = "ClosedChannel"
)

// PaymentStatus is the settlement status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusComplete PaymentStatus = "complete"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentTypeFilter selects which payments a listing returns.
type PaymentTypeFilter uint8

const (
	PaymentTypeFilterAll PaymentTypeFilter = iota

	// PaymentTypeFilterSent includes closed channel payments.
	PaymentTypeFilterSent
	PaymentTypeFilterReceived
)

// Payment is a single entry in the wallet ledger. ID is the payment hash in
// hex (or the funding txid for closed channels).
type Payment struct {
	ID          string
	Type        PaymentType
	PaymentTime int64
	AmountMsat  uint64
	FeeMsat     uint64
	Status      PaymentStatus
	Description string
	Details     PaymentDetails
}

// PaymentDetails holds the protocol specific part of a payment. Exactly one
// of the pointers is set.
type PaymentDetails struct {
	Ln            *LnPaymentDetails            `json:"ln,omitempty"`
	ClosedChannel *ClosedChannelPaymentDetails `json:"closed_channel,omitempty"`
}

// LnPaymentDetails describes a lightning payment.
type LnPaymentDetails struct {
	PaymentHash       string `json:"payment_hash"`
	Label             string `json:"label"`
	DestinationPubkey string `json:"destination_pubkey"`
	PaymentPreimage   string `json:"payment_preimage"`
	Keysend           bool   `json:"keysend"`
	Bolt11            string `json:"bolt11"`

	// The fields below live in the external info table and are only
	// filled in on read.
	LnurlSuccessAction    json.RawMessage `json:"-"`
	LnAddress             string          `json:"-"`
	LnurlMetadata         string          `json:"-"`
	LnurlWithdrawEndpoint string          `json:"-"`
}

// ClosedChannelPaymentDetails describes the on-chain settlement of a closed
// channel.
type ClosedChannelPaymentDetails struct {
	ShortChannelID string `json:"short_channel_id"`
	State          string `json:"state"`
	FundingTxid    string `json:"funding_txid"`
	ClosingTxid    string `json:"closing_txid,omitempty"`
}

// SyncResponse is the result of a single pull from the node.
type SyncResponse struct {
	NodeState NodeState
	Payments  []Payment
	Channels  []Channel
}

// PaymentResponse is returned after an outgoing payment settles.
type PaymentResponse struct {
	PaymentTime     int64
	AmountMsat      uint64
	FeeMsat         uint64
	PaymentHash     string
	PaymentPreimage string
}

// Peer is a node we have a connection or channels with.
type Peer struct {
	ID        string
	Connected bool
	Channels  []Channel
}

// CustomMessage is an application message exchanged with a peer.
type CustomMessage struct {
	PeerID      string
	MessageType uint16
	Payload     []byte
}

// CreateInvoiceRequest holds the parameters of NodeAPI.CreateInvoice.
type CreateInvoiceRequest struct {
	AmountMsat         uint64
	Description        string
	Preimage           []byte
	UseDescriptionHash bool

	// Expiry in seconds, zero means the node default.
	Expiry uint32

	// Cltv is the min final cltv delta, zero means the node default.
	Cltv uint32
}

// PrepareSweepRequest asks for a sweep estimate.
type PrepareSweepRequest struct {
	ToAddress   string
	SatPerVbyte uint64
}

// PrepareSweepResponse is the estimate for a sweep.
type PrepareSweepResponse struct {
	SweepTxWeight uint64
	SweepTxFeeSat uint64
}
