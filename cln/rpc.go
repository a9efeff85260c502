package cln

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/niftynei/glightning/jrpc2"
)

// RPC is the part of the glightning client the node uses. A *jrpc2.Client
// satisfies it.
type RPC interface {
	Request(m jrpc2.Method, resp interface{}) error
}

// rpcTimeoutSec is the per call timeout handed to glightning.
const rpcTimeoutSec = 60

// Dial connects to the lightning-rpc unix socket at socketPath. A socket
// that can't be reached is a ServiceConnectivity error.
func Dial(socketPath string) (*jrpc2.Client, error) {
	rpcFile := filepath.Base(socketPath)
	if rpcFile == "" || rpcFile == "." || rpcFile == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid socketPath '%s'", socketPath)
	}

	client := jrpc2.NewClient()
	client.SetTimeout(rpcTimeoutSec)

	// SocketStart blocks for the lifetime of the connection. It signals
	// on up once connected and returns early only if the dial failed.
	up := make(chan bool, 1)
	errChan := make(chan error, 1)
	go func() {
		errChan <- client.SocketStart(socketPath, up)
	}()

	select {
	case <-up:
		return client, nil

	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("connection to %v closed", socketPath)
		}

		return nil, nodeapi.Connectivity(err)
	}
}

// Error codes returned by CLN's pay, keysend and invoice commands.
const (
	codeInvalidParams         = -32602
	codeRouteNotFound         = 205
	codeRouteTooExpensive     = 206
	codeInvoiceExpired        = 207
	codeStoppedRetrying       = 210
	codeInvoicePreimageExists = 901
)

// rpcErrorCode returns the code of a JSON-RPC error returned by the node.
// The second value is false for transport failures.
func rpcErrorCode(err error) (int, bool) {
	var rpcErr *jrpc2.RpcError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}

	return 0, false
}

// call performs a request, giving up when ctx is done. glightning has no
// notion of contexts so an abandoned request still runs to completion in
// the background.
func (n *Node) call(ctx context.Context, method jrpc2.Method,
	resp interface{}) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- n.cfg.RPC.Request(method, resp)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("%v: %w", method.Name(), err)
		}

		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Msat is an amount in millisatoshi. CLN used to encode amounts as strings
// with an "msat" suffix and now uses plain integers; both are accepted.
type Msat uint64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Msat) UnmarshalJSON(b []byte) error {
	var n uint64
	if err := json.Unmarshal(b, &n); err == nil {
		*m = Msat(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid msat amount %s", b)
	}

	n, err := strconv.ParseUint(strings.TrimSuffix(s, "msat"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid msat amount %q: %w", s, err)
	}
	*m = Msat(n)

	return nil
}

// MsatOrZero dereferences an optional amount.
func (m *Msat) MsatOrZero() uint64 {
	if m == nil {
		return 0
	}

	return uint64(*m)
}

// msatParam formats an amount the way CLN expects it in requests.
func msatParam(msat uint64) string {
	return fmt.Sprintf("%dmsat", msat)
}

type GetInfoRequest struct{}

func (r *GetInfoRequest) Name() string {
	return "getinfo"
}

type GetInfoResponse struct {
	ID          string `json:"id"`
	Alias       string `json:"alias"`
	BlockHeight uint32 `json:"blockheight"`
	Network     string `json:"network"`
	Version     string `json:"version"`
}

type ListFundsRequest struct{}

func (r *ListFundsRequest) Name() string {
	return "listfunds"
}

type FundsOutput struct {
	TxID       string `json:"txid"`
	Output     uint32 `json:"output"`
	AmountMsat Msat   `json:"amount_msat"`
	Address    string `json:"address"`
	Status     string `json:"status"`
	Reserved   bool   `json:"reserved"`
}

type ListFundsResponse struct {
	Outputs []FundsOutput `json:"outputs"`
}

type ListPeersRequest struct {
	ID string `json:"id,omitempty"`
}

func (r *ListPeersRequest) Name() string {
	return "listpeers"
}

type PeerInfo struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
}

type ListPeersResponse struct {
	Peers []PeerInfo `json:"peers"`
}

type ListPeerChannelsRequest struct {
	ID string `json:"id,omitempty"`
}

func (r *ListPeerChannelsRequest) Name() string {
	return "listpeerchannels"
}

type ChannelAlias struct {
	Local  string `json:"local,omitempty"`
	Remote string `json:"remote,omitempty"`
}

type PeerChannel struct {
	PeerID         string        `json:"peer_id"`
	PeerConnected  bool          `json:"peer_connected"`
	State          string        `json:"state"`
	ShortChannelID string        `json:"short_channel_id,omitempty"`
	ChannelID      string        `json:"channel_id,omitempty"`
	FundingTxID    string        `json:"funding_txid,omitempty"`
	FundingOutnum  *uint32       `json:"funding_outnum,omitempty"`
	SpendableMsat  *Msat         `json:"spendable_msat,omitempty"`
	ReceivableMsat *Msat         `json:"receivable_msat,omitempty"`
	Alias          *ChannelAlias `json:"alias,omitempty"`
}

type ListPeerChannelsResponse struct {
	Channels []PeerChannel `json:"channels"`
}

type ListClosedChannelsRequest struct{}

func (r *ListClosedChannelsRequest) Name() string {
	return "listclosedchannels"
}

type ClosedChannel struct {
	PeerID         string        `json:"peer_id,omitempty"`
	ShortChannelID string        `json:"short_channel_id,omitempty"`
	FundingTxID    string        `json:"funding_txid"`
	FundingOutnum  uint32        `json:"funding_outnum"`
	FinalToUsMsat  *Msat         `json:"final_to_us_msat,omitempty"`
	Alias          *ChannelAlias `json:"alias,omitempty"`
}

type ListClosedChannelsResponse struct {
	ClosedChannels []ClosedChannel `json:"closedchannels"`
}

type ListInvoicesRequest struct{}

func (r *ListInvoicesRequest) Name() string {
	return "listinvoices"
}

type Invoice struct {
	Label              string `json:"label"`
	Bolt11             string `json:"bolt11,omitempty"`
	PaymentHash        string `json:"payment_hash"`
	Status             string `json:"status"`
	AmountMsat         *Msat  `json:"amount_msat,omitempty"`
	AmountReceivedMsat *Msat  `json:"amount_received_msat,omitempty"`
	PaidAt             int64  `json:"paid_at,omitempty"`
	PaymentPreimage    string `json:"payment_preimage,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []Invoice `json:"invoices"`
}

type ListPaysRequest struct{}

func (r *ListPaysRequest) Name() string {
	return "listpays"
}

type Pay struct {
	PaymentHash    string `json:"payment_hash"`
	Status         string `json:"status"`
	Destination    string `json:"destination,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	CompletedAt    int64  `json:"completed_at,omitempty"`
	Bolt11         string `json:"bolt11,omitempty"`
	AmountMsat     *Msat  `json:"amount_msat,omitempty"`
	AmountSentMsat *Msat  `json:"amount_sent_msat,omitempty"`
	Preimage       string `json:"preimage,omitempty"`
}

type ListPaysResponse struct {
	Pays []Pay `json:"pays"`
}

type InvoiceRequest struct {
	AmountMsat   string `json:"amount_msat"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	Expiry       uint32 `json:"expiry,omitempty"`
	Preimage     string `json:"preimage,omitempty"`
	Cltv         uint32 `json:"cltv,omitempty"`
	DescHashOnly bool   `json:"deschashonly,omitempty"`
}

func (r *InvoiceRequest) Name() string {
	return "invoice"
}

type InvoiceResponse struct {
	Bolt11      string `json:"bolt11"`
	PaymentHash string `json:"payment_hash"`
	ExpiresAt   int64  `json:"expires_at"`
}

type PayRequest struct {
	Bolt11        string  `json:"bolt11"`
	AmountMsat    string  `json:"amount_msat,omitempty"`
	MaxFeePercent float64 `json:"maxfeepercent,omitempty"`
	RetryFor      uint32  `json:"retry_for,omitempty"`
	ExemptFee     string  `json:"exemptfee,omitempty"`
	Description   string  `json:"description,omitempty"`
}

func (r *PayRequest) Name() string {
	return "pay"
}

type KeysendRequest struct {
	Destination   string  `json:"destination"`
	AmountMsat    string  `json:"amount_msat"`
	Label         string  `json:"label,omitempty"`
	MaxFeePercent float64 `json:"maxfeepercent,omitempty"`
	RetryFor      uint32  `json:"retry_for,omitempty"`
}

func (r *KeysendRequest) Name() string {
	return "keysend"
}

// PayResponse is returned by both pay and keysend.
type PayResponse struct {
	PaymentHash     string  `json:"payment_hash"`
	PaymentPreimage string  `json:"payment_preimage"`
	CreatedAt       float64 `json:"created_at"`
	AmountMsat      Msat    `json:"amount_msat"`
	AmountSentMsat  Msat    `json:"amount_sent_msat"`
	Status          string  `json:"status"`
}

type WithdrawRequest struct {
	Destination string `json:"destination"`
	Satoshi     string `json:"satoshi"`
	FeeRate     string `json:"feerate,omitempty"`
}

func (r *WithdrawRequest) Name() string {
	return "withdraw"
}

type WithdrawResponse struct {
	Tx   string `json:"tx"`
	TxID string `json:"txid"`
}

type ConnectRequest struct {
	ID string `json:"id"`
}

func (r *ConnectRequest) Name() string {
	return "connect"
}

type ConnectResponse struct {
	ID string `json:"id"`
}

type CloseRequest struct {
	ID string `json:"id"`
}

func (r *CloseRequest) Name() string {
	return "close"
}

type CloseResponse struct {
	Type string `json:"type"`
	Tx   string `json:"tx,omitempty"`
	TxID string `json:"txid,omitempty"`
}

type SignMessageRequest struct {
	Message string `json:"message"`
}

func (r *SignMessageRequest) Name() string {
	return "signmessage"
}

type SignMessageResponse struct {
	Signature string `json:"signature"`
	RecID     string `json:"recid"`
	ZBase     string `json:"zbase"`
}

type StaticBackupRequest struct{}

func (r *StaticBackupRequest) Name() string {
	return "staticbackup"
}

type StaticBackupResponse struct {
	SCB []string `json:"scb"`
}

type SendCustomMsgRequest struct {
	NodeID string `json:"node_id"`
	Msg    string `json:"msg"`
}

func (r *SendCustomMsgRequest) Name() string {
	return "sendcustommsg"
}

type SendCustomMsgResponse struct {
	Status string `json:"status"`
}
