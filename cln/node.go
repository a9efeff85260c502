package cln

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/breez/breez-sdk-go/invoice"
	"github.com/breez/breez-sdk-go/labels"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/queue"
)

const (
	// DefaultBalanceRetries is how many times a pull refetches channels
	// while waiting for an expected balance change.
	DefaultBalanceRetries = 10

	// DefaultBalanceRetryInterval is the delay between those refetches.
	DefaultBalanceRetryInterval = 100 * time.Millisecond

	// DefaultMaxFeePercent is the routing fee limit of outgoing payments.
	DefaultMaxFeePercent = 1.0

	// DefaultPaymentTimeout bounds how long CLN keeps retrying a payment.
	DefaultPaymentTimeout = 60 * time.Second

	// DefaultExemptFeeMsat is the fee below which MaxFeePercent doesn't
	// apply.
	DefaultExemptFeeMsat = 20_000
)

// NodeStateSource returns the last persisted node state, or nil if there
// is none yet.
type NodeStateSource interface {
	GetNodeState(ctx context.Context) (*nodeapi.NodeState, error)
}

// Config holds the dependencies and tunables of a Node.
type Config struct {
	RPC RPC

	// Net is the network of the node. Keys derived from Seed and
	// decoded addresses use it.
	Net *chaincfg.Params

	Seed []byte

	// State is consulted when a pull waits for a balance change. A nil
	// State disables the wait.
	State NodeStateSource

	Clock clock.Clock

	MaxFeePercent  float64
	PaymentTimeout time.Duration
	ExemptFeeMsat  uint64

	BalanceRetries       int
	BalanceRetryInterval time.Duration
}

// Node implements nodeapi.NodeAPI on top of a Core Lightning node.
type Node struct {
	cfg *Config

	// subscribers are the queues of open custom message streams.
	subscribersMu sync.Mutex
	subscribers   map[uint64]*queue.ConcurrentQueue
	nextSubID     uint64
}

// A compile-time assertion that Node implements NodeAPI.
var _ nodeapi.NodeAPI = (*Node)(nil)

// NewNode returns a new node. Zero tunables are replaced by their
// defaults.
func NewNode(cfg *Config) *Node {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.BalanceRetries == 0 {
		cfg.BalanceRetries = DefaultBalanceRetries
	}
	if cfg.BalanceRetryInterval == 0 {
		cfg.BalanceRetryInterval = DefaultBalanceRetryInterval
	}
	if cfg.MaxFeePercent == 0 {
		cfg.MaxFeePercent = DefaultMaxFeePercent
	}
	if cfg.PaymentTimeout == 0 {
		cfg.PaymentTimeout = DefaultPaymentTimeout
	}

	return &Node{
		cfg:         cfg,
		subscribers: make(map[uint64]*queue.ConcurrentQueue),
	}
}

// label returns a unique label for invoices and keysend payments.
func (n *Node) label() string {
	return labels.Generated(n.cfg.Clock.Now())
}

// CreateInvoice asks CLN for a new invoice.
func (n *Node) CreateInvoice(ctx context.Context,
	req *nodeapi.CreateInvoiceRequest) (string, error) {

	amount := "any"
	if req.AmountMsat > 0 {
		amount = msatParam(req.AmountMsat)
	}

	var resp InvoiceResponse
	err := n.call(ctx, &InvoiceRequest{
		AmountMsat:   amount,
		Label:        n.label(),
		Description:  req.Description,
		Expiry:       req.Expiry,
		Preimage:     hex.EncodeToString(req.Preimage),
		Cltv:         req.Cltv,
		DescHashOnly: req.UseDescriptionHash,
	}, &resp)
	if err != nil {
		return "", invoiceError(err)
	}

	return resp.Bolt11, nil
}

func invoiceError(err error) error {
	code, ok := rpcErrorCode(err)
	if !ok {
		return nodeapi.Connectivity(err)
	}

	switch code {
	case codeInvoicePreimageExists:
		return nodeapi.NewError(
			nodeapi.ErrInvoicePreimageAlreadyExists, err,
		)

	case codeInvalidParams:
		return nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)

	default:
		return nodeapi.NewError(nodeapi.ErrGeneric, err)
	}
}

// SendPayment pays a bolt11 invoice.
func (n *Node) SendPayment(ctx context.Context, bolt11 string,
	amountMsat *uint64) (*nodeapi.PaymentResponse, error) {

	inv, err := invoice.Parse(bolt11)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)
	}

	if inv.AmountMsat == nil && amountMsat == nil {
		return nil, nodeapi.NewError(
			nodeapi.ErrInvalidInvoice,
			errors.New("amount required for zero amount invoice"),
		)
	}

	req := &PayRequest{
		Bolt11:        bolt11,
		MaxFeePercent: n.cfg.MaxFeePercent,
		RetryFor:      uint32(n.cfg.PaymentTimeout.Seconds()),
		ExemptFee:     msatParam(n.cfg.ExemptFeeMsat),
	}
	if inv.AmountMsat == nil {
		req.AmountMsat = msatParam(*amountMsat)
	}

	// Description hash invoices need the preimage of the hash.
	if inv.DescriptionHash != "" {
		req.Description = inv.Description
	}

	var resp PayResponse
	if err := n.call(ctx, req, &resp); err != nil {
		return nil, payError(err)
	}

	return paymentResponse(&resp), nil
}

// SendSpontaneousPayment sends a keysend payment.
func (n *Node) SendSpontaneousPayment(ctx context.Context, nodeID string,
	amountMsat uint64) (*nodeapi.PaymentResponse, error) {

	if _, err := hex.DecodeString(nodeID); err != nil {
		return nil, nodeapi.NewError(
			nodeapi.ErrGeneric, fmt.Errorf("invalid node id: %w", err),
		)
	}

	var resp PayResponse
	err := n.call(ctx, &KeysendRequest{
		Destination:   nodeID,
		AmountMsat:    msatParam(amountMsat),
		Label:         n.label(),
		MaxFeePercent: n.cfg.MaxFeePercent,
		RetryFor:      uint32(n.cfg.PaymentTimeout.Seconds()),
	}, &resp)
	if err != nil {
		return nil, payError(err)
	}

	return paymentResponse(&resp), nil
}

func payError(err error) error {
	code, ok := rpcErrorCode(err)
	if !ok {
		return nodeapi.Connectivity(err)
	}

	switch code {
	case codeRouteNotFound:
		return nodeapi.NewError(nodeapi.ErrRouteNotFound, err)

	case codeRouteTooExpensive:
		return nodeapi.NewError(nodeapi.ErrRouteTooExpensive, err)

	case codeInvoiceExpired:
		return nodeapi.NewError(nodeapi.ErrInvoiceExpired, err)

	case codeStoppedRetrying:
		return nodeapi.NewError(nodeapi.ErrPaymentTimeout, err)

	case codeInvalidParams:
		return nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)

	default:
		return nodeapi.NewError(nodeapi.ErrPaymentFailed, err)
	}
}

func paymentResponse(resp *PayResponse) *nodeapi.PaymentResponse {
	return &nodeapi.PaymentResponse{
		PaymentTime: int64(resp.CreatedAt),
		AmountMsat:  uint64(resp.AmountMsat),
		FeeMsat: saturatingSub(
			uint64(resp.AmountSentMsat), uint64(resp.AmountMsat),
		),
		PaymentHash:     resp.PaymentHash,
		PaymentPreimage: resp.PaymentPreimage,
	}
}

// ListPeers returns the node's peers together with their channels.
func (n *Node) ListPeers(ctx context.Context) ([]nodeapi.Peer, error) {
	var peers ListPeersResponse
	if err := n.call(ctx, &ListPeersRequest{}, &peers); err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	var channels ListPeerChannelsResponse
	err := n.call(ctx, &ListPeerChannelsRequest{}, &channels)
	if err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	byPeer := make(map[string][]nodeapi.Channel)
	for i := range channels.Channels {
		c := &channels.Channels[i]
		byPeer[c.PeerID] = append(
			byPeer[c.PeerID], channelFromPeerChannel(c),
		)
	}

	result := make([]nodeapi.Peer, 0, len(peers.Peers))
	for _, p := range peers.Peers {
		result = append(result, nodeapi.Peer{
			ID:        p.ID,
			Connected: p.Connected,
			Channels:  byPeer[p.ID],
		})
	}

	return result, nil
}

// ConnectPeer connects to a peer at addr (host:port).
func (n *Node) ConnectPeer(ctx context.Context, nodeID, addr string) error {
	var resp ConnectResponse
	err := n.call(ctx, &ConnectRequest{
		ID: fmt.Sprintf("%s@%s", nodeID, addr),
	}, &resp)
	if err != nil {
		return nodeapi.Connectivity(err)
	}

	return nil
}

// ClosePeerChannels mutually closes every closeable channel with the peer.
// Failures to close a single channel are logged and skipped.
func (n *Node) ClosePeerChannels(ctx context.Context,
	nodeID string) ([]string, error) {

	if _, err := hex.DecodeString(nodeID); err != nil {
		return nil, nodeapi.NewError(
			nodeapi.ErrGeneric, fmt.Errorf("invalid node id: %w", err),
		)
	}

	var channels ListPeerChannelsResponse
	err := n.call(ctx, &ListPeerChannelsRequest{ID: nodeID}, &channels)
	if err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	var txids []string
	for _, c := range channels.Channels {
		if !closeable(c.State) {
			continue
		}
		if c.ChannelID == "" {
			return nil, nodeapi.NewError(
				nodeapi.ErrGeneric, errors.New("empty channel id"),
			)
		}

		var resp CloseResponse
		err := n.call(ctx, &CloseRequest{ID: c.ChannelID}, &resp)
		if err != nil {
			log.Errorf("Error closing channel %v: %v", c.ChannelID,
				err)

			continue
		}
		if resp.TxID == "" {
			return nil, nodeapi.NewError(
				nodeapi.ErrGeneric,
				errors.New("empty txid in close response"),
			)
		}

		txids = append(txids, resp.TxID)
	}

	return txids, nil
}

// StaticBackup returns CLN's static channel backup entries.
func (n *Node) StaticBackup(ctx context.Context) ([]string, error) {
	var resp StaticBackupResponse
	if err := n.call(ctx, &StaticBackupRequest{}, &resp); err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	return resp.SCB, nil
}

// SignMessage signs with the node key held by CLN's hsm.
func (n *Node) SignMessage(ctx context.Context, message string) (string,
	error) {

	var resp SignMessageResponse
	err := n.call(ctx, &SignMessageRequest{Message: message}, &resp)
	if err != nil {
		return "", nodeapi.Connectivity(err)
	}

	return resp.ZBase, nil
}

// CheckMessage verifies a signature locally.
func (n *Node) CheckMessage(_ context.Context, message, pubkey,
	signature string) (bool, error) {

	return nodeapi.VerifyMessage(message, pubkey, signature)
}

// DeriveBip32Key derives from the configured seed.
func (n *Node) DeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey,
	error) {

	return nodeapi.DeriveBip32Key(n.cfg.Seed, n.cfg.Net, path)
}

// LegacyDeriveBip32Key derives from the configured seed using the legacy
// scheme.
func (n *Node) LegacyDeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey,
	error) {

	return nodeapi.LegacyDeriveBip32Key(n.cfg.Seed, n.cfg.Net, path)
}

// saturatingSub returns a-b, or zero if b is larger.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}

	return a - b
}

// saturatingAdd returns a+b, or the max uint64 on overflow.
func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}

	return a + b
}
