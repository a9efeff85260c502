package test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

// ErrNotImplemented is returned by fake operations that tests don't cover.
var ErrNotImplemented = errors.New("not implemented by mock node")

// PullCall records the arguments of a PullChanged call.
type PullCall struct {
	Since          int64
	BalanceChanged bool
}

// MockNode is an in-memory nodeapi.NodeAPI. Tests mutate the exported
// fields (while holding the lock if the node is shared with goroutines) to
// script what the node reports.
type MockNode struct {
	sync.Mutex

	Net     *chaincfg.Params
	NodeKey *btcec.PrivateKey
	Seed    []byte

	State    nodeapi.NodeState
	Payments []nodeapi.Payment
	Channels []nodeapi.Channel
	Peers    []nodeapi.Peer

	// PullErr is returned from PullChanged when set.
	PullErr error

	// PayErr is returned from the payment calls when set.
	PayErr error

	PullCalls    []PullCall
	Invoices     map[string]lntypes.Preimage
	SentPayments []string
	SentCustom   []*nodeapi.CustomMessage

	// Incoming is drained by StreamCustomMessages.
	Incoming chan *nodeapi.CustomMessage
}

// A compile-time assertion that MockNode implements NodeAPI.
var _ nodeapi.NodeAPI = (*MockNode)(nil)

// NewMockNode returns a regtest node with a deterministic key and seed.
func NewMockNode() *MockNode {
	nodeKey, _ := CreateKey(0)

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	return &MockNode{
		Net:      &chaincfg.RegressionNetParams,
		NodeKey:  nodeKey,
		Seed:     seed,
		Invoices: make(map[string]lntypes.Preimage),
		Incoming: make(chan *nodeapi.CustomMessage, 10),
		State: nodeapi.NodeState{
			ID: hex.EncodeToString(
				nodeKey.PubKey().SerializeCompressed(),
			),
		},
	}
}

// CreateInvoice encodes an invoice signed by the node key.
func (m *MockNode) CreateInvoice(_ context.Context,
	req *nodeapi.CreateInvoiceRequest) (string, error) {

	var preimage lntypes.Preimage
	if req.Preimage != nil {
		p, err := lntypes.MakePreimage(req.Preimage)
		if err != nil {
			return "", nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)
		}
		preimage = p
	} else if _, err := rand.Read(preimage[:]); err != nil {
		return "", err
	}

	opts := []func(*zpay32.Invoice){
		zpay32.Amount(lnwire.MilliSatoshi(req.AmountMsat)),
		zpay32.PaymentAddr([32]byte{2}),
	}
	if req.UseDescriptionHash {
		opts = append(opts, zpay32.DescriptionHash(
			chainhash.HashH([]byte(req.Description)),
		))
	} else {
		opts = append(opts, zpay32.Description(req.Description))
	}
	if req.Expiry > 0 {
		opts = append(opts, zpay32.Expiry(
			time.Duration(req.Expiry)*time.Second,
		))
	}
	if req.Cltv > 0 {
		opts = append(opts, zpay32.CLTVExpiry(uint64(req.Cltv)))
	}

	payReq, err := zpay32.NewInvoice(
		m.Net, preimage.Hash(), time.Now(), opts...,
	)
	if err != nil {
		return "", nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)
	}

	bolt11, err := payReq.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(
				m.NodeKey, chainhash.HashB(msg), true,
			), nil
		},
	})
	if err != nil {
		return "", err
	}

	m.Lock()
	m.Invoices[bolt11] = preimage
	m.Unlock()

	logger.Debugf("Created invoice %v", bolt11)

	return bolt11, nil
}

// PullChanged returns the scripted state and the payments newer than since.
func (m *MockNode) PullChanged(_ context.Context, since int64,
	balanceChanged bool) (*nodeapi.SyncResponse, error) {

	m.Lock()
	defer m.Unlock()

	m.PullCalls = append(m.PullCalls, PullCall{
		Since:          since,
		BalanceChanged: balanceChanged,
	})

	if m.PullErr != nil {
		return nil, nodeapi.Connectivity(m.PullErr)
	}

	var payments []nodeapi.Payment
	for _, p := range m.Payments {
		if p.PaymentTime > since {
			payments = append(payments, p)
		}
	}

	return &nodeapi.SyncResponse{
		NodeState: m.State,
		Payments:  payments,
		Channels:  append([]nodeapi.Channel(nil), m.Channels...),
	}, nil
}

// SendPayment records the payment and settles it immediately.
func (m *MockNode) SendPayment(_ context.Context, bolt11 string,
	amountMsat *uint64) (*nodeapi.PaymentResponse, error) {

	m.Lock()
	defer m.Unlock()

	if m.PayErr != nil {
		return nil, m.PayErr
	}

	payReq, err := zpay32.Decode(bolt11, m.Net)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)
	}

	var amt uint64
	switch {
	case payReq.MilliSat != nil:
		amt = uint64(*payReq.MilliSat)

	case amountMsat != nil:
		amt = *amountMsat

	default:
		return nil, nodeapi.NewError(
			nodeapi.ErrInvalidInvoice,
			errors.New("amount required"),
		)
	}

	m.SentPayments = append(m.SentPayments, bolt11)

	return &nodeapi.PaymentResponse{
		PaymentTime: time.Now().Unix(),
		AmountMsat:  amt,
		PaymentHash: hex.EncodeToString(payReq.PaymentHash[:]),
	}, nil
}

// SendSpontaneousPayment records a keysend payment.
func (m *MockNode) SendSpontaneousPayment(_ context.Context, nodeID string,
	amountMsat uint64) (*nodeapi.PaymentResponse, error) {

	m.Lock()
	defer m.Unlock()

	if m.PayErr != nil {
		return nil, m.PayErr
	}

	m.SentPayments = append(m.SentPayments, nodeID)

	return &nodeapi.PaymentResponse{
		PaymentTime: time.Now().Unix(),
		AmountMsat:  amountMsat,
	}, nil
}

func (m *MockNode) Sweep(context.Context, string, uint32) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (m *MockNode) PrepareSweep(context.Context,
	*nodeapi.PrepareSweepRequest) (*nodeapi.PrepareSweepResponse, error) {

	return nil, ErrNotImplemented
}

// SignMessage signs with the node key.
func (m *MockNode) SignMessage(_ context.Context, msg string) (string,
	error) {

	return nodeapi.SignMessageWithKey(m.NodeKey, msg), nil
}

// CheckMessage verifies a signature.
func (m *MockNode) CheckMessage(_ context.Context, msg, pubkey,
	sig string) (bool, error) {

	return nodeapi.VerifyMessage(msg, pubkey, sig)
}

func (m *MockNode) StaticBackup(context.Context) ([]string, error) {
	return []string{"backup"}, nil
}

func (m *MockNode) ExecuteCommand(_ context.Context, cmd string) (string,
	error) {

	return fmt.Sprintf("mock %v", cmd), nil
}

func (m *MockNode) ListPeers(context.Context) ([]nodeapi.Peer, error) {
	m.Lock()
	defer m.Unlock()

	return append([]nodeapi.Peer(nil), m.Peers...), nil
}

func (m *MockNode) ConnectPeer(_ context.Context, nodeID, _ string) error {
	m.Lock()
	defer m.Unlock()

	m.Peers = append(m.Peers, nodeapi.Peer{ID: nodeID, Connected: true})

	return nil
}

func (m *MockNode) ClosePeerChannels(_ context.Context,
	nodeID string) ([]string, error) {

	m.Lock()
	defer m.Unlock()

	var txids []string
	for _, p := range m.Peers {
		if p.ID != nodeID {
			continue
		}
		for _, c := range p.Channels {
			txids = append(txids, c.FundingTxid)
		}
	}

	return txids, nil
}

func (m *MockNode) SendCustomMessage(_ context.Context,
	msg *nodeapi.CustomMessage) error {

	m.Lock()
	defer m.Unlock()

	m.SentCustom = append(m.SentCustom, msg)

	return nil
}

// StreamCustomMessages forwards messages pushed on Incoming until ctx is
// done.
func (m *MockNode) StreamCustomMessages(
	ctx context.Context) (<-chan *nodeapi.CustomMessage, error) {

	out := make(chan *nodeapi.CustomMessage)
	go func() {
		defer close(out)

		for {
			select {
			case msg := <-m.Incoming:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (m *MockNode) DeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey,
	error) {

	return nodeapi.DeriveBip32Key(m.Seed, m.Net, path)
}

func (m *MockNode) LegacyDeriveBip32Key(
	path []uint32) (*hdkeychain.ExtendedKey, error) {

	return nodeapi.LegacyDeriveBip32Key(m.Seed, m.Net, path)
}
