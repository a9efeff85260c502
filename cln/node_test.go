package cln

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/test"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/niftynei/glightning/jrpc2"
	"github.com/stretchr/testify/require"
)

// TestChannelStateMapping checks how CLN states map onto wallet states.
func TestChannelStateMapping(t *testing.T) {
	for _, s := range []string{
		StateOpeningd, StateChanneldAwaitingLockin,
		StateDualopendOpenInit, StateDualopendAwaitingLockin,
	} {
		require.Equal(t, nodeapi.ChannelStatePendingOpen, channelState(s))
	}

	require.Equal(t, nodeapi.ChannelStateOpened,
		channelState(StateChanneldNormal))

	for _, s := range []string{
		StateChanneldShuttingDown, StateClosingdSigexchange,
		StateClosingdComplete, StateAwaitingUnilateral,
		StateFundingSpendSeen,
	} {
		require.Equal(t, nodeapi.ChannelStatePendingClose,
			channelState(s))
	}

	require.Equal(t, nodeapi.ChannelStateClosed, channelState(StateOnchain))
}

// TestCreateInvoice checks the generated label and the amount encoding.
func TestCreateInvoice(t *testing.T) {
	rpc := newFakeRPC()
	rpc.respond("invoice", &InvoiceResponse{Bolt11: "lnbcrt1"})

	node := newTestNode(t, rpc)
	node.cfg.Clock = clock.NewTestClock(time.UnixMilli(1_700_000_000_123))

	bolt11, err := node.CreateInvoice(
		context.Background(), &nodeapi.CreateInvoiceRequest{
			AmountMsat:  1_000,
			Description: "test",
			Preimage:    []byte{0xab},
		},
	)
	require.NoError(t, err)
	require.Equal(t, "lnbcrt1", bolt11)

	req := rpc.lastCall("invoice").(*InvoiceRequest)
	require.Equal(t, "breez-1700000000123", req.Label)
	require.Equal(t, "1000msat", req.AmountMsat)
	require.Equal(t, "ab", req.Preimage)

	_, err = node.CreateInvoice(
		context.Background(), &nodeapi.CreateInvoiceRequest{},
	)
	require.NoError(t, err)
	require.Equal(t, "any",
		rpc.lastCall("invoice").(*InvoiceRequest).AmountMsat)

	rpc.on("invoice", func(jrpc2.Method) (interface{}, error) {
		return nil, &jrpc2.RpcError{
			Code:    codeInvoicePreimageExists,
			Message: "preimage already used",
		}
	})
	_, err = node.CreateInvoice(
		context.Background(), &nodeapi.CreateInvoiceRequest{},
	)
	require.ErrorIs(t, err, nodeapi.ErrInvoicePreimageAlreadyExists)
}

// TestPayErrors checks the mapping of CLN pay failures onto error kinds.
func TestPayErrors(t *testing.T) {
	bolt11, _ := test.NewInvoice(t, test.InvoiceParams{
		Preimage:   lntypes.Preimage{3},
		AmountMsat: 10_000,
	})

	tests := []struct {
		err  error
		kind error
	}{
		{
			err:  &jrpc2.RpcError{Code: codeRouteNotFound},
			kind: nodeapi.ErrRouteNotFound,
		},
		{
			err:  &jrpc2.RpcError{Code: codeRouteTooExpensive},
			kind: nodeapi.ErrRouteTooExpensive,
		},
		{
			err:  &jrpc2.RpcError{Code: codeInvoiceExpired},
			kind: nodeapi.ErrInvoiceExpired,
		},
		{
			err:  &jrpc2.RpcError{Code: codeStoppedRetrying},
			kind: nodeapi.ErrPaymentTimeout,
		},
		{
			err:  &jrpc2.RpcError{Code: 203},
			kind: nodeapi.ErrPaymentFailed,
		},
		{
			err:  errors.New("broken pipe"),
			kind: nodeapi.ErrServiceConnectivity,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(fmt.Sprintf("%v", tc.kind), func(t *testing.T) {
			rpc := newFakeRPC()
			rpc.on("pay", func(jrpc2.Method) (interface{}, error) {
				return nil, tc.err
			})

			node := newTestNode(t, rpc)
			_, err := node.SendPayment(
				context.Background(), bolt11, nil,
			)
			require.ErrorIs(t, err, tc.kind)
		})
	}
}

// TestSendPayment checks the request and the fee of a successful payment.
func TestSendPayment(t *testing.T) {
	amountless, _ := test.NewInvoice(t, test.InvoiceParams{
		Preimage: lntypes.Preimage{4},
	})

	rpc := newFakeRPC()
	rpc.respond("pay", `{"payment_hash": "aa", "payment_preimage": "bb",
		"created_at": 1700000000.5, "amount_msat": 5000,
		"amount_sent_msat": "5003msat", "status": "complete"}`)

	node := newTestNode(t, rpc)

	_, err := node.SendPayment(context.Background(), amountless, nil)
	require.ErrorIs(t, err, nodeapi.ErrInvalidInvoice)
	require.Zero(t, rpc.callCount("pay"))

	amount := uint64(5_000)
	resp, err := node.SendPayment(context.Background(), amountless, &amount)
	require.NoError(t, err)
	require.Equal(t, &nodeapi.PaymentResponse{
		PaymentTime:     1_700_000_000,
		AmountMsat:      5_000,
		FeeMsat:         3,
		PaymentHash:     "aa",
		PaymentPreimage: "bb",
	}, resp)

	req := rpc.lastCall("pay").(*PayRequest)
	require.Equal(t, "5000msat", req.AmountMsat)
	require.Equal(t, DefaultMaxFeePercent, req.MaxFeePercent)
	require.Equal(t, uint32(60), req.RetryFor)

	_, err = node.SendPayment(context.Background(), "lnbc1nope", nil)
	require.ErrorIs(t, err, nodeapi.ErrInvalidInvoice)
}

// TestSweep checks the fee rate conversion of a sweep.
func TestSweep(t *testing.T) {
	rpc := newFakeRPC()
	rpc.respond("withdraw", &WithdrawResponse{TxID: "0102"})

	node := newTestNode(t, rpc)
	txid, err := node.Sweep(context.Background(), "bcrt1qaddr", 10)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, txid)

	req := rpc.lastCall("withdraw").(*WithdrawRequest)
	require.Equal(t, "2500perkw", req.FeeRate)
	require.Equal(t, "all", req.Satoshi)
}

// TestPrepareSweep checks the weight and fee estimate of a sweep.
func TestPrepareSweep(t *testing.T) {
	rpc := newFakeRPC()
	rpc.respond("listfunds", &ListFundsResponse{
		Outputs: []FundsOutput{
			{
				TxID:       fmt.Sprintf("%064x", 1),
				AmountMsat: 1_000_500,
			},
			{
				TxID:       fmt.Sprintf("%064x", 2),
				Output:     1,
				AmountMsat: 1_000_000,
			},
			{
				TxID:       fmt.Sprintf("%064x", 3),
				AmountMsat: 9_000_000,
				Reserved:   true,
			},
		},
	})

	node := newTestNode(t, rpc)
	to := test.GetDestAddr(t, 0).String()

	// Two inputs and one p2wsh output: 135 stripped bytes.
	resp, err := node.PrepareSweep(
		context.Background(), &nodeapi.PrepareSweepRequest{
			ToAddress:   to,
			SatPerVbyte: 10,
		},
	)
	require.NoError(t, err)
	require.Equal(t, uint64(135*4+2*110), resp.SweepTxWeight)
	require.Equal(t, uint64(760*10/4), resp.SweepTxFeeSat)

	// 2000 sats can't pay a 2090 sat fee.
	_, err = node.PrepareSweep(
		context.Background(), &nodeapi.PrepareSweepRequest{
			ToAddress:   to,
			SatPerVbyte: 11,
		},
	)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = node.PrepareSweep(
		context.Background(), &nodeapi.PrepareSweepRequest{
			ToAddress:   "notanaddress",
			SatPerVbyte: 1,
		},
	)
	require.ErrorIs(t, err, nodeapi.ErrGeneric)
}

// TestClosePeerChannels checks which channels are closed and that a
// failing close doesn't abort the others.
func TestClosePeerChannels(t *testing.T) {
	rpc := newFakeRPC()
	rpc.respond("listpeerchannels", &ListPeerChannelsResponse{
		Channels: []PeerChannel{
			{State: StateChanneldNormal, ChannelID: "c1"},
			{State: StateOnchain, ChannelID: "c2"},
			{State: StateChanneldAwaitingLockin, ChannelID: "c3"},
			{State: StateClosingdComplete, ChannelID: "c4"},
		},
	})
	rpc.on("close", func(m jrpc2.Method) (interface{}, error) {
		if m.(*CloseRequest).ID == "c3" {
			return nil, errors.New("peer offline")
		}

		return &CloseResponse{Type: "mutual", TxID: "tx-c1"}, nil
	})

	node := newTestNode(t, rpc)
	txids, err := node.ClosePeerChannels(context.Background(), "02aa")
	require.NoError(t, err)
	require.Equal(t, []string{"tx-c1"}, txids)
	require.Equal(t, 2, rpc.callCount("close"))
	require.Equal(t, "02aa",
		rpc.lastCall("listpeerchannels").(*ListPeerChannelsRequest).ID)

	_, err = node.ClosePeerChannels(context.Background(), "zz")
	require.ErrorIs(t, err, nodeapi.ErrGeneric)
}

// TestExecuteCommand checks the command whitelist.
func TestExecuteCommand(t *testing.T) {
	rpc := newFakeRPC()
	rpc.respond("getinfo", &GetInfoResponse{ID: "02aa", Alias: "SLEEPYDRAGON"})
	rpc.respond("listpeers", &ListPeersResponse{
		Peers: []PeerInfo{{ID: "02bb"}},
	})
	rpc.respond("listpeerchannels", &ListPeerChannelsResponse{})

	node := newTestNode(t, rpc)

	out, err := node.ExecuteCommand(context.Background(), "getinfo")
	require.NoError(t, err)
	require.Contains(t, out, "SLEEPYDRAGON")

	out, err = node.ExecuteCommand(context.Background(), "closeallchannels")
	require.NoError(t, err)
	require.Equal(t, "All channels were closed", out)

	_, err = node.ExecuteCommand(context.Background(), "stop")
	require.ErrorIs(t, err, nodeapi.ErrGeneric)
	require.Contains(t, err.Error(), "command not found: stop")
}

// TestCheckMessage checks that signatures are verified locally.
func TestCheckMessage(t *testing.T) {
	key, pub := test.CreateKey(7)
	sig := nodeapi.SignMessageWithKey(key, "hello")

	rpc := newFakeRPC()
	rpc.respond("signmessage", &SignMessageResponse{ZBase: sig})
	node := newTestNode(t, rpc)

	signed, err := node.SignMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, sig, signed)

	pubHex := fmt.Sprintf("%x", pub.SerializeCompressed())
	ok, err := node.CheckMessage(context.Background(), "hello", pubHex, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = node.CheckMessage(context.Background(), "bye", pubHex, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestCustomMessages checks framing on send and delivery to open streams.
func TestCustomMessages(t *testing.T) {
	defer test.Guard(t)()

	rpc := newFakeRPC()
	rpc.respond("sendcustommsg", &SendCustomMsgResponse{Status: "ok"})
	node := newTestNode(t, rpc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := node.SendCustomMessage(ctx, &nodeapi.CustomMessage{
		PeerID:      "02aa",
		MessageType: 0x9a7d,
		Payload:     []byte{1, 2},
	})
	require.NoError(t, err)
	req := rpc.lastCall("sendcustommsg").(*SendCustomMsgRequest)
	require.Equal(t, "9a7d0102", req.Msg)
	require.Equal(t, "02aa", req.NodeID)

	stream, err := node.StreamCustomMessages(ctx)
	require.NoError(t, err)

	// Too short to carry a type, dropped.
	require.NoError(t, node.HandleCustomMessage("02aa", "01"))
	require.NoError(t, node.HandleCustomMessage("02aa", "9a7d0304"))
	require.Error(t, node.HandleCustomMessage("02aa", "xyz"))

	select {
	case msg := <-stream:
		require.Equal(t, &nodeapi.CustomMessage{
			PeerID:      "02aa",
			MessageType: 0x9a7d,
			Payload:     []byte{3, 4},
		}, msg)

	case <-time.After(test.Timeout):
		t.Fatal("no custom message received")
	}

	cancel()
	select {
	case _, ok := <-stream:
		require.False(t, ok)

	case <-time.After(test.Timeout):
		t.Fatal("stream not closed")
	}
}
