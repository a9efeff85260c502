package cln

import (
	"context"
	"fmt"

	"github.com/breez/breez-sdk-go/invoice"
	"github.com/breez/breez-sdk-go/nodeapi"
	"golang.org/x/sync/errgroup"
)

const (
	invoiceStatusPaid = "paid"

	payStatusPending  = "pending"
	payStatusComplete = "complete"
	payStatusFailed   = "failed"
)

// channelsSnapshot is the result of one channel listing.
type channelsSnapshot struct {
	all            []PeerChannel
	opened         []PeerChannel
	connectedPeers []string
	balanceMsat    uint64
}

// PullChanged fetches everything the wallet needs to rebuild its node
// state. The four listings run concurrently and any failure fails the
// whole pull.
func (n *Node) PullChanged(ctx context.Context, sinceTimestamp int64,
	balanceChanged bool) (*nodeapi.SyncResponse, error) {

	log.Infof("Pull changed since %v", sinceTimestamp)

	var (
		info     GetInfoResponse
		funds    ListFundsResponse
		closed   ListClosedChannelsResponse
		channels *channelsSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.call(gctx, &GetInfoRequest{}, &info)
	})
	g.Go(func() error {
		return n.call(gctx, &ListFundsRequest{}, &funds)
	})
	g.Go(func() error {
		return n.call(gctx, &ListClosedChannelsRequest{}, &closed)
	})
	g.Go(func() error {
		var err error
		channels, err = n.fetchChannelsWithRetry(gctx, balanceChanged)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	forgotten := forgottenChannels(closed.ClosedChannels, channels.all)
	log.Debugf("Found %d forgotten closed channels", len(forgotten))

	allChannels := make(
		[]nodeapi.Channel, 0, len(channels.all)+len(forgotten),
	)
	for i := range channels.all {
		allChannels = append(
			allChannels, channelFromPeerChannel(&channels.all[i]),
		)
	}
	allChannels = append(allChannels, forgotten...)

	state := nodeState(&info, &funds, channels)

	payments, err := n.pullTransactions(ctx, sinceTimestamp)
	if err != nil {
		return nil, err
	}

	return &nodeapi.SyncResponse{
		NodeState: *state,
		Payments:  payments,
		Channels:  allChannels,
	}, nil
}

// nodeState derives balances and limits from the fetched listings.
func nodeState(info *GetInfoResponse, funds *ListFundsResponse,
	channels *channelsSnapshot) *nodeapi.NodeState {

	var onchainBalance uint64
	utxos := make([]nodeapi.UnspentTransactionOutput, 0, len(funds.Outputs))
	for _, output := range funds.Outputs {
		if !output.Reserved {
			onchainBalance = saturatingAdd(
				onchainBalance, uint64(output.AmountMsat),
			)
		}

		utxos = append(utxos, nodeapi.UnspentTransactionOutput{
			Txid:       output.TxID,
			Outnum:     output.Output,
			AmountMsat: uint64(output.AmountMsat),
			Address:    output.Address,
			Reserved:   output.Reserved,
		})
	}

	var maxPayable, maxReceivableSingleChannel uint64
	for _, c := range channels.opened {
		maxPayable = saturatingAdd(
			maxPayable, c.SpendableMsat.MsatOrZero(),
		)

		receivable := c.ReceivableMsat.MsatOrZero()
		if receivable > maxReceivableSingleChannel {
			maxReceivableSingleChannel = receivable
		}
	}

	balance := channels.balanceMsat
	maxReceivable := saturatingSub(nodeapi.MaxInboundLiquidityMsat, balance)
	maxChanReserve := balance - min(maxPayable, balance)

	return &nodeapi.NodeState{
		ID:                         info.ID,
		BlockHeight:                info.BlockHeight,
		ChannelsBalanceMsat:        balance,
		OnchainBalanceMsat:         onchainBalance,
		Utxos:                      utxos,
		MaxPayableMsat:             maxPayable,
		MaxReceivableMsat:          maxReceivable,
		MaxSinglePaymentAmountMsat: nodeapi.MaxPaymentAmountMsat,
		MaxChanReserveMsats:        maxChanReserve,
		ConnectedPeers:             channels.connectedPeers,
		InboundLiquidityMsats:      maxReceivableSingleChannel,
	}
}

// fetchChannelsWithRetry fetches the channels, and when a balance change is
// expected keeps refetching for a bounded time while the balance still
// equals the persisted one. The last snapshot is returned either way.
func (n *Node) fetchChannelsWithRetry(ctx context.Context,
	balanceChanged bool) (*channelsSnapshot, error) {

	snapshot, err := n.fetchChannels(ctx)
	if err != nil {
		return nil, err
	}

	if !balanceChanged || n.cfg.State == nil {
		return snapshot, nil
	}

	persisted, err := n.cfg.State.GetNodeState(ctx)
	if err != nil {
		return nil, err
	}
	if persisted == nil {
		return snapshot, nil
	}

	for i := 0; i < n.cfg.BalanceRetries &&
		persisted.ChannelsBalanceMsat == snapshot.balanceMsat; i++ {

		log.Warnf("Balance update was expected but not seen yet, "+
			"retrying in %v", n.cfg.BalanceRetryInterval)

		select {
		case <-n.cfg.Clock.TickAfter(n.cfg.BalanceRetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		snapshot, err = n.fetchChannels(ctx)
		if err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}

// fetchChannels lists peers and channels and sums the spendable balance of
// the open ones.
func (n *Node) fetchChannels(ctx context.Context) (*channelsSnapshot,
	error) {

	var peers ListPeersResponse
	if err := n.call(ctx, &ListPeersRequest{}, &peers); err != nil {
		return nil, err
	}

	var channels ListPeerChannelsResponse
	err := n.call(ctx, &ListPeerChannelsRequest{}, &channels)
	if err != nil {
		return nil, err
	}

	snapshot := &channelsSnapshot{
		all:            channels.Channels,
		connectedPeers: []string{},
	}
	for _, p := range peers.Peers {
		if p.Connected {
			snapshot.connectedPeers = append(
				snapshot.connectedPeers, p.ID,
			)
		}
	}
	for _, c := range channels.Channels {
		if c.State != StateChanneldNormal {
			continue
		}

		snapshot.opened = append(snapshot.opened, c)
		snapshot.balanceMsat = saturatingAdd(
			snapshot.balanceMsat, c.SpendableMsat.MsatOrZero(),
		)
	}

	return snapshot, nil
}

// pullTransactions returns the invoices paid and the payments created
// after sinceTimestamp.
func (n *Node) pullTransactions(ctx context.Context,
	sinceTimestamp int64) ([]nodeapi.Payment, error) {

	var invoices ListInvoicesResponse
	if err := n.call(ctx, &ListInvoicesRequest{}, &invoices); err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	var pays ListPaysResponse
	if err := n.call(ctx, &ListPaysRequest{}, &pays); err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	var payments []nodeapi.Payment
	for i := range invoices.Invoices {
		inv := &invoices.Invoices[i]
		if inv.Status != invoiceStatusPaid ||
			inv.PaidAt <= sinceTimestamp {

			continue
		}

		payment, err := receivedPayment(inv)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	for i := range pays.Pays {
		pay := &pays.Pays[i]
		if pay.CreatedAt <= sinceTimestamp {
			continue
		}

		payments = append(payments, sentPayment(pay))
	}

	return payments, nil
}

func receivedPayment(inv *Invoice) (*nodeapi.Payment, error) {
	if inv.Bolt11 == "" {
		return nil, nodeapi.NewError(
			nodeapi.ErrGeneric,
			fmt.Errorf("invoice %v has no bolt11", inv.Label),
		)
	}

	parsed, err := invoice.Parse(inv.Bolt11)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)
	}

	amount := inv.AmountReceivedMsat.MsatOrZero()
	if amount == 0 {
		amount = inv.AmountMsat.MsatOrZero()
	}

	return &nodeapi.Payment{
		ID:          inv.PaymentHash,
		Type:        nodeapi.PaymentTypeReceived,
		PaymentTime: inv.PaidAt,
		AmountMsat:  amount,
		Status:      nodeapi.PaymentStatusComplete,
		Description: parsed.Description,
		Details: nodeapi.PaymentDetails{
			Ln: &nodeapi.LnPaymentDetails{
				PaymentHash:       inv.PaymentHash,
				Label:             inv.Label,
				DestinationPubkey: parsed.PayeePubkey,
				PaymentPreimage:   inv.PaymentPreimage,
				Bolt11:            inv.Bolt11,
			},
		},
	}, nil
}

func payStatus(status string) nodeapi.PaymentStatus {
	switch status {
	case payStatusComplete:
		return nodeapi.PaymentStatusComplete

	case payStatusFailed:
		return nodeapi.PaymentStatusFailed

	default:
		return nodeapi.PaymentStatusPending
	}
}

// sentPayment converts an outgoing payment. Failed payments report the
// amount of their invoice since they never settled any.
func sentPayment(pay *Pay) nodeapi.Payment {
	var parsed *invoice.LNInvoice
	if pay.Bolt11 != "" {
		var err error
		parsed, err = invoice.Parse(pay.Bolt11)
		if err != nil {
			log.Warnf("Unable to parse bolt11 of payment %v: %v",
				pay.PaymentHash, err)
		}
	}

	status := payStatus(pay.Status)
	amount := pay.AmountMsat.MsatOrZero()
	sent := pay.AmountSentMsat.MsatOrZero()

	if status == nodeapi.PaymentStatusFailed {
		amount = 0
		if parsed != nil && parsed.AmountMsat != nil {
			amount = *parsed.AmountMsat
		}
	}

	paymentTime := pay.CompletedAt
	if paymentTime == 0 {
		paymentTime = pay.CreatedAt
	}

	var description string
	if parsed != nil {
		description = parsed.Description
	}

	return nodeapi.Payment{
		ID:          pay.PaymentHash,
		Type:        nodeapi.PaymentTypeSent,
		PaymentTime: paymentTime,
		AmountMsat:  amount,
		FeeMsat:     saturatingSub(sent, pay.AmountMsat.MsatOrZero()),
		Status:      status,
		Description: description,
		Details: nodeapi.PaymentDetails{
			Ln: &nodeapi.LnPaymentDetails{
				PaymentHash:       pay.PaymentHash,
				DestinationPubkey: pay.Destination,
				PaymentPreimage:   pay.Preimage,
				Keysend:           pay.Bolt11 == "",
				Bolt11:            pay.Bolt11,
			},
		},
	}
}
