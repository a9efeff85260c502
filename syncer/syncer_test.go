package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/test"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
)

// recordingNotifier remembers every notification.
type recordingNotifier struct {
	sync.Mutex

	synced []*nodeapi.SyncResponse
	paid   []string
}

func (r *recordingNotifier) NotifySynced(resp *nodeapi.SyncResponse) {
	r.Lock()
	defer r.Unlock()

	r.synced = append(r.synced, resp)
}

func (r *recordingNotifier) NotifyInvoicePaid(payment *nodeapi.Payment) {
	r.Lock()
	defer r.Unlock()

	r.paid = append(r.paid, payment.ID)
}

func lnPayment(id string, typ nodeapi.PaymentType, ts int64,
	status nodeapi.PaymentStatus) nodeapi.Payment {

	return nodeapi.Payment{
		ID:          id,
		Type:        typ,
		PaymentTime: ts,
		AmountMsat:  1_000,
		Status:      status,
		Details: nodeapi.PaymentDetails{
			Ln: &nodeapi.LnPaymentDetails{PaymentHash: id},
		},
	}
}

type testContext struct {
	node     *test.MockNode
	store    *breezdb.SqliteStore
	clock    *clock.TestClock
	notifier *recordingNotifier
	syncer   *Syncer
}

func newTestContext(t *testing.T) *testContext {
	node := test.NewMockNode()
	store := breezdb.NewTestDB(t)
	testClock := clock.NewTestClock(time.Unix(1_000, 0))
	notifier := &recordingNotifier{}

	return &testContext{
		node:     node,
		store:    store,
		clock:    testClock,
		notifier: notifier,
		syncer: New(&Config{
			Node:     node,
			Store:    store,
			Clock:    testClock,
			Notifier: notifier,
			Ticker:   ticker.NewForce(time.Hour),
		}),
	}
}

func (c *testContext) storedPayments(t *testing.T) map[string]nodeapi.Payment {
	payments, err := c.store.FetchPayments(
		context.Background(), &breezdb.ListPaymentsRequest{},
	)
	require.NoError(t, err)

	byID := make(map[string]nodeapi.Payment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}

	return byID
}

// TestSync checks a first sync and the closing of a channel over the
// following syncs.
func TestSync(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	c.node.State.BlockHeight = 800_000
	c.node.State.ChannelsBalanceMsat = 5_000
	c.node.Payments = []nodeapi.Payment{
		lnPayment(
			"received", nodeapi.PaymentTypeReceived, 100,
			nodeapi.PaymentStatusComplete,
		),
		lnPayment(
			"sent", nodeapi.PaymentTypeSent, 150,
			nodeapi.PaymentStatusComplete,
		),
	}
	c.node.Channels = []nodeapi.Channel{
		{
			FundingTxid:   "f1",
			State:         nodeapi.ChannelStateOpened,
			SpendableMsat: 5_000,
		},
		{
			FundingTxid:   "f2",
			State:         nodeapi.ChannelStatePendingClose,
			SpendableMsat: 2_000,
			ClosingTxid:   "c2",
		},
	}

	resp, err := c.syncer.Sync(ctx, true)
	require.NoError(t, err)
	require.Len(t, resp.Payments, 3)
	require.Equal(t, test.PullCall{Since: 0, BalanceChanged: true},
		c.node.PullCalls[0])

	state, err := c.store.GetNodeState(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(800_000), state.BlockHeight)
	require.Equal(t, uint64(5_000), state.ChannelsBalanceMsat)

	payments := c.storedPayments(t)
	require.Len(t, payments, 3)

	closing := payments["f2"]
	require.Equal(t, nodeapi.PaymentTypeClosedChannel, closing.Type)
	require.Equal(t, nodeapi.PaymentStatusPending, closing.Status)
	require.Equal(t, int64(1_000), closing.PaymentTime)
	require.Equal(t, uint64(2_000), closing.AmountMsat)
	require.Equal(t, "c2", closing.Details.ClosedChannel.ClosingTxid)
	require.Equal(t, "PendingClose", closing.Details.ClosedChannel.State)

	channels, err := c.store.FetchChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)

	// The channel count changed, so a backup was taken.
	backup, ok, err := c.store.FetchCachedItem(ctx, StaticBackupKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `["backup"]`, backup)

	require.Equal(t, []string{"received"}, c.notifier.paid)
	require.Len(t, c.notifier.synced, 1)

	// The node forgets the closed channel and stops reporting its closing
	// txid. The closed channel payment doesn't move the pull cursor.
	c.clock.SetTime(time.Unix(2_000, 0))
	c.node.Channels = c.node.Channels[:1]

	_, err = c.syncer.Sync(ctx, false)
	require.NoError(t, err)
	require.Equal(t, int64(150), c.node.PullCalls[1].Since)

	closed := c.storedPayments(t)["f2"]
	require.Equal(t, nodeapi.PaymentStatusComplete, closed.Status)
	require.Equal(t, int64(2_000), closed.PaymentTime)
	require.Equal(t, "c2", closed.Details.ClosedChannel.ClosingTxid)

	// Later syncs keep the time the channel was first seen closed.
	c.clock.SetTime(time.Unix(3_000, 0))
	_, err = c.syncer.Sync(ctx, false)
	require.NoError(t, err)

	closed = c.storedPayments(t)["f2"]
	require.Equal(t, int64(2_000), closed.PaymentTime)

	channels, err = c.store.FetchChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	require.Equal(t, nodeapi.ChannelStateClosed, channels[1].State)
	require.Equal(t, int64(2_000), channels[1].ClosedAt)

	// No new payments, no new paid notifications.
	require.Equal(t, []string{"received"}, c.notifier.paid)
	require.Len(t, c.notifier.synced, 3)
}

// TestSyncPullFailure checks that a failed pull persists nothing.
func TestSyncPullFailure(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	c.node.Payments = []nodeapi.Payment{
		lnPayment(
			"received", nodeapi.PaymentTypeReceived, 100,
			nodeapi.PaymentStatusComplete,
		),
	}
	c.node.PullErr = errors.New("unreachable")

	_, err := c.syncer.Sync(ctx, false)
	require.ErrorIs(t, err, nodeapi.ErrServiceConnectivity)

	state, err := c.store.GetNodeState(ctx)
	require.NoError(t, err)
	require.Nil(t, state)
	require.Empty(t, c.storedPayments(t))
	require.Empty(t, c.notifier.synced)
}

// failingStore fails every sync persist.
type failingStore struct {
	Store
}

func (f *failingStore) PersistSync(context.Context, *nodeapi.NodeState,
	[]nodeapi.Payment, []nodeapi.Channel) error {

	return errors.New("disk full")
}

// TestSyncPersistFailure checks that a failed write surfaces as a
// persistence error and isn't announced.
func TestSyncPersistFailure(t *testing.T) {
	c := newTestContext(t)
	c.syncer.cfg.Store = &failingStore{Store: c.store}

	_, err := c.syncer.Sync(context.Background(), false)
	require.ErrorIs(t, err, nodeapi.ErrPersistence)
	require.Empty(t, c.notifier.synced)
}

// TestRun checks that the background loop syncs on every tick and stops
// with its context.
func TestRun(t *testing.T) {
	c := newTestContext(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.syncer.Run(ctx)
	}()

	force := c.syncer.cfg.Ticker.(*ticker.Force).Force
	pullCalls := func() int {
		c.node.Lock()
		defer c.node.Unlock()

		return len(c.node.PullCalls)
	}

	force <- time.Time{}
	require.Eventually(t, func() bool {
		return pullCalls() == 1
	}, test.Timeout, 10*time.Millisecond)

	// A failing sync doesn't stop the loop.
	c.node.Lock()
	c.node.PullErr = errors.New("unreachable")
	c.node.Unlock()

	force <- time.Time{}
	require.Eventually(t, func() bool {
		return pullCalls() == 2
	}, test.Timeout, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)

	case <-time.After(test.Timeout):
		t.Fatal("run didn't stop")
	}
}

func TestReconcileChannels(t *testing.T) {
	stored := []nodeapi.Channel{
		{
			FundingTxid: "open",
			State:       nodeapi.ChannelStateOpened,
		},
		{
			FundingTxid: "closing",
			State:       nodeapi.ChannelStatePendingClose,
			ClosingTxid: "ctx",
		},
		{
			FundingTxid: "closed",
			State:       nodeapi.ChannelStateClosed,
			ClosedAt:    50,
		},
	}
	pulled := []nodeapi.Channel{
		{
			FundingTxid: "closing",
			State:       nodeapi.ChannelStateClosed,
		},
		{
			FundingTxid: "closed",
			State:       nodeapi.ChannelStateClosed,
		},
		{
			FundingTxid: "new",
			State:       nodeapi.ChannelStatePendingOpen,
		},
	}

	channels := reconcileChannels(stored, pulled, 100)
	require.Equal(t, []nodeapi.Channel{
		{
			FundingTxid: "closing",
			State:       nodeapi.ChannelStateClosed,
			ClosedAt:    100,
			ClosingTxid: "ctx",
		},
		{
			FundingTxid: "closed",
			State:       nodeapi.ChannelStateClosed,
			ClosedAt:    50,
		},
		{
			FundingTxid: "new",
			State:       nodeapi.ChannelStatePendingOpen,
		},
		{
			FundingTxid: "open",
			State:       nodeapi.ChannelStateClosed,
			ClosedAt:    100,
		},
	}, channels)

	payments := closedChannelPayments(channels, 100)
	require.Len(t, payments, 3)
	for _, p := range payments {
		require.Equal(t, nodeapi.PaymentStatusComplete, p.Status)
		require.Equal(t, p.ID, p.Details.ClosedChannel.FundingTxid)
	}
}
