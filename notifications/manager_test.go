package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/fsm"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/test"
	"github.com/stretchr/testify/require"
)

func TestManager_InvoicePaid(t *testing.T) {
	defer test.Guard(t)()

	mgr := NewManager()

	subCtx, subCancel := context.WithCancel(context.Background())
	subChan := mgr.SubscribeInvoicePaid(subCtx)

	// Subscribers of other types don't see the payment.
	syncCtx, syncCancel := context.WithCancel(context.Background())
	defer syncCancel()
	syncChan := mgr.SubscribeSynced(syncCtx)

	mgr.NotifyInvoicePaid(&nodeapi.Payment{ID: "aa"})

	received := <-subChan
	require.Equal(t, "aa", received.ID)

	select {
	case <-syncChan:
		t.Fatal("unexpected sync notification")
	default:
	}

	// Cancel the subscription.
	subCancel()

	// Check that the subChan is eventually closed.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-subChan:
			return !ok
		default:
			return false
		}
	}, time.Second*5, 10*time.Millisecond)

	// Notifying without subscribers doesn't block.
	mgr.NotifyInvoicePaid(&nodeapi.Payment{ID: "bb"})

	mgr.Lock()
	require.Empty(t, mgr.subscribers[NotificationTypeInvoicePaid])
	mgr.Unlock()
}

func TestManager_SwapUpdated(t *testing.T) {
	defer test.Guard(t)()

	mgr := NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := mgr.SubscribeSwapUpdates(ctx)
	synced := mgr.SubscribeSynced(ctx)

	swap := &breezdb.SwapInfo{BitcoinAddress: "bcrt1q"}
	transition := fsm.Notification{
		PreviousState: fsm.StateType(breezdb.SwapStatusInitial.String()),
		NextState: fsm.StateType(
			breezdb.SwapStatusWaitingConfirmation.String(),
		),
	}
	mgr.SwapUpdated(swap, transition)

	update := <-updates
	require.Equal(t, swap, update.Swap)
	require.Equal(t, transition, update.Transition)

	mgr.NotifySynced(&nodeapi.SyncResponse{
		NodeState: nodeapi.NodeState{ID: "02aa"},
	})
	require.Equal(t, "02aa", (<-synced).NodeState.ID)

	// A canceled subscriber that never reads doesn't block the sender.
	cancel()
	mgr.NotifySynced(&nodeapi.SyncResponse{})
	mgr.NotifySynced(&nodeapi.SyncResponse{})
}

// TestManager_StalledSubscriber checks that a subscriber that never reads
// doesn't hold up the sender or the other subscribers.
func TestManager_StalledSubscriber(t *testing.T) {
	defer test.Guard(t)()

	mgr := NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = mgr.SubscribeSynced(ctx)
	_ = mgr.SubscribeInvoicePaid(ctx)
	_ = mgr.SubscribeSwapUpdates(ctx)
	active := mgr.SubscribeInvoicePaid(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)

		for i := 0; i < 2*subscriberBacklog; i++ {
			mgr.NotifySynced(&nodeapi.SyncResponse{})
			mgr.NotifyInvoicePaid(&nodeapi.Payment{ID: "aa"})
			mgr.SwapUpdated(&breezdb.SwapInfo{}, fsm.Notification{})
		}
	}()

	select {
	case <-done:
	case <-time.After(test.Timeout):
		t.Fatal("notifying blocked on a stalled subscriber")
	}

	// The active subscriber got its buffer's worth.
	for i := 0; i < subscriberBacklog; i++ {
		require.Equal(t, "aa", (<-active).ID)
	}

	select {
	case <-active:
		t.Fatal("notification beyond the buffer")
	default:
	}
}
