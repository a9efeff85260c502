package swap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/fsm"
	"github.com/breez/breez-sdk-go/test"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

var testTime = time.Unix(1_700_000_000, 0)

type recordingObserver struct {
	mu          sync.Mutex
	transitions []fsm.Notification
}

func (r *recordingObserver) SwapUpdated(_ *breezdb.SwapInfo,
	transition fsm.Notification) {

	r.mu.Lock()
	defer r.mu.Unlock()

	r.transitions = append(r.transitions, transition)
}

func (r *recordingObserver) states() []fsm.StateType {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]fsm.StateType, 0, len(r.transitions))
	for _, transition := range r.transitions {
		states = append(states, transition.NextState)
	}

	return states
}

func newTestManager(t *testing.T) (*Manager, *breezdb.SqliteStore,
	*recordingObserver) {

	store := breezdb.NewTestDB(t)
	manager := NewManager(&Config{
		Store: store,
		Net:   &chaincfg.RegressionNetParams,
		Clock: clock.NewTestClock(testTime),
	})

	observer := &recordingObserver{}
	manager.RegisterObserver(observer)

	return manager, store, observer
}

func testParameters() *Parameters {
	_, swapperKey := test.CreateKey(1)

	return &Parameters{
		SwapperPubKey:     swapperKey,
		LockHeight:        144,
		MinAllowedDeposit: 1_000,
		MaxAllowedDeposit: 100_000,
		OpeningFees: &breezdb.OpeningFeeParams{
			MinMsat:      2_000_000,
			Proportional: 4_000,
			ValidUntil:   "2030-01-01T00:00:00Z",
			MaxIdleTime:  4_320,
		},
	}
}

// TestSwapRedeemFlow drives a swap from creation to redeemed.
func TestSwapRedeemFlow(t *testing.T) {
	ctx := context.Background()
	manager, store, observer := newTestManager(t)

	swap, err := manager.CreateSwap(ctx, testParameters())
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusInitial, swap.Status)
	require.Equal(t, testTime.Unix(), swap.CreatedAt)

	preimage, err := lntypes.MakePreimage(swap.Preimage)
	require.NoError(t, err)
	hash := preimage.Hash()
	require.Equal(t, hash[:], swap.PaymentHash)

	stored, err := store.GetSwapInfoByHash(ctx, hash[:])
	require.NoError(t, err)
	require.Equal(t, swap.BitcoinAddress, stored.BitcoinAddress)
	require.Equal(t, swap.Script, stored.Script)

	// Unconfirmed funds mark the swap in progress and block new swaps.
	updated, err := manager.OnChainUpdate(
		ctx, swap.BitcoinAddress, &breezdb.SwapChainInfo{
			UnconfirmedSats:  5_000,
			UnconfirmedTxIDs: []string{"tx1"},
		}, 100,
	)
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusWaitingConfirmation, updated.Status)
	require.Equal(t, []string{"tx1"}, updated.UnconfirmedTxIDs)

	confirmedAt := uint32(101)
	updated, err = manager.OnChainUpdate(
		ctx, swap.BitcoinAddress, &breezdb.SwapChainInfo{
			ConfirmedSats:  5_000,
			ConfirmedTxIDs: []string{"tx1"},
			ConfirmedAt:    &confirmedAt,
		}, 101,
	)
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusRedeemable, updated.Status)

	redeemable, err := manager.RedeemableSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, redeemable, 1)

	// An invoice for another hash is refused.
	other, _ := test.NewInvoice(t, test.InvoiceParams{
		Preimage:   lntypes.Preimage{9},
		AmountMsat: 5_000_000,
	})
	err = manager.OnInvoiceCreated(ctx, swap.BitcoinAddress, other)
	require.ErrorIs(t, err, ErrHashMismatch)

	bolt11, _ := test.NewInvoice(t, test.InvoiceParams{
		Preimage:   preimage,
		AmountMsat: 5_000_000,
	})
	require.NoError(t, manager.OnInvoiceCreated(
		ctx, swap.BitcoinAddress, bolt11,
	))

	require.NoError(t, manager.OnRedeemError(
		ctx, swap.BitcoinAddress, errors.New("no route"),
	))

	updated, err = manager.OnPaid(ctx, swap.BitcoinAddress, 5_000_000)
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusRedeemed, updated.Status)
	require.Equal(t, uint64(5_000_000), updated.PaidMsat)
	require.Equal(t, bolt11, updated.Bolt11)
	require.Equal(t, "no route", updated.LastRedeemError)

	require.Equal(t, []fsm.StateType{
		stateOf(breezdb.SwapStatusWaitingConfirmation),
		stateOf(breezdb.SwapStatusRedeemable),
		stateOf(breezdb.SwapStatusRedeemed),
	}, observer.states())

	// A redeemed swap can't be refunded and the rejected transition
	// leaves the store untouched.
	_, err = manager.OnRefunded(ctx, swap.BitcoinAddress, "refund")
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err = store.GetSwapInfoByAddress(ctx, swap.BitcoinAddress)
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusRedeemed, stored.Status)
	require.Empty(t, stored.RefundTxIDs)
}

// TestSwapRefundFlow checks that an out of bounds deposit ends up refunded.
func TestSwapRefundFlow(t *testing.T) {
	ctx := context.Background()
	manager, _, observer := newTestManager(t)

	swap, err := manager.CreateSwap(ctx, testParameters())
	require.NoError(t, err)

	confirmedAt := uint32(200)
	updated, err := manager.OnChainUpdate(
		ctx, swap.BitcoinAddress, &breezdb.SwapChainInfo{
			ConfirmedSats:  500_000,
			ConfirmedTxIDs: []string{"tx1"},
			ConfirmedAt:    &confirmedAt,
		}, 200,
	)
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusRefundable, updated.Status)

	refundable, err := manager.RefundableSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, refundable, 1)

	_, err = manager.OnPaid(ctx, swap.BitcoinAddress, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)

	updated, err = manager.OnRefunded(ctx, swap.BitcoinAddress, "refund1")
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusRefunded, updated.Status)
	require.Equal(t, []string{"refund1"}, updated.RefundTxIDs)
	require.Zero(t, updated.PaidMsat)

	require.Equal(t, []fsm.StateType{
		stateOf(breezdb.SwapStatusWaitingConfirmation),
		stateOf(breezdb.SwapStatusRefundable),
		stateOf(breezdb.SwapStatusRefunded),
	}, observer.states())
}

// TestSwapInProgress checks that only one funded swap may be pending.
func TestSwapInProgress(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	first, err := manager.CreateSwap(ctx, testParameters())
	require.NoError(t, err)

	// Simulate funds seen while the status wasn't advanced yet.
	_, err = store.UpdateSwapChainInfo(
		ctx, first.BitcoinAddress, &breezdb.SwapChainInfo{
			UnconfirmedSats: 10,
		}, breezdb.SwapStatusInitial,
	)
	require.NoError(t, err)

	inProgress, err := manager.InProgressSwap(ctx)
	require.NoError(t, err)
	require.NotNil(t, inProgress)
	require.Equal(t, first.BitcoinAddress, inProgress.BitcoinAddress)

	_, err = manager.CreateSwap(ctx, testParameters())
	require.ErrorIs(t, err, ErrSwapInProgress)
}

// TestSwapExpire checks that only unfunded swaps expire.
func TestSwapExpire(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	swap, err := manager.CreateSwap(ctx, testParameters())
	require.NoError(t, err)

	require.NoError(t, manager.Expire(ctx, swap.BitcoinAddress))
	require.ErrorIs(
		t, manager.Expire(ctx, swap.BitcoinAddress),
		ErrInvalidTransition,
	)

	stored, err := store.GetSwapInfoByAddress(ctx, swap.BitcoinAddress)
	require.NoError(t, err)
	require.Equal(t, breezdb.SwapStatusExpired, stored.Status)
	require.False(t, stored.Monitored())

	err = manager.OnInvoiceCreated(ctx, swap.BitcoinAddress, "lnbcrt1")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = manager.OnChainUpdate(
		ctx, "unknown", &breezdb.SwapChainInfo{}, 1,
	)
	require.ErrorIs(t, err, breezdb.ErrSwapNotFound)
}
