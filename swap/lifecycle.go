package swap

import (
	"fmt"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/fsm"
)

// Events that drive a swap through its lifecycle.
const (
	// OnFundsSeen is sent when a deposit to the swap address shows up.
	OnFundsSeen fsm.EventType = "OnFundsSeen"

	// OnExpired is sent when an unfunded swap is given up on.
	OnExpired fsm.EventType = "OnExpired"

	// OnConfirmed is sent when the deposit confirmed within the allowed
	// bounds.
	OnConfirmed fsm.EventType = "OnConfirmed"

	// OnDepositRejected is sent when the confirmed deposit is outside the
	// allowed bounds, or the lock expired before it could be redeemed.
	OnDepositRejected fsm.EventType = "OnDepositRejected"

	// OnRedeemed is sent once the swapper paid the swap invoice.
	OnRedeemed fsm.EventType = "OnRedeemed"

	// OnRefunded is sent once a refund transaction was broadcast.
	OnRefunded fsm.EventType = "OnRefunded"
)

// stateOf maps a persisted status to its state machine state.
func stateOf(status breezdb.SwapStatus) fsm.StateType {
	return fsm.StateType(status.String())
}

var statusByState = map[fsm.StateType]breezdb.SwapStatus{
	stateOf(breezdb.SwapStatusInitial):             breezdb.SwapStatusInitial,
	stateOf(breezdb.SwapStatusWaitingConfirmation): breezdb.SwapStatusWaitingConfirmation,
	stateOf(breezdb.SwapStatusRedeemable):          breezdb.SwapStatusRedeemable,
	stateOf(breezdb.SwapStatusRedeemed):            breezdb.SwapStatusRedeemed,
	stateOf(breezdb.SwapStatusRefundable):          breezdb.SwapStatusRefundable,
	stateOf(breezdb.SwapStatusRefunded):            breezdb.SwapStatusRefunded,
	stateOf(breezdb.SwapStatusExpired):             breezdb.SwapStatusExpired,
}

// statusOf is the inverse of stateOf.
func statusOf(state fsm.StateType) (breezdb.SwapStatus, error) {
	status, ok := statusByState[state]
	if !ok {
		return 0, fmt.Errorf("unknown swap state %v", state)
	}

	return status, nil
}

// swapStates is the transition table of a swap in.
func swapStates() fsm.States {
	return fsm.States{
		stateOf(breezdb.SwapStatusInitial): {
			Transitions: fsm.Transitions{
				OnFundsSeen: stateOf(
					breezdb.SwapStatusWaitingConfirmation,
				),
				OnExpired: stateOf(breezdb.SwapStatusExpired),
			},
		},
		stateOf(breezdb.SwapStatusWaitingConfirmation): {
			Transitions: fsm.Transitions{
				OnConfirmed: stateOf(
					breezdb.SwapStatusRedeemable,
				),
				OnDepositRejected: stateOf(
					breezdb.SwapStatusRefundable,
				),
			},
		},
		stateOf(breezdb.SwapStatusRedeemable): {
			Transitions: fsm.Transitions{
				OnRedeemed: stateOf(breezdb.SwapStatusRedeemed),
			},
		},
		stateOf(breezdb.SwapStatusRefundable): {
			Transitions: fsm.Transitions{
				OnRefunded: stateOf(breezdb.SwapStatusRefunded),
			},
		},
		stateOf(breezdb.SwapStatusRedeemed):  {},
		stateOf(breezdb.SwapStatusRefunded):  {},
		stateOf(breezdb.SwapStatusExpired):   {},
	}
}

// newSwapMachine returns a state machine resumed at the given status.
func newSwapMachine(status breezdb.SwapStatus) *fsm.StateMachine {
	return fsm.NewStateMachineWithState(swapStates(), stateOf(status))
}

// planTransition runs events through a scratch machine and returns the
// resulting status together with the transitions taken. Nothing is
// persisted.
func planTransition(current breezdb.SwapStatus,
	events ...fsm.EventType) (breezdb.SwapStatus, []fsm.Notification,
	error) {

	sm := newSwapMachine(current)
	observer := fsm.NewCachedObserver()
	sm.RegisterObserver(observer)

	for _, event := range events {
		if err := sm.SendEvent(event, nil); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidTransition,
				err)
		}
	}

	next, err := statusOf(sm.CurrentState())
	if err != nil {
		return 0, nil, err
	}

	return next, observer.GetCachedNotifications(), nil
}

// chainEvents derives the events implied by a chain update of a swap.
func chainEvents(swap *breezdb.SwapInfo, info *breezdb.SwapChainInfo,
	tipHeight uint32) []fsm.EventType {

	var (
		events []fsm.EventType
		status = swap.Status
	)

	if status == breezdb.SwapStatusInitial &&
		info.UnconfirmedSats+info.ConfirmedSats > 0 {

		events = append(events, OnFundsSeen)
		status = breezdb.SwapStatusWaitingConfirmation
	}

	if status != breezdb.SwapStatusWaitingConfirmation ||
		info.ConfirmedSats == 0 {

		return events
	}

	deposit := int64(info.ConfirmedSats)
	inBounds := deposit >= swap.MinAllowedDeposit &&
		deposit <= swap.MaxAllowedDeposit

	switch {
	case !inBounds, lockExpired(swap, info, tipHeight):
		events = append(events, OnDepositRejected)

	default:
		events = append(events, OnConfirmed)
	}

	return events
}

// lockExpired is true once the payer may spend the deposit back, at which
// point the swapper must not redeem it anymore.
func lockExpired(swap *breezdb.SwapInfo, info *breezdb.SwapChainInfo,
	tipHeight uint32) bool {

	if info.ConfirmedAt == nil {
		return false
	}

	return int64(tipHeight) >= int64(*info.ConfirmedAt)+swap.LockHeight
}
