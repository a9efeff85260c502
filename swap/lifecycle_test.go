package swap

import (
	"testing"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/fsm"
	"github.com/stretchr/testify/require"
)

// TestPlanTransition checks the swap transition table.
func TestPlanTransition(t *testing.T) {
	tests := []struct {
		name    string
		current breezdb.SwapStatus
		events  []fsm.EventType
		next    breezdb.SwapStatus
		valid   bool
	}{
		{
			name:    "funds seen",
			current: breezdb.SwapStatusInitial,
			events:  []fsm.EventType{OnFundsSeen},
			next:    breezdb.SwapStatusWaitingConfirmation,
			valid:   true,
		},
		{
			name:    "seen and confirmed at once",
			current: breezdb.SwapStatusInitial,
			events:  []fsm.EventType{OnFundsSeen, OnConfirmed},
			next:    breezdb.SwapStatusRedeemable,
			valid:   true,
		},
		{
			name:    "rejected deposit",
			current: breezdb.SwapStatusWaitingConfirmation,
			events:  []fsm.EventType{OnDepositRejected},
			next:    breezdb.SwapStatusRefundable,
			valid:   true,
		},
		{
			name:    "redeemed",
			current: breezdb.SwapStatusRedeemable,
			events:  []fsm.EventType{OnRedeemed},
			next:    breezdb.SwapStatusRedeemed,
			valid:   true,
		},
		{
			name:    "refunded",
			current: breezdb.SwapStatusRefundable,
			events:  []fsm.EventType{OnRefunded},
			next:    breezdb.SwapStatusRefunded,
			valid:   true,
		},
		{
			name:    "expired",
			current: breezdb.SwapStatusInitial,
			events:  []fsm.EventType{OnExpired},
			next:    breezdb.SwapStatusExpired,
			valid:   true,
		},
		{
			name:    "redeem before confirmation",
			current: breezdb.SwapStatusWaitingConfirmation,
			events:  []fsm.EventType{OnRedeemed},
		},
		{
			name:    "refund a redeemable swap",
			current: breezdb.SwapStatusRedeemable,
			events:  []fsm.EventType{OnRefunded},
		},
		{
			name:    "anything after final",
			current: breezdb.SwapStatusRedeemed,
			events:  []fsm.EventType{OnRefunded},
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			next, transitions, err := planTransition(
				tc.current, tc.events...,
			)
			if !tc.valid {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.next, next)
			require.Len(t, transitions, len(tc.events))
			require.Equal(t, stateOf(tc.next),
				transitions[len(transitions)-1].NextState)
		})
	}
}

// TestChainEvents checks the events derived from chain updates.
func TestChainEvents(t *testing.T) {
	confirmedAt := uint32(100)

	swap := &breezdb.SwapInfo{
		Status:            breezdb.SwapStatusInitial,
		LockHeight:        144,
		MinAllowedDeposit: 10,
		MaxAllowedDeposit: 100,
	}

	tests := []struct {
		name   string
		status breezdb.SwapStatus
		info   *breezdb.SwapChainInfo
		tip    uint32
		events []fsm.EventType
	}{
		{
			name:   "nothing seen",
			status: breezdb.SwapStatusInitial,
			info:   &breezdb.SwapChainInfo{},
		},
		{
			name:   "unconfirmed",
			status: breezdb.SwapStatusInitial,
			info: &breezdb.SwapChainInfo{
				UnconfirmedSats: 20,
			},
			events: []fsm.EventType{OnFundsSeen},
		},
		{
			name:   "confirmed in bounds",
			status: breezdb.SwapStatusInitial,
			info: &breezdb.SwapChainInfo{
				ConfirmedSats: 20,
				ConfirmedAt:   &confirmedAt,
			},
			tip:    101,
			events: []fsm.EventType{OnFundsSeen, OnConfirmed},
		},
		{
			name:   "confirmed below minimum",
			status: breezdb.SwapStatusWaitingConfirmation,
			info: &breezdb.SwapChainInfo{
				ConfirmedSats: 9,
				ConfirmedAt:   &confirmedAt,
			},
			tip:    101,
			events: []fsm.EventType{OnDepositRejected},
		},
		{
			name:   "confirmed above maximum",
			status: breezdb.SwapStatusWaitingConfirmation,
			info: &breezdb.SwapChainInfo{
				ConfirmedSats: 101,
				ConfirmedAt:   &confirmedAt,
			},
			tip:    101,
			events: []fsm.EventType{OnDepositRejected},
		},
		{
			name:   "lock expired",
			status: breezdb.SwapStatusWaitingConfirmation,
			info: &breezdb.SwapChainInfo{
				ConfirmedSats: 50,
				ConfirmedAt:   &confirmedAt,
			},
			tip:    244,
			events: []fsm.EventType{OnDepositRejected},
		},
		{
			name:   "already redeemable",
			status: breezdb.SwapStatusRedeemable,
			info: &breezdb.SwapChainInfo{
				ConfirmedSats: 50,
				ConfirmedAt:   &confirmedAt,
			},
			tip: 120,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			s := *swap
			s.Status = tc.status

			require.Equal(t, tc.events, chainEvents(&s, tc.info, tc.tip))
		})
	}
}
