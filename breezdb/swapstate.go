package breezdb

// SwapStatus is the persisted lifecycle state of a swap. The numeric values
// are stored in the database and must never change.
type SwapStatus uint8

const (
	// SwapStatusInitial is the state of a freshly created swap, before any
	// funds were seen on its address.
	SwapStatusInitial SwapStatus = 0

	// SwapStatusWaitingConfirmation means funds were sent to the swap
	// address but are not yet confirmed.
	SwapStatusWaitingConfirmation SwapStatus = 1

	// SwapStatusRedeemable means the deposit confirmed within the allowed
	// bounds and the swapper can be asked to pay the invoice.
	SwapStatusRedeemable SwapStatus = 2

	// SwapStatusRedeemed is final: the invoice was paid.
	SwapStatusRedeemed SwapStatus = 3

	// SwapStatusRefundable means the deposit can't be redeemed and the
	// user has to claim it back after the lock height.
	SwapStatusRefundable SwapStatus = 4

	// SwapStatusRefunded is final: a refund transaction was broadcast.
	SwapStatusRefunded SwapStatus = 5

	// SwapStatusExpired is final: the swap address was never funded.
	SwapStatusExpired SwapStatus = 6
)

// IsFinal returns true if no further transition can leave the state.
func (s SwapStatus) IsFinal() bool {
	switch s {
	case SwapStatusRedeemed, SwapStatusRefunded, SwapStatusExpired:
		return true

	default:
		return false
	}
}

// String returns a string representation of the swap's status.
func (s SwapStatus) String() string {
	switch s {
	case SwapStatusInitial:
		return "Initial"

	case SwapStatusWaitingConfirmation:
		return "WaitingConfirmation"

	case SwapStatusRedeemable:
		return "Redeemable"

	case SwapStatusRedeemed:
		return "Redeemed"

	case SwapStatusRefundable:
		return "Refundable"

	case SwapStatusRefunded:
		return "Refunded"

	case SwapStatusExpired:
		return "Expired"

	default:
		return "Unknown"
	}
}
