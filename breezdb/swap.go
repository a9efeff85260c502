package breezdb

import (
	"time"
)

// OpeningFeeParams is the channel opening fee quote a swap was created with.
// It is signed by the quoting party and stored verbatim.
type OpeningFeeParams struct {
	MinMsat              uint64 `json:"min_msat"`
	Proportional         uint32 `json:"proportional"`
	ValidUntil           string `json:"valid_until"`
	MaxIdleTime          uint32 `json:"max_idle_time"`
	MaxClientToSelfDelay uint32 `json:"max_client_to_self_delay"`
	Promise              string `json:"promise"`
}

// ValidUntilTime parses ValidUntil as an RFC 3339 timestamp.
func (p *OpeningFeeParams) ValidUntilTime() (time.Time, error) {
	return time.Parse(time.RFC3339, p.ValidUntil)
}

// SwapInfo is the full record of a swap in: the immutable cryptographic
// material created with the swap plus its mutable chain and payment state.
type SwapInfo struct {
	BitcoinAddress   string
	CreatedAt        int64
	LockHeight       int64
	PaymentHash      []byte
	Preimage         []byte
	PrivateKey       []byte
	PublicKey        []byte
	SwapperPublicKey []byte
	Script           []byte

	Bolt11           string
	PaidMsat         uint64
	UnconfirmedSats  uint64
	UnconfirmedTxIDs []string
	ConfirmedSats    uint64
	ConfirmedTxIDs   []string
	RefundTxIDs      []string
	Status           SwapStatus
	LastRedeemError  string
	ConfirmedAt      *uint32

	MinAllowedDeposit int64
	MaxAllowedDeposit int64

	ChannelOpeningFees *OpeningFeeParams
}

// InProgress is true when funds were sent to a swap that hasn't moved past
// its initial state yet.
func (s *SwapInfo) InProgress() bool {
	return s.Status == SwapStatusInitial &&
		(s.UnconfirmedSats > 0 || s.ConfirmedSats > 0)
}

// Refundable is true when confirmed funds can only be claimed back by the
// user.
func (s *SwapInfo) Refundable() bool {
	return s.Status == SwapStatusRefundable && s.ConfirmedSats > 0
}

// Monitored is true while the swap address still needs to be watched on
// chain.
func (s *SwapInfo) Monitored() bool {
	return !s.Status.IsFinal()
}

// TotalIncomingTxs is the number of funding transactions seen so far.
func (s *SwapInfo) TotalIncomingTxs() int {
	return len(s.UnconfirmedTxIDs) + len(s.ConfirmedTxIDs)
}

// SwapChainInfo is the chain view of a swap address reported by the chain
// watcher.
type SwapChainInfo struct {
	UnconfirmedSats  uint64
	UnconfirmedTxIDs []string
	ConfirmedSats    uint64
	ConfirmedTxIDs   []string
	ConfirmedAt      *uint32
}
