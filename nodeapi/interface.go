package nodeapi

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// NodeAPI is the set of operations the wallet engine needs from the remote
// lightning node. Everything above this interface is backend agnostic.
type NodeAPI interface {
	// CreateInvoice asks the node for a new bolt11 invoice. A nil preimage
	// lets the node pick one.
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (string,
		error)

	// PullChanged returns a snapshot of the node state together with all
	// payments that changed after sinceTimestamp. If balanceChanged is
	// set the implementation waits (bounded) for the channel balance to
	// differ from the one last persisted.
	PullChanged(ctx context.Context, sinceTimestamp int64,
		balanceChanged bool) (*SyncResponse, error)

	// SendPayment pays a bolt11 invoice. The amount is only used for zero
	// amount invoices.
	SendPayment(ctx context.Context, bolt11 string,
		amountMsat *uint64) (*PaymentResponse, error)

	// SendSpontaneousPayment sends a keysend payment to the given node.
	SendSpontaneousPayment(ctx context.Context, nodeID string,
		amountMsat uint64) (*PaymentResponse, error)

	// Sweep sends all on-chain funds to the given address and returns the
	// raw transaction id.
	Sweep(ctx context.Context, toAddress string,
		satPerVbyte uint32) ([]byte, error)

	// PrepareSweep estimates the weight and fee of a sweep without
	// broadcasting anything.
	PrepareSweep(ctx context.Context,
		req *PrepareSweepRequest) (*PrepareSweepResponse, error)

	// SignMessage signs the message with the node key and returns the
	// zbase32 encoded recoverable signature.
	SignMessage(ctx context.Context, message string) (string, error)

	// CheckMessage verifies that signature was produced over message by
	// the owner of pubkey.
	CheckMessage(ctx context.Context, message, pubkey,
		signature string) (bool, error)

	// StaticBackup returns the node's opaque static channel backup.
	StaticBackup(ctx context.Context) ([]string, error)

	// ExecuteCommand runs a whitelisted node command and returns its
	// output in a human readable form.
	ExecuteCommand(ctx context.Context, command string) (string, error)

	ListPeers(ctx context.Context) ([]Peer, error)

	ConnectPeer(ctx context.Context, nodeID, addr string) error

	// ClosePeerChannels closes all channels with the peer and returns the
	// closing transaction ids.
	ClosePeerChannels(ctx context.Context, nodeID string) ([]string, error)

	SendCustomMessage(ctx context.Context, msg *CustomMessage) error

	// StreamCustomMessages delivers incoming custom messages until the
	// context is canceled.
	StreamCustomMessages(ctx context.Context) (<-chan *CustomMessage,
		error)

	// DeriveBip32Key derives a key from the wallet seed using the
	// standard BIP32 scheme.
	DeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey, error)

	// LegacyDeriveBip32Key derives a key from the wallet seed using the
	// legacy scheme that older wallets used to encrypt their
	// credentials.
	LegacyDeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey, error)
}
