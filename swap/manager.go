package swap

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/fsm"
	"github.com/breez/breez-sdk-go/invoice"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
)

var (
	// ErrInvalidTransition is returned when an event doesn't apply to the
	// current status of a swap. The swap is left untouched.
	ErrInvalidTransition = errors.New("invalid swap transition")

	// ErrHashMismatch is returned when an invoice doesn't pay to the
	// payment hash of the swap.
	ErrHashMismatch = errors.New("invoice payment hash doesn't match swap")

	// ErrSwapInProgress is returned when a new swap is requested while an
	// older one already received funds.
	ErrSwapInProgress = errors.New("another swap is in progress")
)

// Store is the persistence a Manager needs.
type Store interface {
	InsertSwap(ctx context.Context, swap *breezdb.SwapInfo) error

	GetSwapInfoByAddress(ctx context.Context,
		address string) (*breezdb.SwapInfo, error)

	GetSwapInfoByHash(ctx context.Context,
		hash []byte) (*breezdb.SwapInfo, error)

	FetchSwaps(ctx context.Context) ([]*breezdb.SwapInfo, error)

	FetchSwapsWithStatus(ctx context.Context,
		status breezdb.SwapStatus) ([]*breezdb.SwapInfo, error)

	UpdateSwapChainInfo(ctx context.Context, address string,
		info *breezdb.SwapChainInfo,
		status breezdb.SwapStatus) (*breezdb.SwapInfo, error)

	UpdateSwapBolt11(ctx context.Context, address, bolt11 string) error

	UpdateSwapPaidAmount(ctx context.Context, address string,
		paidMsat uint64) error

	UpdateSwapRedeemError(ctx context.Context, address,
		redeemErr string) error

	UpdateSwapStatus(ctx context.Context, address string,
		status breezdb.SwapStatus) error

	InsertSwapRefundTxID(ctx context.Context, address, txid string) error
}

// Observer is notified after a swap transition was persisted.
type Observer interface {
	SwapUpdated(swap *breezdb.SwapInfo, transition fsm.Notification)
}

// Config holds the dependencies of a Manager.
type Config struct {
	Store Store
	Net   *chaincfg.Params
	Clock clock.Clock
}

// Parameters are the terms the swapper offered for a new swap.
type Parameters struct {
	SwapperPubKey *btcec.PublicKey

	// LockHeight is the relative lock in blocks after which the payer
	// can claim the deposit back.
	LockHeight int64

	MinAllowedDeposit int64
	MaxAllowedDeposit int64

	OpeningFees *breezdb.OpeningFeeParams
}

// Manager creates swaps and moves them through their lifecycle. Every
// transition is validated against the swap state machine and persisted
// before observers hear about it.
type Manager struct {
	cfg *Config

	// mu serializes transitions so that two updates of the same swap
	// can't both plan from the same persisted status.
	mu sync.Mutex

	observerMu sync.Mutex
	observers  []Observer
}

// NewManager returns a new swap manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{
		cfg: cfg,
	}
}

// RegisterObserver adds an observer for persisted transitions.
func (m *Manager) RegisterObserver(observer Observer) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()

	m.observers = append(m.observers, observer)
}

// CreateSwap generates the keys, preimage and script of a new swap and
// persists it in the Initial status.
func (m *Manager) CreateSwap(ctx context.Context,
	params *Parameters) (*breezdb.SwapInfo, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	inProgress, err := m.inProgressSwap(ctx)
	if err != nil {
		return nil, err
	}
	if inProgress != nil {
		return nil, fmt.Errorf("%w: %v", ErrSwapInProgress,
			inProgress.BitcoinAddress)
	}

	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, err
	}
	hash := preimage.Hash()

	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	script, err := NewSwapScript(
		hash, params.SwapperPubKey, privKey.PubKey(), params.LockHeight,
	)
	if err != nil {
		return nil, err
	}

	address, err := ScriptAddress(script, m.cfg.Net)
	if err != nil {
		return nil, err
	}

	swap := &breezdb.SwapInfo{
		BitcoinAddress:     address.String(),
		CreatedAt:          m.cfg.Clock.Now().Unix(),
		LockHeight:         params.LockHeight,
		PaymentHash:        hash[:],
		Preimage:           preimage[:],
		PrivateKey:         privKey.Serialize(),
		PublicKey:          privKey.PubKey().SerializeCompressed(),
		SwapperPublicKey:   params.SwapperPubKey.SerializeCompressed(),
		Script:             script,
		UnconfirmedTxIDs:   []string{},
		ConfirmedTxIDs:     []string{},
		RefundTxIDs:        []string{},
		Status:             breezdb.SwapStatusInitial,
		MinAllowedDeposit:  params.MinAllowedDeposit,
		MaxAllowedDeposit:  params.MaxAllowedDeposit,
		ChannelOpeningFees: params.OpeningFees,
	}

	if err := m.cfg.Store.InsertSwap(ctx, swap); err != nil {
		return nil, err
	}

	swapLog := &PrefixLog{Logger: log, Address: swap.BitcoinAddress}
	swapLog.Infof("Created swap, hash %v", hash)

	return swap, nil
}

// OnChainUpdate stores the chain view of a swap address and applies the
// transitions it implies. tipHeight is the current block height.
func (m *Manager) OnChainUpdate(ctx context.Context, address string,
	info *breezdb.SwapChainInfo, tipHeight uint32) (*breezdb.SwapInfo,
	error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	swap, err := m.cfg.Store.GetSwapInfoByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	status, transitions, err := planTransition(
		swap.Status, chainEvents(swap, info, tipHeight)...,
	)
	if err != nil {
		return nil, err
	}

	updated, err := m.cfg.Store.UpdateSwapChainInfo(
		ctx, address, info, status,
	)
	if err != nil {
		return nil, err
	}

	m.notify(updated, transitions)

	return updated, nil
}

// Expire gives up on an unfunded swap.
func (m *Manager) Expire(ctx context.Context, address string) error {
	_, err := m.transition(ctx, address, nil, OnExpired)
	return err
}

// OnInvoiceCreated assigns the invoice the swapper will pay. The invoice
// must pay to the swap's payment hash.
func (m *Manager) OnInvoiceCreated(ctx context.Context, address,
	bolt11 string) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	swap, err := m.cfg.Store.GetSwapInfoByAddress(ctx, address)
	if err != nil {
		return err
	}
	if swap.Status.IsFinal() {
		return fmt.Errorf("%w: swap is %v", ErrInvalidTransition,
			swap.Status)
	}

	inv, err := invoice.ParseForNetwork(bolt11, m.cfg.Net)
	if err != nil {
		return err
	}

	hash, err := hex.DecodeString(inv.PaymentHash)
	if err != nil || !bytes.Equal(hash, swap.PaymentHash) {
		return ErrHashMismatch
	}

	return m.cfg.Store.UpdateSwapBolt11(ctx, address, bolt11)
}

// OnPaid records that the swapper paid the swap invoice and marks the swap
// redeemed.
func (m *Manager) OnPaid(ctx context.Context, address string,
	paidMsat uint64) (*breezdb.SwapInfo, error) {

	return m.transition(ctx, address, func(swap *breezdb.SwapInfo) error {
		return m.cfg.Store.UpdateSwapPaidAmount(ctx, address, paidMsat)
	}, OnRedeemed)
}

// OnRedeemError records why asking the swapper to redeem failed.
func (m *Manager) OnRedeemError(ctx context.Context, address string,
	redeemErr error) error {

	swapLog := &PrefixLog{Logger: log, Address: address}
	swapLog.Warnf("Redeem failed: %v", redeemErr)

	return m.cfg.Store.UpdateSwapRedeemError(
		ctx, address, redeemErr.Error(),
	)
}

// OnRefunded records a broadcast refund transaction and marks the swap
// refunded.
func (m *Manager) OnRefunded(ctx context.Context, address,
	txid string) (*breezdb.SwapInfo, error) {

	return m.transition(ctx, address, func(swap *breezdb.SwapInfo) error {
		return m.cfg.Store.InsertSwapRefundTxID(ctx, address, txid)
	}, OnRefunded)
}

// RedeemableSwaps returns the swaps that wait for the swapper to pay.
func (m *Manager) RedeemableSwaps(
	ctx context.Context) ([]*breezdb.SwapInfo, error) {

	return m.cfg.Store.FetchSwapsWithStatus(
		ctx, breezdb.SwapStatusRedeemable,
	)
}

// RefundableSwaps returns the swaps whose deposit has to be claimed back.
func (m *Manager) RefundableSwaps(
	ctx context.Context) ([]*breezdb.SwapInfo, error) {

	swaps, err := m.cfg.Store.FetchSwapsWithStatus(
		ctx, breezdb.SwapStatusRefundable,
	)
	if err != nil {
		return nil, err
	}

	var refundable []*breezdb.SwapInfo
	for _, swap := range swaps {
		if swap.Refundable() {
			refundable = append(refundable, swap)
		}
	}

	return refundable, nil
}

// InProgressSwap returns the swap that received funds but didn't move on
// yet, or nil.
func (m *Manager) InProgressSwap(
	ctx context.Context) (*breezdb.SwapInfo, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.inProgressSwap(ctx)
}

func (m *Manager) inProgressSwap(
	ctx context.Context) (*breezdb.SwapInfo, error) {

	swaps, err := m.cfg.Store.FetchSwapsWithStatus(
		ctx, breezdb.SwapStatusInitial,
	)
	if err != nil {
		return nil, err
	}

	for _, swap := range swaps {
		if swap.InProgress() {
			return swap, nil
		}
	}

	return nil, nil
}

// transition validates event against the swap's status, runs record and
// persists the new status, then notifies observers.
func (m *Manager) transition(ctx context.Context, address string,
	record func(*breezdb.SwapInfo) error,
	event fsm.EventType) (*breezdb.SwapInfo, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	swap, err := m.cfg.Store.GetSwapInfoByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	status, transitions, err := planTransition(swap.Status, event)
	if err != nil {
		return nil, err
	}

	if record != nil {
		if err := record(swap); err != nil {
			return nil, err
		}
	}

	err = m.cfg.Store.UpdateSwapStatus(ctx, address, status)
	if err != nil {
		return nil, err
	}

	updated, err := m.cfg.Store.GetSwapInfoByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	m.notify(updated, transitions)

	return updated, nil
}

func (m *Manager) notify(swap *breezdb.SwapInfo,
	transitions []fsm.Notification) {

	swapLog := &PrefixLog{Logger: log, Address: swap.BitcoinAddress}

	m.observerMu.Lock()
	defer m.observerMu.Unlock()

	for _, transition := range transitions {
		swapLog.Infof("%v -> %v", transition.PreviousState,
			transition.NextState)

		for _, observer := range m.observers {
			observer.SwapUpdated(swap, transition)
		}
	}
}
