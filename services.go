package breez

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/cln"
	"github.com/breez/breez-sdk-go/connect"
	"github.com/breez/breez-sdk-go/credentials"
	"github.com/breez/breez-sdk-go/invoice"
	"github.com/breez/breez-sdk-go/labels"
	"github.com/breez/breez-sdk-go/lnurl"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/notifications"
	"github.com/breez/breez-sdk-go/swap"
	"github.com/breez/breez-sdk-go/syncer"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"
)

// swapInvoiceDescription is the description of invoices paid by the swapper.
const swapInvoiceDescription = "Bitcoin Transfer"

var (
	// ErrNotSynced is returned when the node state is requested before the
	// first successful sync.
	ErrNotSynced = errors.New("node state unknown, sync first")

	// ErrSwapNotRedeemable is returned when an invoice is requested for a
	// swap that can't be redeemed.
	ErrSwapNotRedeemable = errors.New("swap is not redeemable")
)

// ServicesConfig holds the dependencies of Services.
type ServicesConfig struct {
	Net   *chaincfg.Params
	Store *breezdb.SqliteStore

	// Connect establishes the node connection. It is called at most once
	// at a time.
	Connect connect.ConnectFunc

	Clock clock.Clock

	// SyncInterval is the interval of the background sync started by
	// Run.
	SyncInterval time.Duration

	// HTTPClient is used for LNURL requests.
	HTTPClient *http.Client
}

// Services is the wallet engine: it composes the node connection, the
// syncer, the swap manager and the LNURL client on top of the store.
type Services struct {
	cfg *ServicesConfig

	connect  *connect.Service
	notifier *notifications.Manager
	swaps    *swap.Manager
	lnurl    *lnurl.Client

	syncerMu   sync.Mutex
	syncer     *syncer.Syncer
	syncerNode nodeapi.NodeAPI
}

// Option customizes the services created by New.
type Option func(*options)

type options struct {
	plugin *cln.Plugin
}

// WithPlugin attaches every node New connects to plugin, so the messages of
// lightningd's custommsg hook reach the node's custom message streams.
func WithPlugin(plugin *cln.Plugin) Option {
	return func(o *options) {
		o.plugin = plugin
	}
}

// New opens the database and returns the services talking to the CLN node
// configured in cfg. The seed is the wallet seed of that node. The returned
// function closes the database.
func New(cfg *Config, seed []byte, opts ...Option) (*Services, func(),
	error) {

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	net, err := nodeapi.ChainParamsFromNetwork(cfg.Network)
	if err != nil {
		return nil, nil, err
	}

	clk := clock.NewDefaultClock()
	store, err := breezdb.NewSqliteStore(cfg.Sqlite, clk)
	if err != nil {
		return nil, nil, err
	}

	connectNode := func(ctx context.Context) (nodeapi.NodeAPI, error) {
		rpc, err := cln.Dial(cfg.Cln.RPCFile)
		if err != nil {
			return nil, nodeapi.Connectivity(err)
		}

		node := cln.NewNode(&cln.Config{
			RPC:                  rpc,
			Net:                  net,
			Seed:                 seed,
			State:                store,
			Clock:                clk,
			MaxFeePercent:        cfg.Cln.MaxFeePercent,
			PaymentTimeout:       cfg.Cln.PaymentTimeout,
			ExemptFeeMsat:        cfg.Cln.ExemptFeeMsat,
			BalanceRetries:       cfg.Cln.BalanceRetries,
			BalanceRetryInterval: cfg.Cln.BalanceRetryInterval,
		})
		if o.plugin != nil {
			o.plugin.Attach(node)
		}

		return node, nil
	}

	services := NewServices(&ServicesConfig{
		Net:          net,
		Store:        store,
		Connect:      connectNode,
		Clock:        clk,
		SyncInterval: cfg.SyncInterval,
		HTTPClient:   &http.Client{Timeout: cfg.Lnurl.Timeout},
	})

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Errorf("Error closing database: %v", err)
		}
	}

	return services, cleanup, nil
}

// NewServices returns services built from already created dependencies.
func NewServices(cfg *ServicesConfig) *Services {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = syncer.DefaultSyncInterval
	}

	notifier := notifications.NewManager()

	swaps := swap.NewManager(&swap.Config{
		Store: cfg.Store,
		Net:   cfg.Net,
		Clock: cfg.Clock,
	})
	swaps.RegisterObserver(notifier)

	return &Services{
		cfg:      cfg,
		connect:  connect.NewService(cfg.Connect),
		notifier: notifier,
		swaps:    swaps,
		lnurl: lnurl.NewClient(&lnurl.Config{
			HTTPClient: cfg.HTTPClient,
			UserAgent:  UserAgent(""),
		}),
	}
}

// Notifications returns the event bus of the wallet.
func (s *Services) Notifications() *notifications.Manager {
	return s.notifier
}

// Swaps returns the swap manager. The chain watcher reports swap address
// activity to it.
func (s *Services) Swaps() *swap.Manager {
	return s.swaps
}

// syncerFor returns the syncer of node. A new one is created after a
// reconnect.
func (s *Services) syncerFor(node nodeapi.NodeAPI) *syncer.Syncer {
	s.syncerMu.Lock()
	defer s.syncerMu.Unlock()

	if s.syncer != nil && s.syncerNode == node {
		return s.syncer
	}

	s.syncer = syncer.New(&syncer.Config{
		Node:     node,
		Store:    s.cfg.Store,
		Clock:    s.cfg.Clock,
		Notifier: s.notifier,
		Ticker:   ticker.New(s.cfg.SyncInterval),
	})
	s.syncerNode = node

	return s.syncer
}

// Sync pulls the node state and payments into the store.
func (s *Services) Sync(ctx context.Context) error {
	return s.sync(ctx, false)
}

func (s *Services) sync(ctx context.Context, balanceChanged bool) error {
	node, err := s.connect.Node(ctx)
	if err != nil {
		return err
	}

	// The sync transaction also records the sync time.
	if _, err := s.syncerFor(node).Sync(ctx, balanceChanged); err != nil {
		return err
	}

	return s.redeemPaidSwaps(ctx)
}

// Run syncs periodically until ctx is canceled. Swaps whose invoice gets
// paid are marked redeemed as soon as the payment is synced.
func (s *Services) Run(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		log.Errorf("Initial sync failed: %v", err)
	}

	node, err := s.connect.Node(ctx)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	paid := s.notifier.SubscribeInvoicePaid(ctx)

	// The notifier drops payments for a full subscriber, so they are only
	// coalesced into a redeem signal here and every redeem pass scans all
	// redeemable swaps.
	redeem := make(chan struct{}, 1)

	group.Go(func() error {
		return s.syncerFor(node).Run(ctx)
	})

	group.Go(func() error {
		defer close(redeem)

		for range paid {
			select {
			case redeem <- struct{}{}:
			default:
			}
		}

		return nil
	})

	group.Go(func() error {
		for range redeem {
			if err := s.redeemPaidSwaps(ctx); err != nil {
				log.Errorf("Unable to redeem paid swaps: %v",
					err)
			}
		}

		return nil
	})

	return group.Wait()
}

// redeemPaidSwaps marks the redeemable swaps whose invoice was paid as
// redeemed.
func (s *Services) redeemPaidSwaps(ctx context.Context) error {
	swaps, err := s.swaps.RedeemableSwaps(ctx)
	if err != nil {
		return err
	}

	for _, swapInfo := range swaps {
		payment, err := s.cfg.Store.GetPaymentByHash(
			ctx, hex.EncodeToString(swapInfo.PaymentHash),
		)
		if err != nil {
			return err
		}

		if payment == nil ||
			payment.Type != nodeapi.PaymentTypeReceived ||
			payment.Status != nodeapi.PaymentStatusComplete {

			continue
		}

		_, err = s.swaps.OnPaid(
			ctx, swapInfo.BitcoinAddress, payment.AmountMsat,
		)
		switch {
		// A concurrent sync got there first.
		case errors.Is(err, swap.ErrInvalidTransition):
			log.Debugf("Swap %v already redeemed",
				swap.ShortAddress(swapInfo.BitcoinAddress))

		case err != nil:
			return err
		}
	}

	return nil
}

// NodeInfo returns the node state of the last sync.
func (s *Services) NodeInfo(ctx context.Context) (*nodeapi.NodeState,
	error) {

	state, err := s.cfg.Store.GetNodeState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNotSynced
	}

	return state, nil
}

// ListPayments returns the synced payments matching req, newest first.
func (s *Services) ListPayments(ctx context.Context,
	req *breezdb.ListPaymentsRequest) ([]nodeapi.Payment, error) {

	return s.cfg.Store.FetchPayments(ctx, req)
}

// PaymentByHash returns the payment with the given hash or nil.
func (s *Services) PaymentByHash(ctx context.Context,
	hash string) (*nodeapi.Payment, error) {

	return s.cfg.Store.GetPaymentByHash(ctx, hash)
}

// ListSwaps returns all swaps.
func (s *Services) ListSwaps(ctx context.Context) ([]*breezdb.SwapInfo,
	error) {

	return s.cfg.Store.FetchSwaps(ctx)
}

// ReceivePayment creates an invoice on the node.
func (s *Services) ReceivePayment(ctx context.Context,
	req *nodeapi.CreateInvoiceRequest) (*invoice.LNInvoice, error) {

	if err := labels.ValidateDescription(req.Description); err != nil {
		return nil, err
	}

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	bolt11, err := node.CreateInvoice(ctx, req)
	if err != nil {
		return nil, err
	}

	return invoice.ParseForNetwork(bolt11, s.cfg.Net)
}

// SendPayment pays a bolt11 invoice and syncs the result. amountMsat is
// only used for zero amount invoices.
func (s *Services) SendPayment(ctx context.Context, bolt11 string,
	amountMsat *uint64) (*nodeapi.PaymentResponse, error) {

	inv, err := invoice.ParseForNetwork(bolt11, s.cfg.Net)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrInvalidInvoice, err)
	}
	if s.cfg.Clock.Now().After(inv.ExpiresAt()) {
		return nil, nodeapi.NewError(
			nodeapi.ErrInvoiceExpired,
			fmt.Errorf("invoice expired at %v", inv.ExpiresAt()),
		)
	}

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := node.SendPayment(ctx, inv.Bolt11, amountMsat)
	if err != nil {
		return nil, err
	}

	s.syncAfterPayment(ctx)

	return resp, nil
}

// SendSpontaneousPayment sends a keysend payment and syncs the result.
func (s *Services) SendSpontaneousPayment(ctx context.Context,
	nodeID string, amountMsat uint64) (*nodeapi.PaymentResponse, error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := node.SendSpontaneousPayment(ctx, nodeID, amountMsat)
	if err != nil {
		return nil, err
	}

	s.syncAfterPayment(ctx)

	return resp, nil
}

// syncAfterPayment syncs after a settled payment. The payment already
// succeeded, so a failed sync is only logged.
func (s *Services) syncAfterPayment(ctx context.Context) {
	if err := s.sync(ctx, true); err != nil {
		log.Warnf("Sync after payment failed: %v", err)
	}
}

// FetchLnurlWithdraw queries an LNURL-withdraw endpoint.
func (s *Services) FetchLnurlWithdraw(ctx context.Context,
	endpoint string) (*lnurl.WithdrawRequestData, error) {

	return s.lnurl.FetchWithdrawRequest(ctx, endpoint)
}

// LnurlWithdraw creates an invoice over amountMsat and asks the
// LNURL-withdraw service to pay it. An empty description falls back to the
// default description of the service.
func (s *Services) LnurlWithdraw(ctx context.Context,
	req *lnurl.WithdrawRequestData, amountMsat uint64,
	description string) (*lnurl.WithdrawResult, error) {

	if description == "" {
		description = req.DefaultDescription
	}

	inv, err := s.ReceivePayment(ctx, &nodeapi.CreateInvoiceRequest{
		AmountMsat:  amountMsat,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.lnurl.Withdraw(ctx, req, inv)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return res, nil
	}

	err = s.cfg.Store.SetPaymentExternalMetadata(
		ctx, inv.PaymentHash, &breezdb.PaymentExternalInfo{
			LnurlWithdrawEndpoint: req.Callback,
		},
	)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// CreateSwapInvoice creates the invoice the swapper pays to redeem a swap.
// It pays to the swap's payment hash and carries the confirmed amount.
func (s *Services) CreateSwapInvoice(ctx context.Context,
	address string) (string, error) {

	swapInfo, err := s.cfg.Store.GetSwapInfoByAddress(ctx, address)
	if err != nil {
		return "", err
	}
	if swapInfo.Status != breezdb.SwapStatusRedeemable {
		return "", fmt.Errorf("%w: swap is %v", ErrSwapNotRedeemable,
			swapInfo.Status)
	}

	node, err := s.connect.Node(ctx)
	if err != nil {
		return "", err
	}

	bolt11, err := node.CreateInvoice(ctx, &nodeapi.CreateInvoiceRequest{
		AmountMsat:  swapInfo.ConfirmedSats * 1000,
		Description: swapInvoiceDescription,
		Preimage:    swapInfo.Preimage,
	})
	switch {
	// The invoice was created before, reuse it.
	case errors.Is(err, nodeapi.ErrInvoicePreimageAlreadyExists) &&
		swapInfo.Bolt11 != "":

		return swapInfo.Bolt11, nil

	case err != nil:
		return "", err
	}

	if err := s.swaps.OnInvoiceCreated(ctx, address, bolt11); err != nil {
		return "", err
	}

	return bolt11, nil
}

// Sweep sends all on-chain funds to toAddress.
func (s *Services) Sweep(ctx context.Context, toAddress string,
	satPerVbyte uint32) (string, error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return "", err
	}

	txid, err := node.Sweep(ctx, toAddress, satPerVbyte)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(txid), nil
}

// PrepareSweep estimates the fee of a sweep.
func (s *Services) PrepareSweep(ctx context.Context,
	req *nodeapi.PrepareSweepRequest) (*nodeapi.PrepareSweepResponse,
	error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	return node.PrepareSweep(ctx, req)
}

// StreamCustomMessages returns the custom messages peers send from now on
// until ctx is done.
func (s *Services) StreamCustomMessages(
	ctx context.Context) (<-chan *nodeapi.CustomMessage, error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	return node.StreamCustomMessages(ctx)
}

// SignMessage signs message with the node key.
func (s *Services) SignMessage(ctx context.Context, message string) (string,
	error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return "", err
	}

	return node.SignMessage(ctx, message)
}

// CheckMessage verifies a signature of pubkey over message.
func (s *Services) CheckMessage(ctx context.Context, message, pubkey,
	signature string) (bool, error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return false, err
	}

	return node.CheckMessage(ctx, message, pubkey, signature)
}

// ExecuteCommand runs a node command.
func (s *Services) ExecuteCommand(ctx context.Context,
	command string) (string, error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return "", err
	}

	return node.ExecuteCommand(ctx, command)
}

// StaticBackup returns the static channel backup stored by the last sync
// that saw the channel set change, or fetches it from the node.
func (s *Services) StaticBackup(ctx context.Context) ([]string, error) {
	cached, ok, err := s.cfg.Store.FetchCachedItem(
		ctx, syncer.StaticBackupKey,
	)
	if err != nil {
		return nil, err
	}

	if ok {
		var backup []string
		if err := json.Unmarshal([]byte(cached), &backup); err != nil {
			return nil, err
		}

		return backup, nil
	}

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	return node.StaticBackup(ctx)
}

// credentials returns the credential manager of the connected node.
func (s *Services) credentials(
	ctx context.Context) (*credentials.Manager, error) {

	node, err := s.connect.Node(ctx)
	if err != nil {
		return nil, err
	}

	return credentials.NewManager(&credentials.Config{
		Store:      s.cfg.Store,
		Strategies: credentials.DefaultStrategies(node),
	}), nil
}

// LoadCredentials returns the decrypted node credentials, or nil if none
// are stored.
func (s *Services) LoadCredentials(ctx context.Context) ([]byte, error) {
	mgr, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}

	return mgr.Load(ctx)
}

// SaveCredentials encrypts and stores the node credentials.
func (s *Services) SaveCredentials(ctx context.Context,
	creds []byte) error {

	mgr, err := s.credentials(ctx)
	if err != nil {
		return err
	}

	return mgr.Save(ctx, creds)
}
