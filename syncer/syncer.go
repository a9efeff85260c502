package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// DefaultSyncInterval is the interval of the background sync.
	DefaultSyncInterval = time.Minute

	// StaticBackupKey is the cached item holding the last static channel
	// backup.
	StaticBackupKey = "static_backup"

	// closedChannelDescription is shown for closed channel payments.
	closedChannelDescription = "Closed Channel"
)

// Store is the persistence the syncer reconciles against.
type Store interface {
	// LastPaymentTimestamp returns the time of the newest lightning
	// payment, the lower bound of the next pull.
	LastPaymentTimestamp(ctx context.Context) (int64, error)

	// FetchChannels returns all known channels.
	FetchChannels(ctx context.Context) ([]nodeapi.Channel, error)

	// PersistSync atomically stores the result of a sync.
	PersistSync(ctx context.Context, state *nodeapi.NodeState,
		payments []nodeapi.Payment, channels []nodeapi.Channel) error

	// UpdateCachedItem stores a cached value.
	UpdateCachedItem(ctx context.Context, key, value string) error
}

// Notifier is told about completed syncs.
type Notifier interface {
	// NotifySynced is called after a sync was persisted.
	NotifySynced(resp *nodeapi.SyncResponse)

	// NotifyInvoicePaid is called for every settled incoming payment of
	// a sync.
	NotifyInvoicePaid(payment *nodeapi.Payment)
}

// Config holds the dependencies of a Syncer.
type Config struct {
	Node  nodeapi.NodeAPI
	Store Store
	Clock clock.Clock

	// Notifier is optional.
	Notifier Notifier

	// Ticker drives Run. It defaults to DefaultSyncInterval.
	Ticker ticker.Ticker
}

// Syncer pulls the node's state and reconciles it into the store. Syncs
// are serialized, so every persisted snapshot is the result of one pull.
type Syncer struct {
	cfg *Config

	mu sync.Mutex
}

// New returns a new syncer.
func New(cfg *Config) *Syncer {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Ticker == nil {
		cfg.Ticker = ticker.New(DefaultSyncInterval)
	}

	return &Syncer{
		cfg: cfg,
	}
}

// Sync pulls everything that changed since the last sync, reconciles the
// channels, derives the closed channel payments and persists the result in
// one transaction. balanceChanged tells the node that the caller expects
// the channel balance to have moved. Nothing is persisted if the pull
// fails, the stored state stays authoritative.
func (s *Syncer) Sync(ctx context.Context,
	balanceChanged bool) (*nodeapi.SyncResponse, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	since, err := s.cfg.Store.LastPaymentTimestamp(ctx)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrPersistence, err)
	}

	log.Debugf("Pulling changes since %v (balance changed: %v)", since,
		balanceChanged)

	pulled, err := s.cfg.Node.PullChanged(ctx, since, balanceChanged)
	if err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	stored, err := s.cfg.Store.FetchChannels(ctx)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrPersistence, err)
	}

	now := s.cfg.Clock.Now().Unix()
	channels := reconcileChannels(stored, pulled.Channels, now)

	payments := closedChannelPayments(channels, now)
	payments = append(payments, pulled.Payments...)

	err = s.cfg.Store.PersistSync(
		ctx, &pulled.NodeState, payments, channels,
	)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrPersistence, err)
	}

	resp := &nodeapi.SyncResponse{
		NodeState: pulled.NodeState,
		Payments:  payments,
		Channels:  channels,
	}

	log.Infof("Synced: block height %v, %v payments, %v channels",
		resp.NodeState.BlockHeight, len(pulled.Payments), len(channels))

	if len(channels) != len(stored) {
		s.storeStaticBackup(ctx)
	}

	if s.cfg.Notifier != nil {
		for i := range pulled.Payments {
			p := &pulled.Payments[i]
			if p.Type == nodeapi.PaymentTypeReceived &&
				p.Status == nodeapi.PaymentStatusComplete {

				s.cfg.Notifier.NotifyInvoicePaid(p)
			}
		}

		s.cfg.Notifier.NotifySynced(resp)
	}

	return resp, nil
}

// storeStaticBackup caches the node's static channel backup. Failures are
// only logged, the next channel change retries.
func (s *Syncer) storeStaticBackup(ctx context.Context) {
	backup, err := s.cfg.Node.StaticBackup(ctx)
	if err != nil {
		log.Errorf("Unable to fetch static backup: %v", err)
		return
	}

	value, err := json.Marshal(backup)
	if err != nil {
		log.Errorf("Unable to encode static backup: %v", err)
		return
	}

	err = s.cfg.Store.UpdateCachedItem(ctx, StaticBackupKey, string(value))
	if err != nil {
		log.Errorf("Unable to store static backup: %v", err)
	}
}

// Run syncs on every tick until ctx is done. A failed sync is logged and
// retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	s.cfg.Ticker.Resume()
	defer s.cfg.Ticker.Stop()

	for {
		select {
		case <-s.cfg.Ticker.Ticks():
			_, err := s.Sync(ctx, false)
			switch {
			case errors.Is(err, context.Canceled):
				return nil

			case err != nil:
				log.Errorf("Sync failed: %v", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// reconcileChannels merges the pulled channels with the stored ones. The
// first time a channel is seen closed is kept, and so is a closing txid the
// node no longer reports. Stored channels the node stopped reporting are
// closed.
func reconcileChannels(stored, pulled []nodeapi.Channel,
	now int64) []nodeapi.Channel {

	known := make(map[string]nodeapi.Channel, len(stored))
	for _, c := range stored {
		known[c.FundingTxid] = c
	}

	seen := make(map[string]struct{}, len(pulled))
	channels := make([]nodeapi.Channel, 0, len(pulled))
	for _, c := range pulled {
		seen[c.FundingTxid] = struct{}{}

		if prev, ok := known[c.FundingTxid]; ok {
			if prev.ClosedAt != 0 {
				c.ClosedAt = prev.ClosedAt
			}
			if c.ClosingTxid == "" {
				c.ClosingTxid = prev.ClosingTxid
			}
		}
		if c.State == nodeapi.ChannelStateClosed && c.ClosedAt == 0 {
			c.ClosedAt = now
		}

		channels = append(channels, c)
	}

	for _, c := range stored {
		if _, ok := seen[c.FundingTxid]; ok {
			continue
		}

		if c.State != nodeapi.ChannelStateClosed {
			log.Debugf("Channel %v is gone, marking closed",
				c.FundingTxid)

			c.State = nodeapi.ChannelStateClosed
		}
		if c.ClosedAt == 0 {
			c.ClosedAt = now
		}

		channels = append(channels, c)
	}

	return channels
}

// closedChannelPayments turns every closing and closed channel into a
// payment of its local balance, identified by the funding txid.
func closedChannelPayments(channels []nodeapi.Channel,
	now int64) []nodeapi.Payment {

	var payments []nodeapi.Payment
	for _, c := range channels {
		var status nodeapi.PaymentStatus
		switch c.State {
		case nodeapi.ChannelStatePendingClose:
			status = nodeapi.PaymentStatusPending

		case nodeapi.ChannelStateClosed:
			status = nodeapi.PaymentStatusComplete

		default:
			continue
		}

		paymentTime := c.ClosedAt
		if paymentTime == 0 {
			paymentTime = now
		}

		payments = append(payments, nodeapi.Payment{
			ID:          c.FundingTxid,
			Type:        nodeapi.PaymentTypeClosedChannel,
			PaymentTime: paymentTime,
			AmountMsat:  c.SpendableMsat,
			Status:      status,
			Description: closedChannelDescription,
			Details: nodeapi.PaymentDetails{
				ClosedChannel: &nodeapi.ClosedChannelPaymentDetails{
					ShortChannelID: c.ShortChannelID,
					State:          c.State.String(),
					FundingTxid:    c.FundingTxid,
					ClosingTxid:    c.ClosingTxid,
				},
			},
		})
	}

	return payments
}
