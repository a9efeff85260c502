package notifications

import (
	"context"
	"sync"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/fsm"
	"github.com/breez/breez-sdk-go/nodeapi"
)

// NotificationType is the type of notification that the manager can handle.
type NotificationType int

const (
	// NotificationTypeUnknown is the default notification type.
	NotificationTypeUnknown NotificationType = iota

	// NotificationTypeSynced is sent after every successful sync.
	NotificationTypeSynced

	// NotificationTypeInvoicePaid is sent for every newly settled
	// incoming payment.
	NotificationTypeInvoicePaid

	// NotificationTypeSwapUpdated is sent after a swap transition was
	// persisted.
	NotificationTypeSwapUpdated
)

// SwapUpdate is the notification of a persisted swap transition.
type SwapUpdate struct {
	Swap       *breezdb.SwapInfo
	Transition fsm.Notification
}

// subscriberBacklog is the number of notifications buffered for a
// subscriber. Notifications for a subscriber with a full buffer are dropped.
const subscriberBacklog = 20

// Manager fans wallet events out to subscribers. Each subscription lives
// until its context is canceled, after which its channel is closed. Sending
// never blocks, so a slow subscriber only misses its own notifications.
type Manager struct {
	subscribers map[NotificationType][]subscriber
	sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscribers: make(map[NotificationType][]subscriber),
	}
}

type subscriber struct {
	subCtx   context.Context
	recvChan interface{}
}

// SubscribeSynced subscribes to sync results.
func (m *Manager) SubscribeSynced(
	ctx context.Context) <-chan *nodeapi.SyncResponse {

	notifChan := make(chan *nodeapi.SyncResponse, subscriberBacklog)
	m.subscribe(ctx, NotificationTypeSynced, notifChan, func() {
		close(notifChan)
	})

	return notifChan
}

// SubscribeInvoicePaid subscribes to settled incoming payments.
func (m *Manager) SubscribeInvoicePaid(
	ctx context.Context) <-chan *nodeapi.Payment {

	notifChan := make(chan *nodeapi.Payment, subscriberBacklog)
	m.subscribe(ctx, NotificationTypeInvoicePaid, notifChan, func() {
		close(notifChan)
	})

	return notifChan
}

// SubscribeSwapUpdates subscribes to persisted swap transitions.
func (m *Manager) SubscribeSwapUpdates(
	ctx context.Context) <-chan *SwapUpdate {

	notifChan := make(chan *SwapUpdate, subscriberBacklog)
	m.subscribe(ctx, NotificationTypeSwapUpdated, notifChan, func() {
		close(notifChan)
	})

	return notifChan
}

func (m *Manager) subscribe(ctx context.Context, notifType NotificationType,
	recvChan interface{}, closeChan func()) {

	sub := subscriber{
		subCtx:   ctx,
		recvChan: recvChan,
	}
	m.addSubscriber(notifType, sub)

	// Start a goroutine to remove the subscriber when the context is
	// canceled.
	go func() {
		<-ctx.Done()
		m.removeSubscriber(notifType, sub)
		closeChan()
	}()
}

// NotifySynced forwards a sync result to all subscribers.
func (m *Manager) NotifySynced(resp *nodeapi.SyncResponse) {
	m.Lock()
	defer m.Unlock()

	for _, sub := range m.subscribers[NotificationTypeSynced] {
		recvChan := sub.recvChan.(chan *nodeapi.SyncResponse)

		select {
		case recvChan <- resp:
		default:
			m.dropped(sub)
		}
	}
}

// NotifyInvoicePaid forwards a settled incoming payment to all subscribers.
func (m *Manager) NotifyInvoicePaid(payment *nodeapi.Payment) {
	log.Debugf("Invoice paid: %v", payment.ID)

	m.Lock()
	defer m.Unlock()

	for _, sub := range m.subscribers[NotificationTypeInvoicePaid] {
		recvChan := sub.recvChan.(chan *nodeapi.Payment)

		select {
		case recvChan <- payment:
		default:
			m.dropped(sub)
		}
	}
}

// SwapUpdated forwards a persisted swap transition to all subscribers. It
// lets the manager observe a swap.Manager.
func (m *Manager) SwapUpdated(swap *breezdb.SwapInfo,
	transition fsm.Notification) {

	m.Lock()
	defer m.Unlock()

	update := &SwapUpdate{Swap: swap, Transition: transition}
	for _, sub := range m.subscribers[NotificationTypeSwapUpdated] {
		recvChan := sub.recvChan.(chan *SwapUpdate)

		select {
		case recvChan <- update:
		default:
			m.dropped(sub)
		}
	}
}

// dropped logs a notification lost to a full subscriber buffer. Subscribers
// that are already canceled aren't worth a warning.
func (m *Manager) dropped(sub subscriber) {
	if sub.subCtx.Err() != nil {
		return
	}

	log.Warnf("Subscriber buffer full, dropping notification")
}

// addSubscriber adds a subscriber to the manager.
func (m *Manager) addSubscriber(notifType NotificationType, sub subscriber) {
	m.Lock()
	defer m.Unlock()
	m.subscribers[notifType] = append(m.subscribers[notifType], sub)
}

// removeSubscriber removes a subscriber from the manager.
func (m *Manager) removeSubscriber(notifType NotificationType, sub subscriber) {
	m.Lock()
	defer m.Unlock()
	subs := m.subscribers[notifType]
	newSubs := make([]subscriber, 0, len(subs))
	for _, s := range subs {
		if s != sub {
			newSubs = append(newSubs, s)
		}
	}
	m.subscribers[notifType] = newSubs
}
