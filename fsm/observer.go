package fsm

import (
	"sync"
)

// CachedObserver is an observer that caches the transitions of the observed
// state machine.
type CachedObserver struct {
	mu            sync.Mutex
	notifications []Notification
}

// NewCachedObserver creates a new cached observer.
func NewCachedObserver() *CachedObserver {
	return &CachedObserver{}
}

// Notify implements the Observer interface.
func (c *CachedObserver) Notify(notification Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = append(c.notifications, notification)
}

// GetCachedNotifications returns a copy of the cached notifications.
func (c *CachedObserver) GetCachedNotifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Notification(nil), c.notifications...)
}
