package connect

import (
	"context"
	"sync"

	"github.com/breez/breez-sdk-go/nodeapi"
	"golang.org/x/sync/singleflight"
)

// connectKey is the single flight key of the connection attempt.
const connectKey = "node"

// ConnectFunc establishes a new node connection.
type ConnectFunc func(ctx context.Context) (nodeapi.NodeAPI, error)

// Service lazily connects to the node once and hands the same connection to
// every caller. Concurrent callers share a single in flight attempt. A
// failed attempt isn't cached, the next caller tries again.
type Service struct {
	connect ConnectFunc

	group singleflight.Group

	mu   sync.Mutex
	node nodeapi.NodeAPI
}

// NewService returns a service connecting with connect.
func NewService(connect ConnectFunc) *Service {
	return &Service{connect: connect}
}

// Node returns the node connection, connecting first if needed. The
// context of the caller that starts the attempt bounds it for everyone
// waiting on it.
func (s *Service) Node(ctx context.Context) (nodeapi.NodeAPI, error) {
	if node := s.cached(); node != nil {
		return node, nil
	}

	res, err, shared := s.group.Do(connectKey, func() (interface{},
		error) {

		if node := s.cached(); node != nil {
			return node, nil
		}

		log.Infof("Connecting to node")

		node, err := s.connect(ctx)
		if err != nil {
			log.Errorf("Node connection failed: %v", err)
			return nil, err
		}

		s.mu.Lock()
		s.node = node
		s.mu.Unlock()

		log.Infof("Connected to node")

		return node, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Tracef("Joined in flight node connection")
	}

	return res.(nodeapi.NodeAPI), nil
}

// Connected returns true if a connection is cached.
func (s *Service) Connected() bool {
	return s.cached() != nil
}

// Reset drops the cached connection, the next call to Node reconnects.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.node = nil
}

func (s *Service) cached() nodeapi.NodeAPI {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.node
}
