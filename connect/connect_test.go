package connect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/test"
	"github.com/stretchr/testify/require"
)

// TestConnectOnce checks that concurrent callers share one attempt and
// later callers reuse its result.
func TestConnectOnce(t *testing.T) {
	defer test.Guard(t)()

	var (
		attempts int32
		release  = make(chan struct{})
		node     = test.NewMockNode()
	)
	svc := NewService(func(ctx context.Context) (nodeapi.NodeAPI, error) {
		atomic.AddInt32(&attempts, 1)
		<-release

		return node, nil
	})

	const callers = 10

	var wg sync.WaitGroup
	results := make(chan nodeapi.NodeAPI, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			n, err := svc.Node(context.Background())
			require.NoError(t, err)
			results <- n
		}()
	}

	// Let the callers pile up on the attempt.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) == 1
	}, test.Timeout, test.Timeout/100)
	close(release)
	wg.Wait()
	close(results)

	for n := range results {
		require.Same(t, node, n)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
	require.True(t, svc.Connected())

	n, err := svc.Node(context.Background())
	require.NoError(t, err)
	require.Same(t, node, n)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))

	// After a reset the next caller reconnects.
	svc.Reset()
	require.False(t, svc.Connected())

	_, err = svc.Node(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

// TestConnectFailure checks that a failed attempt isn't cached.
func TestConnectFailure(t *testing.T) {
	defer test.Guard(t)()

	errUnreachable := errors.New("unreachable")

	var attempts int32
	node := test.NewMockNode()
	svc := NewService(func(ctx context.Context) (nodeapi.NodeAPI, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return nil, errUnreachable
		}

		return node, nil
	})

	_, err := svc.Node(context.Background())
	require.ErrorIs(t, err, errUnreachable)
	require.False(t, svc.Connected())

	n, err := svc.Node(context.Background())
	require.NoError(t, err)
	require.Same(t, node, n)
}
