package cln

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/niftynei/glightning/jrpc2"
)

// rpcHandler answers a single request. The returned value is marshalled to
// json and decoded into the caller's response, like the real transport
// does.
type rpcHandler func(method jrpc2.Method) (interface{}, error)

// fakeRPC is a scripted CLN json rpc endpoint.
type fakeRPC struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string][]jrpc2.Method
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		handlers: make(map[string]rpcHandler),
		calls:    make(map[string][]jrpc2.Method),
	}
}

// on registers a handler for a method name.
func (f *fakeRPC) on(name string, handler rpcHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[name] = handler
}

// respond registers a fixed response (a json string or a value).
func (f *fakeRPC) respond(name string, resp interface{}) {
	f.on(name, func(jrpc2.Method) (interface{}, error) {
		return resp, nil
	})
}

func (f *fakeRPC) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls[name])
}

func (f *fakeRPC) lastCall(name string) jrpc2.Method {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := f.calls[name]
	if len(calls) == 0 {
		return nil
	}

	return calls[len(calls)-1]
}

// Request implements RPC.
func (f *fakeRPC) Request(m jrpc2.Method, resp interface{}) error {
	f.mu.Lock()
	f.calls[m.Name()] = append(f.calls[m.Name()], m)
	handler, ok := f.handlers[m.Name()]
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("unexpected call to %v", m.Name())
	}

	result, err := handler(m)
	if err != nil {
		return err
	}

	var raw []byte
	if s, ok := result.(string); ok {
		raw = []byte(s)
	} else {
		raw, err = json.Marshal(result)
		if err != nil {
			return err
		}
	}

	return json.Unmarshal(raw, resp)
}

func newTestNode(t *testing.T, rpc *fakeRPC) *Node {
	t.Helper()

	return NewNode(&Config{
		RPC:                  rpc,
		Net:                  &chaincfg.RegressionNetParams,
		Seed:                 make([]byte, 32),
		Clock:                clock.NewDefaultClock(),
		BalanceRetries:       3,
		BalanceRetryInterval: time.Millisecond,
	})
}
