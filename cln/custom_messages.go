package cln

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/lightningnetwork/lnd/queue"
)

// customMessageBuffer is the initial buffer of a custom message stream.
const customMessageBuffer = 20

// SendCustomMessage frames msg with its type and sends it to the peer.
func (n *Node) SendCustomMessage(ctx context.Context,
	msg *nodeapi.CustomMessage) error {

	var resp SendCustomMsgResponse
	err := n.call(ctx, &SendCustomMsgRequest{
		NodeID: msg.PeerID,
		Msg:    hex.EncodeToString(nodeapi.EncodeCustomMessage(msg)),
	}, &resp)
	if err != nil {
		return nodeapi.Connectivity(err)
	}

	log.Debugf("sendcustommsg to %v returned status %v", msg.PeerID,
		resp.Status)

	return nil
}

// HandleCustomMessage delivers a message received through CLN's custommsg
// hook to every open stream. payloadHex is the raw message including its
// type prefix. Messages too short to carry a type are dropped.
func (n *Node) HandleCustomMessage(peerID, payloadHex string) error {
	raw, err := hex.DecodeString(payloadHex)
	if err != nil {
		return fmt.Errorf("invalid custom message payload: %w", err)
	}

	msg, err := nodeapi.DecodeCustomMessage(peerID, raw)
	if err != nil {
		log.Debugf("Dropping custom message from %v: %v", peerID, err)
		return nil
	}

	n.subscribersMu.Lock()
	defer n.subscribersMu.Unlock()

	// The queues never block on ChanIn while running, and a queue is only
	// stopped after it was removed under this lock.
	for _, q := range n.subscribers {
		q.ChanIn() <- msg
	}

	return nil
}

// StreamCustomMessages returns a channel with the custom messages received
// from now on. The channel is closed once ctx is done.
func (n *Node) StreamCustomMessages(
	ctx context.Context) (<-chan *nodeapi.CustomMessage, error) {

	q := queue.NewConcurrentQueue(customMessageBuffer)
	q.Start()

	n.subscribersMu.Lock()
	id := n.nextSubID
	n.nextSubID++
	n.subscribers[id] = q
	n.subscribersMu.Unlock()

	out := make(chan *nodeapi.CustomMessage)
	go func() {
		defer close(out)
		defer func() {
			n.subscribersMu.Lock()
			delete(n.subscribers, id)
			n.subscribersMu.Unlock()

			q.Stop()
		}()

		for {
			select {
			case item, ok := <-q.ChanOut():
				if !ok {
					return
				}

				select {
				case out <- item.(*nodeapi.CustomMessage):
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
