package nodeapi

import (
	"encoding/binary"
	"errors"
)

// customMessageTypeLen is the size of the big endian type prefix.
const customMessageTypeLen = 2

// ErrCustomMessageTooShort is returned when a raw payload doesn't even carry
// the type prefix.
var ErrCustomMessageTooShort = errors.New("custom message shorter than " +
	"type prefix")

// EncodeCustomMessage prepends the message type to the payload, producing
// the bytes that go over the wire.
func EncodeCustomMessage(msg *CustomMessage) []byte {
	raw := make([]byte, customMessageTypeLen+len(msg.Payload))
	binary.BigEndian.PutUint16(raw, msg.MessageType)
	copy(raw[customMessageTypeLen:], msg.Payload)

	return raw
}

// DecodeCustomMessage splits a raw wire message received from peerID into
// its type and payload.
func DecodeCustomMessage(peerID string, raw []byte) (*CustomMessage, error) {
	if len(raw) < customMessageTypeLen {
		return nil, ErrCustomMessageTooShort
	}

	payload := make([]byte, len(raw)-customMessageTypeLen)
	copy(payload, raw[customMessageTypeLen:])

	return &CustomMessage{
		PeerID:      peerID,
		MessageType: binary.BigEndian.Uint16(raw),
		Payload:     payload,
	}, nil
}
