package nodeapi

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/tv42/zbase32"
)

// signedMessagePrefix is prepended to every message before hashing.
const signedMessagePrefix = "Lightning Signed Message:"

// compactSigLen is the length of a header byte plus r and s.
const compactSigLen = 65

// ErrInvalidSignatureLength is returned for signatures that can't be a
// compact recoverable signature.
var ErrInvalidSignatureLength = errors.New("invalid signature length")

// messageDigest returns the double sha256 digest that is signed for msg.
func messageDigest(msg string) []byte {
	return chainhash.DoubleHashB([]byte(signedMessagePrefix + msg))
}

// SignMessageWithKey produces the zbase32 encoded compact recoverable
// signature lightning nodes use for signmessage.
func SignMessageWithKey(key *btcec.PrivateKey, msg string) string {
	// SignCompact already emits the 27+4+recid header byte in front of
	// the 64 byte signature.
	sig := ecdsa.SignCompact(key, messageDigest(msg), true)

	return zbase32.EncodeToString(sig)
}

// VerifyMessage recovers the signer of a zbase32 signature and compares it
// with the expected hex encoded public key.
func VerifyMessage(msg, pubkey, signature string) (bool, error) {
	sig, err := zbase32.DecodeString(signature)
	if err != nil {
		return false, err
	}

	expected, err := hex.DecodeString(pubkey)
	if err != nil {
		return false, err
	}

	if len(sig) != compactSigLen {
		return false, ErrInvalidSignatureLength
	}

	recovered, _, err := ecdsa.RecoverCompact(sig, messageDigest(msg))
	if err != nil {
		return false, nil
	}

	return bytes.Equal(recovered.SerializeCompressed(), expected), nil
}
