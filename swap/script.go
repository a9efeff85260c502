package swap

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

// NewSwapScript returns the witness script of a swap in address:
//
// OP_HASH160 <ripemd160(swapHash)> OP_EQUAL
// OP_IF
//
//	<swapperKey>
//
// OP_ELSE
//
//	<lockHeight> OP_CHECKSEQUENCEVERIFY OP_DROP
//	<payerKey>
//
// OP_ENDIF
// OP_CHECKSIG
//
// The swapper claims the deposit with the preimage once it paid the
// invoice, the payer can claim it back after lockHeight blocks.
func NewSwapScript(swapHash lntypes.Hash, swapperKey,
	payerKey *btcec.PublicKey, lockHeight int64) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(input.Ripemd160H(swapHash[:]))
	builder.AddOp(txscript.OP_EQUAL)

	builder.AddOp(txscript.OP_IF)
	builder.AddData(swapperKey.SerializeCompressed())

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(lockHeight)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(payerKey.SerializeCompressed())

	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// ScriptAddress returns the P2WSH address of a witness script.
func ScriptAddress(script []byte,
	net *chaincfg.Params) (btcutil.Address, error) {

	scriptHash := sha256.Sum256(script)
	address, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], net)
	if err != nil {
		return nil, fmt.Errorf("script address: %w", err)
	}

	return address, nil
}
