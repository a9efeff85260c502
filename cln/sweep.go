package cln

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// witnessInputWeight is the weight a p2wpkh witness adds per input.
	witnessInputWeight = 110

	// vbyteToKw converts a sat/vB fee rate into sat/kw.
	vbyteToKw = 250
)

// ErrInsufficientFunds is returned when the on-chain funds don't cover the
// fee of a sweep.
var ErrInsufficientFunds = errors.New("insufficient funds to pay fees")

// Sweep withdraws all on-chain funds to toAddress and returns the txid.
func (n *Node) Sweep(ctx context.Context, toAddress string,
	satPerVbyte uint32) ([]byte, error) {

	var resp WithdrawResponse
	err := n.call(ctx, &WithdrawRequest{
		Destination: toAddress,
		Satoshi:     "all",
		FeeRate:     fmt.Sprintf("%dperkw", satPerVbyte*vbyteToKw),
	}, &resp)
	if err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	txid, err := hex.DecodeString(resp.TxID)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrGeneric, err)
	}

	return txid, nil
}

// PrepareSweep estimates the weight and fee of sweeping all unreserved
// on-chain funds to req.ToAddress.
func (n *Node) PrepareSweep(ctx context.Context,
	req *nodeapi.PrepareSweepRequest) (*nodeapi.PrepareSweepResponse, error) {

	var funds ListFundsResponse
	if err := n.call(ctx, &ListFundsRequest{}, &funds); err != nil {
		return nil, nodeapi.Connectivity(err)
	}

	address, err := btcutil.DecodeAddress(req.ToAddress, n.cfg.Net)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrGeneric, err)
	}
	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, nodeapi.NewError(nodeapi.ErrGeneric, err)
	}

	tx := wire.NewMsgTx(2)

	var amountMsat uint64
	for _, output := range funds.Outputs {
		if output.Reserved {
			continue
		}

		hash, err := chainhash.NewHashFromStr(output.TxID)
		if err != nil {
			return nil, nodeapi.NewError(nodeapi.ErrGeneric, err)
		}

		tx.AddTxIn(wire.NewTxIn(
			wire.NewOutPoint(hash, output.Output), nil, nil,
		))
		amountMsat = saturatingAdd(amountMsat, uint64(output.AmountMsat))
	}

	// Millisatoshis can't be swept.
	amountSat := amountMsat / 1000

	tx.AddTxOut(wire.NewTxOut(int64(amountSat), pkScript))

	weight := sweepWeight(tx)
	fee := weight * req.SatPerVbyte / blockchain.WitnessScaleFactor
	if fee >= amountSat {
		return nil, nodeapi.NewError(
			nodeapi.ErrGeneric, ErrInsufficientFunds,
		)
	}

	return &nodeapi.PrepareSweepResponse{
		SweepTxWeight: weight,
		SweepTxFeeSat: fee,
	}, nil
}

// sweepWeight estimates the weight of tx once every input carries a p2wpkh
// witness.
func sweepWeight(tx *wire.MsgTx) uint64 {
	stripped := uint64(tx.SerializeSizeStripped())

	return stripped*blockchain.WitnessScaleFactor +
		witnessInputWeight*uint64(len(tx.TxIn))
}
