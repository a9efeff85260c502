package nodeapi

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// ChainParamsFromNetwork returns chain parameters based on a network name.
// CLN's name for testnet, "testnet", and bitcoind's "test" are both
// accepted.
func ChainParamsFromNetwork(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil

	case "testnet", "test":
		return &chaincfg.TestNet3Params, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}
