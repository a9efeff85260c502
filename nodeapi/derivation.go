package nodeapi

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// DeriveBip32Key walks path from the master key of seed using standard
// BIP32 child derivation.
func DeriveBip32Key(seed []byte, net *chaincfg.Params,
	path []uint32) (*hdkeychain.ExtendedKey, error) {

	return derive(seed, net, path, (*hdkeychain.ExtendedKey).Derive)
}

// LegacyDeriveBip32Key walks path using the non standard derivation that
// drops leading zero bytes of private keys. Wallets created before the fix
// encrypted their credentials with keys derived this way.
func LegacyDeriveBip32Key(seed []byte, net *chaincfg.Params,
	path []uint32) (*hdkeychain.ExtendedKey, error) {

	return derive(
		seed, net, path, (*hdkeychain.ExtendedKey).DeriveNonStandard,
	)
}

func derive(seed []byte, net *chaincfg.Params, path []uint32,
	step func(*hdkeychain.ExtendedKey, uint32) (*hdkeychain.ExtendedKey,
		error)) (*hdkeychain.ExtendedKey, error) {

	key, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, err
	}

	for _, index := range path {
		key, err = step(key, index)
		if err != nil {
			return nil, err
		}
	}

	return key, nil
}
