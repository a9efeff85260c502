package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	ecies "github.com/ecies/go/v2"
)

var (
	// ErrUnrecoverableCredentials is returned when none of the key
	// derivation strategies decrypts the stored credentials, meaning the
	// seed doesn't belong to the node that stored them.
	ErrUnrecoverableCredentials = errors.New("failed to decrypt " +
		"credentials, seed doesn't match existing node")

	// ErrNoStrategies is returned by a manager without strategies.
	ErrNoStrategies = errors.New("no key derivation strategies")
)

// EncryptionKeyPath is the derivation path of the credentials key,
// m/140'/0.
var EncryptionKeyPath = []uint32{hdkeychain.HardenedKeyStart + 140, 0}

// KeyDeriver derives keys from the wallet seed.
type KeyDeriver interface {
	DeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey, error)
	LegacyDeriveBip32Key(path []uint32) (*hdkeychain.ExtendedKey, error)
}

// Strategy is one way of deriving the credentials key.
type Strategy struct {
	Name   string
	Derive func(path []uint32) (*hdkeychain.ExtendedKey, error)
}

// DefaultStrategies returns the standard derivation followed by the
// legacy one. New credentials are always written with the first.
func DefaultStrategies(d KeyDeriver) []Strategy {
	return []Strategy{
		{Name: "standard", Derive: d.DeriveBip32Key},
		{Name: "legacy", Derive: d.LegacyDeriveBip32Key},
	}
}

// Store persists the encrypted credentials.
type Store interface {
	// GetCredentials returns the stored blob, or nil.
	GetCredentials(ctx context.Context) ([]byte, error)

	// SetCredentials replaces the stored blob.
	SetCredentials(ctx context.Context, encrypted []byte) error
}

// Config holds the dependencies of a Manager.
type Config struct {
	Store Store

	// Strategies are tried in order when decrypting.
	Strategies []Strategy
}

// Manager encrypts node credentials with a key derived from the wallet
// seed.
type Manager struct {
	cfg *Config
}

// NewManager returns a credentials manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{cfg: cfg}
}

// Load returns the decrypted credentials, or nil if none are stored. Each
// strategy is tried in turn. Credentials only readable by a later strategy
// are rewritten with the first one.
func (m *Manager) Load(ctx context.Context) ([]byte, error) {
	if len(m.cfg.Strategies) == 0 {
		return nil, ErrNoStrategies
	}

	encrypted, err := m.cfg.Store.GetCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if encrypted == nil {
		log.Infof("No stored credentials")
		return nil, nil
	}

	for i, strategy := range m.cfg.Strategies {
		key, err := encryptionKey(strategy)
		if err != nil {
			return nil, err
		}

		plaintext, err := ecies.Decrypt(key, encrypted)
		if err != nil {
			log.Infof("Failed to decrypt credentials with %v key, "+
				"trying next", strategy.Name)

			continue
		}

		if i > 0 {
			log.Infof("Credentials decrypted with %v key, "+
				"re-encrypting", strategy.Name)

			if err := m.Save(ctx, plaintext); err != nil {
				return nil, err
			}
		}

		return plaintext, nil
	}

	return nil, ErrUnrecoverableCredentials
}

// Save encrypts the credentials with the first strategy and stores them.
func (m *Manager) Save(ctx context.Context, plaintext []byte) error {
	if len(m.cfg.Strategies) == 0 {
		return ErrNoStrategies
	}

	key, err := encryptionKey(m.cfg.Strategies[0])
	if err != nil {
		return err
	}

	encrypted, err := ecies.Encrypt(key.PublicKey, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	return m.cfg.Store.SetCredentials(ctx, encrypted)
}

func encryptionKey(strategy Strategy) (*ecies.PrivateKey, error) {
	extKey, err := strategy.Derive(EncryptionKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%v key derivation: %w", strategy.Name,
			err)
	}

	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%v key derivation: %w", strategy.Name,
			err)
	}

	return ecies.NewPrivateKeyFromBytes(privKey.Serialize()), nil
}
