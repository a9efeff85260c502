package credentials

import (
	"context"
	"testing"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/test"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	ecies "github.com/ecies/go/v2"
	"github.com/stretchr/testify/require"
)

// seedStrategy derives from its own seed, so strategies built from
// different seeds yield different keys.
func seedStrategy(name string, seedByte byte) Strategy {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte
	}

	return Strategy{
		Name: name,
		Derive: func(path []uint32) (*hdkeychain.ExtendedKey, error) {
			return nodeapi.DeriveBip32Key(
				seed, &chaincfg.RegressionNetParams, path,
			)
		},
	}
}

func encryptWith(t *testing.T, strategy Strategy, plaintext []byte) []byte {
	key, err := encryptionKey(strategy)
	require.NoError(t, err)

	encrypted, err := ecies.Encrypt(key.PublicKey, plaintext)
	require.NoError(t, err)

	return encrypted
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	store := breezdb.NewTestDB(t)

	mgr := NewManager(&Config{
		Store:      store,
		Strategies: DefaultStrategies(test.NewMockNode()),
	})

	creds, err := mgr.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, creds)

	require.NoError(t, mgr.Save(ctx, []byte(`{"rune":"abc"}`)))

	stored, err := store.GetCredentials(ctx)
	require.NoError(t, err)
	require.NotContains(t, string(stored), "abc")

	creds, err = mgr.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"rune":"abc"}`), creds)
}

// TestLoadLegacy checks that credentials written with a later strategy are
// read and rewritten with the first one.
func TestLoadLegacy(t *testing.T) {
	ctx := context.Background()
	store := breezdb.NewTestDB(t)

	standard := seedStrategy("standard", 1)
	legacy := seedStrategy("legacy", 2)

	require.NoError(t, store.SetCredentials(
		ctx, encryptWith(t, legacy, []byte("secret")),
	))

	mgr := NewManager(&Config{
		Store:      store,
		Strategies: []Strategy{standard, legacy},
	})
	creds, err := mgr.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), creds)

	// The standard strategy alone can read them now.
	mgr = NewManager(&Config{
		Store:      store,
		Strategies: []Strategy{standard},
	})
	creds, err = mgr.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), creds)
}

func TestLoadUnrecoverable(t *testing.T) {
	ctx := context.Background()
	store := breezdb.NewTestDB(t)

	require.NoError(t, store.SetCredentials(
		ctx, encryptWith(t, seedStrategy("other", 3), []byte("secret")),
	))

	mgr := NewManager(&Config{
		Store:      store,
		Strategies: []Strategy{
			seedStrategy("standard", 1), seedStrategy("legacy", 2),
		},
	})
	_, err := mgr.Load(ctx)
	require.ErrorIs(t, err, ErrUnrecoverableCredentials)

	mgr = NewManager(&Config{Store: store})
	_, err = mgr.Load(ctx)
	require.ErrorIs(t, err, ErrNoStrategies)
	require.ErrorIs(t, mgr.Save(ctx, nil), ErrNoStrategies)
}
