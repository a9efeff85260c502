package breez

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreezDir = t.TempDir()
	cfg.Network = "regtest"

	require.NoError(t, Validate(&cfg))
	require.Equal(t,
		filepath.Join(cfg.BreezDir, "regtest", defaultDBFilename),
		cfg.Sqlite.DatabaseFileName,
	)
	require.DirExists(t, filepath.Join(cfg.BreezDir, "regtest"))

	// An explicit database file is kept.
	cfg = DefaultConfig()
	cfg.BreezDir = t.TempDir()
	cfg.Sqlite.DatabaseFileName = filepath.Join(cfg.BreezDir, "my.db")
	require.NoError(t, Validate(&cfg))
	require.Equal(t, filepath.Join(cfg.BreezDir, "my.db"),
		cfg.Sqlite.DatabaseFileName)
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{
			name: "unknown network",
			modify: func(cfg *Config) {
				cfg.Network = "litecoin"
			},
		},
		{
			name: "fee percent",
			modify: func(cfg *Config) {
				cfg.Cln.MaxFeePercent = 101
			},
		},
		{
			name: "negative retries",
			modify: func(cfg *Config) {
				cfg.Cln.BalanceRetries = -1
			},
		},
		{
			name: "sync interval",
			modify: func(cfg *Config) {
				cfg.SyncInterval = 0
			},
		},
		{
			name: "missing group",
			modify: func(cfg *Config) {
				cfg.Lnurl = nil
			},
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BreezDir = t.TempDir()
			test.modify(&cfg)

			require.Error(t, Validate(&cfg))
		})
	}
}
