package breez

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/cln"
	"github.com/breez/breez-sdk-go/lnurl"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/breez/breez-sdk-go/syncer"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lncfg"
)

var (
	breezDirBase = btcutil.AppDataDir("breez", false)

	defaultNetwork    = "mainnet"
	defaultLogLevel   = "info"
	defaultDBFilename = "breez.db"
	defaultRPCFile    = filepath.Join(
		btcutil.AppDataDir("lightning", false), "bitcoin",
		"lightning-rpc",
	)
)

type clnConfig struct {
	RPCFile string `long:"rpcfile" description:"Path to the lightning-rpc unix socket of the node"`

	MaxFeePercent  float64       `long:"maxfeepercent" description:"Maximum routing fee of outgoing payments in percent of the amount"`
	ExemptFeeMsat  uint64        `long:"exemptfeemsat" description:"Routing fee in msat below which maxfeepercent doesn't apply"`
	PaymentTimeout time.Duration `long:"paymenttimeout" description:"How long the node keeps retrying a payment"`

	BalanceRetries       int           `long:"balanceretries" description:"How many times a sync refetches channels while waiting for a balance change"`
	BalanceRetryInterval time.Duration `long:"balanceretryinterval" description:"Delay between balance refetches"`
}

type lnurlConfig struct {
	Timeout time.Duration `long:"timeout" description:"Timeout of LNURL http requests"`
}

// Config is the configuration of the wallet services.
type Config struct {
	ShowVersion bool   `long:"version" description:"Display version information and exit"`
	Network     string `long:"network" description:"network to run on" choice:"regtest" choice:"testnet" choice:"signet" choice:"mainnet" choice:"simnet"`

	BreezDir string `long:"breezdir" description:"The directory for all of breez's data."`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	SyncInterval time.Duration `long:"syncinterval" description:"Interval of the background sync"`

	Cln *clnConfig `group:"cln" namespace:"cln"`

	Lnurl *lnurlConfig `group:"lnurl" namespace:"lnurl"`

	Sqlite *breezdb.SqliteConfig `group:"sqlite" namespace:"sqlite"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		Network:      defaultNetwork,
		BreezDir:     breezDirBase,
		DebugLevel:   defaultLogLevel,
		SyncInterval: syncer.DefaultSyncInterval,
		Cln: &clnConfig{
			RPCFile:              defaultRPCFile,
			MaxFeePercent:        cln.DefaultMaxFeePercent,
			ExemptFeeMsat:        cln.DefaultExemptFeeMsat,
			PaymentTimeout:       cln.DefaultPaymentTimeout,
			BalanceRetries:       cln.DefaultBalanceRetries,
			BalanceRetryInterval: cln.DefaultBalanceRetryInterval,
		},
		Lnurl: &lnurlConfig{
			Timeout: lnurl.DefaultTimeout,
		},
		Sqlite: &breezdb.SqliteConfig{},
	}
}

// Validate cleans up paths in the config provided and validates it.
func Validate(cfg *Config) error {
	if _, err := nodeapi.ChainParamsFromNetwork(cfg.Network); err != nil {
		return err
	}

	if cfg.Cln == nil || cfg.Lnurl == nil || cfg.Sqlite == nil {
		return fmt.Errorf("incomplete config")
	}

	// Cleanup any paths before we use them.
	cfg.BreezDir = lncfg.CleanAndExpandPath(cfg.BreezDir)
	cfg.Cln.RPCFile = lncfg.CleanAndExpandPath(cfg.Cln.RPCFile)

	// Namespace the data of each network in its own directory.
	dataDir := filepath.Join(cfg.BreezDir, cfg.Network)
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		return err
	}

	if cfg.Sqlite.DatabaseFileName == "" {
		cfg.Sqlite.DatabaseFileName = filepath.Join(
			dataDir, defaultDBFilename,
		)
	} else {
		cfg.Sqlite.DatabaseFileName = lncfg.CleanAndExpandPath(
			cfg.Sqlite.DatabaseFileName,
		)
	}

	if cfg.Cln.MaxFeePercent < 0 || cfg.Cln.MaxFeePercent > 100 {
		return fmt.Errorf("maxfeepercent must be within [0, 100], "+
			"got %v", cfg.Cln.MaxFeePercent)
	}

	if cfg.Cln.BalanceRetries < 0 {
		return fmt.Errorf("balanceretries must not be negative")
	}

	if cfg.SyncInterval <= 0 {
		return fmt.Errorf("syncinterval must be positive")
	}

	return nil
}
