package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	breez "github.com/breez/breez-sdk-go"
	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli"
)

const defaultConfigFilename = "breez.conf"

func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(string(b))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[breez-cli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = breez.Version()
	app.Name = "breez-cli"
	app.Usage = "operate a lightning wallet backed by a Core Lightning node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "breezdir",
			Usage: "the directory for all of breez's data",
		},
		cli.StringFlag{
			Name:  "network",
			Usage: "the network the node runs on",
		},
		cli.StringFlag{
			Name:  "rpcfile",
			Usage: "path to the lightning-rpc socket of the node",
		},
		cli.StringFlag{
			Name:  "debuglevel",
			Usage: "logging level of all subsystems",
		},
		cli.StringFlag{
			Name:   "mnemonic",
			EnvVar: "BREEZ_MNEMONIC",
			Usage:  "the BIP39 mnemonic of the node's wallet seed",
		},
	}
	app.Commands = []cli.Command{
		syncCommand, watchCommand, nodeInfoCommand,
		listPaymentsCommand, sendPaymentCommand, receivePaymentCommand,
		listSwapsCommand, swapInvoiceCommand, feeCommand,
		parseInvoiceCommand, lnurlWithdrawCommand, signMessageCommand,
		checkMessageCommand, executeCommandCommand,
		staticBackupCommand, mnemonicToSeedCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

// loadConfig reads the config file of the selected network and applies the
// global flags on top of it.
func loadConfig(ctx *cli.Context) (*breez.Config, error) {
	cfg := breez.DefaultConfig()

	if ctx.GlobalIsSet("breezdir") {
		cfg.BreezDir = ctx.GlobalString("breezdir")
	}
	if ctx.GlobalIsSet("network") {
		cfg.Network = ctx.GlobalString("network")
	}

	configFile := filepath.Join(
		cfg.BreezDir, cfg.Network, defaultConfigFilename,
	)
	if err := flags.IniParse(configFile, &cfg); err != nil {
		// A missing config file is fine, a broken one isn't.
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
	}

	// The flags win over the config file.
	if ctx.GlobalIsSet("network") {
		cfg.Network = ctx.GlobalString("network")
	}
	if ctx.GlobalIsSet("rpcfile") {
		cfg.Cln.RPCFile = ctx.GlobalString("rpcfile")
	}
	if ctx.GlobalIsSet("debuglevel") {
		cfg.DebugLevel = ctx.GlobalString("debuglevel")
	}

	if err := breez.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getServices opens the wallet services. The returned function releases
// them.
func getServices(ctx *cli.Context) (*breez.Services, func(), error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	backend := btclog.NewBackend(os.Stderr)
	if err := breez.SetupLoggers(backend, cfg.DebugLevel); err != nil {
		return nil, nil, err
	}

	mnemonic := ctx.GlobalString("mnemonic")
	if mnemonic == "" {
		return nil, nil, fmt.Errorf("mnemonic required, set " +
			"--mnemonic or BREEZ_MNEMONIC")
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, nil, err
	}

	return breez.New(cfg, seed)
}
