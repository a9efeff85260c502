// breez-plugin runs the wallet services inside lightningd as a Core
// Lightning plugin. Custom messages of peers arrive through the plugin's
// custommsg hook.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	breez "github.com/breez/breez-sdk-go"
	"github.com/breez/breez-sdk-go/cln"
	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigFilename = "breez.conf"

	mnemonicEnv = "BREEZ_MNEMONIC"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[breez-plugin] %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	plugin := cln.NewPlugin()

	stopped := make(chan error, 1)
	go func() {
		stopped <- plugin.Start(os.Stdin, os.Stdout)
	}()
	defer plugin.Stop()

	var params *cln.PluginInit
	select {
	case params = <-plugin.Initialized():
	case err := <-stopped:
		return err
	}

	cfg, err := loadConfig(params)
	if err != nil {
		return err
	}

	// lightningd adds everything the plugin writes to stderr to its log.
	backend := btclog.NewBackend(os.Stderr)
	if err := breez.SetupLoggers(backend, cfg.DebugLevel); err != nil {
		return err
	}
	log := backend.Logger("PLGN")

	seed, err := seedFromMnemonic(params, os.Getenv(mnemonicEnv))
	if err != nil {
		return err
	}

	services, cleanup, err := breez.New(cfg, seed, breez.WithPlugin(plugin))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return services.Run(ctx)
	})
	g.Go(func() error {
		messages, err := services.StreamCustomMessages(ctx)
		if err != nil {
			log.Errorf("Unable to stream custom messages: %v", err)
			return nil
		}

		for msg := range messages {
			log.Infof("Custom message type %d from %v, %d bytes",
				msg.MessageType, msg.PeerID, len(msg.Payload))
		}

		return nil
	})
	g.Go(func() error {
		// lightningd closes stdin on shutdown.
		select {
		case err := <-stopped:
			log.Infof("Plugin stopped")
			cancel()

			return err

		case <-ctx.Done():
			return nil
		}
	})

	return g.Wait()
}

// loadConfig builds the wallet config from what lightningd passed on init
// and the config file of the network.
func loadConfig(params *cln.PluginInit) (*breez.Config, error) {
	cfg := breez.DefaultConfig()
	cfg.Network = params.WalletNetwork()

	if dir, ok := params.Options[cln.OptionBreezDir]; ok && dir != "" {
		cfg.BreezDir = dir
	}

	configFile := filepath.Join(
		cfg.BreezDir, cfg.Network, defaultConfigFilename,
	)
	if err := flags.IniParse(configFile, &cfg); err != nil {
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
	}

	// The node we run in decides the network and the socket.
	cfg.Network = params.WalletNetwork()
	cfg.Cln.RPCFile = params.RPCPath()

	if err := breez.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// seedFromMnemonic prefers the plugin option over the environment.
func seedFromMnemonic(params *cln.PluginInit, env string) ([]byte, error) {
	mnemonic := params.Options[cln.OptionMnemonic]
	if mnemonic == "" {
		mnemonic = env
	}
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic required, set the %v option "+
			"or %v", cln.OptionMnemonic, mnemonicEnv)
	}

	return bip39.NewSeedWithErrorChecking(mnemonic, "")
}
