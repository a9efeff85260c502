package main

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/signal"
	"github.com/urfave/cli"
)

var syncCommand = cli.Command{
	Name:   "sync",
	Usage:  "pull the node state and payments into the local database",
	Action: syncWallet,
}

func syncWallet(ctx *cli.Context) error {
	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return services.Sync(context.Background())
}

var watchCommand = cli.Command{
	Name:  "watch",
	Usage: "keep syncing until interrupted",
	Description: "Syncs periodically and prints every synced incoming " +
		"payment until Ctrl+C is pressed.",
	Action: watch,
}

func watch(ctx *cli.Context) error {
	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paid := services.Notifications().SubscribeInvoicePaid(runCtx)
	go func() {
		for payment := range paid {
			printJSON(payment)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- services.Run(runCtx)
	}()

	select {
	case <-interceptor.ShutdownChannel():
		fmt.Println("Received SIGINT (Ctrl+C).")
		cancel()

		return <-errChan

	case err := <-errChan:
		return err
	}
}

var nodeInfoCommand = cli.Command{
	Name:   "node-info",
	Usage:  "show the node state of the last sync",
	Action: nodeInfo,
}

func nodeInfo(ctx *cli.Context) error {
	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := services.NodeInfo(context.Background())
	if err != nil {
		return err
	}

	printJSON(state)
	return nil
}

var signMessageCommand = cli.Command{
	Name:      "sign-message",
	Usage:     "sign a message with the node key",
	ArgsUsage: "message",
	Action:    signMessage,
}

func signMessage(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "sign-message")
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sig, err := services.SignMessage(
		context.Background(), ctx.Args().First(),
	)
	if err != nil {
		return err
	}

	fmt.Println(sig)
	return nil
}

var checkMessageCommand = cli.Command{
	Name:      "check-message",
	Usage:     "verify a message signature",
	ArgsUsage: "message pubkey signature",
	Action:    checkMessage,
}

func checkMessage(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.ShowCommandHelp(ctx, "check-message")
	}
	args := ctx.Args()

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	valid, err := services.CheckMessage(
		context.Background(), args.Get(0), args.Get(1), args.Get(2),
	)
	if err != nil {
		return err
	}

	printJSON(map[string]bool{"is_valid": valid})
	return nil
}

var executeCommandCommand = cli.Command{
	Name:      "execute-command",
	Usage:     "run a node command",
	ArgsUsage: "command",
	Description: "Runs one of getinfo, listfunds, listpeers, " +
		"listpeerchannels, listpayments, listinvoices or " +
		"closeallchannels on the node.",
	Action: executeCommand,
}

func executeCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "execute-command")
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := services.ExecuteCommand(
		context.Background(), ctx.Args().First(),
	)
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

var staticBackupCommand = cli.Command{
	Name:   "static-backup",
	Usage:  "show the static channel backup",
	Action: staticBackup,
}

func staticBackup(ctx *cli.Context) error {
	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	backup, err := services.StaticBackup(context.Background())
	if err != nil {
		return err
	}

	printJSON(backup)
	return nil
}
