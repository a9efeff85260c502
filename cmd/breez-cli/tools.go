package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/breez/breez-sdk-go/invoice"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli"
)

func parseAmt(text string) (btcutil.Amount, error) {
	amtInt64, err := strconv.ParseInt(text, 10, 64)
	if err != nil || amtInt64 < 0 {
		return 0, fmt.Errorf("invalid amt value")
	}
	return btcutil.Amount(amtInt64), nil
}

var parseInvoiceCommand = cli.Command{
	Name:      "parse-invoice",
	Usage:     "decode a bolt11 invoice",
	ArgsUsage: "bolt11",
	Action:    parseInvoice,
}

func parseInvoice(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "parse-invoice")
	}

	inv, err := invoice.Parse(ctx.Args().First())
	if err != nil {
		return err
	}

	printInvoice(inv)
	return nil
}

// printInvoice prints an invoice with the network by name.
func printInvoice(inv *invoice.LNInvoice) {
	printJSON(struct {
		*invoice.LNInvoice
		Network   string
		ExpiresAt int64
	}{
		LNInvoice: inv,
		Network:   inv.Network.Name,
		ExpiresAt: inv.ExpiresAt().Unix(),
	})
}

var lnurlWithdrawCommand = cli.Command{
	Name:      "lnurl-withdraw",
	Usage:     "withdraw from an LNURL-withdraw service",
	ArgsUsage: "url amount_msat",
	Description: "Fetches the withdraw request from the decoded http url, " +
		"creates an invoice over amount_msat and hands it to the " +
		"service.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "description",
			Usage: "the invoice description, defaults to the one " +
				"of the service",
		},
	},
	Action: lnurlWithdraw,
}

func lnurlWithdraw(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "lnurl-withdraw")
	}
	args := ctx.Args()

	amountMsat, err := strconv.ParseUint(args.Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %v", err)
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := services.FetchLnurlWithdraw(
		context.Background(), args.Get(0),
	)
	if err != nil {
		return err
	}

	res, err := services.LnurlWithdraw(
		context.Background(), req, amountMsat, ctx.String("description"),
	)
	if err != nil {
		return err
	}

	if !res.OK() {
		printJSON(map[string]string{
			"status": "ERROR",
			"reason": res.Error.Reason,
		})

		return nil
	}

	printJSON(map[string]string{
		"status":       "OK",
		"bolt11":       res.Invoice.Bolt11,
		"payment_hash": res.Invoice.PaymentHash,
	})

	return nil
}

var mnemonicToSeedCommand = cli.Command{
	Name:      "mnemonic-to-seed",
	Usage:     "print the hex wallet seed of a BIP39 mnemonic",
	ArgsUsage: "mnemonic",
	Action:    mnemonicToSeed,
}

func mnemonicToSeed(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "mnemonic-to-seed")
	}

	seed, err := bip39.NewSeedWithErrorChecking(ctx.Args().First(), "")
	if err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(seed))
	return nil
}
