package main

import (
	"context"
	"fmt"

	"github.com/breez/breez-sdk-go/swap"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli"
)

var listSwapsCommand = cli.Command{
	Name:  "list-swaps",
	Usage: "list all swaps in the local database",
	Description: "Allows the user to get a list of all swaps that are " +
		"currently stored in the database",
	Action: listSwaps,
}

func listSwaps(ctx *cli.Context) error {
	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	swaps, err := services.ListSwaps(context.Background())
	if err != nil {
		return err
	}

	printJSON(swaps)
	return nil
}

var swapInvoiceCommand = cli.Command{
	Name:      "swap-invoice",
	Usage:     "create the invoice redeeming a swap",
	ArgsUsage: "address",
	Action:    swapInvoice,
}

func swapInvoice(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "swap-invoice")
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	bolt11, err := services.CreateSwapInvoice(
		context.Background(), ctx.Args().First(),
	)
	if err != nil {
		return err
	}

	fmt.Println(bolt11)
	return nil
}

var feeCommand = cli.Command{
	Name:      "fee",
	Usage:     "compute the service fee of a swap out",
	ArgsUsage: "amt",
	Description: "Shows the fee charged on an invoice of amt satoshis " +
		"and the invoice amount that leaves amt after the fee.",
	Flags: []cli.Flag{
		cli.Float64Flag{
			Name:  "percent",
			Value: 0.5,
			Usage: "the service fee in percent",
		},
	},
	Action: fee,
}

func fee(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "fee")
	}

	amt, err := parseAmt(ctx.Args().First())
	if err != nil {
		return err
	}

	percent := ctx.Float64("percent")
	if percent < 0 || percent >= 100 {
		return fmt.Errorf("percent must be within [0, 100)")
	}

	serviceFee := swap.GetServiceFeeSat(amt, percent)
	printJSON(map[string]btcutil.Amount{
		"service_fee_sat":    serviceFee,
		"amount_minus_fee":   amt - serviceFee,
		"invoice_amount_sat": swap.GetInvoiceAmountSat(amt, percent),
	})

	return nil
}
