package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/urfave/cli"
)

var listPaymentsCommand = cli.Command{
	Name:  "list-payments",
	Usage: "list the synced payments, newest first",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "filter",
			Value: "all",
			Usage: "which payments to list: all, sent or received",
		},
		cli.Int64Flag{
			Name:  "from",
			Usage: "only list payments after this unix timestamp",
		},
		cli.Int64Flag{
			Name:  "to",
			Usage: "only list payments before this unix timestamp",
		},
	},
	Action: listPayments,
}

func parseFilter(filter string) (nodeapi.PaymentTypeFilter, error) {
	switch filter {
	case "all":
		return nodeapi.PaymentTypeFilterAll, nil

	case "sent":
		return nodeapi.PaymentTypeFilterSent, nil

	case "received":
		return nodeapi.PaymentTypeFilterReceived, nil

	default:
		return 0, fmt.Errorf("unknown filter %q", filter)
	}
}

func listPayments(ctx *cli.Context) error {
	filter, err := parseFilter(ctx.String("filter"))
	if err != nil {
		return err
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	payments, err := services.ListPayments(
		context.Background(), &breezdb.ListPaymentsRequest{
			Filter:   filter,
			FromTime: ctx.Int64("from"),
			ToTime:   ctx.Int64("to"),
		},
	)
	if err != nil {
		return err
	}

	printJSON(payments)
	return nil
}

var sendPaymentCommand = cli.Command{
	Name:      "send-payment",
	Usage:     "pay a bolt11 invoice",
	ArgsUsage: "bolt11",
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name:  "amount_msat",
			Usage: "the amount to pay for zero amount invoices",
		},
	},
	Action: sendPayment,
}

func sendPayment(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "send-payment")
	}

	var amountMsat *uint64
	if ctx.IsSet("amount_msat") {
		amt := ctx.Uint64("amount_msat")
		amountMsat = &amt
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := services.SendPayment(
		context.Background(), ctx.Args().First(), amountMsat,
	)
	if err != nil {
		return err
	}

	printJSON(resp)
	return nil
}

var receivePaymentCommand = cli.Command{
	Name:      "receive-payment",
	Usage:     "create an invoice",
	ArgsUsage: "amount_msat description",
	Flags: []cli.Flag{
		cli.UintFlag{
			Name:  "expiry",
			Usage: "the invoice expiry in seconds",
		},
	},
	Action: receivePayment,
}

func receivePayment(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "receive-payment")
	}
	args := ctx.Args()

	amountMsat, err := strconv.ParseUint(args.Get(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %v", err)
	}

	services, cleanup, err := getServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	inv, err := services.ReceivePayment(
		context.Background(), &nodeapi.CreateInvoiceRequest{
			AmountMsat:  amountMsat,
			Description: args.Get(1),
			Expiry:      uint32(ctx.Uint("expiry")),
		},
	)
	if err != nil {
		return err
	}

	printInvoice(inv)
	return nil
}
