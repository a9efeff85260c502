package swap

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
)

// GetServiceFeeSat returns the fee the swap service charges on an invoice of
// the given amount. feePercent is a percentage, e.g. 0.5 for half a percent.
// The fee is always rounded up.
func GetServiceFeeSat(invoiceAmount btcutil.Amount,
	feePercent float64) btcutil.Amount {

	return btcutil.Amount(
		math.Ceil(float64(invoiceAmount) * feePercent / 100),
	)
}

// GetInvoiceAmountSat recovers the invoice amount from an amount that
// already had the service fee deducted.
//
// Because GetServiceFeeSat rounds up, two neighbouring invoice amounts can
// leave the same amount after the fee. For fee percentages up to 50 the
// result is therefore either the original invoice amount or one less;
// callers can't tell which. Higher percentages can miss by more.
func GetInvoiceAmountSat(amountMinusFee btcutil.Amount,
	feePercent float64) btcutil.Amount {

	return btcutil.Amount(
		math.Ceil(float64(amountMinusFee) * 100 / (100 - feePercent)),
	)
}
