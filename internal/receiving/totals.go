package receiving

import "github.com/shopspring/decimal"

// MismatchTolerance is the smallest invoice variance treated as a real difference.
var MismatchTolerance = decimal.New(1, -2)

// DocumentTotals aggregates line calculations and document extras.
//
// Variance is rounded to two places while Mismatch compares the unrounded difference, so
// an invoice carrying sub-cent digits can show a variance of 0.01 without a mismatch.
// Receipts that pass through PrepareReceipt have their invoice amount rounded first and
// the two always agree.
type DocumentTotals struct {
	Lines         []LineCalculation
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	NetLines      decimal.Decimal
	Extras        decimal.Decimal
	Calculated    decimal.Decimal
	InvoiceAmount decimal.Decimal
	Variance      decimal.Decimal
	Mismatch      bool
}

// AggregateDocument sums the lines, applies freight, other charges and round-off, and
// compares the result with the supplier invoice amount.
func AggregateDocument(header ReceiptHeader, lines []ReceiptLine) DocumentTotals {
	totals := DocumentTotals{Lines: make([]LineCalculation, 0, len(lines))}
	for _, line := range lines {
		calc := CalculateLine(line)
		totals.Lines = append(totals.Lines, calc)
		totals.Subtotal = totals.Subtotal.Add(calc.Gross)
		totals.DiscountTotal = totals.DiscountTotal.Add(calc.Discount)
		totals.TaxTotal = totals.TaxTotal.Add(calc.Tax)
		totals.NetLines = totals.NetLines.Add(calc.Net)
	}
	totals.Subtotal = Round2(totals.Subtotal)
	totals.DiscountTotal = Round2(totals.DiscountTotal)
	totals.TaxTotal = Round2(totals.TaxTotal)
	totals.NetLines = Round2(totals.NetLines)

	totals.Extras = Round2(header.FreightAmount.Add(header.OtherCharges).Add(header.RoundOff))
	totals.Calculated = Round2(totals.NetLines.Add(totals.Extras))
	totals.InvoiceAmount = header.SupplierInvoiceAmount
	raw := header.SupplierInvoiceAmount.Sub(totals.Calculated)
	totals.Variance = Round2(raw)
	// Mismatch compares the unrounded difference with the tolerance.
	totals.Mismatch = header.SupplierInvoiceAmount.IsPositive() &&
		raw.Abs().GreaterThanOrEqual(MismatchTolerance)
	return totals
}
