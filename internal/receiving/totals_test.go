package receiving

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func unitLine(qty, cost string) ReceiptLine {
	return ReceiptLine{ItemID: 1, BatchNumber: "B", Quantity: dec(qty), UnitCost: dec(cost)}
}

func TestAggregateDocumentZeroLinesIsExtrasOnly(t *testing.T) {
	header := ReceiptHeader{FreightAmount: dec("12.5"), OtherCharges: dec("3"), RoundOff: dec("-0.25")}
	totals := AggregateDocument(header, nil)

	requireDecimal(t, "15.25", totals.Extras)
	requireDecimal(t, "15.25", totals.Calculated)
	require.True(t, totals.Subtotal.IsZero())
	require.Empty(t, totals.Lines)
	require.False(t, totals.Mismatch, "no invoice amount means no mismatch")
}

func TestAggregateDocumentPackScenario(t *testing.T) {
	line, _ := ApplyPatch(packLine(), LinePatch{}, FieldPackCost)
	totals := AggregateDocument(ReceiptHeader{SupplierInvoiceAmount: dec("100")}, []ReceiptLine{line})

	requireDecimal(t, "100", totals.Calculated)
	requireDecimal(t, "0", totals.Variance)
	require.False(t, totals.Mismatch)
}

func TestAggregateDocumentTotalsConsistency(t *testing.T) {
	lines := []ReceiptLine{
		unitLine("3", "0.335"),
		{ItemID: 2, BatchNumber: "C", Quantity: dec("7"), UnitCost: dec("13.13"), DiscountPercent: dec("7.5"), CGSTPercent: dec("6"), SGSTPercent: dec("6")},
		{ItemID: 3, BatchNumber: "D", Quantity: dec("1"), UnitCost: dec("99.99"), DiscountAmount: dec("0.99"), TaxPercent: dec("5")},
	}
	header := ReceiptHeader{FreightAmount: dec("4.445"), OtherCharges: dec("1"), RoundOff: dec("0.4")}
	totals := AggregateDocument(header, lines)

	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(CalculateLine(line).Net)
	}
	want := Round2(sum.Add(header.FreightAmount).Add(header.OtherCharges).Add(header.RoundOff))
	// Extras are rounded as one amount, so both sides agree.
	require.Truef(t, want.Equal(totals.Calculated), "want %s got %s", want, totals.Calculated)
	require.Len(t, totals.Lines, 3)
}

func TestAggregateDocumentMismatchBoundary(t *testing.T) {
	lines := []ReceiptLine{unitLine("1", "100")}

	cases := []struct {
		invoice  string
		mismatch bool
	}{
		{"100.01", true},
		{"99.99", true},
		{"100.009", false},
		{"99.991", false},
		{"100", false},
		{"0", false},
		{"150", true},
	}
	for _, tc := range cases {
		totals := AggregateDocument(ReceiptHeader{SupplierInvoiceAmount: dec(tc.invoice)}, lines)
		require.Equal(t, tc.mismatch, totals.Mismatch, tc.invoice)
	}

	totals := AggregateDocument(ReceiptHeader{SupplierInvoiceAmount: dec("100.01")}, lines)
	requireDecimal(t, "0.01", totals.Variance)
	totals = AggregateDocument(ReceiptHeader{SupplierInvoiceAmount: dec("90")}, lines)
	requireDecimal(t, "-10", totals.Variance)
}

func TestAggregateDocumentSums(t *testing.T) {
	a := ReceiptLine{ItemID: 1, BatchNumber: "A", Quantity: dec("10"), UnitCost: dec("10"), DiscountPercent: dec("10"), TaxPercent: dec("12")}
	b := ReceiptLine{ItemID: 2, BatchNumber: "B", Quantity: dec("2"), UnitCost: dec("50"), TaxPercent: dec("5")}
	totals := AggregateDocument(ReceiptHeader{FreightAmount: dec("10")}, []ReceiptLine{a, b})

	requireDecimal(t, "200", totals.Subtotal)
	requireDecimal(t, "10", totals.DiscountTotal)
	requireDecimal(t, "15.80", totals.TaxTotal)
	requireDecimal(t, "205.80", totals.NetLines)
	requireDecimal(t, "215.80", totals.Calculated)
}
