package receiving

import "github.com/shopspring/decimal"

// LineCalculation is the priced view of a single line. Every amount is rounded to two
// places at the step it is produced so each line is auditable on its own.
type LineCalculation struct {
	EffectiveQuantity decimal.Decimal
	Gross             decimal.Decimal
	Discount          decimal.Decimal
	TaxableBase       decimal.Decimal
	TaxRate           decimal.Decimal
	Tax               decimal.Decimal
	Net               decimal.Decimal
}

// EffectiveQuantity returns the resolved unit count when the pack configuration is
// complete, the canonical quantity otherwise.
func EffectiveQuantity(line ReceiptLine) decimal.Decimal {
	res := ResolvePack(line, FieldNone)
	if res.IsConfigured {
		return decimal.NewFromInt(res.TotalUnits)
	}
	return line.Quantity
}

// CalculateLine prices one line.
func CalculateLine(line ReceiptLine) LineCalculation {
	qty := EffectiveQuantity(line)
	gross := Round2(qty.Mul(line.UnitCost))

	var discount decimal.Decimal
	switch d := line.Discount(); d.Kind {
	case DiscountAmount:
		discount = Round2(d.Value)
	case DiscountPercent:
		discount = Round2(percentOf(gross, d.Value))
	default:
		discount = decimal.Zero
	}

	taxable := Round2(decimal.Max(decimal.Zero, gross.Sub(discount)))
	rate := line.Tax().Rate
	tax := Round2(percentOf(taxable, rate))

	return LineCalculation{
		EffectiveQuantity: qty,
		Gross:             gross,
		Discount:          discount,
		TaxableBase:       taxable,
		TaxRate:           rate,
		Tax:               tax,
		Net:               Round2(taxable.Add(tax)),
	}
}
