package receiving

import (
	"math/bits"
	"time"

	"github.com/shopspring/decimal"
)

// Field names a line input. It is passed to the pack resolver as the edit source so the
// recompute direction (pack -> unit or unit -> pack) is explicit.
type Field string

const (
	FieldNone            Field = ""
	FieldItem            Field = "item_id"
	FieldBatchNumber     Field = "batch_number"
	FieldExpiryDate      Field = "expiry_date"
	FieldQuantity        Field = "quantity"
	FieldFreeQuantity    Field = "free_quantity"
	FieldUnitCost        Field = "unit_cost"
	FieldUnitMRP         Field = "unit_mrp"
	FieldPacks           Field = "packs"
	FieldStripsPerPack   Field = "strips_per_pack"
	FieldUnitsPerStrip   Field = "units_per_strip"
	FieldPackCost        Field = "pack_cost"
	FieldPackMRP         Field = "pack_mrp"
	FieldDiscountPercent Field = "discount_percent"
	FieldDiscountAmount  Field = "discount_amount"
	FieldTaxPercent      Field = "tax_percent"
	FieldCGSTPercent     Field = "cgst_percent"
	FieldSGSTPercent     Field = "sgst_percent"
	FieldIGSTPercent     Field = "igst_percent"
)

// drivesUnitPrice reports whether editing the field recomputes per-unit pricing.
func (f Field) drivesUnitPrice() bool {
	switch f {
	case FieldPackCost, FieldPackMRP, FieldPacks, FieldStripsPerPack, FieldUnitsPerStrip:
		return true
	}
	return false
}

// drivesPackPrice reports whether editing the field recomputes pack pricing.
func (f Field) drivesPackPrice() bool {
	return f == FieldUnitCost || f == FieldUnitMRP
}

// MaxPackUnits bounds the resolved unit count of one line. The stored quantity column
// holds at most 14 integer digits.
const MaxPackUnits int64 = 1_000_000_000_000

// PackResolution is the derived view of a line's pack configuration.
type PackResolution struct {
	IsConfigured bool
	IsPartial    bool
	// IsOversized marks a complete configuration whose unit count exceeds MaxPackUnits.
	// It is never configured.
	IsOversized bool
	TotalUnits  int64
	TotalStrips int64
	// Denominator divides the line's pack price into a unit price. PackCost and PackMRP
	// price every pack on the line, so this is TotalUnits rather than the per-pack
	// strips x units count.
	Denominator  int64
	PerUnitCost  decimal.Decimal
	PerUnitMRP   decimal.Decimal
	PerStripCost decimal.Decimal
	PerStripMRP  decimal.Decimal
	PackCost     decimal.Decimal
	PackMRP      decimal.Decimal
}

// ResolvePack derives canonical units and consistent unit/pack pricing for a line.
// Values the source does not drive are returned unchanged from the line.
func ResolvePack(line ReceiptLine, source Field) PackResolution {
	return resolvePack(line, source, source)
}

// resolvePack runs the resolver with independent directions for cost and MRP.
func resolvePack(line ReceiptLine, costSource, mrpSource Field) PackResolution {
	res := PackResolution{
		PerUnitCost: line.UnitCost,
		PerUnitMRP:  line.UnitMRP,
		PackCost:    line.PackCost,
		PackMRP:     line.PackMRP,
	}
	complete := line.Packs > 0 && line.StripsPerPack > 0 && line.UnitsPerStrip > 0
	res.IsPartial = line.HasPackFields() && !complete
	if complete {
		strips, okStrips := packProduct(line.Packs, line.StripsPerPack)
		units, okUnits := packProduct(strips, line.UnitsPerStrip)
		if okStrips && okUnits {
			res.IsConfigured = true
			res.TotalStrips = strips
			res.TotalUnits = units
		} else {
			res.IsOversized = true
		}
	}
	res.Denominator = res.TotalUnits

	if res.Denominator > 0 {
		denom := decimal.NewFromInt(res.Denominator)
		switch {
		case costSource.drivesUnitPrice():
			if line.PackCost.IsPositive() {
				res.PerUnitCost = RoundUnit(line.PackCost.Div(denom))
			}
		case costSource.drivesPackPrice():
			if line.UnitCost.IsPositive() {
				res.PackCost = Round2(line.UnitCost.Mul(denom))
			}
		}
		switch {
		case mrpSource.drivesUnitPrice():
			if line.PackMRP.IsPositive() {
				res.PerUnitMRP = RoundUnit(line.PackMRP.Div(denom))
			}
		case mrpSource.drivesPackPrice():
			if line.UnitMRP.IsPositive() {
				res.PackMRP = Round2(line.UnitMRP.Mul(denom))
			}
		}
	}

	if res.TotalStrips > 0 {
		strips := decimal.NewFromInt(res.TotalStrips)
		if res.PackCost.IsPositive() {
			res.PerStripCost = RoundUnit(res.PackCost.Div(strips))
		}
		if res.PackMRP.IsPositive() {
			res.PerStripMRP = RoundUnit(res.PackMRP.Div(strips))
		}
	}
	if line.UnitsPerStrip > 0 {
		units := decimal.NewFromInt(line.UnitsPerStrip)
		if res.PerStripCost.IsZero() && res.PerUnitCost.IsPositive() {
			res.PerStripCost = RoundUnit(res.PerUnitCost.Mul(units))
		}
		if res.PerStripMRP.IsZero() && res.PerUnitMRP.IsPositive() {
			res.PerStripMRP = RoundUnit(res.PerUnitMRP.Mul(units))
		}
	}
	return res
}

// packProduct multiplies two positive counts, failing when the product exceeds
// MaxPackUnits.
func packProduct(a, b int64) (int64, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > uint64(MaxPackUnits) {
		return 0, false
	}
	return int64(lo), true
}

// LinePatch carries the fields changed by one edit. Nil fields are left untouched.
type LinePatch struct {
	ItemID              *int64
	PurchaseOrderItemID *int64
	BatchNumber         *string
	ExpiryDate          *time.Time
	ClearExpiry         bool

	Quantity     *decimal.Decimal
	FreeQuantity *decimal.Decimal
	UnitCost     *decimal.Decimal
	UnitMRP      *decimal.Decimal

	Packs         *int64
	StripsPerPack *int64
	UnitsPerStrip *int64
	PackCost      *decimal.Decimal
	PackMRP       *decimal.Decimal

	DiscountPercent *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	CGSTPercent     *decimal.Decimal
	SGSTPercent     *decimal.Decimal
	IGSTPercent     *decimal.Decimal
	TaxPercent      *decimal.Decimal
	Scheme          *string
	Remarks         *string
}

func (p LinePatch) apply(line ReceiptLine) ReceiptLine {
	setInt := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	setDec := func(dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = *v
		}
	}
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&line.ItemID, p.ItemID)
	setInt(&line.PurchaseOrderItemID, p.PurchaseOrderItemID)
	setStr(&line.BatchNumber, p.BatchNumber)
	if p.ClearExpiry {
		line.ExpiryDate = nil
	} else if p.ExpiryDate != nil {
		expiry := *p.ExpiryDate
		line.ExpiryDate = &expiry
	}
	setDec(&line.Quantity, p.Quantity)
	setDec(&line.FreeQuantity, p.FreeQuantity)
	setDec(&line.UnitCost, p.UnitCost)
	setDec(&line.UnitMRP, p.UnitMRP)
	setInt(&line.Packs, p.Packs)
	setInt(&line.StripsPerPack, p.StripsPerPack)
	setInt(&line.UnitsPerStrip, p.UnitsPerStrip)
	setDec(&line.PackCost, p.PackCost)
	setDec(&line.PackMRP, p.PackMRP)
	setDec(&line.DiscountPercent, p.DiscountPercent)
	setDec(&line.DiscountAmount, p.DiscountAmount)
	setDec(&line.CGSTPercent, p.CGSTPercent)
	setDec(&line.SGSTPercent, p.SGSTPercent)
	setDec(&line.IGSTPercent, p.IGSTPercent)
	setDec(&line.TaxPercent, p.TaxPercent)
	setStr(&line.Scheme, p.Scheme)
	setStr(&line.Remarks, p.Remarks)
	return line
}

// ApplyPatch overlays an edit on the line, re-runs the pack resolver in the direction of
// source and writes the derived values back. While the pack configuration is complete
// the canonical quantity is always overwritten with the resolved unit count.
func ApplyPatch(line ReceiptLine, patch LinePatch, source Field) (ReceiptLine, PackResolution) {
	next := patch.apply(line)
	return applyResolution(next, ResolvePack(next, source))
}

func applyResolution(next ReceiptLine, res PackResolution) (ReceiptLine, PackResolution) {
	next.UnitCost = res.PerUnitCost
	next.UnitMRP = res.PerUnitMRP
	next.PackCost = res.PackCost
	next.PackMRP = res.PackMRP
	if res.IsConfigured {
		next.Quantity = decimal.NewFromInt(res.TotalUnits)
	}
	return next, res
}

// Recompute refreshes derived fields without an edit.
func Recompute(line ReceiptLine) ReceiptLine {
	next, _ := ApplyPatch(line, LinePatch{}, FieldNone)
	return next
}
