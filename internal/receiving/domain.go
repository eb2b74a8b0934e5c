package receiving

import (
	"time"

	"github.com/shopspring/decimal"
)

// GRNStatus enumerates goods receipt lifecycle values.
type GRNStatus string

const (
	GRNStatusDraft     GRNStatus = "DRAFT"
	GRNStatusPosted    GRNStatus = "POSTED"
	GRNStatusCancelled GRNStatus = "CANCELLED"
)

// IsValid reports whether the status is known.
func (s GRNStatus) IsValid() bool {
	switch s {
	case GRNStatusDraft, GRNStatusPosted, GRNStatusCancelled:
		return true
	}
	return false
}

// IsEditable reports whether the receipt may still be mutated.
func (s GRNStatus) IsEditable() bool {
	return s == GRNStatusDraft
}

// CanTransitionTo checks the draft/post workflow. POSTED and CANCELLED are terminal.
func (s GRNStatus) CanTransitionTo(target GRNStatus) bool {
	switch s {
	case GRNStatusDraft:
		return target == GRNStatusPosted || target == GRNStatusCancelled
	case GRNStatusPosted, GRNStatusCancelled:
		return false
	}
	return false
}

// ReceiptHeader is one goods receipt document.
type ReceiptHeader struct {
	ID                    int64
	Number                string
	PurchaseOrderID       int64
	SupplierID            int64
	LocationID            int64
	ReceivedDate          time.Time
	InvoiceNumber         string
	InvoiceDate           *time.Time
	SupplierInvoiceAmount decimal.Decimal
	FreightAmount         decimal.Decimal
	OtherCharges          decimal.Decimal
	RoundOff              decimal.Decimal
	Notes                 string
	DifferenceReason      string
	Status                GRNStatus
	Version               int64
	PostedAt              *time.Time
}

// IsPersisted reports whether the header has an identity assigned by the repository.
func (h ReceiptHeader) IsPersisted() bool {
	return h.ID != 0
}

// ReceiptLine is one batch entry on a receipt. Quantity, FreeQuantity, UnitCost and
// UnitMRP are expressed in the canonical stock unit (e.g. tablet).
type ReceiptLine struct {
	ItemID              int64
	PurchaseOrderItemID int64
	BatchNumber         string
	ExpiryDate          *time.Time

	Quantity     decimal.Decimal
	FreeQuantity decimal.Decimal
	UnitCost     decimal.Decimal
	UnitMRP      decimal.Decimal

	// Pack configuration is presentation-only and never persisted.
	Packs         int64
	StripsPerPack int64
	UnitsPerStrip int64
	PackCost      decimal.Decimal
	PackMRP       decimal.Decimal

	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	CGSTPercent     decimal.Decimal
	SGSTPercent     decimal.Decimal
	IGSTPercent     decimal.Decimal
	TaxPercent      decimal.Decimal
	Scheme          string
	Remarks         string
}

// HasPackFields reports whether any pack-related input is non-zero.
func (l ReceiptLine) HasPackFields() bool {
	return l.Packs != 0 || l.StripsPerPack != 0 || l.UnitsPerStrip != 0 ||
		!l.PackCost.IsZero() || !l.PackMRP.IsZero()
}

// ClearPack drops the presentation-only pack configuration.
func (l ReceiptLine) ClearPack() ReceiptLine {
	l.Packs, l.StripsPerPack, l.UnitsPerStrip = 0, 0, 0
	l.PackCost, l.PackMRP = decimal.Zero, decimal.Zero
	return l
}

// DiscountKind tags how a line discount is expressed.
type DiscountKind string

const (
	DiscountNone    DiscountKind = "NONE"
	DiscountPercent DiscountKind = "PERCENT"
	DiscountAmount  DiscountKind = "AMOUNT"
)

// Discount is the resolved line discount.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Discount resolves the raw discount fields. A positive amount wins over a percentage.
func (l ReceiptLine) Discount() Discount {
	switch {
	case l.DiscountAmount.IsPositive():
		return Discount{Kind: DiscountAmount, Value: l.DiscountAmount}
	case l.DiscountPercent.IsPositive():
		return Discount{Kind: DiscountPercent, Value: l.DiscountPercent}
	}
	return Discount{Kind: DiscountNone, Value: decimal.Zero}
}

// TaxKind tags how a line tax rate is expressed.
type TaxKind string

const (
	TaxNone  TaxKind = "NONE"
	TaxSplit TaxKind = "SPLIT"
	TaxFlat  TaxKind = "FLAT"
)

// TaxRate is the resolved line tax rate in percent.
type TaxRate struct {
	Kind TaxKind
	Rate decimal.Decimal
}

// Tax resolves the raw tax fields. A positive CGST+SGST+IGST split wins over the flat rate.
func (l ReceiptLine) Tax() TaxRate {
	split := l.CGSTPercent.Add(l.SGSTPercent).Add(l.IGSTPercent)
	if split.IsPositive() {
		return TaxRate{Kind: TaxSplit, Rate: split}
	}
	if l.TaxPercent.IsPositive() {
		return TaxRate{Kind: TaxFlat, Rate: l.TaxPercent}
	}
	return TaxRate{Kind: TaxNone, Rate: decimal.Zero}
}

// Receipt bundles a header with its ordered lines.
type Receipt struct {
	Header ReceiptHeader
	Lines  []ReceiptLine
}

// PendingOrderItem is a purchase order line still awaiting receipt, as delivered by the
// upstream order lookup.
type PendingOrderItem struct {
	PurchaseOrderItemID int64
	ItemID              int64
	PendingQuantity     decimal.Decimal
	UnitCost            decimal.Decimal
	UnitMRP             decimal.Decimal
	TaxPercent          decimal.Decimal
	CGSTPercent         decimal.Decimal
	SGSTPercent         decimal.Decimal
	IGSTPercent         decimal.Decimal
	DiscountPercent     decimal.Decimal
}

// LineFromOrder seeds a receipt line from a pending order item. The line carries no pack
// configuration, so its canonical quantity stays user-authoritative.
func LineFromOrder(item PendingOrderItem) ReceiptLine {
	return ReceiptLine{
		ItemID:              item.ItemID,
		PurchaseOrderItemID: item.PurchaseOrderItemID,
		Quantity:            item.PendingQuantity,
		UnitCost:            item.UnitCost,
		UnitMRP:             item.UnitMRP,
		TaxPercent:          item.TaxPercent,
		CGSTPercent:         item.CGSTPercent,
		SGSTPercent:         item.SGSTPercent,
		IGSTPercent:         item.IGSTPercent,
		DiscountPercent:     item.DiscountPercent,
	}
}
