package receiving

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptLineEvent describes one posted line in canonical units.
type ReceiptLineEvent struct {
	ItemID              int64           `json:"item_id"`
	PurchaseOrderItemID int64           `json:"purchase_order_item_id,omitempty"`
	BatchNumber         string          `json:"batch_number"`
	ExpiryDate          *time.Time      `json:"expiry_date,omitempty"`
	Quantity            decimal.Decimal `json:"quantity"`
	FreeQuantity        decimal.Decimal `json:"free_quantity"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	UnitMRP             decimal.Decimal `json:"unit_mrp"`
	NetAmount           decimal.Decimal `json:"net_amount"`
}

// ReceiptPostedEvent is the validated payload handed to the inventory system. Stock
// effects happen entirely on the receiving side of the commit boundary.
type ReceiptPostedEvent struct {
	ID               int64              `json:"id"`
	Number           string             `json:"number"`
	PurchaseOrderID  int64              `json:"purchase_order_id,omitempty"`
	SupplierID       int64              `json:"supplier_id"`
	LocationID       int64              `json:"location_id"`
	InvoiceNumber    string             `json:"invoice_number,omitempty"`
	ReceivedAt       time.Time          `json:"received_at"`
	PostedAt         time.Time          `json:"posted_at"`
	Calculated       decimal.Decimal    `json:"calculated"`
	InvoiceAmount    decimal.Decimal    `json:"invoice_amount"`
	Variance         decimal.Decimal    `json:"variance"`
	DifferenceReason string             `json:"difference_reason,omitempty"`
	Lines            []ReceiptLineEvent `json:"lines"`
}

// CommitPort receives posted receipts for stock integration.
type CommitPort interface {
	CommitReceipt(ctx context.Context, evt ReceiptPostedEvent) error
}

func newPostedEvent(header ReceiptHeader, lines []ReceiptLine, totals DocumentTotals, postedAt time.Time) ReceiptPostedEvent {
	evt := ReceiptPostedEvent{
		ID:               header.ID,
		Number:           header.Number,
		PurchaseOrderID:  header.PurchaseOrderID,
		SupplierID:       header.SupplierID,
		LocationID:       header.LocationID,
		InvoiceNumber:    header.InvoiceNumber,
		ReceivedAt:       header.ReceivedDate,
		PostedAt:         postedAt,
		Calculated:       totals.Calculated,
		InvoiceAmount:    totals.InvoiceAmount,
		Variance:         totals.Variance,
		DifferenceReason: header.DifferenceReason,
		Lines:            make([]ReceiptLineEvent, 0, len(lines)),
	}
	for i, line := range lines {
		evt.Lines = append(evt.Lines, ReceiptLineEvent{
			ItemID:              line.ItemID,
			PurchaseOrderItemID: line.PurchaseOrderItemID,
			BatchNumber:         line.BatchNumber,
			ExpiryDate:          line.ExpiryDate,
			Quantity:            EffectiveQuantity(line),
			FreeQuantity:        line.FreeQuantity,
			UnitCost:            line.UnitCost,
			UnitMRP:             line.UnitMRP,
			NetAmount:           totals.Lines[i].Net,
		})
	}
	return evt
}
