package receiving

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/receiving/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateReceipt(ctx context.Context, header ReceiptHeader) (int64, error)
	UpdateReceipt(ctx context.Context, header ReceiptHeader) (int64, error)
	ReplaceLines(ctx context.Context, receiptID int64, lines []ReceiptLine) error
	MarkPosted(ctx context.Context, id, version int64, differenceReason string, postedAt time.Time) error
}

type txRepo struct {
	tx pgx.Tx
}

const serializationFailure = "40001"

// WithTx wraps callback in repeatable-read transaction. Serialization failures surface
// as ErrConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return ErrConflict
	}
	return err
}

const selectReceipt = `SELECT id, number, COALESCE(po_id, 0), supplier_id, location_id, received_date,
	invoice_number, invoice_date, supplier_invoice_amount::text, freight_amount::text,
	other_charges::text, round_off::text, notes, difference_reason, status, version, posted_at
FROM goods_receipts WHERE id = $1`

const selectReceiptLines = `SELECT item_id, COALESCE(po_item_id, 0), batch_number, expiry_date,
	quantity::text, free_quantity::text, unit_cost::text, unit_mrp::text,
	discount_percent::text, discount_amount::text, cgst_percent::text, sgst_percent::text,
	igst_percent::text, tax_percent::text, scheme, remarks
FROM goods_receipt_lines WHERE receipt_id = $1 ORDER BY line_no`

// GetReceipt returns the receipt header and its lines in entry order.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (ReceiptHeader, []ReceiptLine, error) {
	var h ReceiptHeader
	var status string
	var invoiceAmt, freight, other, roundOff string
	err := r.pool.QueryRow(ctx, selectReceipt, id).Scan(
		&h.ID, &h.Number, &h.PurchaseOrderID, &h.SupplierID, &h.LocationID, &h.ReceivedDate,
		&h.InvoiceNumber, &h.InvoiceDate, &invoiceAmt, &freight,
		&other, &roundOff, &h.Notes, &h.DifferenceReason, &status, &h.Version, &h.PostedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceiptHeader{}, nil, ErrNotFound
		}
		return ReceiptHeader{}, nil, err
	}
	h.Status = GRNStatus(status)
	h.SupplierInvoiceAmount = Coerce(invoiceAmt)
	h.FreightAmount = Coerce(freight)
	h.OtherCharges = Coerce(other)
	h.RoundOff = Coerce(roundOff)

	rows, err := r.pool.Query(ctx, selectReceiptLines, id)
	if err != nil {
		return ReceiptHeader{}, nil, err
	}
	defer rows.Close()
	var lines []ReceiptLine
	for rows.Next() {
		var l ReceiptLine
		var qty, free, cost, mrp string
		var discPct, discAmt, cgst, sgst, igst, tax string
		if err := rows.Scan(
			&l.ItemID, &l.PurchaseOrderItemID, &l.BatchNumber, &l.ExpiryDate,
			&qty, &free, &cost, &mrp,
			&discPct, &discAmt, &cgst, &sgst,
			&igst, &tax, &l.Scheme, &l.Remarks,
		); err != nil {
			return ReceiptHeader{}, nil, err
		}
		l.Quantity, l.FreeQuantity = Coerce(qty), Coerce(free)
		l.UnitCost, l.UnitMRP = Coerce(cost), Coerce(mrp)
		l.DiscountPercent, l.DiscountAmount = Coerce(discPct), Coerce(discAmt)
		l.CGSTPercent, l.SGSTPercent, l.IGSTPercent = Coerce(cgst), Coerce(sgst), Coerce(igst)
		l.TaxPercent = Coerce(tax)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return ReceiptHeader{}, nil, err
	}
	return h, lines, nil
}

// CreateReceipt inserts the header and returns its identity.
func (t *txRepo) CreateReceipt(ctx context.Context, h ReceiptHeader) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO goods_receipts (number, po_id, supplier_id, location_id, received_date,
	invoice_number, invoice_date, supplier_invoice_amount, freight_amount, other_charges, round_off,
	notes, difference_reason, status, version)
VALUES ($1, NULLIF($2::bigint, 0), $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12, $13, $14, $15)
RETURNING id`,
		h.Number, h.PurchaseOrderID, h.SupplierID, h.LocationID, h.ReceivedDate,
		h.InvoiceNumber, h.InvoiceDate, num(h.SupplierInvoiceAmount), num(h.FreightAmount), num(h.OtherCharges), num(h.RoundOff),
		h.Notes, h.DifferenceReason, string(h.Status), h.Version,
	).Scan(&id)
	return id, err
}

// UpdateReceipt overwrites a DRAFT header when the stored version matches and returns
// the bumped version.
func (t *txRepo) UpdateReceipt(ctx context.Context, h ReceiptHeader) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx, `UPDATE goods_receipts SET po_id = NULLIF($2::bigint, 0), supplier_id = $3, location_id = $4,
	received_date = $5, invoice_number = $6, invoice_date = $7, supplier_invoice_amount = $8::numeric,
	freight_amount = $9::numeric, other_charges = $10::numeric, round_off = $11::numeric, notes = $12,
	difference_reason = $13, version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $14 AND status = 'DRAFT'
RETURNING version`,
		h.ID, h.PurchaseOrderID, h.SupplierID, h.LocationID,
		h.ReceivedDate, h.InvoiceNumber, h.InvoiceDate, num(h.SupplierInvoiceAmount),
		num(h.FreightAmount), num(h.OtherCharges), num(h.RoundOff), h.Notes,
		h.DifferenceReason, h.Version,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrConflict
	}
	return version, err
}

// ReplaceLines rewrites the line set in entry order. Pack configuration is not stored.
func (t *txRepo) ReplaceLines(ctx context.Context, receiptID int64, lines []ReceiptLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM goods_receipt_lines WHERE receipt_id = $1`, receiptID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, l := range lines {
		batch.Queue(`INSERT INTO goods_receipt_lines (receipt_id, line_no, item_id, po_item_id, batch_number, expiry_date,
	quantity, free_quantity, unit_cost, unit_mrp, discount_percent, discount_amount,
	cgst_percent, sgst_percent, igst_percent, tax_percent, scheme, remarks)
VALUES ($1, $2, $3, NULLIF($4::bigint, 0), $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric,
	$13::numeric, $14::numeric, $15::numeric, $16::numeric, $17, $18)`,
			receiptID, i+1, l.ItemID, l.PurchaseOrderItemID, l.BatchNumber, l.ExpiryDate,
			num(EffectiveQuantity(l)), num(l.FreeQuantity), num(l.UnitCost), num(l.UnitMRP), num(l.DiscountPercent), num(l.DiscountAmount),
			num(l.CGSTPercent), num(l.SGSTPercent), num(l.IGSTPercent), num(l.TaxPercent), l.Scheme, l.Remarks,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

// MarkPosted flips a DRAFT receipt to POSTED when the stored version matches.
func (t *txRepo) MarkPosted(ctx context.Context, id, version int64, differenceReason string, postedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE goods_receipts SET status = 'POSTED', difference_reason = $3, posted_at = $4,
	version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $2 AND status = 'DRAFT'`, id, version, differenceReason, postedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func num(d decimal.Decimal) string {
	return d.String()
}
