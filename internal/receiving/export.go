package receiving

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// WorkbookContentType is the MIME type of WriteWorkbook output.
const WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	exportSheet     = "GRN"
	exportLinesRow  = 9
	exportDateStyle = "2006-01-02"
	// numFmtGrouped is the builtin "#,##0.00" number format.
	numFmtGrouped = 4
)

var exportLineHeader = []any{
	"#", "Item", "Batch", "Expiry", "Quantity", "Free", "Unit Cost", "Unit MRP",
	"Gross", "Discount", "Taxable", "Tax %", "Tax", "Net",
}

// WriteWorkbook renders a receipt with its priced lines and totals as an XLSX workbook.
func WriteWorkbook(w io.Writer, rcpt Receipt, display Display) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	hdr := rcpt.Header
	totals := AggregateDocument(hdr, rcpt.Lines)

	invoiceDate := ""
	if hdr.InvoiceDate != nil {
		invoiceDate = hdr.InvoiceDate.Format(exportDateStyle)
	}
	meta := [][]any{
		{"GRN", hdr.Number},
		{"Status", string(hdr.Status)},
		{"Supplier", hdr.SupplierID},
		{"Location", hdr.LocationID},
		{"Received", hdr.ReceivedDate.Format(exportDateStyle)},
		{"Invoice", hdr.InvoiceNumber},
		{"Invoice Date", invoiceDate},
		{"Currency", display.Currency},
	}
	for i, row := range meta {
		if err := setRow(f, 1, i+1, row); err != nil {
			return err
		}
	}

	if err := setRow(f, 1, exportLinesRow, exportLineHeader); err != nil {
		return err
	}
	for i, line := range rcpt.Lines {
		calc := totals.Lines[i]
		expiry := ""
		if line.ExpiryDate != nil {
			expiry = line.ExpiryDate.Format(exportDateStyle)
		}
		row := []any{
			i + 1, line.ItemID, line.BatchNumber, expiry,
			calc.EffectiveQuantity.InexactFloat64(), line.FreeQuantity.InexactFloat64(),
			line.UnitCost.InexactFloat64(), line.UnitMRP.InexactFloat64(),
			calc.Gross.InexactFloat64(), calc.Discount.InexactFloat64(), calc.TaxableBase.InexactFloat64(),
			calc.TaxRate.InexactFloat64(), calc.Tax.InexactFloat64(), calc.Net.InexactFloat64(),
		}
		if err := setRow(f, 1, exportLinesRow+1+i, row); err != nil {
			return err
		}
	}

	totalsRow := exportLinesRow + len(rcpt.Lines) + 2
	summary := [][]any{
		{"Subtotal", totals.Subtotal.InexactFloat64()},
		{"Discount", totals.DiscountTotal.InexactFloat64()},
		{"Tax", totals.TaxTotal.InexactFloat64()},
		{"Extras", totals.Extras.InexactFloat64()},
		{"Calculated", totals.Calculated.InexactFloat64()},
		{"Invoice Amount", totals.InvoiceAmount.InexactFloat64()},
		{"Variance", totals.Variance.InexactFloat64()},
		{"Difference Reason", hdr.DifferenceReason},
	}
	for i, row := range summary {
		if err := setRow(f, 1, totalsRow+i, row); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtGrouped})
	if err != nil {
		return err
	}
	if len(rcpt.Lines) > 0 {
		from, _ := excelize.CoordinatesToCellName(9, exportLinesRow+1)
		to, _ := excelize.CoordinatesToCellName(len(exportLineHeader), exportLinesRow+len(rcpt.Lines))
		if err := f.SetCellStyle(exportSheet, from, to, style); err != nil {
			return err
		}
	}
	from, _ := excelize.CoordinatesToCellName(2, totalsRow)
	to, _ := excelize.CoordinatesToCellName(2, totalsRow+len(summary)-2)
	if err := f.SetCellStyle(exportSheet, from, to, style); err != nil {
		return err
	}

	return f.Write(w)
}

func setRow(f *excelize.File, col, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(exportSheet, cell, &values)
}
