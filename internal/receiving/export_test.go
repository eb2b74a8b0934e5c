package receiving

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	line, _ := ApplyPatch(packLine(), LinePatch{}, FieldPackCost)
	line.TaxPercent = dec("5")
	rcpt := Receipt{
		Header: ReceiptHeader{
			ID:                    1,
			Number:                "GRN-0001",
			Status:                GRNStatusDraft,
			SupplierID:            11,
			LocationID:            3,
			ReceivedDate:          mustDate("2026-03-14"),
			SupplierInvoiceAmount: dec("110"),
			DifferenceReason:      "rounding",
		},
		Lines: []ReceiptLine{line},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, rcpt, Display{Currency: "INR"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	raw := excelize.Options{RawCellValue: true}
	get := func(cell string) string {
		v, err := f.GetCellValue(exportSheet, cell, raw)
		require.NoError(t, err)
		return v
	}
	require.Equal(t, "GRN-0001", get("B1"))
	require.Equal(t, "DRAFT", get("B2"))
	require.Equal(t, "2026-03-14", get("B5"))
	require.Equal(t, "INR", get("B8"))

	require.Equal(t, "Batch", get("C9"))
	require.Equal(t, "B-01", get("C10"))
	require.Equal(t, "200", get("E10"))
	require.Equal(t, "0.5", get("G10"))
	require.Equal(t, "105", get("N10"))

	require.Equal(t, "Calculated", get("A16"))
	require.Equal(t, "105", get("B16"))
	require.Equal(t, "5", get("B18"))
	require.Equal(t, "rounding", get("B19"))
}
