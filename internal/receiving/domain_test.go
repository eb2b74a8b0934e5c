package receiving

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGRNStatusTransitions(t *testing.T) {
	require.True(t, GRNStatusDraft.IsEditable())
	require.False(t, GRNStatusPosted.IsEditable())
	require.False(t, GRNStatusCancelled.IsEditable())

	require.True(t, GRNStatusDraft.CanTransitionTo(GRNStatusPosted))
	require.True(t, GRNStatusDraft.CanTransitionTo(GRNStatusCancelled))
	require.False(t, GRNStatusDraft.CanTransitionTo(GRNStatusDraft))
	require.False(t, GRNStatusPosted.CanTransitionTo(GRNStatusDraft))
	require.False(t, GRNStatusPosted.CanTransitionTo(GRNStatusCancelled))
	require.False(t, GRNStatusCancelled.CanTransitionTo(GRNStatusPosted))
	require.False(t, GRNStatus("VOID").IsValid())
}

func TestLineDiscountAndTaxResolution(t *testing.T) {
	line := ReceiptLine{DiscountPercent: dec("5"), DiscountAmount: dec("0")}
	require.Equal(t, Discount{Kind: DiscountPercent, Value: dec("5")}, line.Discount())
	line.DiscountAmount = dec("2")
	require.Equal(t, DiscountAmount, line.Discount().Kind)
	require.Equal(t, DiscountNone, ReceiptLine{DiscountPercent: dec("-1")}.Discount().Kind)

	line = ReceiptLine{TaxPercent: dec("12")}
	require.Equal(t, TaxFlat, line.Tax().Kind)
	line.CGSTPercent, line.SGSTPercent = dec("2.5"), dec("2.5")
	tax := line.Tax()
	require.Equal(t, TaxSplit, tax.Kind)
	requireDecimal(t, "5", tax.Rate)
	require.Equal(t, TaxNone, ReceiptLine{}.Tax().Kind)
}

func TestLineFromOrder(t *testing.T) {
	line := LineFromOrder(PendingOrderItem{
		PurchaseOrderItemID: 7,
		ItemID:              3,
		PendingQuantity:     dec("24"),
		UnitCost:            dec("1.25"),
		UnitMRP:             dec("2"),
		TaxPercent:          dec("12"),
	})
	require.False(t, line.HasPackFields())
	require.Equal(t, int64(7), line.PurchaseOrderItemID)
	requireDecimal(t, "24", EffectiveQuantity(line))

	line.BatchNumber = "LOT-9"
	require.Empty(t, DetectLineIssues(0, line))
	requireDecimal(t, "33.6", CalculateLine(line).Net)
}

func TestClearPack(t *testing.T) {
	line := packLine().ClearPack()
	require.False(t, line.HasPackFields())
	require.Equal(t, int64(1), line.ItemID)
}
