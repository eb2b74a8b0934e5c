package receiving

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func codes(issues []Issue) []IssueCode {
	out := make([]IssueCode, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}

func validHeader() ReceiptHeader {
	return ReceiptHeader{SupplierID: 1, LocationID: 2}
}

func TestDetectLineIssuesCollectsEveryRule(t *testing.T) {
	issues := DetectLineIssues(3, ReceiptLine{
		BatchNumber:  "   ",
		Packs:        1,
		FreeQuantity: dec("-1"),
		UnitCost:     dec("-2"),
		UnitMRP:      dec("-3"),
	})
	require.ElementsMatch(t, []IssueCode{
		IssueItemMissing,
		IssuePackPartial,
		IssueBatchMissing,
		IssueQuantityNotPositive,
		IssueFreeQuantityNegative,
		IssueCostNegative,
		IssueMRPNegative,
	}, codes(issues))
	for _, issue := range issues {
		require.Equal(t, 3, issue.Line)
		require.NotEmpty(t, issue.Message)
	}
}

func TestDetectLineIssuesFreeQuantityOnly(t *testing.T) {
	line := ReceiptLine{ItemID: 1, BatchNumber: "B", FreeQuantity: dec("5")}
	require.Empty(t, DetectLineIssues(0, line))
}

func TestDetectLineIssuesUsesResolvedUnits(t *testing.T) {
	line := packLine()
	line.Quantity = dec("0")
	require.Empty(t, DetectLineIssues(0, line), "configured packs supply the quantity")
}

func TestDetectLineIssuesOversizedPack(t *testing.T) {
	line := packLine()
	line.Packs = 1 << 32
	line.StripsPerPack = 1<<32 + 1
	line.UnitsPerStrip = 1
	line.Quantity = dec("5")

	issues := DetectLineIssues(0, line)
	require.Equal(t, []IssueCode{IssuePackOversized}, codes(issues))
	require.Equal(t, FieldPacks, issues[0].Field)

	eval := Evaluate(validHeader(), []ReceiptLine{line})
	require.False(t, eval.SaveEligible)
}

func TestEvaluateDocumentIssues(t *testing.T) {
	eval := Evaluate(ReceiptHeader{}, nil)
	require.ElementsMatch(t, []IssueCode{IssueSupplierMissing, IssueLocationMissing, IssueLinesMissing}, codes(eval.DocumentIssues))
	require.False(t, eval.SaveEligible)
	require.False(t, eval.PostEligible)

	err := eval.RequireSaveEligible()
	require.ErrorIs(t, err, ErrValidationFailed)
	require.False(t, errors.Is(err, ErrVarianceUnexplained))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 3)
}

func TestEvaluateLineIssuesBlockSave(t *testing.T) {
	eval := Evaluate(validHeader(), []ReceiptLine{unitLine("1", "10"), {ItemID: 2}})
	require.True(t, eval.HasLineIssues())
	require.Empty(t, eval.LineIssues[0])
	require.NotEmpty(t, eval.LineIssues[1])
	require.False(t, eval.SaveEligible)
	require.Len(t, eval.Issues(), len(eval.LineIssues[1]))
}

func TestEvaluateVarianceRequiresReason(t *testing.T) {
	header := validHeader()
	header.SupplierInvoiceAmount = dec("110")
	lines := []ReceiptLine{unitLine("10", "10")}

	eval := Evaluate(header, lines)
	require.True(t, eval.Totals.Mismatch)
	require.Equal(t, []IssueCode{IssueVarianceUnexplained}, codes(eval.DocumentIssues))
	require.Contains(t, eval.DocumentIssues[0].Message, "10.00")
	require.Equal(t, DocumentLevel, eval.DocumentIssues[0].Line)
	require.False(t, eval.SaveEligible)

	err := eval.RequireSaveEligible()
	require.ErrorIs(t, err, ErrVarianceUnexplained)
	require.ErrorIs(t, err, ErrValidationFailed)

	header.DifferenceReason = "   "
	require.False(t, Evaluate(header, lines).SaveEligible, "blank reason does not explain a variance")

	header.DifferenceReason = "supplier charged handling"
	eval = Evaluate(header, lines)
	require.True(t, eval.SaveEligible)
	require.False(t, eval.PostEligible, "unsaved receipts cannot be posted")
	require.ErrorIs(t, eval.RequirePostEligible(), ErrNotPersisted)

	header.ID = 9
	eval = Evaluate(header, lines)
	require.True(t, eval.PostEligible)
	require.NoError(t, eval.RequirePostEligible())
}

func TestRequirePostEligiblePrefersValidation(t *testing.T) {
	eval := Evaluate(ReceiptHeader{}, nil)
	err := eval.RequirePostEligible()
	require.ErrorIs(t, err, ErrValidationFailed)
	require.NotErrorIs(t, err, ErrNotPersisted)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Issues: []Issue{
		{Line: DocumentLevel, Code: IssueSupplierMissing, Message: "supplier is required"},
		{Line: 0, Field: FieldBatchNumber, Code: IssueBatchMissing, Message: "batch number is required"},
	}}
	require.Equal(t, "receiving: validation failed: supplier_missing: supplier is required; line 1 batch_missing: batch number is required", err.Error())
	require.Equal(t, ErrValidationFailed.Error(), (&ValidationError{}).Error())
}
