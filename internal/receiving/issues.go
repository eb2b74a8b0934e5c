package receiving

import (
	"fmt"
	"strings"
)

// IssueCode identifies a validation rule.
type IssueCode string

const (
	IssueItemMissing          IssueCode = "item_missing"
	IssuePackPartial          IssueCode = "pack_partial"
	IssuePackOversized        IssueCode = "pack_oversized"
	IssueBatchMissing         IssueCode = "batch_missing"
	IssueQuantityNotPositive  IssueCode = "quantity_not_positive"
	IssueFreeQuantityNegative IssueCode = "free_quantity_negative"
	IssueCostNegative         IssueCode = "cost_negative"
	IssueMRPNegative          IssueCode = "mrp_negative"

	IssueSupplierMissing     IssueCode = "supplier_missing"
	IssueLocationMissing     IssueCode = "location_missing"
	IssueLinesMissing        IssueCode = "lines_missing"
	IssueVarianceUnexplained IssueCode = "variance_unexplained"
)

// DocumentLevel marks an issue that belongs to the header rather than a line.
const DocumentLevel = -1

// Issue is one failed rule. Line is the zero-based line index or DocumentLevel.
type Issue struct {
	Line    int       `json:"line"`
	Field   Field     `json:"field,omitempty"`
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if i.Line == DocumentLevel {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("line %d %s: %s", i.Line+1, i.Code, i.Message)
}

// DetectLineIssues checks a single line and returns every failed rule.
func DetectLineIssues(index int, line ReceiptLine) []Issue {
	var issues []Issue
	add := func(field Field, code IssueCode, msg string) {
		issues = append(issues, Issue{Line: index, Field: field, Code: code, Message: msg})
	}

	if line.ItemID <= 0 {
		add(FieldItem, IssueItemMissing, "item is required")
	}
	res := ResolvePack(line, FieldNone)
	if res.IsPartial {
		add(FieldPacks, IssuePackPartial, "packs, strips per pack and units per strip must all be set")
	}
	if res.IsOversized {
		add(FieldPacks, IssuePackOversized, fmt.Sprintf("packs x strips x units must not exceed %d", MaxPackUnits))
	}
	if strings.TrimSpace(line.BatchNumber) == "" {
		add(FieldBatchNumber, IssueBatchMissing, "batch number is required")
	}
	if !EffectiveQuantity(line).IsPositive() && !line.FreeQuantity.IsPositive() {
		add(FieldQuantity, IssueQuantityNotPositive, "quantity or free quantity must be greater than zero")
	}
	if line.FreeQuantity.IsNegative() {
		add(FieldFreeQuantity, IssueFreeQuantityNegative, "free quantity cannot be negative")
	}
	if line.UnitCost.IsNegative() {
		add(FieldUnitCost, IssueCostNegative, "unit cost cannot be negative")
	}
	if line.UnitMRP.IsNegative() {
		add(FieldUnitMRP, IssueMRPNegative, "unit MRP cannot be negative")
	}
	return issues
}

// Evaluation is the full recompute of a receipt: totals, issues and action gates.
type Evaluation struct {
	Totals         DocumentTotals
	LineIssues     [][]Issue
	DocumentIssues []Issue
	SaveEligible   bool
	PostEligible   bool
}

// Issues flattens document and line issues, document issues first.
func (e Evaluation) Issues() []Issue {
	all := append([]Issue(nil), e.DocumentIssues...)
	for _, issues := range e.LineIssues {
		all = append(all, issues...)
	}
	return all
}

// HasLineIssues reports whether any line failed a rule.
func (e Evaluation) HasLineIssues() bool {
	for _, issues := range e.LineIssues {
		if len(issues) > 0 {
			return true
		}
	}
	return false
}

// Evaluate recomputes totals and issues for a receipt. Lines are evaluated as given;
// callers recompute pack-derived fields first.
func Evaluate(header ReceiptHeader, lines []ReceiptLine) Evaluation {
	eval := Evaluation{
		Totals:     AggregateDocument(header, lines),
		LineIssues: make([][]Issue, len(lines)),
	}
	for i, line := range lines {
		eval.LineIssues[i] = DetectLineIssues(i, line)
	}

	doc := func(code IssueCode, msg string) {
		eval.DocumentIssues = append(eval.DocumentIssues, Issue{Line: DocumentLevel, Code: code, Message: msg})
	}
	if header.SupplierID <= 0 {
		doc(IssueSupplierMissing, "supplier is required")
	}
	if header.LocationID <= 0 {
		doc(IssueLocationMissing, "location is required")
	}
	if len(lines) == 0 {
		doc(IssueLinesMissing, "at least one line is required")
	}
	if eval.Totals.Mismatch && strings.TrimSpace(header.DifferenceReason) == "" {
		doc(IssueVarianceUnexplained, fmt.Sprintf("invoice differs from calculated total by %s; a difference reason is required", fmtAmount(eval.Totals.Variance)))
	}

	eval.SaveEligible = len(eval.DocumentIssues) == 0 && !eval.HasLineIssues()
	eval.PostEligible = eval.SaveEligible && header.IsPersisted()
	return eval
}

// RequireSaveEligible returns a ValidationError with every issue when saving is blocked.
func (e Evaluation) RequireSaveEligible() error {
	if e.SaveEligible {
		return nil
	}
	return &ValidationError{Issues: e.Issues()}
}

// RequirePostEligible returns ErrNotPersisted for a receipt without identity, otherwise a
// ValidationError with every issue when posting is blocked.
func (e Evaluation) RequirePostEligible() error {
	if e.PostEligible {
		return nil
	}
	if e.SaveEligible {
		return ErrNotPersisted
	}
	return &ValidationError{Issues: e.Issues()}
}
