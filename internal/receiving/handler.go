package receiving

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/receiving/internal/platform/httpx"
	"github.com/odyssey-erp/receiving/internal/shared"
)

// Display controls how monetary totals are rendered for people.
type Display struct {
	Currency string
	Locale   language.Tag
}

// Handler manages goods receipt endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	display   Display
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, display Display) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), display: display}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/grns", h.createDraft)
	r.Post("/grns/preview", h.preview)
	r.Get("/grns/{id}", h.fetchDraft)
	r.Get("/grns/{id}/export.xlsx", h.exportDraft)
	r.Put("/grns/{id}", h.updateDraft)
	r.Post("/grns/{id}/post", h.postDraft)
	r.Post("/lines/recompute", h.recomputeLine)
}

// jsonDate accepts "2006-01-02" or RFC3339. Blank and null decode as no date.
type jsonDate struct {
	time *time.Time
}

func (d *jsonDate) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.time = &t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

type lineRequest struct {
	ItemID              Count    `json:"item_id"`
	PurchaseOrderItemID Count    `json:"purchase_order_item_id"`
	BatchNumber         string   `json:"batch_number" validate:"max=64"`
	ExpiryDate          jsonDate `json:"expiry_date"`
	Quantity            Amount   `json:"quantity"`
	FreeQuantity        Amount   `json:"free_quantity"`
	UnitCost            Amount   `json:"unit_cost"`
	UnitMRP             Amount   `json:"unit_mrp"`
	Packs               Count    `json:"packs"`
	StripsPerPack       Count    `json:"strips_per_pack"`
	UnitsPerStrip       Count    `json:"units_per_strip"`
	PackCost            Amount   `json:"pack_cost"`
	PackMRP             Amount   `json:"pack_mrp"`
	DiscountPercent     Amount   `json:"discount_percent"`
	DiscountAmount      Amount   `json:"discount_amount"`
	CGSTPercent         Amount   `json:"cgst_percent"`
	SGSTPercent         Amount   `json:"sgst_percent"`
	IGSTPercent         Amount   `json:"igst_percent"`
	TaxPercent          Amount   `json:"tax_percent"`
	Scheme              string   `json:"scheme" validate:"max=128"`
	Remarks             string   `json:"remarks" validate:"max=500"`
}

func (l lineRequest) toLine() ReceiptLine {
	return ReceiptLine{
		ItemID:              int64(l.ItemID),
		PurchaseOrderItemID: int64(l.PurchaseOrderItemID),
		BatchNumber:         strings.TrimSpace(l.BatchNumber),
		ExpiryDate:          l.ExpiryDate.time,
		Quantity:            l.Quantity.Decimal,
		FreeQuantity:        l.FreeQuantity.Decimal,
		UnitCost:            l.UnitCost.Decimal,
		UnitMRP:             l.UnitMRP.Decimal,
		Packs:               int64(l.Packs),
		StripsPerPack:       int64(l.StripsPerPack),
		UnitsPerStrip:       int64(l.UnitsPerStrip),
		PackCost:            l.PackCost.Decimal,
		PackMRP:             l.PackMRP.Decimal,
		DiscountPercent:     l.DiscountPercent.Decimal,
		DiscountAmount:      l.DiscountAmount.Decimal,
		CGSTPercent:         l.CGSTPercent.Decimal,
		SGSTPercent:         l.SGSTPercent.Decimal,
		IGSTPercent:         l.IGSTPercent.Decimal,
		TaxPercent:          l.TaxPercent.Decimal,
		Scheme:              l.Scheme,
		Remarks:             l.Remarks,
	}
}

type receiptRequest struct {
	Version               int64         `json:"version"`
	PurchaseOrderID       Count         `json:"purchase_order_id"`
	SupplierID            Count         `json:"supplier_id"`
	LocationID            Count         `json:"location_id"`
	Number                string        `json:"number" validate:"max=64"`
	ReceivedDate          jsonDate      `json:"received_date"`
	InvoiceNumber         string        `json:"invoice_number" validate:"max=64"`
	InvoiceDate           jsonDate      `json:"invoice_date"`
	SupplierInvoiceAmount Amount        `json:"supplier_invoice_amount"`
	FreightAmount         Amount        `json:"freight_amount"`
	OtherCharges          Amount        `json:"other_charges"`
	RoundOff              Amount        `json:"round_off"`
	Notes                 string        `json:"notes" validate:"max=2000"`
	DifferenceReason      string        `json:"difference_reason" validate:"max=500"`
	Lines                 []lineRequest `json:"lines" validate:"dive"`
}

func (req receiptRequest) toInput() DraftInput {
	header := ReceiptHeader{
		Version:               req.Version,
		Number:                strings.TrimSpace(req.Number),
		PurchaseOrderID:       int64(req.PurchaseOrderID),
		SupplierID:            int64(req.SupplierID),
		LocationID:            int64(req.LocationID),
		InvoiceNumber:         strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:           req.InvoiceDate.time,
		SupplierInvoiceAmount: req.SupplierInvoiceAmount.Decimal,
		FreightAmount:         req.FreightAmount.Decimal,
		OtherCharges:          req.OtherCharges.Decimal,
		RoundOff:              req.RoundOff.Decimal,
		Notes:                 req.Notes,
		DifferenceReason:      req.DifferenceReason,
	}
	if req.ReceivedDate.time != nil {
		header.ReceivedDate = *req.ReceivedDate.time
	}
	lines := make([]ReceiptLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.toLine())
	}
	return DraftInput{Header: header, Lines: lines}
}

type postRequest struct {
	DifferenceReason *string `json:"difference_reason" validate:"omitempty,max=500"`
}

type recomputeRequest struct {
	Line   lineRequest `json:"line"`
	Source Field       `json:"source" validate:"omitempty,oneof=item_id batch_number expiry_date quantity free_quantity unit_cost unit_mrp packs strips_per_pack units_per_strip pack_cost pack_mrp discount_percent discount_amount tax_percent cgst_percent sgst_percent igst_percent"`
}

type lineResponse struct {
	ItemID              int64      `json:"item_id"`
	PurchaseOrderItemID int64      `json:"purchase_order_item_id,omitempty"`
	BatchNumber         string     `json:"batch_number"`
	ExpiryDate          *time.Time `json:"expiry_date,omitempty"`
	Quantity            Amount     `json:"quantity"`
	FreeQuantity        Amount     `json:"free_quantity"`
	UnitCost            Amount     `json:"unit_cost"`
	UnitMRP             Amount     `json:"unit_mrp"`
	Packs               int64      `json:"packs"`
	StripsPerPack       int64      `json:"strips_per_pack"`
	UnitsPerStrip       int64      `json:"units_per_strip"`
	PackCost            Amount     `json:"pack_cost"`
	PackMRP             Amount     `json:"pack_mrp"`
	DiscountPercent     Amount     `json:"discount_percent"`
	DiscountAmount      Amount     `json:"discount_amount"`
	CGSTPercent         Amount     `json:"cgst_percent"`
	SGSTPercent         Amount     `json:"sgst_percent"`
	IGSTPercent         Amount     `json:"igst_percent"`
	TaxPercent          Amount     `json:"tax_percent"`
	Scheme              string     `json:"scheme,omitempty"`
	Remarks             string     `json:"remarks,omitempty"`
}

func newLineResponse(l ReceiptLine) lineResponse {
	return lineResponse{
		ItemID:              l.ItemID,
		PurchaseOrderItemID: l.PurchaseOrderItemID,
		BatchNumber:         l.BatchNumber,
		ExpiryDate:          l.ExpiryDate,
		Quantity:            NewAmount(l.Quantity),
		FreeQuantity:        NewAmount(l.FreeQuantity),
		UnitCost:            NewAmount(l.UnitCost),
		UnitMRP:             NewAmount(l.UnitMRP),
		Packs:               l.Packs,
		StripsPerPack:       l.StripsPerPack,
		UnitsPerStrip:       l.UnitsPerStrip,
		PackCost:            NewAmount(l.PackCost),
		PackMRP:             NewAmount(l.PackMRP),
		DiscountPercent:     NewAmount(l.DiscountPercent),
		DiscountAmount:      NewAmount(l.DiscountAmount),
		CGSTPercent:         NewAmount(l.CGSTPercent),
		SGSTPercent:         NewAmount(l.SGSTPercent),
		IGSTPercent:         NewAmount(l.IGSTPercent),
		TaxPercent:          NewAmount(l.TaxPercent),
		Scheme:              l.Scheme,
		Remarks:             l.Remarks,
	}
}

type lineCalcResponse struct {
	EffectiveQuantity Amount `json:"effective_quantity"`
	Gross             Amount `json:"gross"`
	Discount          Amount `json:"discount"`
	TaxableBase       Amount `json:"taxable_base"`
	TaxRate           Amount `json:"tax_rate"`
	Tax               Amount `json:"tax"`
	Net               Amount `json:"net"`
}

type totalsResponse struct {
	Lines         []lineCalcResponse `json:"lines"`
	Subtotal      Amount             `json:"subtotal"`
	DiscountTotal Amount             `json:"discount_total"`
	TaxTotal      Amount             `json:"tax_total"`
	Extras        Amount             `json:"extras"`
	Calculated    Amount             `json:"calculated"`
	InvoiceAmount Amount             `json:"invoice_amount"`
	Variance      Amount             `json:"variance"`
	Mismatch      bool               `json:"mismatch"`
	Display       map[string]string  `json:"display,omitempty"`
}

func (d Display) totals(t DocumentTotals) map[string]string {
	if d.Currency == "" {
		return nil
	}
	return map[string]string{
		"calculated": FormatCurrency(t.Calculated, d.Currency, d.Locale),
		"invoice":    FormatCurrency(t.InvoiceAmount, d.Currency, d.Locale),
		"variance":   FormatCurrency(t.Variance, d.Currency, d.Locale),
	}
}

func newTotalsResponse(t DocumentTotals) totalsResponse {
	resp := totalsResponse{
		Lines:         make([]lineCalcResponse, 0, len(t.Lines)),
		Subtotal:      NewAmount(t.Subtotal),
		DiscountTotal: NewAmount(t.DiscountTotal),
		TaxTotal:      NewAmount(t.TaxTotal),
		Extras:        NewAmount(t.Extras),
		Calculated:    NewAmount(t.Calculated),
		InvoiceAmount: NewAmount(t.InvoiceAmount),
		Variance:      NewAmount(t.Variance),
		Mismatch:      t.Mismatch,
	}
	for _, c := range t.Lines {
		resp.Lines = append(resp.Lines, lineCalcResponse{
			EffectiveQuantity: NewAmount(c.EffectiveQuantity),
			Gross:             NewAmount(c.Gross),
			Discount:          NewAmount(c.Discount),
			TaxableBase:       NewAmount(c.TaxableBase),
			TaxRate:           NewAmount(c.TaxRate),
			Tax:               NewAmount(c.Tax),
			Net:               NewAmount(c.Net),
		})
	}
	return resp
}

type receiptResponse struct {
	ID                    int64          `json:"id"`
	Number                string         `json:"number"`
	Status                GRNStatus      `json:"status"`
	Version               int64          `json:"version"`
	PurchaseOrderID       int64          `json:"purchase_order_id,omitempty"`
	SupplierID            int64          `json:"supplier_id"`
	LocationID            int64          `json:"location_id"`
	ReceivedDate          time.Time      `json:"received_date"`
	InvoiceNumber         string         `json:"invoice_number,omitempty"`
	InvoiceDate           *time.Time     `json:"invoice_date,omitempty"`
	SupplierInvoiceAmount Amount         `json:"supplier_invoice_amount"`
	FreightAmount         Amount         `json:"freight_amount"`
	OtherCharges          Amount         `json:"other_charges"`
	RoundOff              Amount         `json:"round_off"`
	Notes                 string         `json:"notes,omitempty"`
	DifferenceReason      string         `json:"difference_reason,omitempty"`
	PostedAt              *time.Time     `json:"posted_at,omitempty"`
	Lines                 []lineResponse `json:"lines"`
	Totals                totalsResponse `json:"totals"`
}

func newReceiptResponse(rcpt Receipt) receiptResponse {
	hdr := rcpt.Header
	resp := receiptResponse{
		ID:                    hdr.ID,
		Number:                hdr.Number,
		Status:                hdr.Status,
		Version:               hdr.Version,
		PurchaseOrderID:       hdr.PurchaseOrderID,
		SupplierID:            hdr.SupplierID,
		LocationID:            hdr.LocationID,
		ReceivedDate:          hdr.ReceivedDate,
		InvoiceNumber:         hdr.InvoiceNumber,
		InvoiceDate:           hdr.InvoiceDate,
		SupplierInvoiceAmount: NewAmount(hdr.SupplierInvoiceAmount),
		FreightAmount:         NewAmount(hdr.FreightAmount),
		OtherCharges:          NewAmount(hdr.OtherCharges),
		RoundOff:              NewAmount(hdr.RoundOff),
		Notes:                 hdr.Notes,
		DifferenceReason:      hdr.DifferenceReason,
		PostedAt:              hdr.PostedAt,
		Lines:                 make([]lineResponse, 0, len(rcpt.Lines)),
		Totals:                newTotalsResponse(AggregateDocument(hdr, rcpt.Lines)),
	}
	for _, l := range rcpt.Lines {
		resp.Lines = append(resp.Lines, newLineResponse(l))
	}
	return resp
}

type evaluationResponse struct {
	Lines        []lineResponse `json:"lines"`
	Totals       totalsResponse `json:"totals"`
	Issues       []Issue        `json:"issues"`
	SaveEligible bool           `json:"save_eligible"`
	PostEligible bool           `json:"post_eligible"`
}

type validationProblem struct {
	httpx.ProblemDetail
	Issues []Issue `json:"issues"`
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	rcpt, err := h.service.CreateDraft(r.Context(), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": rcpt.Header.ID, "number": rcpt.Header.Number, "status": rcpt.Header.Status, "version": rcpt.Header.Version})
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	rcpt, err := h.service.UpdateDraft(r.Context(), id, req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("X-Resource-Version", strconv.FormatInt(rcpt.Header.Version, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req postRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	rcpt, err := h.service.PostDraft(r.Context(), id, req.DifferenceReason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": rcpt.Header.ID, "status": rcpt.Header.Status, "posted_at": rcpt.Header.PostedAt})
}

func (h *Handler) fetchDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rcpt, err := h.service.FetchDraft(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := newReceiptResponse(rcpt)
	resp.Totals.Display = h.display.totals(AggregateDocument(rcpt.Header, rcpt.Lines))
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) exportDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rcpt, err := h.service.FetchDraft(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, rcpt, h.display); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", WorkbookContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rcpt.Header.Number+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := req.toInput()
	lines, eval := h.service.Preview(input.Header, input.Lines)
	resp := evaluationResponse{
		Lines:        make([]lineResponse, 0, len(lines)),
		Totals:       newTotalsResponse(eval.Totals),
		Issues:       eval.Issues(),
		SaveEligible: eval.SaveEligible,
		PostEligible: eval.PostEligible,
	}
	resp.Totals.Display = h.display.totals(eval.Totals)
	if resp.Issues == nil {
		resp.Issues = []Issue{}
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, newLineResponse(l))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) recomputeLine(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, res := ApplyPatch(req.Line.toLine(), LinePatch{}, req.Source)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"line": newLineResponse(line),
		"pack": map[string]any{
			"is_configured":  res.IsConfigured,
			"is_partial":     res.IsPartial,
			"is_oversized":   res.IsOversized,
			"total_units":    res.TotalUnits,
			"total_strips":   res.TotalStrips,
			"per_unit_cost":  NewAmount(res.PerUnitCost),
			"per_unit_mrp":   NewAmount(res.PerUnitMRP),
			"per_strip_cost": NewAmount(res.PerStripCost),
			"per_strip_mrp":  NewAmount(res.PerStripMRP),
		},
		"calculation": newTotalsResponse(DocumentTotals{Lines: []LineCalculation{CalculateLine(line)}}).Lines[0],
		"issues":      DetectLineIssues(0, line),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fe.Namespace()+": "+fe.Tag())
			}
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", strings.Join(msgs, "; "))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid receipt id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		title := "Validation Failed"
		if verr.HasCode(IssueVarianceUnexplained) {
			title = "Variance Unexplained"
		}
		httpx.JSON(w, http.StatusUnprocessableEntity, validationProblem{
			ProblemDetail: httpx.ProblemDetail{Title: title, Status: http.StatusUnprocessableEntity, Detail: ErrValidationFailed.Error()},
			Issues:        verr.Issues,
		})
	case errors.Is(err, ErrNotEditable):
		httpx.Problem(w, http.StatusConflict, "Not Editable", err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, shared.ErrLockHeld), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotPersisted):
		httpx.Problem(w, http.StatusBadRequest, "Not Persisted", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("receiving request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
