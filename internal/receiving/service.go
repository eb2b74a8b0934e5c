package receiving

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/receiving/internal/shared"
)

// IdempotencyModule scopes the keys recorded when receipts are posted.
const IdempotencyModule = "receiving.grn"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, id int64) (ReceiptHeader, []ReceiptLine, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards posting against duplicate commits.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// LockPort serialises posting of the same receipt across processes.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// MetricsPort records receiving outcomes.
type MetricsPort interface {
	ObserveOperation(op string, err error)
	ObservePosted(mismatch bool)
}

// Service orchestrates the goods receipt draft/post workflow.
type Service struct {
	repo        RepositoryPort
	commit      CommitPort
	audit       AuditPort
	idempotency IdempotencyPort
	locks       LockPort
	metrics     MetricsPort
	now         func() time.Time
}

// NewService constructs the receiving service. Audit, idempotency, locks and metrics are optional.
func NewService(repo RepositoryPort, commit CommitPort, audit AuditPort, idem IdempotencyPort, locks LockPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, commit: commit, audit: audit, idempotency: idem, locks: locks, metrics: metrics, now: time.Now}
}

// DraftInput describes the header and lines submitted on create or update.
type DraftInput struct {
	Header ReceiptHeader
	Lines  []ReceiptLine
}

// PrepareReceipt normalises and recomputes every line and evaluates the receipt. It never
// fails; the evaluation carries the issues that gate saving and posting.
func PrepareReceipt(header ReceiptHeader, lines []ReceiptLine) ([]ReceiptLine, Evaluation) {
	prepared := make([]ReceiptLine, len(lines))
	for i, line := range lines {
		prepared[i] = prepareLine(line)
	}
	return prepared, Evaluate(NormalizeHeader(header), prepared)
}

func prepareLine(line ReceiptLine) ReceiptLine {
	line = normalizeLine(line)
	cost, mrp := submittedSources(line)
	prepared, _ := applyResolution(line, resolvePack(line, cost, mrp))
	return prepared
}

// submittedSources picks the recompute direction of cost and MRP for a line that arrives
// whole. Each pack price drives its unit price only while that unit price is unset.
func submittedSources(line ReceiptLine) (cost, mrp Field) {
	cost, mrp = FieldNone, FieldNone
	if line.UnitCost.IsZero() && line.PackCost.IsPositive() {
		cost = FieldPackCost
	}
	if line.UnitMRP.IsZero() && line.PackMRP.IsPositive() {
		mrp = FieldPackMRP
	}
	return cost, mrp
}

// NormalizeHeader rounds header amounts to the precision they are stored with, so a
// receipt evaluates the same before and after a save.
func NormalizeHeader(h ReceiptHeader) ReceiptHeader {
	h.SupplierInvoiceAmount = Round2(h.SupplierInvoiceAmount)
	h.FreightAmount = Round2(h.FreightAmount)
	h.OtherCharges = Round2(h.OtherCharges)
	h.RoundOff = Round2(h.RoundOff)
	return h
}

func normalizeLine(l ReceiptLine) ReceiptLine {
	l.Quantity = RoundQuantity(l.Quantity)
	l.FreeQuantity = RoundQuantity(l.FreeQuantity)
	l.UnitCost = RoundUnit(l.UnitCost)
	l.UnitMRP = RoundUnit(l.UnitMRP)
	l.PackCost = Round2(l.PackCost)
	l.PackMRP = Round2(l.PackMRP)
	l.DiscountAmount = Round2(l.DiscountAmount)
	l.DiscountPercent = l.DiscountPercent.Round(ratePlaces)
	l.CGSTPercent = l.CGSTPercent.Round(ratePlaces)
	l.SGSTPercent = l.SGSTPercent.Round(ratePlaces)
	l.IGSTPercent = l.IGSTPercent.Round(ratePlaces)
	l.TaxPercent = l.TaxPercent.Round(ratePlaces)
	return l
}

// Preview evaluates a receipt without persisting it.
func (s *Service) Preview(header ReceiptHeader, lines []ReceiptLine) ([]ReceiptLine, Evaluation) {
	return PrepareReceipt(header, lines)
}

// CreateDraft validates and persists a new DRAFT receipt.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (receipt Receipt, err error) {
	defer func() { s.observe("create", err) }()

	header := NormalizeHeader(input.Header)
	header.ID = 0
	header.Status = GRNStatusDraft
	header.Version = 1
	header.PostedAt = nil
	header.DifferenceReason = strings.TrimSpace(header.DifferenceReason)
	if header.Number == "" {
		header.Number = generateNumber("GRN")
	}
	if header.ReceivedDate.IsZero() {
		header.ReceivedDate = s.now()
	}

	lines, eval := PrepareReceipt(header, input.Lines)
	if err := eval.RequireSaveEligible(); err != nil {
		return Receipt{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateReceipt(ctx, header)
		if err != nil {
			return err
		}
		header.ID = id
		return tx.ReplaceLines(ctx, id, lines)
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, "GRN_CREATE", header.ID, map[string]any{
		"number":     header.Number,
		"calculated": eval.Totals.Calculated.String(),
		"lines":      len(lines),
	})
	return Receipt{Header: header, Lines: lines}, nil
}

// UpdateDraft replaces header and lines of a DRAFT receipt. A zero Version in the input
// skips the staleness check against the stored version.
func (s *Service) UpdateDraft(ctx context.Context, id int64, input DraftInput) (receipt Receipt, err error) {
	defer func() { s.observe("update", err) }()

	if id == 0 {
		return Receipt{}, ErrNotPersisted
	}
	current, _, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if !current.Status.IsEditable() {
		return Receipt{}, ErrNotEditable
	}
	if input.Header.Version != 0 && input.Header.Version != current.Version {
		return Receipt{}, ErrConflict
	}

	header := NormalizeHeader(input.Header)
	header.ID = current.ID
	header.Number = current.Number
	header.Status = current.Status
	header.Version = current.Version
	header.PostedAt = nil
	header.DifferenceReason = strings.TrimSpace(header.DifferenceReason)
	if header.ReceivedDate.IsZero() {
		header.ReceivedDate = current.ReceivedDate
	}

	lines, eval := PrepareReceipt(header, input.Lines)
	if err := eval.RequireSaveEligible(); err != nil {
		return Receipt{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		version, err := tx.UpdateReceipt(ctx, header)
		if err != nil {
			return err
		}
		header.Version = version
		return tx.ReplaceLines(ctx, id, lines)
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, "GRN_UPDATE", id, map[string]any{"number": header.Number, "version": header.Version})
	return Receipt{Header: header, Lines: lines}, nil
}

// PostDraft transitions a DRAFT receipt to POSTED and hands the payload to the commit
// boundary. A non-nil differenceReason replaces the stored reason.
func (s *Service) PostDraft(ctx context.Context, id int64, differenceReason *string) (receipt Receipt, err error) {
	defer func() { s.observe("post", err) }()

	if id == 0 {
		return Receipt{}, ErrNotPersisted
	}
	header, stored, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if !header.Status.CanTransitionTo(GRNStatusPosted) {
		return Receipt{}, ErrNotEditable
	}
	if differenceReason != nil {
		header.DifferenceReason = strings.TrimSpace(*differenceReason)
	}

	lines, eval := PrepareReceipt(header, stored)
	if err := eval.RequirePostEligible(); err != nil {
		return Receipt{}, err
	}
	if s.commit == nil {
		return Receipt{}, errors.New("receiving: commit boundary not configured")
	}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, shared.ReceiptLockKey(id))
		if err != nil {
			return Receipt{}, err
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	key := shared.IdempotencyKey(header.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, IdempotencyModule); err != nil {
			return Receipt{}, err
		}
		inserted = true
	}

	postedAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.MarkPosted(ctx, id, header.Version, header.DifferenceReason, postedAt); err != nil {
			return err
		}
		header.Status = GRNStatusPosted
		header.PostedAt = &postedAt
		header.Version++
		return s.commit.CommitReceipt(ctx, newPostedEvent(header, lines, eval.Totals, postedAt))
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Receipt{}, err
	}
	if s.metrics != nil {
		s.metrics.ObservePosted(eval.Totals.Mismatch)
	}
	s.recordAudit(ctx, "GRN_POST", id, map[string]any{
		"number":            header.Number,
		"calculated":        eval.Totals.Calculated.String(),
		"variance":          eval.Totals.Variance.String(),
		"difference_reason": header.DifferenceReason,
	})
	return Receipt{Header: header, Lines: lines}, nil
}

// FetchDraft loads a receipt for display. Pack configuration is not stored, so hydrated
// lines carry canonical-unit values only.
func (s *Service) FetchDraft(ctx context.Context, id int64) (Receipt, error) {
	header, lines, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	for i := range lines {
		lines[i] = lines[i].ClearPack()
	}
	return Receipt{Header: header, Lines: lines}, nil
}

func (s *Service) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, err)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorFromContext(ctx), Action: action, Entity: "receiving", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
