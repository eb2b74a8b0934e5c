package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/receiving/internal/jobs"
	"github.com/odyssey-erp/receiving/internal/receiving"
)

// ErrReceiptNotPosted signals the posting transaction has not committed yet.
var ErrReceiptNotPosted = errors.New("jobs: receipt not posted yet")

// InventorySink applies posted receipts to stock.
type InventorySink interface {
	ApplyReceipt(ctx context.Context, evt receiving.ReceiptPostedEvent) error
}

// ArchiveStore keeps an immutable copy of each posted receipt.
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ReceiptLookup loads the stored state of a receipt.
type ReceiptLookup interface {
	GetReceipt(ctx context.Context, id int64) (receiving.ReceiptHeader, []receiving.ReceiptLine, error)
}

// ReceiptPostedJob forwards posted receipts to the inventory system.
type ReceiptPostedJob struct {
	receipts ReceiptLookup
	sink     InventorySink
	archive  ArchiveStore
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewReceiptPostedJob constructs the forwarder.
func NewReceiptPostedJob(receipts ReceiptLookup, sink InventorySink, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptPostedJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptPostedJob{receipts: receipts, sink: sink, logger: logger, metrics: metrics}
}

// WithArchive stores every forwarded payload in store before it reaches inventory.
func (j *ReceiptPostedJob) WithArchive(store ArchiveStore) *ReceiptPostedJob {
	j.archive = store
	return j
}

// ArchiveKey is the object key of a posted receipt.
func ArchiveKey(evt receiving.ReceiptPostedEvent) string {
	return fmt.Sprintf("grn/%s/%s.json", evt.PostedAt.UTC().Format("2006/01"), evt.Number)
}

// Handle processes TaskReceiptPosted tasks. The receipt must be POSTED in storage
// before it is forwarded; until then the task is retried.
func (j *ReceiptPostedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskReceiptPosted)
	defer func() { err = tracker.End(err) }()

	var evt receiving.ReceiptPostedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return fmt.Errorf("jobs: decode receipt: %v: %w", err, asynq.SkipRetry)
	}
	if evt.ID == 0 || len(evt.Lines) == 0 {
		return fmt.Errorf("jobs: receipt %q has no identity or lines: %w", evt.Number, asynq.SkipRetry)
	}

	if j.receipts != nil {
		header, _, err := j.receipts.GetReceipt(ctx, evt.ID)
		switch {
		case errors.Is(err, receiving.ErrNotFound):
			return ErrReceiptNotPosted
		case err != nil:
			return err
		case header.Status == receiving.GRNStatusCancelled:
			j.logger.Warn("skip cancelled receipt", slog.String("number", evt.Number))
			return nil
		case header.Status != receiving.GRNStatusPosted:
			return ErrReceiptNotPosted
		}
	}

	if j.archive != nil {
		if err := j.archive.Put(ctx, ArchiveKey(evt), t.Payload(), "application/json"); err != nil {
			return err
		}
	}
	if err := j.sink.ApplyReceipt(ctx, evt); err != nil {
		return err
	}
	j.metrics.AddForwardedLines(evt.LocationID, len(evt.Lines))
	j.logger.Info("receipt forwarded",
		slog.String("number", evt.Number),
		slog.Int("lines", len(evt.Lines)),
		slog.String("calculated", evt.Calculated.StringFixed(2)),
	)
	return nil
}
