package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/receiving/internal/receiving"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceiptPosted forwards a posted goods receipt to inventory.
	TaskReceiptPosted = "receiving:grn_posted"
	// TaskIdempotencyCleanup prunes old receiving idempotency keys.
	TaskIdempotencyCleanup = "receiving:idempotency_cleanup"
)

// receiptPostedMaxRetry bounds redelivery while inventory is unavailable.
const receiptPostedMaxRetry = 25

// NewReceiptPostedTask builds the forward task for a posted receipt. The task id is
// derived from the receipt number so a receipt is queued at most once at a time.
func NewReceiptPostedTask(evt receiving.ReceiptPostedEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptPosted, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID("grn-posted:"+evt.Number),
		asynq.MaxRetry(receiptPostedMaxRetry),
	), nil
}

// IdempotencyCleanupPayload contains options for the cleanup job.
type IdempotencyCleanupPayload struct {
	Module    string        `json:"module"`
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(module string, retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Module: module, Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
