package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/receiving/internal/receiving"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() receiving.ReceiptPostedEvent {
	return receiving.ReceiptPostedEvent{
		ID:         11,
		Number:     "GRN-11",
		SupplierID: 2,
		LocationID: 3,
		PostedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Calculated: decimal.RequireFromString("100.80"),
		Lines: []receiving.ReceiptLineEvent{{
			ItemID:      5,
			BatchNumber: "B1",
			Quantity:    decimal.NewFromInt(10),
			UnitCost:    decimal.NewFromInt(10),
			NetAmount:   decimal.RequireFromString("100.80"),
		}},
	}
}

type stubLookup struct {
	status receiving.GRNStatus
	err    error
}

func (s stubLookup) GetReceipt(ctx context.Context, id int64) (receiving.ReceiptHeader, []receiving.ReceiptLine, error) {
	if s.err != nil {
		return receiving.ReceiptHeader{}, nil, s.err
	}
	return receiving.ReceiptHeader{ID: id, Status: s.status}, nil, nil
}

type recordingSink struct {
	applied []receiving.ReceiptPostedEvent
	err     error
}

func (s *recordingSink) ApplyReceipt(ctx context.Context, evt receiving.ReceiptPostedEvent) error {
	if s.err != nil {
		return s.err
	}
	s.applied = append(s.applied, evt)
	return nil
}

func TestReceiptPostedJobForwardsPostedReceipt(t *testing.T) {
	task, err := NewReceiptPostedTask(sampleEvent())
	require.NoError(t, err)
	require.Equal(t, TaskReceiptPosted, task.Type())

	sink := &recordingSink{}
	job := NewReceiptPostedJob(stubLookup{status: receiving.GRNStatusPosted}, sink, testLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sink.applied, 1)
	require.Equal(t, "GRN-11", sink.applied[0].Number)
	require.True(t, sink.applied[0].Lines[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestReceiptPostedJobWaitsForCommit(t *testing.T) {
	task, err := NewReceiptPostedTask(sampleEvent())
	require.NoError(t, err)

	sink := &recordingSink{}
	job := NewReceiptPostedJob(stubLookup{status: receiving.GRNStatusDraft}, sink, testLogger(), nil)
	require.ErrorIs(t, job.Handle(context.Background(), task), ErrReceiptNotPosted)

	job = NewReceiptPostedJob(stubLookup{err: receiving.ErrNotFound}, sink, testLogger(), nil)
	require.ErrorIs(t, job.Handle(context.Background(), task), ErrReceiptNotPosted)
	require.Empty(t, sink.applied)

	job = NewReceiptPostedJob(stubLookup{status: receiving.GRNStatusCancelled}, sink, testLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, sink.applied)
}

func TestReceiptPostedJobRejectsMalformedPayload(t *testing.T) {
	job := NewReceiptPostedJob(nil, &recordingSink{}, testLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReceiptPosted, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	empty, _ := json.Marshal(receiving.ReceiptPostedEvent{Number: "GRN-0"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskReceiptPosted, empty))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestInventoryClientStatusHandling(t *testing.T) {
	var status int
	var gotKey string
	var gotBody receiving.ReceiptPostedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/receipts", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client := NewInventoryClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	status = http.StatusCreated
	require.NoError(t, client.ApplyReceipt(ctx, sampleEvent()))
	require.Equal(t, "GRN:GRN-11", gotKey)
	require.Equal(t, int64(3), gotBody.LocationID)

	status = http.StatusConflict
	require.NoError(t, client.ApplyReceipt(ctx, sampleEvent()))

	status = http.StatusUnprocessableEntity
	require.ErrorIs(t, client.ApplyReceipt(ctx, sampleEvent()), asynq.SkipRetry)

	status = http.StatusBadGateway
	err := client.ApplyReceipt(ctx, sampleEvent())
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientCommitReceipt(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := &Client{client: fake}
	require.NoError(t, client.CommitReceipt(context.Background(), sampleEvent()))
	require.Len(t, fake.tasks, 1)

	var evt receiving.ReceiptPostedEvent
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &evt))
	require.Equal(t, "GRN-11", evt.Number)

	fake.err = asynq.ErrTaskIDConflict
	require.NoError(t, client.CommitReceipt(context.Background(), sampleEvent()))

	fake.err = errors.New("redis down")
	require.Error(t, client.CommitReceipt(context.Background(), sampleEvent()))
}

type fakeCleaner struct {
	module    string
	olderThan time.Duration
}

func (f *fakeCleaner) Cleanup(ctx context.Context, module string, olderThan time.Duration) (int64, error) {
	f.module, f.olderThan = module, olderThan
	return 4, nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, testLogger(), nil)

	task, err := NewIdempotencyCleanupTask(receiving.IdempotencyModule, 48*time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, receiving.IdempotencyModule, cleaner.module)
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	bad, err := NewIdempotencyCleanupTask("", 0)
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, testLogger())
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"retry":0,"archived":0}`, rr.Body.String())
}

type memoryArchive struct {
	objects map[string][]byte
	err     error
}

func (m *memoryArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = body
	return nil
}

func TestReceiptPostedJobArchivesBeforeForwarding(t *testing.T) {
	evt := sampleEvent()
	task, err := NewReceiptPostedTask(evt)
	require.NoError(t, err)
	require.Equal(t, "grn/2026/03/GRN-11.json", ArchiveKey(evt))

	archive := &memoryArchive{err: errors.New("bucket unavailable")}
	sink := &recordingSink{}
	job := NewReceiptPostedJob(stubLookup{status: receiving.GRNStatusPosted}, sink, testLogger(), nil).WithArchive(archive)
	require.Error(t, job.Handle(context.Background(), task))
	require.Empty(t, sink.applied)

	archive.err = nil
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sink.applied, 1)
	require.JSONEq(t, string(task.Payload()), string(archive.objects["grn/2026/03/GRN-11.json"]))
}
