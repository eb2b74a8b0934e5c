package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/receiving/internal/receiving"
	"github.com/odyssey-erp/receiving/internal/shared"
)

// InventoryClient posts receipts to the inventory service over HTTP.
type InventoryClient struct {
	baseURL string
	http    *http.Client
}

// NewInventoryClient constructs a client for baseURL.
func NewInventoryClient(baseURL string, timeout time.Duration) *InventoryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ApplyReceipt sends the receipt. A conflict means inventory already applied it.
// Other client errors are permanent.
func (c *InventoryClient) ApplyReceipt(ctx context.Context, evt receiving.ReceiptPostedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("inventory: encode: %v: %w", err, asynq.SkipRetry)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/receipts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inventory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", shared.IdempotencyKey(evt.Number))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inventory: post receipt: %w", err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusConflict:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("inventory: rejected %s (%d): %s: %w", evt.Number, resp.StatusCode, strings.TrimSpace(string(detail)), asynq.SkipRetry)
	default:
		return fmt.Errorf("inventory: status %d for %s", resp.StatusCode, evt.Number)
	}
}
