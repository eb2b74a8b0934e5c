package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/receiving/internal/shared"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// DocumentLock is a SETNX based mutex with expiry, shared by every process using the same Redis.
type DocumentLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDocumentLock constructs a lock helper. Non-positive ttl defaults to 30 seconds.
func NewDocumentLock(client *redis.Client, ttl time.Duration) *DocumentLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DocumentLock{client: client, ttl: ttl}
}

// Acquire takes the lock for key and returns its release func. It fails with
// shared.ErrLockHeld while another holder owns the key.
func (l *DocumentLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/cache: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, shared.ErrLockHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("platform/cache: release %s: %w", key, err)
		}
		return nil
	}, nil
}
