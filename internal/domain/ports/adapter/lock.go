package adapter

import (
	"context"
	"time"
)

// Locker serializes callbacks racing on the same order. Locking is
// best-effort; the idempotent mark-paid in the order repository remains the
// real linearization point.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
