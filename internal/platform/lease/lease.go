// Package lease elects a single holder per key for a bounded time. The hosted
// session of a duel holds the lease while it runs the tick job.
package lease

import (
	"context"
	"time"
)

type Locker interface {
	// Acquire returns a token when the key was free. ok is false when someone
	// else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Renew extends the lease only if token still holds it.
	Renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release frees the lease only if token still holds it.
	Release(ctx context.Context, key, token string) error
}
