// Package cache defines the port for the credential cache tiers.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value cache. Get reports a miss with ok=false rather
// than an error, so callers can distinguish absence from tier failure.
// Implementations may treat ttl as advisory when expiry is managed
// elsewhere, as the KV bucket tier does.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
