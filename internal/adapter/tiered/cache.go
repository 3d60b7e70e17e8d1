// Package tiered composes the in-process and shared credential caches
// behind one cache port.
package tiered

import (
	"context"
	"errors"
	"time"

	"github.com/albatross-va/albatross/internal/port/cache"
)

// Cache reads through two tiers: the local tier first, then the shared
// one, backfilling the local tier on a shared hit. Writes and deletes
// reach both tiers.
type Cache struct {
	local       cache.Cache
	shared      cache.Cache
	backfillTTL time.Duration
}

// New builds a tiered cache. backfillTTL bounds how long a backfilled
// entry may serve locally before the shared tier is consulted again,
// which caps how stale a revocation done elsewhere can look here.
func New(local, shared cache.Cache, backfillTTL time.Duration) *Cache {
	return &Cache{local: local, shared: shared, backfillTTL: backfillTTL}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.shared.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	_ = c.local.Set(ctx, key, val, c.backfillTTL)
	return val, true, nil
}

// Set writes the shared tier first so other instances observe the
// entry no later than this one.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.local.Set(ctx, key, value, ttl)
}

// Delete removes the key from both tiers. Both deletes are attempted
// even if one fails; a revocation must never stop halfway.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return errors.Join(c.local.Delete(ctx, key), c.shared.Delete(ctx, key))
}
