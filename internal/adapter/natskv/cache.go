// Package natskv adapts a JetStream key-value bucket as the shared
// tier of the credential cache, so every gateway instance sees the
// same resolved principals.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache stores entries in a JetStream KV bucket. Expiry is governed by
// the bucket TTL, not per entry.
type Cache struct {
	kv jetstream.KeyValue
}

func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key, value)
	return err
}

// Delete purges the key including its revision history, so a revoked
// credential leaves no readable trace in the bucket.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Purge(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
