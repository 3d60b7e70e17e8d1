// Package ristretto adapts dgraph-io/ristretto as the in-process tier
// of the credential cache.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache holds hot credential entries close to the request path.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache bounded by maxCostBytes of stored values. Entry
// cost is the value length, so the bound tracks actual memory use.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key for ttl. It waits for the write buffer to
// drain so a token minted on login resolves on the very next request.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete evicts key. Revocations go through here, so the entry must be
// gone when this returns.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	c.c.Wait()
	return nil
}

func (c *Cache) Close() {
	c.c.Close()
}
