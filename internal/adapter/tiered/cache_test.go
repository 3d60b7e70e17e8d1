package tiered_test

import (
	"context"
	"testing"
	"time"

	"github.com/albatross-va/albatross/internal/adapter/tiered"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l1.data["cred.alice"] = []byte("v1")

	val, found, err := c.Get(context.Background(), "cred.alice")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != "v1" {
		t.Fatalf("expected v1, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l2.data["cred.bob"] = []byte("v2")

	val, found, err := c.Get(context.Background(), "cred.bob")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L2 hit")
	}
	if string(val) != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}

	if got, ok := l1.data["cred.bob"]; !ok || string(got) != "v2" {
		t.Fatalf("expected L1 backfill, got %q found=%v", got, ok)
	}
}

func TestTiered_Miss(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), 5*time.Minute)

	_, found, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_SetBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; !ok {
		t.Fatal("expected k in L1")
	}
	if _, ok := l2.data["k"]; !ok {
		t.Fatal("expected k in L2")
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l1.data["k"] = []byte("v")
	l2.data["k"] = []byte("v")

	if err := c.Delete(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; ok {
		t.Fatal("expected k deleted from L1")
	}
	if _, ok := l2.data["k"]; ok {
		t.Fatal("expected k deleted from L2")
	}
}
