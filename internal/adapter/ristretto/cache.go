// Package ristretto is the in-process tier of the idempotency replay cache.
package ristretto

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrTooLarge is returned by Set for a value the cache could never admit.
var ErrTooLarge = errors.New("ristretto: value exceeds cache capacity")

// Cache keeps recorded responses in memory, costed by their byte size.
type Cache struct {
	c       *ristretto.Cache[string, []byte]
	maxCost int64
}

// New creates a cache holding at most maxBytes of values.
func New(maxBytes int64) (*Cache, error) {
	// Ristretto wants ~10 counters per expected entry; replayed responses
	// are small JSON bodies, so assume a few hundred bytes each.
	counters := max(maxBytes/32, 1024)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, maxCost: maxBytes}, nil
}

// Get returns a copy of the cached value.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(val), true, nil
}

// Set stores a copy of value. It is visible to Get once Set returns, unless
// the admission policy rejected it.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	if cost > c.maxCost {
		return ErrTooLarge
	}
	c.c.SetWithTTL(key, bytes.Clone(value), cost, ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// HitRatio reports the fraction of lookups served from memory.
func (c *Cache) HitRatio() float64 {
	return c.c.Metrics.Ratio()
}

// Close releases the cache's goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
