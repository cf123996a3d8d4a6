// Package natskv is the shared tier of the idempotency replay cache, backed
// by a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// headerLen is the expiry stamp prefixed to every stored value.
const headerLen = 8

// Cache stores replay entries in a KV bucket. The bucket TTL is an upper
// bound; each entry also carries its own expiry so shorter TTLs hold.
type Cache struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// New creates a cache over kv.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// kvKey hashes key, which may contain spaces and slashes KV keys reject.
func kvKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func encode(value []byte, expires time.Time) []byte {
	out := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(out, uint64(expires.UnixNano())) //nolint:gosec // post-1970 timestamps
	copy(out[headerLen:], value)
	return out
}

// decode splits a stored entry. A zero expiry means none was set.
func decode(raw []byte) (value []byte, expires time.Time, ok bool) {
	if len(raw) < headerLen {
		return nil, time.Time{}, false
	}
	if ns := binary.BigEndian.Uint64(raw); ns != 0 {
		expires = time.Unix(0, int64(ns)) //nolint:gosec // written by encode
	}
	return raw[headerLen:], expires, true
}

// Get returns the entry for key unless it is missing, malformed or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	value, expires, ok := decode(entry.Value())
	if !ok || (!expires.IsZero() && !c.now().Before(expires)) {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value for ttl. A non-positive ttl defers to the bucket TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	_, err := c.kv.Put(ctx, kvKey(key), encode(value, expires))
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
