// Package cache defines the byte store behind idempotent request replay.
package cache

import (
	"context"
	"time"
)

// Cache holds recorded responses by key.
//
// A miss is (nil, false, nil); err is reserved for backend failures so
// callers can fall through to the live handler. A ttl <= 0 leaves expiry to
// the backend's default.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
