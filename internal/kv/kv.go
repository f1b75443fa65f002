// Package kv abstracts the key-value storage behind the local lead store and
// the per-session flags.
//
// Keys written without a TTL are device-scoped: they live until deleted.
// Keys written with a TTL are session-scoped and disappear once it elapses.
// Backends: in-memory (this package), Redis (rediskv) and SQL (sqlkv).
package kv

import (
	"context"
	"time"

	"leadcapture/pkg/platform/sentinel"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = sentinel.ErrNotFound

// UpdateFunc receives the current value (found=false when absent) and returns
// the value to write back. Returning an error aborts the update.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes only when the key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// Update is an atomic read-modify-write. The key's existing TTL is kept.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
