// Package kv declares the KV substrate contract the Store Façade
// is built against, plus two adapters: an in-process memstore and a
// redisstore backed by github.com/redis/go-redis/v9 — the same client
// pkg/cache wraps.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound names the absent-key condition. The MemStore and RedisStore
// Get* methods do not return it; they report absence with ok=false.
var ErrNotFound = errors.New("kv: key not found")

// Substrate is the durable key-value store contract every write to which is
// idempotent. All writes are synchronous from the caller's
// perspective — async substrates still satisfy this interface by blocking
// inside their method bodies (e.g. on a network round trip), which is what
// lets the Store Façade's cache-load path stay "asynchronous against an
// async KV" without a separate interface.
type Substrate interface {
	Has(ctx context.Context, key string) (bool, error)

	GetString(ctx context.Context, key string) (value string, ok bool, err error)
	SetString(ctx context.Context, key string, value string) error

	GetNumber(ctx context.Context, key string) (value float64, ok bool, err error)
	SetNumber(ctx context.Context, key string, value float64) error

	// GetBuffer returns an unsigned-32 integer buffer.
	GetBuffer(ctx context.Context, key string) (value []uint32, ok bool, err error)
	SetBuffer(ctx context.Context, key string, value []uint32) error

	Delete(ctx context.Context, key string) error
}

// OrderedSet is the per-query-definition LRU set the Store Façade's
// activateQuery uses: a recency-ordered set of member keys (Touch makes a
// member the most recent).
type OrderedSet interface {
	// Touch records member as most-recently-used in setKey.
	Touch(ctx context.Context, setKey, member string) error

	// Oldest returns the least-recently-used member not present in
	// excluding, or ok=false if the set (minus excluding) is empty.
	Oldest(ctx context.Context, setKey string, excluding map[string]bool) (member string, ok bool, err error)

	// Remove drops member from setKey's tracking (does not touch the
	// underlying document — callers delete that separately).
	Remove(ctx context.Context, setKey, member string) error

	// Len reports the number of tracked members in setKey.
	Len(ctx context.Context, setKey string) (int, error)
}
