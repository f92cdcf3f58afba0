// Package query implements the Query Definition, Query Key, and Query
// Instance state machine: the per-query runtime object that holds
// reactive-promise state, pagination state, and background-refetch
// bookkeeping, dependency-injected with a Store Façade, an HTTP fetch
// transport, and a parser context rather than owning them.
package query

import (
	"context"
	"time"

	"github.com/shashiranjanraj/qcache/querycache/schema"
)

// Kind distinguishes the three query shapes: standard request/response,
// infinite (page-accumulating), and stream (pushed updates).
type Kind int

const (
	KindStandard Kind = iota
	KindInfinite
	KindStream
)

// RetryPolicy is the structured form of a query's retry configuration; the
// bare-bool form is expressed as RetryPolicy{Enabled: true/false}. When
// enabled, querycache/transport turns a zero MaxAttempts into 3 total
// attempts and a zero BaseDelay into 500ms, and hands both to pkg/http's
// exponential backoff unmodified.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
}

// CachePolicy groups the per-query caching configuration.
type CachePolicy struct {
	// StaleTime is 0 by default, meaning "always stale". Staleness is judged
	// when an Invoke loads a value from the KV cache: a cached value older than
	// StaleTime is returned at once and refetched in the background. Later
	// Invokes on an instance that already holds a value do not refetch.
	StaleTime time.Duration
	// GCTime is the delay between deactivation and in-memory eviction; the
	// zero value means unbounded (never GC'd by time alone).
	GCTime time.Duration
	// MaxCount is the per-definition on-disk LRU cap; 0 means unbounded.
	MaxCount int
	Retry    RetryPolicy
}

// StreamSubscriber is invoked on first activation of a stream-kind query;
// onUpdate delivers subsequent pushed values, and the returned teardown runs
// on last deactivation.
type StreamSubscriber func(ctx context.Context, onUpdate func(value any)) (teardown func(), err error)

// Paginator computes the next page's request params from the last page's
// value and the params that produced it; ok=false signals exhaustion.
type Paginator func(lastPage any, priorParams map[string]any) (nextParams map[string]any, ok bool)

// Definition is the compile-time query declaration. ID is operator-supplied
// rather than structurally derived — callers are expected to pick a stable,
// human-readable id (e.g. "getUser") the way route names are chosen by hand
// rather than hashed.
type Definition struct {
	ID     string
	Kind   Kind
	Path   string // "/users/[id]" — [name] holes become required args
	Method string

	// SearchParams/Body, when set, select which of the instance's raw args
	// map onto the URL query string vs. the JSON request body. A field
	// declared in both schemas is sent in both places; path fields are not
	// removed from the body.
	SearchParams *schema.ObjectSchema
	Body         *schema.ObjectSchema
	Response     schema.Schema

	Cache CachePolicy

	Stream   StreamSubscriber // non-nil only for KindStream
	Paginate Paginator        // non-nil only for KindInfinite
}
