package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shashiranjanraj/qcache/pkg/logger"
	"github.com/shashiranjanraj/qcache/pkg/metrics"
	"github.com/shashiranjanraj/qcache/querycache/parser"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

// State is the reactive-promise state a Query Instance occupies.
type State int

const (
	Pending State = iota
	Resolved
	Rejected
)

// Deps bundles everything an Instance needs beyond its own Definition and
// args: the durable store, the network transport, and the parse context
// that normalizes responses into the shared Entity Map. Instance never
// constructs these itself — the Client wires them in, the same
// dependency-injected shape the Store Façade's Substrate/OrderedSet bridge
// interfaces use one layer down.
type Deps struct {
	Store    *store.Facade
	Fetch    Fetcher
	ParseCtx *parser.ParseContext
	BaseURL  func() string
}

type future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *future { return &future{done: make(chan struct{})} }

// Instance is a single Query Instance: the runtime object keyed by (def id,
// argument fingerprint) that owns its own reactive-promise state, pagination
// state, and in-flight fetch dedup.
type Instance struct {
	mu   sync.Mutex
	key  uint32
	def  *Definition
	args map[string]any
	deps Deps

	cacheLoadAttempted bool
	state              State
	value              any
	err                error
	updatedAt          int64

	isRefetching   bool
	isFetchingMore bool
	inflightMain   *future
	inflightPage   *future

	pages        []any
	cursorParams []map[string]any
	hasNextPage  bool
}

// New constructs a Query Instance for def, keyed by key, bound to args and
// deps. hasNextPage starts true for infinite queries; the first
// FetchNextPage call determines actual exhaustion via def.Paginate.
func New(key uint32, def *Definition, args map[string]any, deps Deps) *Instance {
	return &Instance{
		key:         key,
		def:         def,
		args:        args,
		deps:        deps,
		hasNextPage: def.Kind == KindInfinite,
	}
}

// Key returns the instance's Query Key.
func (inst *Instance) Key() uint32 { return inst.key }

// Definition returns the instance's backing Definition.
func (inst *Instance) Definition() *Definition { return inst.def }

// Peek returns the instance's current state without triggering any work —
// used by the Client for LRU/GC bookkeeping and by diagnostics.
func (inst *Instance) Peek() (State, any, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state, inst.value, inst.err
}

// UpdatedAt returns the millisecond timestamp of the last successful fetch
// or cache load, for staleness comparisons.
func (inst *Instance) UpdatedAt() int64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.updatedAt
}

// Invoke is the entry point a first (or repeat) subscriber drives: on first
// call it attempts a cache load, then either returns the cached value
// immediately while kicking a background refetch (stale-while-revalidate)
// or blocks for the network fetch (cache miss, or no prior state at all).
func (inst *Instance) Invoke(ctx context.Context) (any, error) {
	inst.mu.Lock()
	if !inst.cacheLoadAttempted {
		inst.cacheLoadAttempted = true
		inst.mu.Unlock()
		inst.loadFromCache(ctx)
		inst.mu.Lock()
	}

	switch inst.state {
	case Resolved:
		if inst.isRefetching {
			if inst.inflightMain == nil {
				inst.startMainFetchLocked(ctx)
			}
			v := inst.value
			inst.mu.Unlock()
			return v, nil
		}
		v, e := inst.value, inst.err
		inst.mu.Unlock()
		return v, e
	case Rejected:
		e := inst.err
		inst.mu.Unlock()
		return nil, e
	default: // Pending
		f := inst.inflightMain
		if f == nil {
			f = inst.startMainFetchLocked(ctx)
		}
		inst.mu.Unlock()
		<-f.done
		return f.value, f.err
	}
}

// Refetch forces a network refresh regardless of staleness. It fails
// immediately if a fetchNextPage is in flight, dedups against an
// already-running refetch, and on network/validation failure leaves the
// prior value in place while surfacing the error to the caller.
func (inst *Instance) Refetch(ctx context.Context) (any, error) {
	inst.mu.Lock()
	if inst.isFetchingMore {
		inst.mu.Unlock()
		return nil, &UsageError{Message: "Query is fetching more, cannot refetch"}
	}
	if f := inst.inflightMain; f != nil {
		inst.mu.Unlock()
		<-f.done
		return f.value, f.err
	}
	if inst.state == Resolved {
		inst.isRefetching = true
	}
	f := inst.startMainFetchLocked(ctx)
	inst.mu.Unlock()
	<-f.done
	return f.value, f.err
}

// FetchNextPage advances an infinite query by one page. It is a usage error
// on a non-infinite query, while a refetch is in flight, or once the
// paginator reports exhaustion.
func (inst *Instance) FetchNextPage(ctx context.Context) (any, error) {
	inst.mu.Lock()
	if inst.def.Kind != KindInfinite {
		inst.mu.Unlock()
		return nil, &UsageError{Message: "fetchNextPage is only valid for infinite queries"}
	}
	if inst.isRefetching {
		inst.mu.Unlock()
		return nil, &UsageError{Message: "Query is refetching, cannot fetch next page"}
	}
	if f := inst.inflightPage; f != nil {
		inst.mu.Unlock()
		<-f.done
		return f.value, f.err
	}
	if !inst.hasNextPage {
		inst.mu.Unlock()
		return nil, &UsageError{Message: "No next page params"}
	}

	var lastPage any
	var lastParams map[string]any
	if n := len(inst.pages); n > 0 {
		lastPage = inst.pages[n-1]
	}
	if n := len(inst.cursorParams); n > 0 {
		lastParams = inst.cursorParams[n-1]
	}
	nextParams, ok := inst.def.Paginate(lastPage, lastParams)
	if !ok {
		inst.hasNextPage = false
		inst.mu.Unlock()
		return nil, &UsageError{Message: "No next page params"}
	}

	inst.isFetchingMore = true
	f := newFuture()
	inst.inflightPage = f
	inst.mu.Unlock()

	go inst.runPageFetch(ctx, nextParams, f)
	<-f.done
	return f.value, f.err
}

// OnStreamUpdate applies a pushed value from a stream-kind query's
// StreamSubscriber: object-shaped updates merge onto the existing value,
// anything else replaces it wholesale.
func (inst *Instance) OnStreamUpdate(value any) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.state == Resolved {
		if existing, ok := inst.value.(map[string]any); ok {
			if incoming, ok2 := value.(map[string]any); ok2 {
				merged := make(map[string]any, len(existing)+len(incoming))
				for k, v := range existing {
					merged[k] = v
				}
				for k, v := range incoming {
					merged[k] = v
				}
				inst.value = merged
				return
			}
		}
	}
	inst.state = Resolved
	inst.value = value
	inst.err = nil
}

// ActivateStream starts the definition's StreamSubscriber, if any, returning
// its teardown (or a no-op). Meant to be wired as a reactive.Relay's
// onActivate callback by the Client — Instance itself never touches the
// reactive package, keeping the activation/subscriber-count bookkeeping in
// the Client's layer.
func (inst *Instance) ActivateStream(ctx context.Context) func() {
	if inst.def.Stream == nil {
		return func() {}
	}
	teardown, err := inst.def.Stream(ctx, inst.OnStreamUpdate)
	if err != nil {
		logger.Warn("query: stream subscriber activation failed", "defId", inst.def.ID, "err", err)
		return func() {}
	}
	if teardown == nil {
		return func() {}
	}
	return teardown
}

func (inst *Instance) startMainFetchLocked(ctx context.Context) *future {
	f := newFuture()
	inst.inflightMain = f
	go inst.runMainFetch(ctx, f)
	return f
}

func (inst *Instance) loadFromCache(ctx context.Context) {
	doc, ok, err := inst.deps.Store.LoadQuery(ctx, inst.key)
	if err != nil {
		logger.Warn("query: cache load failed", "key", inst.key, "err", err)
		return
	}
	if !ok {
		return
	}

	var decoded any
	if err := json.Unmarshal([]byte(doc.Value), &decoded); err != nil {
		logger.Warn("query: cache corruption, discarding", "key", inst.key, "err", err)
		_ = inst.deps.Store.DeleteDocument(ctx, inst.key)
		return
	}
	if !refsResolvable(decoded, inst.deps.ParseCtx) {
		logger.Warn("query: cache corruption, dangling entity ref", "key", inst.key)
		_ = inst.deps.Store.DeleteDocument(ctx, inst.key)
		return
	}

	materialized := parser.Materialize(decoded, inst.deps.ParseCtx.Registry, inst.deps.ParseCtx.Entities)
	fresh := inst.def.Cache.StaleTime > 0 && store.NowMillis()-doc.UpdatedAt < inst.def.Cache.StaleTime.Milliseconds()

	inst.mu.Lock()
	value := materialized
	if inst.def.Kind == KindInfinite {
		inst.pages = []any{materialized}
		inst.cursorParams = []map[string]any{cloneArgs(inst.args)}
		value = append([]any{}, inst.pages...)
	}
	inst.state = Resolved
	inst.value = value
	inst.updatedAt = doc.UpdatedAt
	inst.isRefetching = !fresh
	inst.mu.Unlock()
}

// cloneArgs returns a shallow copy of args, so callers that stash it (e.g.
// cursorParams) never alias the instance's own args map.
func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// refsResolvable reports whether every entity ref placeholder reachable
// within v currently resolves against the live Entity Map — a ref left
// dangling (process restarted mid-reference-count, or entity independently
// evicted) is treated as cache corruption, the same way unparsable JSON is.
func refsResolvable(v any, pc *parser.ParseContext) bool {
	if k, ok := parser.IsEntityRef(v); ok {
		key, ok := pc.Registry.Lookup(k)
		if !ok {
			return false
		}
		_, ok = pc.Entities.Get(key)
		return ok
	}
	switch t := v.(type) {
	case map[string]any:
		for _, vv := range t {
			if !refsResolvable(vv, pc) {
				return false
			}
		}
	case []any:
		for _, vv := range t {
			if !refsResolvable(vv, pc) {
				return false
			}
		}
	}
	return true
}

func (inst *Instance) runMainFetch(ctx context.Context, f *future) {
	req, err := inst.buildRequest(inst.args)
	if err != nil {
		inst.finishMain(f, nil, err)
		return
	}

	resp, err := inst.deps.Fetch.Fetch(ctx, req)
	if err != nil {
		inst.finishMain(f, nil, &NetworkError{Err: err})
		return
	}

	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		inst.finishMain(f, nil, &NetworkError{Err: err})
		return
	}

	normalized, err := parser.Parse(ctx, inst.def.Response, decoded, inst.deps.ParseCtx)
	if err != nil {
		inst.finishMain(f, nil, err)
		return
	}

	now := store.NowMillis()
	if perr := inst.persist(ctx, normalized, now); perr != nil {
		logger.Warn("query: persist failed", "key", inst.key, "err", perr)
	}

	materialized := parser.Materialize(normalized, inst.deps.ParseCtx.Registry, inst.deps.ParseCtx.Entities)
	inst.mu.Lock()
	inst.updatedAt = now
	value := materialized
	if inst.def.Kind == KindInfinite {
		// A (re)fetch of page 1 always starts a fresh page list — on first
		// Invoke this seeds it, on Refetch it discards whatever later pages
		// FetchNextPage had accumulated.
		inst.pages = []any{materialized}
		inst.cursorParams = []map[string]any{cloneArgs(inst.args)}
		inst.hasNextPage = true
		value = append([]any{}, inst.pages...)
	}
	inst.mu.Unlock()
	inst.finishMain(f, value, nil)
}

func (inst *Instance) persist(ctx context.Context, normalized any, now int64) error {
	refIds := parser.CollectRefs(normalized)
	payload, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("query: marshal response for %d: %w", inst.key, err)
	}
	return inst.deps.Store.SaveQuery(ctx, inst.key, string(payload), refIds, now)
}

func (inst *Instance) finishMain(f *future, value any, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.QueryFetches.WithLabelValues(inst.def.ID, outcome).Inc()

	inst.mu.Lock()
	if err == nil {
		inst.state = Resolved
		inst.value = value
		inst.err = nil
	} else if inst.state == Resolved {
		// Refetch failure: keep the prior value, surface the error on the
		// awaited future only.
		inst.err = err
	} else {
		inst.state = Rejected
		inst.err = err
	}
	inst.isRefetching = false
	inst.inflightMain = nil
	inst.mu.Unlock()

	f.value, f.err = value, err
	close(f.done)
}

func (inst *Instance) runPageFetch(ctx context.Context, params map[string]any, f *future) {
	merged := make(map[string]any, len(inst.args)+len(params))
	for k, v := range inst.args {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	req, err := inst.buildRequest(merged)
	if err != nil {
		inst.finishPage(f, nil, err)
		return
	}
	resp, err := inst.deps.Fetch.Fetch(ctx, req)
	if err != nil {
		inst.finishPage(f, nil, &NetworkError{Err: err})
		return
	}

	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		inst.finishPage(f, nil, &NetworkError{Err: err})
		return
	}

	normalized, err := parser.Parse(ctx, inst.def.Response, decoded, inst.deps.ParseCtx)
	if err != nil {
		inst.finishPage(f, nil, err)
		return
	}

	now := store.NowMillis()
	if perr := inst.persist(ctx, normalized, now); perr != nil {
		logger.Warn("query: persist failed", "key", inst.key, "err", perr)
	}
	materialized := parser.Materialize(normalized, inst.deps.ParseCtx.Registry, inst.deps.ParseCtx.Entities)

	inst.mu.Lock()
	inst.pages = append(inst.pages, materialized)
	inst.cursorParams = append(inst.cursorParams, params)
	inst.mu.Unlock()

	inst.finishPage(f, append([]any{}, inst.pagesSnapshot()...), nil)
}

func (inst *Instance) pagesSnapshot() []any {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return append([]any{}, inst.pages...)
}

func (inst *Instance) finishPage(f *future, value any, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.QueryFetches.WithLabelValues(inst.def.ID, outcome).Inc()

	inst.mu.Lock()
	inst.isFetchingMore = false
	inst.inflightPage = nil
	if err != nil {
		inst.err = err
	}
	inst.mu.Unlock()

	f.value, f.err = value, err
	close(f.done)
}

var pathHole = regexp.MustCompile(`\[(\w+)\]`)

// buildRequest renders def.Path/SearchParams/Body against args into a
// transport Request: named path holes become required substitutions,
// declared search-param fields become a sorted query string, declared body
// fields become a JSON payload.
func (inst *Instance) buildRequest(args map[string]any) (Request, error) {
	path := inst.def.Path
	for _, m := range pathHole.FindAllStringSubmatch(path, -1) {
		name := m[1]
		v, ok := args[name]
		if !ok {
			return Request{}, &UsageError{Message: fmt.Sprintf("missing path arg %q for %s", name, inst.def.ID)}
		}
		path = strings.ReplaceAll(path, m[0], fmt.Sprint(v))
	}

	url := inst.deps.BaseURL() + path
	if inst.def.SearchParams != nil {
		if err := inst.def.SearchParams.Reify(); err != nil {
			return Request{}, err
		}
		var parts []string
		for name := range inst.def.SearchParams.FieldsMap() {
			if v, ok := args[name]; ok {
				parts = append(parts, name+"="+fmt.Sprint(v))
			}
		}
		sort.Strings(parts)
		if len(parts) > 0 {
			url += "?" + strings.Join(parts, "&")
		}
	}

	headers := map[string]string{}
	var body []byte
	if inst.def.Body != nil {
		if err := inst.def.Body.Reify(); err != nil {
			return Request{}, err
		}
		payload := map[string]any{}
		for name := range inst.def.Body.FieldsMap() {
			if v, ok := args[name]; ok {
				payload[name] = v
			}
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return Request{}, err
		}
		body = b
		headers["Content-Type"] = "application/json"
	}

	return Request{Method: inst.def.Method, URL: url, Headers: headers, Body: body}, nil
}
