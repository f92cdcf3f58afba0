// Package client implements the Query Client: the single process-lifetime
// owner of every live Query Instance, the Entity Map, and the in-memory GC
// sweep that bounds how many instances stay resident after their last
// subscriber leaves.
package client

import (
	"container/heap"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shashiranjanraj/qcache/pkg/logger"
	"github.com/shashiranjanraj/qcache/pkg/metrics"
	"github.com/shashiranjanraj/qcache/querycache/entity"
	"github.com/shashiranjanraj/qcache/querycache/parser"
	"github.com/shashiranjanraj/qcache/querycache/query"
	"github.com/shashiranjanraj/qcache/querycache/reactive"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

// entry pairs a live Query Instance with the Relay that tracks its
// subscriber count and drives its stream-subscription activation.
type entry struct {
	inst  *query.Instance
	relay *reactive.Relay[any]
	defID string
}

// Client is the Query Client: it creates/looks up Query Instances keyed by
// (definition id, argument fingerprint), wires each one's Relay to itself as
// an ActivationHook so deactivation schedules in-memory GC, and runs the
// periodic sweep that evicts instances whose GC deadline has passed. It
// satisfies reactive.ActivationHook itself, the same way pkg/ws.Hub is both
// connection registry and the thing register/unregister events are
// reported to.
type Client struct {
	mu   sync.RWMutex
	defs map[string]*query.Definition
	live map[uint32]*entry

	store    *store.Facade
	fetch    query.Fetcher
	parseCtx *parser.ParseContext
	baseURL  func() string

	heapMu    sync.Mutex
	gcHeap    gcHeap
	gcByKey   map[uint32]*gcEntry
	sweepStop chan struct{}
}

// Deps is the set of externally-owned collaborators the Client is
// constructed with — it never builds its own Store/Fetcher/Entity Map.
type Deps struct {
	Store   *store.Facade
	Fetch   query.Fetcher
	BaseURL func() string
}

// New builds a Client with its own Entity Map and ref registry, wired to
// the given dependencies.
func New(deps Deps) *Client {
	pc := parser.NewParseContext(entity.New(), parser.NewRegistry(), deps.Store)
	return &Client{
		defs:     make(map[string]*query.Definition),
		live:     make(map[uint32]*entry),
		store:    deps.Store,
		fetch:    deps.Fetch,
		parseCtx: pc,
		baseURL:  deps.BaseURL,
		gcByKey:  make(map[uint32]*gcEntry),
	}
}

// RegisterDefinition declares a query definition the Client can serve. It
// only records the definition; entity method tables are registered
// separately with RegisterMethods.
func (c *Client) RegisterDefinition(def *query.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.ID] = def
}

// RegisterMethods declares the reactive method table for every entity of
// the given typename, threaded through to the shared parse context.
func (c *Client) RegisterMethods(typename string, methods map[string]entity.Method) {
	c.parseCtx.RegisterMethods(typename, methods)
}

// Query returns the live Query Instance for (defID, args), creating one on
// first use, along with the Relay subscribers Inc/DecRef to drive its
// activation lifecycle.
func (c *Client) Query(ctx context.Context, defID string, args map[string]any) (*query.Instance, *reactive.Relay[any], error) {
	c.mu.RLock()
	def, ok := c.defs[defID]
	c.mu.RUnlock()
	if !ok {
		return nil, nil, &query.UsageError{Message: "unknown query definition " + defID}
	}

	key, _, err := query.Fingerprint(defID, args)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	if e, ok := c.live[key]; ok {
		c.mu.Unlock()
		metrics.QueryDedupHits.WithLabelValues(defID).Inc()
		return e.inst, e.relay, nil
	}

	inst := query.New(key, def, args, query.Deps{
		Store:    c.store,
		Fetch:    c.fetch,
		ParseCtx: c.parseCtx,
		BaseURL:  c.baseURL,
	})
	relay := reactive.NewRelay[any](strconv.FormatUint(uint64(key), 10), func() func() {
		return inst.ActivateStream(context.Background())
	})
	relay.SetActivationHook(c)
	e := &entry{inst: inst, relay: relay, defID: defID}
	c.live[key] = e
	c.mu.Unlock()

	metrics.QueryLiveInstances.WithLabelValues(defID).Inc()

	activeKeys := c.activeKeysFor(defID)
	if err := c.store.ActivateQuery(ctx, defID, key, def.Cache.MaxCount, activeKeys); err != nil {
		logger.Warn("client: activateQuery failed", "defId", defID, "key", key, "err", err)
	}

	return inst, relay, nil
}

// activeKeysFor returns the string-form keys of every currently-subscribed
// (relay.SubscriberCount() > 0) instance under defID, so the on-disk LRU
// never evicts a document a live subscriber still depends on.
func (c *Client) activeKeysFor(defID string) map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool)
	for key, e := range c.live {
		if e.defID == defID && e.relay.SubscriberCount() > 0 {
			out[strconv.FormatUint(uint64(key), 10)] = true
		}
	}
	return out
}

// OnActivated implements reactive.ActivationHook: a relay gaining its first
// subscriber cancels any pending GC sweep for that instance.
func (c *Client) OnActivated(relayID string) {
	key, err := strconv.ParseUint(relayID, 10, 32)
	if err != nil {
		return
	}
	c.cancelGC(uint32(key))
}

// OnDeactivated implements reactive.ActivationHook: a relay losing its last
// subscriber schedules the instance for in-memory eviction after its
// definition's GCTime elapses. A zero GCTime means unbounded — nothing is
// scheduled.
func (c *Client) OnDeactivated(relayID string) {
	key, err := strconv.ParseUint(relayID, 10, 32)
	if err != nil {
		return
	}

	c.mu.RLock()
	e, ok := c.live[uint32(key)]
	c.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.RLock()
	def := c.defs[e.defID]
	c.mu.RUnlock()
	if def == nil || def.Cache.GCTime <= 0 {
		return
	}

	c.scheduleGC(uint32(key), time.Now().Add(def.Cache.GCTime))
}

// evictionMultiplier scales the sweep ticker's 1-second base interval.
// Production code must never touch it; it exists so tests don't have to
// wait a full second per sweep tick to observe GC eviction.
var evictionMultiplier = 1.0

// SetEvictionMultiplierForTests overrides the sweep ticker's interval
// multiplier (e.g. 0.01 to make a 1s tick fire every 10ms). Test-only —
// never call this from production code, and restore it to 1.0 when the
// test is done since the override is process-global.
func SetEvictionMultiplierForTests(m float64) {
	evictionMultiplier = m
}

// Sweep runs the GC sweep loop until ctx is canceled, evicting in-memory
// instances whose deadline has passed. Grounded on pkg/schedule's 1s ticker
// loop, generalized from cron-entry dispatch to heap-deadline dispatch.
func (c *Client) Sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) * evictionMultiplier))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *Client) sweepOnce() {
	now := time.Now()
	for {
		c.heapMu.Lock()
		if len(c.gcHeap) == 0 || c.gcHeap[0].deadline.After(now) {
			c.heapMu.Unlock()
			break
		}
		due := heap.Pop(&c.gcHeap).(*gcEntry)
		delete(c.gcByKey, due.key)
		c.heapMu.Unlock()

		c.evictIfIdle(due.key, due.defID)
	}

	c.heapMu.Lock()
	depth := len(c.gcHeap)
	c.heapMu.Unlock()
	metrics.QueryGCHeapDepth.WithLabelValues().Set(float64(depth))

	c.refreshLRUSizeGauges()
}

// refreshLRUSizeGauges reports each registered definition's on-disk LRU set
// size to the qcache_query_lru_size gauge, once per sweep tick rather than per
// Query call.
func (c *Client) refreshLRUSizeGauges() {
	c.mu.RLock()
	defIDs := make([]string, 0, len(c.defs))
	for id := range c.defs {
		defIDs = append(defIDs, id)
	}
	c.mu.RUnlock()

	for _, id := range defIDs {
		n, err := c.store.LRUSize(context.Background(), id)
		if err != nil {
			continue
		}
		metrics.QueryLRUSize.WithLabelValues(id).Set(float64(n))
	}
}

func (c *Client) evictIfIdle(key uint32, defID string) {
	c.mu.Lock()
	e, ok := c.live[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	if e.relay.SubscriberCount() > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.live, key)
	c.mu.Unlock()

	metrics.QueryLiveInstances.WithLabelValues(defID).Dec()
	metrics.QueryGCEvictions.WithLabelValues(defID).Inc()
}

func (c *Client) scheduleGC(key uint32, deadline time.Time) {
	c.mu.RLock()
	e := c.live[key]
	c.mu.RUnlock()
	if e == nil {
		return
	}

	c.heapMu.Lock()
	defer c.heapMu.Unlock()
	if existing, ok := c.gcByKey[key]; ok {
		existing.deadline = deadline
		heap.Fix(&c.gcHeap, existing.index)
		return
	}
	ge := &gcEntry{key: key, defID: e.defID, deadline: deadline}
	heap.Push(&c.gcHeap, ge)
	c.gcByKey[key] = ge
}

func (c *Client) cancelGC(key uint32) {
	c.heapMu.Lock()
	defer c.heapMu.Unlock()
	ge, ok := c.gcByKey[key]
	if !ok {
		return
	}
	heap.Remove(&c.gcHeap, ge.index)
	delete(c.gcByKey, key)
}

// LiveCount reports how many Query Instances are currently resident, for
// diagnostics (cmd/querycache inspect).
func (c *Client) LiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.live)
}

// InstanceInfo is a point-in-time snapshot of one live Query Instance, for
// introspection tooling (cmd/querycache inspect).
type InstanceInfo struct {
	DefID       string
	Key         uint32
	State       query.State
	Subscribers int
	UpdatedAt   int64
	PendingGC   bool
	GCDeadline  time.Time
}

// Instances snapshots every currently-resident Query Instance.
func (c *Client) Instances() []InstanceInfo {
	c.mu.RLock()
	out := make([]InstanceInfo, 0, len(c.live))
	for key, e := range c.live {
		state, _, _ := e.inst.Peek()
		out = append(out, InstanceInfo{
			DefID:       e.defID,
			Key:         key,
			State:       state,
			Subscribers: e.relay.SubscriberCount(),
			UpdatedAt:   e.inst.UpdatedAt(),
		})
	}
	c.mu.RUnlock()

	c.heapMu.Lock()
	defer c.heapMu.Unlock()
	for i := range out {
		if ge, ok := c.gcByKey[out[i].Key]; ok {
			out[i].PendingGC = true
			out[i].GCDeadline = ge.deadline
		}
	}
	return out
}

// ForceSweep runs one GC sweep pass immediately, evicting any instance whose
// deadline has already passed, without waiting for the next ticker tick
// (cmd/querycache gc-sweep).
func (c *Client) ForceSweep() {
	c.sweepOnce()
}
