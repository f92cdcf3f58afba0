package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shashiranjanraj/qcache/querycache/kv"
	"github.com/shashiranjanraj/qcache/querycache/query"
	"github.com/shashiranjanraj/qcache/querycache/schema"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

type stubFetcher struct{ body []byte }

func (f stubFetcher) Fetch(_ context.Context, _ query.Request) (query.Response, error) {
	return query.Response{StatusCode: 200, Body: f.body}, nil
}

func newTestClient() *Client {
	mem := kv.NewMemStore()
	sf := store.New(mem, mem)
	body, _ := json.Marshal(map[string]any{"id": "1", "name": "Widget"})
	return New(Deps{
		Store:   sf,
		Fetch:   stubFetcher{body: body},
		BaseURL: func() string { return "https://api.test" },
	})
}

var itemSchema = schema.Object(func() schema.Fields {
	return schema.Fields{"id": schema.String(), "name": schema.String()}
})

func TestQueryReturnsSameInstanceForSameArgs(t *testing.T) {
	c := newTestClient()
	c.RegisterDefinition(&query.Definition{ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemSchema})

	inst1, _, err := c.Query(context.Background(), "getItem", map[string]any{"id": "1"})
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	inst2, _, err := c.Query(context.Background(), "getItem", map[string]any{"id": "1"})
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if inst1 != inst2 {
		t.Fatal("expected the same Instance for identical (defID, args)")
	}
	if c.LiveCount() != 1 {
		t.Fatalf("expected 1 live instance, got %d", c.LiveCount())
	}
}

func TestQueryDistinctArgsGetDistinctInstances(t *testing.T) {
	c := newTestClient()
	c.RegisterDefinition(&query.Definition{ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemSchema})

	inst1, _, _ := c.Query(context.Background(), "getItem", map[string]any{"id": "1"})
	inst2, _, _ := c.Query(context.Background(), "getItem", map[string]any{"id": "2"})
	if inst1 == inst2 {
		t.Fatal("expected distinct instances for distinct args")
	}
	if c.LiveCount() != 2 {
		t.Fatalf("expected 2 live instances, got %d", c.LiveCount())
	}
}

func TestUnknownDefinitionIsUsageError(t *testing.T) {
	c := newTestClient()
	_, _, err := c.Query(context.Background(), "nope", nil)
	if _, ok := err.(*query.UsageError); !ok {
		t.Fatalf("expected UsageError for unknown definition, got %#v", err)
	}
}

func TestDeactivationSchedulesGCAndActivationCancelsIt(t *testing.T) {
	c := newTestClient()
	c.RegisterDefinition(&query.Definition{
		ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemSchema,
		Cache: query.CachePolicy{GCTime: time.Hour},
	})

	_, relay, err := c.Query(context.Background(), "getItem", map[string]any{"id": "1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	relay.IncRef()
	relay.DecRef() // subscriber count back to 0: should schedule GC

	c.heapMu.Lock()
	n := len(c.gcHeap)
	c.heapMu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 pending GC entry after deactivation, got %d", n)
	}

	relay.IncRef() // reactivating should cancel the pending GC

	c.heapMu.Lock()
	n = len(c.gcHeap)
	c.heapMu.Unlock()
	if n != 0 {
		t.Fatalf("expected GC entry canceled after reactivation, got %d pending", n)
	}
}

func TestSweepEvictsOnlyIdlePastDeadlineInstances(t *testing.T) {
	c := newTestClient()
	c.RegisterDefinition(&query.Definition{
		ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemSchema,
		Cache: query.CachePolicy{GCTime: time.Millisecond},
	})

	_, relay, _ := c.Query(context.Background(), "getItem", map[string]any{"id": "1"})
	relay.IncRef()
	relay.DecRef()

	// Force the scheduled deadline into the past rather than sleeping.
	c.heapMu.Lock()
	for _, ge := range c.gcByKey {
		ge.deadline = time.Now().Add(-time.Second)
	}
	c.heapMu.Unlock()

	c.sweepOnce()

	if c.LiveCount() != 0 {
		t.Fatalf("expected the idle instance to be evicted, LiveCount=%d", c.LiveCount())
	}
}

func TestSweepLoopHonorsEvictionMultiplier(t *testing.T) {
	SetEvictionMultiplierForTests(0.001) // ~1ms ticks instead of 1s
	defer SetEvictionMultiplierForTests(1.0)

	c := newTestClient()
	c.RegisterDefinition(&query.Definition{
		ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemSchema,
		Cache: query.CachePolicy{GCTime: time.Millisecond},
	})

	_, relay, _ := c.Query(context.Background(), "getItem", map[string]any{"id": "1"})
	relay.IncRef()
	relay.DecRef()

	c.heapMu.Lock()
	for _, ge := range c.gcByKey {
		ge.deadline = time.Now().Add(-time.Second)
	}
	c.heapMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Sweep(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.LiveCount() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected Sweep's ticker to evict the idle instance within 1s, LiveCount=%d", c.LiveCount())
}
