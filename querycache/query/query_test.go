package query_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/shashiranjanraj/qcache/querycache/entity"
	"github.com/shashiranjanraj/qcache/querycache/kv"
	"github.com/shashiranjanraj/qcache/querycache/parser"
	"github.com/shashiranjanraj/qcache/querycache/query"
	"github.com/shashiranjanraj/qcache/querycache/schema"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

// fakeFetcher serves pre-programmed responses in sequence and counts calls.
type fakeFetcher struct {
	responses []fakeResponse
	calls     int32
}

type fakeResponse struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ query.Request) (query.Response, error) {
	i := int(atomic.AddInt32(&f.calls, 1)) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	r := f.responses[i]
	if r.err != nil {
		return query.Response{}, r.err
	}
	return query.Response{StatusCode: 200, Body: r.body}, nil
}

func newDeps(fetch query.Fetcher) query.Deps {
	mem := kv.NewMemStore()
	sf := store.New(mem, mem)
	pc := parser.NewParseContext(entity.New(), parser.NewRegistry(), sf)
	return query.Deps{
		Store:    sf,
		Fetch:    fetch,
		ParseCtx: pc,
		BaseURL:  func() string { return "https://api.test" },
	}
}

var itemResponseSchema = schema.Object(func() schema.Fields {
	return schema.Fields{"id": schema.String(), "name": schema.String()}
})

func TestInvokeCacheMissFetchesSynchronously(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"id": "1", "name": "Widget"})
	fetch := &fakeFetcher{responses: []fakeResponse{{body: body}}}
	deps := newDeps(fetch)

	def := &query.Definition{ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemResponseSchema}
	inst := query.New(1, def, map[string]any{"id": "1"}, deps)

	v, err := inst.Invoke(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["name"] != "Widget" {
		t.Fatalf("expected resolved value with name Widget, got %#v", v)
	}
	if fetch.calls != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", fetch.calls)
	}
}

func TestRefetchPreservesPriorValueOnError(t *testing.T) {
	ok1, _ := json.Marshal(map[string]any{"id": "1", "name": "Widget"})
	fetch := &fakeFetcher{responses: []fakeResponse{
		{body: ok1},
		{err: errBoom{}},
	}}
	deps := newDeps(fetch)
	def := &query.Definition{ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemResponseSchema}
	inst := query.New(2, def, map[string]any{"id": "1"}, deps)

	if _, err := inst.Invoke(context.Background()); err != nil {
		t.Fatalf("initial invoke: %v", err)
	}

	_, err := inst.Refetch(context.Background())
	if err == nil {
		t.Fatal("expected refetch to surface the network error")
	}

	state, value, _ := inst.Peek()
	if state != query.Resolved {
		t.Fatalf("expected state to remain Resolved after failed refetch, got %v", state)
	}
	m := value.(map[string]any)
	if m["name"] != "Widget" {
		t.Fatalf("expected prior value preserved, got %#v", value)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestFetchNextPageExhaustion(t *testing.T) {
	page1, _ := json.Marshal(map[string]any{"id": "1", "name": "A"})
	fetch := &fakeFetcher{responses: []fakeResponse{{body: page1}}}
	deps := newDeps(fetch)

	calls := 0
	def := &query.Definition{
		ID: "listItems", Path: "/items", Method: "GET", Kind: query.KindInfinite,
		Response: itemResponseSchema,
		Paginate: func(lastPage any, priorParams map[string]any) (map[string]any, bool) {
			calls++
			if calls > 1 {
				return nil, false
			}
			return map[string]any{"cursor": "next"}, true
		},
	}
	inst := query.New(3, def, map[string]any{}, deps)

	v, err := inst.FetchNextPage(context.Background())
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	pages, ok := v.([]any)
	if !ok || len(pages) != 1 {
		t.Fatalf("expected 1 page, got %#v", v)
	}

	_, err = inst.FetchNextPage(context.Background())
	if err == nil {
		t.Fatal("expected exhaustion usage error")
	}
	ue, ok := err.(*query.UsageError)
	if !ok || ue.Message != "No next page params" {
		t.Fatalf("expected exhaustion UsageError, got %#v", err)
	}
}

func TestInvokeSeedsFirstPageForInfiniteQuery(t *testing.T) {
	page1, _ := json.Marshal(map[string]any{"id": "1", "name": "A"})
	fetch := &fakeFetcher{responses: []fakeResponse{{body: page1}}}
	deps := newDeps(fetch)

	def := &query.Definition{
		ID: "listItems", Path: "/items", Method: "GET", Kind: query.KindInfinite,
		Response: itemResponseSchema,
		Paginate: func(lastPage any, priorParams map[string]any) (map[string]any, bool) {
			return nil, false
		},
	}
	inst := query.New(6, def, map[string]any{}, deps)

	v, err := inst.Invoke(context.Background())
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	pages, ok := v.([]any)
	if !ok || len(pages) != 1 {
		t.Fatalf("expected Invoke to seed a 1-element page list, got %#v", v)
	}
}

func TestRefetchResetsPagesOnInfiniteQuery(t *testing.T) {
	page1, _ := json.Marshal(map[string]any{"id": "1", "name": "A"})
	page2, _ := json.Marshal(map[string]any{"id": "2", "name": "B"})
	refetched, _ := json.Marshal(map[string]any{"id": "1", "name": "A2"})
	fetch := &fakeFetcher{responses: []fakeResponse{{body: page1}, {body: page2}, {body: refetched}}}
	deps := newDeps(fetch)

	def := &query.Definition{
		ID: "listItems", Path: "/items", Method: "GET", Kind: query.KindInfinite,
		Response: itemResponseSchema,
		Paginate: func(lastPage any, priorParams map[string]any) (map[string]any, bool) {
			return map[string]any{"cursor": "next"}, true
		},
	}
	inst := query.New(7, def, map[string]any{}, deps)

	v, err := inst.Invoke(context.Background())
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if pages, ok := v.([]any); !ok || len(pages) != 1 {
		t.Fatalf("expected 1 page after invoke, got %#v", v)
	}

	v, err = inst.FetchNextPage(context.Background())
	if err != nil {
		t.Fatalf("fetch next page: %v", err)
	}
	if pages, ok := v.([]any); !ok || len(pages) != 2 {
		t.Fatalf("expected 2 pages after fetchNextPage, got %#v", v)
	}

	v, err = inst.Refetch(context.Background())
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	pages, ok := v.([]any)
	if !ok || len(pages) != 1 {
		t.Fatalf("expected refetch to reset pages to length 1, got %#v", v)
	}
}

func TestFetchNextPageRejectsOnNonInfiniteDefinition(t *testing.T) {
	deps := newDeps(&fakeFetcher{})
	def := &query.Definition{ID: "getItem", Path: "/items/[id]", Method: "GET", Response: itemResponseSchema}
	inst := query.New(4, def, map[string]any{"id": "1"}, deps)

	_, err := inst.FetchNextPage(context.Background())
	if _, ok := err.(*query.UsageError); !ok {
		t.Fatalf("expected UsageError for fetchNextPage on non-infinite query, got %#v", err)
	}
}

// blockingFetcher blocks the first Fetch call until release is closed, so
// tests can observe an in-flight fetch's overlap-guard behavior.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	body    []byte
}

func (f *blockingFetcher) Fetch(_ context.Context, _ query.Request) (query.Response, error) {
	close(f.entered)
	<-f.release
	return query.Response{StatusCode: 200, Body: f.body}, nil
}

func TestRefetchRejectsWhileFetchingMore(t *testing.T) {
	page1, _ := json.Marshal(map[string]any{"id": "1", "name": "A"})
	fetch := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{}), body: page1}
	deps := newDeps(fetch)

	def := &query.Definition{
		ID: "listItems", Path: "/items", Method: "GET", Kind: query.KindInfinite,
		Response: itemResponseSchema,
		Paginate: func(lastPage any, priorParams map[string]any) (map[string]any, bool) {
			return map[string]any{"cursor": "next"}, true
		},
	}
	inst := query.New(5, def, map[string]any{}, deps)

	pageDone := make(chan error, 1)
	go func() {
		_, err := inst.FetchNextPage(context.Background())
		pageDone <- err
	}()

	<-fetch.entered // the page fetch has set isFetchingMore and is now blocked in Fetch

	_, err := inst.Refetch(context.Background())
	ue, ok := err.(*query.UsageError)
	if !ok || ue.Message != "Query is fetching more, cannot refetch" {
		t.Fatalf("expected fetching-more UsageError, got %#v", err)
	}

	close(fetch.release)
	if err := <-pageDone; err != nil {
		t.Fatalf("page fetch failed: %v", err)
	}
}
