package demo

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/qcache/pkg/logger"
	"github.com/shashiranjanraj/qcache/querycache/client"
	"github.com/shashiranjanraj/qcache/querycache/kv"
	"github.com/shashiranjanraj/qcache/querycache/parser"
	"github.com/shashiranjanraj/qcache/querycache/query"
	"github.com/shashiranjanraj/qcache/querycache/store"
	"github.com/shashiranjanraj/qcache/querycache/transport"
)

// NewClient builds a Query Client pointed at baseURL, backed by a scratch
// in-memory store — the same kv.MemStore substrate cmd/querycache's
// --in-memory flag uses for smoke-testing, appropriate for a demo run that
// shares no state across invocations.
func NewClient(baseURL string) *client.Client {
	mem := kv.NewMemStore()
	sf := store.New(mem, mem)
	fetcher := transport.NewHTTPFetcher(query.RetryPolicy{})

	c := client.New(client.Deps{
		Store:   sf,
		Fetch:   fetcher,
		BaseURL: func() string { return baseURL },
	})
	for _, def := range Definitions() {
		c.RegisterDefinition(def)
	}
	return c
}

// RunScenario drives the registered definitions through a scripted sequence
// demonstrating caching, deduplication, pagination, entity normalization,
// and GC — printing each step's observable effect.
func RunScenario(ctx context.Context, c *client.Client) error {
	logger.Info("demo: fetching product 1 (cache miss)")
	inst1, relay1, err := c.Query(ctx, "getProduct", map[string]any{"id": "1"})
	if err != nil {
		return err
	}
	relay1.IncRef()
	v1, err := inst1.Invoke(ctx)
	if err != nil {
		return err
	}
	printEntity("getProduct(1)", v1)

	logger.Info("demo: fetching product 1 again (same args -> deduped onto the live instance)")
	inst1Again, _, err := c.Query(ctx, "getProduct", map[string]any{"id": "1"})
	if err != nil {
		return err
	}
	fmt.Printf("same instance returned: %v\n", inst1 == inst1Again)

	logger.Info("demo: fetching user 1")
	instUser, relayUser, err := c.Query(ctx, "getUser", map[string]any{"id": "1"})
	if err != nil {
		return err
	}
	relayUser.IncRef()
	vUser, err := instUser.Invoke(ctx)
	if err != nil {
		return err
	}
	printEntity("getUser(1)", vUser)

	logger.Info("demo: fetching product 1 via GraphQL (same entity, different transport)")
	instGQL, relayGQL, err := c.Query(ctx, "getProductGraphQL", map[string]any{
		"query":     getProductGraphQLQuery,
		"variables": map[string]any{"id": 1},
	})
	if err != nil {
		return err
	}
	relayGQL.IncRef()
	vGQL, err := instGQL.Invoke(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("getProductGraphQL(1) envelope: %v\n", vGQL)

	logger.Info("demo: paginating listProducts (limit=2)")
	instPage, relayPage, err := c.Query(ctx, "listProducts", map[string]any{"limit": "2"})
	if err != nil {
		return err
	}
	relayPage.IncRef()
	firstPages, err := instPage.Invoke(ctx)
	if err != nil {
		return err
	}
	if pages, ok := firstPages.([]any); ok && len(pages) > 0 {
		printPage("listProducts page 1", pages[len(pages)-1])
	}

	for i := 0; i < 2; i++ {
		more, err := instPage.FetchNextPage(ctx)
		if err != nil {
			logger.Info("demo: listProducts exhausted", "err", err.Error())
			break
		}
		pages, _ := more.([]any)
		if n := len(pages); n > 0 {
			printPage(fmt.Sprintf("listProducts page %d", n), pages[n-1])
		}
	}

	logger.Info("demo: GC — releasing every subscriber, then forcing a sweep")
	fmt.Printf("live instances before release: %d\n", c.LiveCount())
	relay1.DecRef()
	relayUser.DecRef()
	relayGQL.DecRef()
	relayPage.DecRef()
	c.ForceSweep()
	fmt.Printf("live instances after an immediate sweep (GCTime hasn't elapsed yet): %d\n", c.LiveCount())

	return nil
}

func printEntity(label string, v any) {
	p, ok := v.(*parser.EntityProxy)
	if !ok {
		fmt.Printf("%s: %v\n", label, v)
		return
	}
	fmt.Printf("%s: %s#%s %v\n", label, p.Typename(), p.ID(), p.Fields())
}

func printPage(label string, v any) {
	page, ok := v.(map[string]any)
	if !ok {
		fmt.Printf("%s: %v\n", label, v)
		return
	}
	items, _ := page["items"].([]any)
	for _, item := range items {
		printEntity(label, item)
	}
	if cursor, ok := page["nextCursor"]; ok {
		fmt.Printf("%s nextCursor: %v\n", label, cursor)
	}
}
