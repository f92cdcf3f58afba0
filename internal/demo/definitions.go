package demo

import (
	"time"

	"github.com/shashiranjanraj/qcache/querycache/query"
	"github.com/shashiranjanraj/qcache/querycache/schema"
)

// pageSearchParams declares the cursor/limit query-string args the two
// infinite listing endpoints accept; field presence (not type) is what
// buildRequest consults to decide which args become the query string.
var pageSearchParams = schema.Object(func() schema.Fields {
	return schema.Fields{
		"cursor": schema.String(),
		"limit":  schema.String(),
	}
})

// graphqlBody declares the {query, variables} body the /graphql transport
// expects; see Definitions' getProductGraphQL below.
var graphqlBody = schema.Object(func() schema.Fields {
	return schema.Fields{
		"query":     schema.String(),
		"variables": schema.Object(func() schema.Fields { return schema.Fields{} }),
	}
})

const getProductGraphQLQuery = `query($id: Int!) { product(id: $id) { id name description price stock sku } }`

// Definitions returns every query.Definition the demo registers against a
// client.Client, grounded one-to-one on the REST/GraphQL endpoints
// app/routes wires up.
func Definitions() []*query.Definition {
	return []*query.Definition{
		{
			ID:     "getUser",
			Kind:   query.KindStandard,
			Path:   "/api/users/[id]",
			Method: "GET",
			Response: UserEntity,
			Cache: query.CachePolicy{
				StaleTime: 10 * time.Second,
				GCTime:    30 * time.Second,
			},
		},
		{
			ID:     "getProduct",
			Kind:   query.KindStandard,
			Path:   "/api/products/[id]",
			Method: "GET",
			Response: ProductEntity,
			Cache: query.CachePolicy{
				StaleTime: 10 * time.Second,
				GCTime:    30 * time.Second,
			},
		},
		{
			ID:           "listProducts",
			Kind:         query.KindInfinite,
			Path:         "/api/products",
			Method:       "GET",
			SearchParams: pageSearchParams,
			Response:     productPage,
			Paginate:     paginateByCursor,
			Cache: query.CachePolicy{
				GCTime:   30 * time.Second,
				MaxCount: 50,
			},
		},
		{
			ID:           "listUserOrders",
			Kind:         query.KindInfinite,
			Path:         "/api/users/[userId]/orders",
			Method:       "GET",
			SearchParams: pageSearchParams,
			Response:     orderPage,
			Paginate:     paginateByCursor,
			Cache: query.CachePolicy{
				GCTime:   30 * time.Second,
				MaxCount: 50,
			},
		},
		{
			ID:       "getProductGraphQL",
			Kind:     query.KindStandard,
			Path:     "/graphql",
			Method:   "POST",
			Body:     graphqlBody,
			Response: graphqlProductEnvelope,
			Cache: query.CachePolicy{
				StaleTime: 10 * time.Second,
				GCTime:    30 * time.Second,
			},
		},
	}
}

// paginateByCursor drives both infinite listing definitions: it reads the
// prior page's nextCursor field and asks for that page next, stopping once
// the backend omits it. Page 1 is always the instance's own Invoke, so the
// first FetchNextPage call already has a real lastPage to read from.
func paginateByCursor(lastPage any, priorParams map[string]any) (map[string]any, bool) {
	page, ok := lastPage.(map[string]any)
	if !ok {
		return nil, false
	}
	cursor, ok := page["nextCursor"].(string)
	if !ok || cursor == "" {
		return nil, false
	}
	return map[string]any{"cursor": cursor}, true
}
