// Package demo wires a runnable showcase of the query cache against the
// Product/Order/User fixture backend: schemas, query definitions, seed data,
// and a scripted scenario exercising caching, deduplication, pagination,
// entity normalization, and GC end to end.
package demo

import "github.com/shashiranjanraj/qcache/querycache/schema"

// UserEntity mirrors app/models.User's public shape.
var UserEntity = schema.Entity("User", func() schema.Fields {
	return schema.Fields{
		"name":  schema.String(),
		"email": schema.String(),
	}
})

// ProductEntity mirrors app/models.Product's public shape.
var ProductEntity = schema.Entity("Product", func() schema.Fields {
	return schema.Fields{
		"name":        schema.String(),
		"description": schema.String(),
		"price":       schema.Number(),
		"stock":       schema.Number(),
		"sku":         schema.String(),
	}
})

// OrderEntity mirrors app/models.Order's public shape.
var OrderEntity = schema.Entity("Order", func() schema.Fields {
	return schema.Fields{
		"user_id": schema.Number(),
		"total":   schema.Number(),
		"status":  schema.String(),
	}
})

// productPage and orderPage are the response shapes for the two infinite
// ("load more") listing endpoints.
var productPage = schema.Object(func() schema.Fields {
	return schema.Fields{
		"items":      schema.Array(ProductEntity),
		"nextCursor": schema.Optional(schema.String()),
	}
})

var orderPage = schema.Object(func() schema.Fields {
	return schema.Fields{
		"items":      schema.Array(OrderEntity),
		"nextCursor": schema.Optional(schema.String()),
	}
})

// graphqlProductEnvelope is the {"data":{"product": Product}} shape
// graphql-go's Do returns, used as the getProductGraphQL definition's
// Response schema.
var graphqlProductEnvelope = schema.Object(func() schema.Fields {
	return schema.Fields{
		"data": schema.Object(func() schema.Fields {
			return schema.Fields{"product": ProductEntity}
		}),
	}
})
