package routes

import (
	"github.com/shashiranjanraj/qcache/app/controllers"
	"github.com/shashiranjanraj/qcache/pkg/ctx"
	"github.com/shashiranjanraj/qcache/pkg/middleware"
	"github.com/shashiranjanraj/qcache/pkg/rbac"
	"github.com/shashiranjanraj/qcache/pkg/router"
)

// RegisterCatalog wires the Product/Order/User fixture endpoints the query
// cache demo issues its query.Definitions against.
func RegisterCatalog(r *router.Router) {
	catalog := controllers.NewCatalogController()

	api := r.Group("/api")

	api.Get("/products", "catalog.products.list", ctx.Wrap(catalog.ListProducts))
	api.Get("/products/stream", "catalog.products.stream", ctx.Wrap(catalog.StreamStock))
	api.Get("/products/{id}", "catalog.products.show", ctx.Wrap(catalog.GetProduct))
	api.Get("/users/{id}", "catalog.users.show", ctx.Wrap(catalog.GetUser))
	api.Get("/users/{userId}/orders", "catalog.users.orders", ctx.Wrap(catalog.ListUserOrders))

	protected := api.Group("", middleware.AuthMiddleware, rbac.HasRole("admin"))
	protected.Post("/products", "catalog.products.create", ctx.Wrap(catalog.CreateProduct))
}
