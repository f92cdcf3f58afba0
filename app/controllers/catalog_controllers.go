package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/qcache/app/models"
	"github.com/shashiranjanraj/qcache/pkg/collection"
	"github.com/shashiranjanraj/qcache/pkg/ctx"
	"github.com/shashiranjanraj/qcache/pkg/event"
	"github.com/shashiranjanraj/qcache/pkg/orm"
	"github.com/shashiranjanraj/qcache/pkg/sse"
)

// ProductCreatedEvent is fired after a product is persisted; internal/demo
// listens for it to show the event bus independent of the HTTP response
// cycle.
const ProductCreatedEvent = "product.created"

// CatalogController serves the Product/Order/User fixture data the query
// cache demo queries against — the same direct orm.DB() style pkg/graphql's
// resolvers use, rather than an extra repository layer for fixture reads.
type CatalogController struct{}

func NewCatalogController() *CatalogController {
	return &CatalogController{}
}

type productDTO struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	SKU         string  `json:"sku"`
}

func toProductDTO(p models.Product) productDTO {
	return productDTO{ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price, Stock: p.Stock, SKU: p.SKU}
}

type userDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserDTO(u models.User) userDTO {
	return userDTO{ID: u.ID, Name: u.Name, Email: u.Email}
}

type orderDTO struct {
	ID     uint    `json:"id"`
	UserID uint    `json:"user_id"`
	Total  float64 `json:"total"`
	Status string  `json:"status"`
}

func toOrderDTO(o models.Order) orderDTO {
	return orderDTO{ID: o.ID, UserID: o.UserID, Total: o.Total, Status: o.Status}
}

// ListProducts handles GET /api/products?cursor=&limit= — cursor is the next
// page number, matching the infinite-query Paginator contract the demo's
// "listProducts" query.Definition expects.
func (c *CatalogController) ListProducts(ctx *ctx.Context) {
	page, limit := cursorToPage(ctx.DefaultQuery("cursor", "1")), queryLimit(ctx)

	var products []models.Product
	pagination, err := orm.DB().Model(&models.Product{}).OrderBy("id", "asc").GetWithPagination(&products, page, limit)
	if err != nil {
		ctx.Error(http.StatusInternalServerError, err.Error())
		return
	}

	items := collection.Map(products, toProductDTO)

	ctx.JSON(http.StatusOK, map[string]any{
		"items":      items,
		"nextCursor": nextCursor(pagination),
	})
}

// GetProduct handles GET /api/products/{id}.
func (c *CatalogController) GetProduct(reqCtx *ctx.Context) {
	id, err := strconv.ParseUint(reqCtx.Param("id"), 10, 64)
	if err != nil {
		reqCtx.Error(http.StatusBadRequest, "invalid product id")
		return
	}

	var product models.Product
	if err := orm.DB().Model(&models.Product{}).Where("id = ?", id).First(&product); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reqCtx.NotFound()
			return
		}
		reqCtx.Error(http.StatusInternalServerError, err.Error())
		return
	}

	reqCtx.JSON(http.StatusOK, toProductDTO(product))
}

// CreateProduct handles POST /api/products — guarded by middleware.AuthMiddleware
// so the demo's mutation path exercises the JWT-authenticated fetch contract.
func (c *CatalogController) CreateProduct(reqCtx *ctx.Context) {
	var input models.Product
	if !reqCtx.BindJSON(&input) {
		return
	}

	if err := orm.DB().Create(&input); err != nil {
		reqCtx.Error(http.StatusInternalServerError, err.Error())
		return
	}

	event.FireAsync(ProductCreatedEvent, toProductDTO(input))
	reqCtx.Created(toProductDTO(input))
}

// GetUser handles GET /api/users/{id}.
func (c *CatalogController) GetUser(reqCtx *ctx.Context) {
	id, err := strconv.ParseUint(reqCtx.Param("id"), 10, 64)
	if err != nil {
		reqCtx.Error(http.StatusBadRequest, "invalid user id")
		return
	}

	var user models.User
	if err := orm.DB().Model(&models.User{}).Where("id = ?", id).First(&user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reqCtx.NotFound()
			return
		}
		reqCtx.Error(http.StatusInternalServerError, err.Error())
		return
	}

	reqCtx.JSON(http.StatusOK, toUserDTO(user))
}

// ListUserOrders handles GET /api/users/{userId}/orders?cursor=&limit=.
func (c *CatalogController) ListUserOrders(reqCtx *ctx.Context) {
	userID, err := strconv.ParseUint(reqCtx.Param("userId"), 10, 64)
	if err != nil {
		reqCtx.Error(http.StatusBadRequest, "invalid user id")
		return
	}

	page, limit := cursorToPage(reqCtx.DefaultQuery("cursor", "1")), queryLimit(reqCtx)

	var orders []models.Order
	pagination, err := orm.DB().
		Model(&models.Order{}).
		Where("user_id = ?", userID).
		OrderBy("id", "asc").
		GetWithPagination(&orders, page, limit)
	if err != nil {
		reqCtx.Error(http.StatusInternalServerError, err.Error())
		return
	}

	items := collection.Map(orders, toOrderDTO)

	reqCtx.JSON(http.StatusOK, map[string]any{
		"items":      items,
		"nextCursor": nextCursor(pagination),
	})
}

// StreamStock handles GET /api/products/stream — an SSE push of current
// stock levels, one "stock" event listing all products every two seconds, separate
// from the cache's own pull-based queries: a client wanting push updates
// subscribes here directly instead of polling GetProduct.
func (c *CatalogController) StreamStock(reqCtx *ctx.Context) {
	stream := sse.New(reqCtx.W, reqCtx.R)
	if stream == nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var products []models.Product
		if err := orm.DB().Model(&models.Product{}).OrderBy("id", "asc").Get(&products); err == nil {
			stream.Send("stock", collection.Map(products, toProductDTO))
		}
		if stream.IsClosed() {
			return
		}
		select {
		case <-reqCtx.R.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func cursorToPage(cursor string) int {
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func queryLimit(c *ctx.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		return 10
	}
	return limit
}

// nextCursor returns the next page number as a string, or "" once the
// result set is exhausted — the sentinel the demo's Paginator checks for.
func nextCursor(p orm.Pagination) string {
	if !p.HasNext {
		return ""
	}
	return strconv.Itoa(p.Page + 1)
}
