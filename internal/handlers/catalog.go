package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

// ListProducts handles GET /api/v1/products
func (h *Handlers) ListProducts(c *gin.Context) {
	var filter models.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	var err error
	if filter.PriceMin, err = queryDecimal(c, "price_min"); err != nil {
		handleError(c, err)
		return
	}
	if filter.PriceMax, err = queryDecimal(c, "price_max"); err != nil {
		handleError(c, err)
		return
	}

	products, err := h.catalogService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Products retrieved", products)
}

func queryDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.NewValidationError(key, "must be a decimal number")
	}
	return &d, nil
}

// GetProduct handles GET /api/v1/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Product retrieved", product)
}

// CreateProduct handles POST /api/v1/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	product, err := h.catalogService.CreateProduct(c.Request.Context(), principal(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Product created", product)
}

// UpdateProduct handles PUT /api/v1/products/:id
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	product, err := h.catalogService.UpdateProduct(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Product updated", product)
}

// AdjustStock handles PATCH /api/v1/products/:id/stock
func (h *Handlers) AdjustStock(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	product, err := h.catalogService.AdjustStock(c.Request.Context(), principal(c), id, req.Delta)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Stock updated", product)
}

// ListCategories handles GET /api/v1/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Categories retrieved", categories)
}

// GetCategory handles GET /api/v1/categories/:id
func (h *Handlers) GetCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	category, err := h.catalogService.GetCategory(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Category retrieved", category)
}

// CreateCategory handles POST /api/v1/categories
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	category, err := h.catalogService.CreateCategory(c.Request.Context(), principal(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Category created", category)
}

// UpdateCategory handles PUT /api/v1/categories/:id
func (h *Handlers) UpdateCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	category, err := h.catalogService.UpdateCategory(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Category updated", category)
}

// DeleteCategory handles DELETE /api/v1/categories/:id
func (h *Handlers) DeleteCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	if err := h.catalogService.DeleteCategory(c.Request.Context(), principal(c), id); err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Category deleted", nil)
}
