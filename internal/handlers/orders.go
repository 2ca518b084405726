package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// CreateOrder handles POST /api/v1/orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithContext(c.Request.Context()).Warn("Failed to bind request", logging.Fields{"error": err.Error()})
		badRequest(c, "invalid request body")
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), principal(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Order created", order)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Order retrieved", order)
}

// ListBuyerOrders handles GET /api/v1/orders/buyer
func (h *Handlers) ListBuyerOrders(c *gin.Context) {
	orders, err := h.orderService.ListBuyerOrders(c.Request.Context(), principal(c))
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Orders retrieved", orders)
}

// ListSellerOrders handles GET /api/v1/orders/seller
func (h *Handlers) ListSellerOrders(c *gin.Context) {
	orders, err := h.orderService.ListSellerOrders(c.Request.Context(), principal(c))
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Orders retrieved", orders)
}

// ListOrdersByStatus handles GET /api/v1/orders/status/:status
func (h *Handlers) ListOrdersByStatus(c *gin.Context) {
	status := models.OrderStatus(c.Param("status"))

	orders, err := h.orderService.ListOrdersByStatus(c.Request.Context(), principal(c), status)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Orders retrieved", orders)
}

// GetOrderStatistics handles GET /api/v1/orders/statistics
func (h *Handlers) GetOrderStatistics(c *gin.Context) {
	stats, err := h.orderService.GetOrderStatistics(c.Request.Context(), principal(c))
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Order statistics retrieved", stats)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Order status updated", order)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	result, err := h.orderService.CancelOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, result.Message, result)
}
