package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// CreateRating handles POST /api/v1/ratings
func (h *Handlers) CreateRating(c *gin.Context) {
	var req models.CreateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	rating, err := h.ratingService.CreateRating(c.Request.Context(), principal(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Rating created", rating)
}

// GetRating handles GET /api/v1/ratings/:id
func (h *Handlers) GetRating(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	rating, err := h.ratingService.GetRating(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Rating retrieved", rating)
}

// ListProductRatings handles GET /api/v1/ratings/product/:product_id
func (h *Handlers) ListProductRatings(c *gin.Context) {
	productID, err := pathID(c, "product_id")
	if err != nil {
		handleError(c, err)
		return
	}

	ratings, err := h.ratingService.ListProductRatings(c.Request.Context(), productID)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Ratings retrieved", ratings)
}

// ListBuyerRatings handles GET /api/v1/ratings/user
func (h *Handlers) ListBuyerRatings(c *gin.Context) {
	ratings, err := h.ratingService.ListBuyerRatings(c.Request.Context(), principal(c))
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Ratings retrieved", ratings)
}

// UpdateRating handles PUT /api/v1/ratings/:id
func (h *Handlers) UpdateRating(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	var req models.UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	rating, err := h.ratingService.UpdateRating(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Rating updated", rating)
}

// DeleteRating handles DELETE /api/v1/ratings/:id
func (h *Handlers) DeleteRating(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}

	if err := h.ratingService.DeleteRating(c.Request.Context(), principal(c), id); err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, "Rating deleted", nil)
}
