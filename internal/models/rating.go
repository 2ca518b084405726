package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rating is a buyer's review of a product bought in a specific order.
type Rating struct {
	ID        int64     `json:"id"`
	BuyerID   int64     `json:"buyer_id"`
	ProductID int64     `json:"product_id"`
	OrderID   int64     `json:"order_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateRatingRequest struct {
	OrderID   int64   `json:"order_id" validate:"required,gt=0"`
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Comment   *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

type UpdateRatingRequest struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// ProductRatings is the list of ratings for a product with its average.
type ProductRatings struct {
	ProductID int64           `json:"product_id"`
	Average   decimal.Decimal `json:"average"`
	Count     int             `json:"count"`
	Ratings   []*Rating       `json:"ratings"`
}
