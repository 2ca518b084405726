package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry. Stock is the only inventory record.
type Product struct {
	ID          int64           `json:"id"`
	SellerID    int64           `json:"seller_id"`
	CategoryID  int64           `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Discount    int             `json:"discount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SellerProfile is a shop owned by a user. Managed by the identity domain; read only here.
type SellerProfile struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	ShopName string `json:"shop_name"`
}

// ProductFilter narrows a product listing. Zero values mean "any".
type ProductFilter struct {
	CategoryID int64            `form:"category_id"`
	SellerID   int64            `form:"seller_id"`
	PriceMin   *decimal.Decimal `form:"-"`
	PriceMax   *decimal.Decimal `form:"-"`
	Name       string           `form:"name"`
}

type CreateProductRequest struct {
	SellerID    int64           `json:"seller_id,omitempty"`
	CategoryID  int64           `json:"category_id" validate:"required,gt=0"`
	Name        string          `json:"name" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Discount    int             `json:"discount" validate:"gte=0,lte=100"`
}

// UpdateProductRequest changes only the fields that are set.
type UpdateProductRequest struct {
	CategoryID  *int64           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=3,max=100"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Discount    *int             `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}
