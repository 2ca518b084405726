package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// Ensure the stores implement the repository interfaces.
var (
	_ OrderRepository   = (*PostgresOrderRepository)(nil)
	_ CatalogRepository = (*PostgresCatalogRepository)(nil)
	_ RatingRepository  = (*PostgresRatingRepository)(nil)
	_ OrderRepository   = (*MemoryOrderRepository)(nil)
	_ CatalogRepository = (*MemoryCatalogRepository)(nil)
	_ RatingRepository  = (*MemoryRatingRepository)(nil)
	_ OrderCache        = (*RedisOrderCache)(nil)
)

// PricingFunc prices a new order against the locked catalog rows of its
// products. It must set every item price and the order total, and return
// an error to abort the order. products holds only ids that exist.
type PricingFunc func(order *models.Order, products map[int64]*models.Product) error

// OrderMutation changes a locked order in place. Returning an error aborts
// the update and leaves the order untouched.
type OrderMutation func(order *models.Order) error

// ProductMutation changes a locked product in place. Returning an error
// aborts the update. Stock seen by the mutation is the committed value at
// lock time.
type ProductMutation func(product *models.Product) error

// OrderRepository persists orders and their items.
type OrderRepository interface {
	// Create runs price, decrements stock for every item and stores the
	// order in a single transaction.
	Create(ctx context.Context, order *models.Order, price PricingFunc) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]*models.Order, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]*models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]*models.Order, error)
	Statistics(ctx context.Context) (*models.OrderStatistics, error)
	// Update locks the order, applies mutate and persists status and
	// is_paid. Moving an order into cancelled restores its stock in the
	// same transaction.
	Update(ctx context.Context, id int64, mutate OrderMutation) (*models.Order, error)
}

// CatalogRepository reads and writes products, categories and sellers.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	// UpdateProduct locks the product, applies mutate and writes it back.
	UpdateProduct(ctx context.Context, id int64, mutate ProductMutation) (*models.Product, error)
	IncrementStock(ctx context.Context, id int64, quantity int) (*models.Product, error)
	// DecrementStock fails with InsufficientStock rather than going below zero.
	DecrementStock(ctx context.Context, id int64, quantity int) (*models.Product, error)

	GetSeller(ctx context.Context, id int64) (*models.SellerProfile, error)

	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CountProductsInCategory(ctx context.Context, id int64) (int, error)
}

// RatingRepository persists product ratings.
type RatingRepository interface {
	Create(ctx context.Context, rating *models.Rating) (*models.Rating, error)
	GetByID(ctx context.Context, id int64) (*models.Rating, error)
	Find(ctx context.Context, buyerID, productID, orderID int64) (*models.Rating, error)
	Update(ctx context.Context, rating *models.Rating) (*models.Rating, error)
	Delete(ctx context.Context, id, buyerID int64) error
	ListByProduct(ctx context.Context, productID int64) ([]*models.Rating, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]*models.Rating, error)
}

// OrderCache defines caching operations for orders.
type OrderCache interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	SetIfAbsent(ctx context.Context, order *models.Order) (bool, error)
	Delete(ctx context.Context, id int64) error
	GetByBuyerID(ctx context.Context, buyerID int64) ([]*models.Order, error)
	SetByBuyerID(ctx context.Context, buyerID int64, orders []*models.Order) error
	InvalidateByBuyerID(ctx context.Context, buyerID int64) error
}
