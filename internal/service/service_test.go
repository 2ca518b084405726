package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/repository"
)

type recordedEvent struct {
	Type     string
	OrderID  int64
	Previous models.OrderStatus
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) record(eventType string, orderID int64, previous models.OrderStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, OrderID: orderID, Previous: previous})
	return nil
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.record("order.created", order.ID, "")
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return p.record("order.status_changed", order.ID, previous)
}

func (p *recordingPublisher) PublishOrderCancelled(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return p.record("order.cancelled", order.ID, previous)
}

func (p *recordingPublisher) PublishRefundRequested(ctx context.Context, order *models.Order) error {
	return p.record("order.refund_requested", order.ID, "")
}

func (p *recordingPublisher) PublishRatingCreated(ctx context.Context, rating *models.Rating) error {
	return p.record("rating.created", rating.OrderID, "")
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store    *repository.MemoryStore
	orders   *OrderService
	ratings  *RatingService
	catalog  *CatalogService
	payments *PaymentService
	events   *recordingPublisher

	buyer    models.Buyer
	seller   models.Seller
	admin    models.Admin
	category *models.Category
	coffee   *models.Product
	tea      *models.Product
	foreign  *models.Product
}

func testConfig() *config.Config {
	return &config.Config{
		Orders:   config.DefaultOrderLimits(),
		Features: config.FeatureFlags{EnableOrderEvents: true},
	}
}

// newTestEnv seeds a store with one category, two products of the main
// seller (coffee 12.50 x10, tea 3.10 x5) and one product of another seller.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	shop := store.AddSeller(models.SellerProfile{UserID: 20, ShopName: "Kopi Kita"})
	other := store.AddSeller(models.SellerProfile{UserID: 30, ShopName: "Teh Manis"})

	category, err := store.Catalog().CreateCategory(ctx, &models.Category{Name: "Drinks"})
	require.NoError(t, err)

	newProduct := func(sellerID int64, name, price string, stock int) *models.Product {
		p, err := store.Catalog().CreateProduct(ctx, &models.Product{
			SellerID:   sellerID,
			CategoryID: category.ID,
			Name:       name,
			Price:      decimal.RequireFromString(price),
			Stock:      stock,
		})
		require.NoError(t, err)
		return p
	}

	cfg := testConfig()
	events := &recordingPublisher{}
	orders := NewOrderService(store.Orders(), nil, events, nil, cfg)

	return &testEnv{
		store:    store,
		orders:   orders,
		ratings:  NewRatingService(store.Ratings(), store.Orders(), events, cfg),
		catalog:  NewCatalogService(store.Catalog()),
		payments: NewPaymentService(orders),
		events:   events,
		buyer:    models.Buyer{ID: 7},
		seller:   models.Seller{ID: 20, SellerID: shop.ID},
		admin:    models.Admin{ID: 1},
		category: category,
		coffee:   newProduct(shop.ID, "Kopi Susu", "12.50", 10),
		tea:      newProduct(shop.ID, "Teh Tarik", "3.10", 5),
		foreign:  newProduct(other.ID, "Es Jeruk", "2.00", 10),
	}
}

func (e *testEnv) orderRequest(items ...models.CreateOrderItem) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		SellerID:      e.seller.SellerID,
		PaymentMethod: models.PaymentMethodQRIS,
		Items:         items,
	}
}

func (e *testEnv) placeOrder(t *testing.T, items ...models.CreateOrderItem) *models.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), e.buyer, e.orderRequest(items...))
	require.NoError(t, err)
	return order
}

func (e *testEnv) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := e.store.Catalog().GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func item(productID int64, quantity int) models.CreateOrderItem {
	return models.CreateOrderItem{ProductID: productID, Quantity: quantity}
}

func statusPtr(s models.OrderStatus) *models.OrderStatus { return &s }

func boolPtr(b bool) *bool { return &b }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
