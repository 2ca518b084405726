package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/repository"
)

func TestOrderService_CreateOrder(t *testing.T) {
	env := newTestEnv(t)

	order := env.placeOrder(t, item(env.coffee.ID, 2), item(env.tea.ID, 3))

	assert.NotZero(t, order.ID)
	assert.Equal(t, env.buyer.ID, order.BuyerID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.False(t, order.IsPaid)
	assert.True(t, decimal.RequireFromString("34.30").Equal(order.TotalPrice), "total %s", order.TotalPrice)
	require.Len(t, order.Items, 2)
	assert.True(t, env.coffee.Price.Equal(order.Items[0].Price))

	assert.Equal(t, 8, env.stock(t, env.coffee.ID))
	assert.Equal(t, 2, env.stock(t, env.tea.ID))
	assert.Equal(t, []string{"order.created"}, env.events.types())
}

func TestOrderService_CreateOrder_DecimalTotal(t *testing.T) {
	env := newTestEnv(t)

	// 0.1 + 0.2 style sums must be exact.
	cheap, err := env.store.Catalog().CreateProduct(context.Background(), &models.Product{
		SellerID:   env.seller.SellerID,
		CategoryID: env.category.ID,
		Name:       "Permen",
		Price:      decimal.RequireFromString("0.10"),
		Stock:      10,
	})
	require.NoError(t, err)

	order := env.placeOrder(t, item(cheap.ID, 3))
	assert.Equal(t, "0.3", order.TotalPrice.String())
}

func TestOrderService_CreateOrder_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal models.Principal
		req       *models.CreateOrderRequest
		wantKind  errors.Kind
	}{
		{
			name:      "seller cannot buy",
			principal: env.seller,
			req:       env.orderRequest(item(env.coffee.ID, 1)),
			wantKind:  errors.KindForbidden,
		},
		{
			name:      "insufficient stock",
			principal: env.buyer,
			req:       env.orderRequest(item(env.coffee.ID, 1), item(env.tea.ID, 6)),
			wantKind:  errors.KindInsufficientStock,
		},
		{
			name:      "missing product",
			principal: env.buyer,
			req:       env.orderRequest(item(9999, 1)),
			wantKind:  errors.KindNotFound,
		},
		{
			name:      "product of another seller",
			principal: env.buyer,
			req:       env.orderRequest(item(env.coffee.ID, 1), item(env.foreign.ID, 1)),
			wantKind:  errors.KindValidation,
		},
		{
			name:      "cash on delivery paid upfront",
			principal: env.buyer,
			req: &models.CreateOrderRequest{
				SellerID:      env.seller.SellerID,
				PaymentMethod: models.PaymentMethodCOD,
				IsPaid:        boolPtr(true),
				Items:         []models.CreateOrderItem{item(env.coffee.ID, 1)},
			},
			wantKind: errors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orders.CreateOrder(ctx, tt.principal, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errors.KindOf(err))
		})
	}

	// Nothing was decremented by any of the rejected orders.
	assert.Equal(t, 10, env.stock(t, env.coffee.ID))
	assert.Equal(t, 5, env.stock(t, env.tea.ID))
	assert.Empty(t, env.events.types())
}

func TestOrderService_CreateOrder_PaidUpfront(t *testing.T) {
	env := newTestEnv(t)
	req := env.orderRequest(item(env.tea.ID, 1))
	req.PaymentMethod = models.PaymentMethodWallet
	req.IsPaid = boolPtr(true)

	order, err := env.orders.CreateOrder(context.Background(), env.buyer, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.True(t, order.IsPaid)
}

func TestOrderService_CreateOrder_NoOversell(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetProductStock(env.tea.ID, 5)

	const buyers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(buyerID int64) {
			defer wg.Done()
			_, err := env.orders.CreateOrder(context.Background(), models.Buyer{ID: buyerID}, env.orderRequest(item(env.tea.ID, 1)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.KindOf(err) == errors.KindInsufficientStock {
				rejected++
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, buyers-5, rejected)
	assert.Equal(t, 0, env.stock(t, env.tea.ID))
}

func TestOrderService_GetOrder_Access(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, item(env.coffee.ID, 1))

	for _, p := range []models.Principal{env.buyer, env.seller, env.admin} {
		got, err := env.orders.GetOrder(ctx, p, order.ID)
		require.NoError(t, err, "role %s", p.Role())
		assert.Equal(t, order.ID, got.ID)
	}

	_, err := env.orders.GetOrder(ctx, models.Buyer{ID: 99}, order.ID)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	_, err = env.orders.GetOrder(ctx, models.Seller{ID: 30, SellerID: env.foreign.SellerID}, order.ID)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	_, err = env.orders.GetOrder(ctx, env.admin, order.ID+100)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestOrderService_Lists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.placeOrder(t, item(env.coffee.ID, 1))
	second := env.placeOrder(t, item(env.tea.ID, 1))

	mine, err := env.orders.ListBuyerOrders(ctx, env.buyer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	shop, err := env.orders.ListSellerOrders(ctx, env.seller)
	require.NoError(t, err)
	assert.Len(t, shop, 2)

	_, err = env.orders.ListSellerOrders(ctx, env.buyer)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	pending, err := env.orders.ListOrdersByStatus(ctx, env.admin, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = env.orders.ListOrdersByStatus(ctx, env.admin, "lost")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	_, err = env.orders.ListOrdersByStatus(ctx, env.seller, models.OrderStatusPending)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
}

func TestOrderService_Statistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.placeOrder(t, item(env.coffee.ID, 1))
	paid := env.placeOrder(t, item(env.tea.ID, 2))

	_, err := env.orders.UpdateOrderStatus(ctx, env.buyer, paid.ID, &models.UpdateOrderStatusRequest{IsPaid: boolPtr(true)})
	require.NoError(t, err)

	stats, err := env.orders.GetOrderStatistics(ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.StatusCounts[models.OrderStatusPending])
	assert.Equal(t, 1, stats.StatusCounts[models.OrderStatusPaid])
	assert.True(t, decimal.RequireFromString("6.20").Equal(stats.TotalPaidValue))

	_, err = env.orders.GetOrderStatistics(ctx, env.buyer)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
}

func TestOrderService_UpdateOrderStatus_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, item(env.coffee.ID, 1))

	steps := []struct {
		principal models.Principal
		status    models.OrderStatus
	}{
		{env.buyer, models.OrderStatusPaid},
		{env.seller, models.OrderStatusShipped},
		{env.admin, models.OrderStatusDelivered},
	}
	for _, step := range steps {
		updated, err := env.orders.UpdateOrderStatus(ctx, step.principal, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(step.status)})
		require.NoError(t, err)
		assert.Equal(t, step.status, updated.Status)
		assert.True(t, updated.IsPaid)
	}

	_, err := env.orders.UpdateOrderStatus(ctx, env.admin, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(models.OrderStatusDelivered)})
	assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))

	assert.Equal(t, []string{
		"order.created",
		"order.status_changed",
		"order.status_changed",
		"order.status_changed",
	}, env.events.types())
}

func TestOrderService_UpdateOrderStatus_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, item(env.coffee.ID, 1))

	_, err := env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID, &models.UpdateOrderStatusRequest{})
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	_, err = env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(models.OrderStatusShipped)})
	assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))

	_, err = env.orders.UpdateOrderStatus(ctx, models.Buyer{ID: 99}, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(models.OrderStatusPaid)})
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	_, err = env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID+100, &models.UpdateOrderStatusRequest{Status: statusPtr(models.OrderStatusPaid)})
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	got, err := env.orders.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestOrderService_UpdateOrderStatus_CancelRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, item(env.coffee.ID, 4))
	assert.Equal(t, 6, env.stock(t, env.coffee.ID))

	updated, err := env.orders.UpdateOrderStatus(ctx, env.seller, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(models.OrderStatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Equal(t, 10, env.stock(t, env.coffee.ID))
	assert.Contains(t, env.events.types(), "order.cancelled")
}

func TestOrderService_CancelOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("pending order", func(t *testing.T) {
		order := env.placeOrder(t, item(env.tea.ID, 2))

		result, err := env.orders.CancelOrder(ctx, env.buyer, order.ID)
		require.NoError(t, err)
		assert.False(t, result.NeedsRefund)
		assert.Equal(t, models.OrderStatusCancelled, result.Order.Status)
		assert.Equal(t, 5, env.stock(t, env.tea.ID))
	})

	t.Run("paid order needs refund", func(t *testing.T) {
		order := env.placeOrder(t, item(env.coffee.ID, 3))
		_, err := env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID, &models.UpdateOrderStatusRequest{IsPaid: boolPtr(true)})
		require.NoError(t, err)

		result, err := env.orders.CancelOrder(ctx, env.admin, order.ID)
		require.NoError(t, err)
		assert.True(t, result.NeedsRefund)
		assert.False(t, result.Order.IsPaid)
		assert.Equal(t, 10, env.stock(t, env.coffee.ID))
		assert.Contains(t, env.events.types(), "order.refund_requested")
	})

	t.Run("shipped order", func(t *testing.T) {
		order := env.placeOrder(t, item(env.coffee.ID, 1))
		for _, status := range []models.OrderStatus{models.OrderStatusPaid, models.OrderStatusShipped} {
			_, err := env.orders.UpdateOrderStatus(ctx, env.seller, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(status)})
			require.NoError(t, err)
		}

		_, err := env.orders.CancelOrder(ctx, env.buyer, order.ID)
		assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))
		assert.Equal(t, 9, env.stock(t, env.coffee.ID))
	})

	t.Run("other buyer and seller", func(t *testing.T) {
		order := env.placeOrder(t, item(env.tea.ID, 1))

		_, err := env.orders.CancelOrder(ctx, models.Buyer{ID: 99}, order.ID)
		assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

		_, err = env.orders.CancelOrder(ctx, env.seller, order.ID)
		assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
	})

	t.Run("already cancelled", func(t *testing.T) {
		order := env.placeOrder(t, item(env.tea.ID, 1))
		_, err := env.orders.CancelOrder(ctx, env.buyer, order.ID)
		require.NoError(t, err)
		before := env.stock(t, env.tea.ID)

		_, err = env.orders.CancelOrder(ctx, env.buyer, order.ID)
		assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))
		assert.Equal(t, before, env.stock(t, env.tea.ID))
	})
}

func newCachedOrderService(t *testing.T, env *testEnv) (*repository.RedisOrderCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := repository.NewRedisOrderCacheWithClient(client, time.Minute)

	cfg := testConfig()
	cfg.Features.EnableOrderCaching = true
	env.orders = NewOrderService(env.store.Orders(), cache, env.events, nil, cfg)
	return cache, mr
}

func TestOrderService_CacheWriteThrough(t *testing.T) {
	env := newTestEnv(t)
	cache, mr := newCachedOrderService(t, env)
	ctx := context.Background()

	order := env.placeOrder(t, item(env.coffee.ID, 1))
	assert.True(t, mr.Exists("order:"+itoa(order.ID)))

	list, err := env.orders.ListBuyerOrders(ctx, env.buyer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, mr.Exists("buyer_orders:"+itoa(env.buyer.ID)))
	assert.Equal(t, 30*time.Second, mr.TTL("buyer_orders:"+itoa(env.buyer.ID)))

	_, err = env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID, &models.UpdateOrderStatusRequest{IsPaid: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, mr.Exists("buyer_orders:"+itoa(env.buyer.ID)))

	cached, err := cache.Get(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, models.OrderStatusPaid, cached.Status)

	got, err := env.orders.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
}

func TestOrderService_CacheReadFillDoesNotOverwriteUpdate(t *testing.T) {
	env := newTestEnv(t)
	cache, mr := newCachedOrderService(t, env)
	ctx := context.Background()

	order := env.placeOrder(t, item(env.coffee.ID, 1))
	mr.Del("order:" + itoa(order.ID))

	// A reader loaded the pending order, then the update committed before
	// the reader filled the cache.
	stale, err := env.store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	_, err = env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID, &models.UpdateOrderStatusRequest{IsPaid: boolPtr(true)})
	require.NoError(t, err)

	stored, err := cache.SetIfAbsent(ctx, stale)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := env.orders.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
}

func TestOrderService_CacheUnavailable(t *testing.T) {
	env := newTestEnv(t)
	_, mr := newCachedOrderService(t, env)
	ctx := context.Background()

	order := env.placeOrder(t, item(env.coffee.ID, 1))
	mr.Close()

	updated, err := env.orders.UpdateOrderStatus(ctx, env.buyer, order.ID, &models.UpdateOrderStatusRequest{IsPaid: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)

	got, err := env.orders.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)

	list, err := env.orders.ListBuyerOrders(ctx, env.buyer)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOrderService_CreateOrder_CancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.orders.CreateOrder(ctx, env.buyer, env.orderRequest(item(env.coffee.ID, 2), item(env.tea.ID, 1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, 10, env.stock(t, env.coffee.ID))
	assert.Equal(t, 5, env.stock(t, env.tea.ID))
	orders, err := env.orders.ListBuyerOrders(context.Background(), env.buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, env.events.types())
}

type notification struct {
	kind     string
	orderID  int64
	previous models.OrderStatus
}

type channelNotifier struct {
	sent chan notification
}

func (n *channelNotifier) NotifyStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	n.sent <- notification{kind: "status_changed", orderID: order.ID, previous: previous}
	return nil
}

func (n *channelNotifier) NotifyRefundNeeded(ctx context.Context, order *models.Order) error {
	n.sent <- notification{kind: "refund_needed", orderID: order.ID}
	return nil
}

func TestOrderService_Notifications(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.Features.EnableNotifications = true
	notifier := &channelNotifier{sent: make(chan notification, 4)}
	env.orders = NewOrderService(env.store.Orders(), nil, env.events, notifier, cfg)
	ctx := context.Background()

	receive := func() notification {
		t.Helper()
		select {
		case n := <-notifier.sent:
			return n
		case <-time.After(time.Second):
			t.Fatal("no notification sent")
			return notification{}
		}
	}

	order := env.placeOrder(t, item(env.coffee.ID, 1))

	_, err := env.orders.UpdateOrderStatus(ctx, env.seller, order.ID, &models.UpdateOrderStatusRequest{Status: statusPtr(models.OrderStatusPaid)})
	require.NoError(t, err)
	assert.Equal(t, notification{kind: "status_changed", orderID: order.ID, previous: models.OrderStatusPending}, receive())

	_, err = env.orders.CancelOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, notification{kind: "refund_needed", orderID: order.ID}, receive())
}
