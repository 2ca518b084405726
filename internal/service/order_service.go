package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/repository"
)

const defaultNotifyTimeout = 10 * time.Second

// EventPublisher publishes marketplace domain events.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
	PublishOrderCancelled(ctx context.Context, order *models.Order, previous models.OrderStatus) error
	PublishRefundRequested(ctx context.Context, order *models.Order) error
	PublishRatingCreated(ctx context.Context, rating *models.Rating) error
}

// Notifier tells buyers about changes to their orders.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
	NotifyRefundNeeded(ctx context.Context, order *models.Order) error
}

// OrderService handles order business logic.
type OrderService struct {
	orders    repository.OrderRepository
	cache     repository.OrderCache
	publisher EventPublisher
	notifier  Notifier
	config    *config.Config
	logger    *logging.Logger
}

// NewOrderService creates a new order service. cache, publisher and
// notifier may be nil.
func NewOrderService(
	orders repository.OrderRepository,
	cache repository.OrderCache,
	publisher EventPublisher,
	notifier Notifier,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		orders:    orders,
		cache:     cache,
		publisher: publisher,
		notifier:  notifier,
		config:    cfg,
		logger:    logging.NewLogger("order-service"),
	}
}

// CreateOrder places an order for the calling buyer. Items are priced from
// the catalog and stock is decremented in the same transaction.
func (s *OrderService) CreateOrder(ctx context.Context, p models.Principal, req *models.CreateOrderRequest) (*models.Order, error) {
	buyer, err := requireBuyer(p)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithContext(ctx)
	log.Info("Creating order", logging.Fields{
		"buyer_id":   buyer.ID,
		"seller_id":  req.SellerID,
		"item_count": len(req.Items),
	})

	if err := ValidateCreateOrderRequest(req, s.config.Orders); err != nil {
		metrics.OrdersTotal.WithLabelValues(string(errors.KindValidation)).Inc()
		return nil, err
	}

	status, paid, err := initialState(req)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(string(errors.KindValidation)).Inc()
		return nil, err
	}

	order := &models.Order{
		BuyerID:       buyer.ID,
		SellerID:      req.SellerID,
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		IsPaid:        paid,
		Items:         make([]models.OrderItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	created, err := s.orders.Create(ctx, order, PriceOrder)
	if err != nil {
		kind := errors.KindOf(err)
		metrics.OrdersTotal.WithLabelValues(string(kind)).Inc()
		if kind == errors.KindInsufficientStock {
			metrics.StockRejections.Inc()
		}
		log.Warn("Order rejected", logging.Fields{
			"buyer_id": buyer.ID,
			"kind":     kind,
			"error":    err.Error(),
		})
		return nil, err
	}

	metrics.OrdersTotal.WithLabelValues("created").Inc()
	total, _ := created.TotalPrice.Float64()
	metrics.OrderValue.Observe(total)

	if s.cachingEnabled() {
		if err := s.cache.Set(ctx, created); err != nil {
			log.Error("Failed to cache order", logging.Fields{
				"order_id": created.ID,
				"error":    err.Error(),
			})
		}
		s.invalidateBuyerOrders(ctx, created.BuyerID)
	}

	if s.eventsEnabled() {
		if err := s.publisher.PublishOrderCreated(ctx, created); err != nil {
			log.Error("Failed to publish order created event", logging.Fields{
				"order_id": created.ID,
				"error":    err.Error(),
			})
		}
	}

	log.Info("Order created successfully", logging.Fields{
		"order_id": created.ID,
		"total":    created.TotalPrice.String(),
		"status":   created.Status,
	})
	return created, nil
}

// GetOrder returns an order visible to p.
func (s *OrderService) GetOrder(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	s.logger.Debug("Getting order", logging.Fields{"order_id": id})

	var order *models.Order
	if s.cachingEnabled() {
		if cached, err := s.cache.Get(ctx, id); err == nil && cached != nil {
			order = cached
		}
	}

	if order == nil {
		found, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		order = found
		if s.cachingEnabled() {
			if _, err := s.cache.SetIfAbsent(ctx, order); err != nil {
				s.logger.WithContext(ctx).Error("Failed to cache order", logging.Fields{
					"order_id": order.ID,
					"error":    err.Error(),
				})
			}
		}
	}

	if !canAccessOrder(p, order) {
		return nil, errors.NewForbiddenError("you do not have access to this order")
	}
	return order, nil
}

// ListBuyerOrders returns the calling buyer's orders, newest first.
func (s *OrderService) ListBuyerOrders(ctx context.Context, p models.Principal) ([]*models.Order, error) {
	buyer, err := requireBuyer(p)
	if err != nil {
		return nil, err
	}

	if s.cachingEnabled() {
		if orders, err := s.cache.GetByBuyerID(ctx, buyer.ID); err == nil && orders != nil {
			s.logger.Debug("Buyer orders found in cache", logging.Fields{"buyer_id": buyer.ID})
			return orders, nil
		}
	}

	orders, err := s.orders.ListByBuyer(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}

	if s.cachingEnabled() {
		if err := s.cache.SetByBuyerID(ctx, buyer.ID, orders); err != nil {
			s.logger.WithContext(ctx).Error("Failed to cache buyer orders", logging.Fields{
				"buyer_id": buyer.ID,
				"error":    err.Error(),
			})
		}
	}
	return orders, nil
}

// ListSellerOrders returns the orders placed with the calling seller's shop.
func (s *OrderService) ListSellerOrders(ctx context.Context, p models.Principal) ([]*models.Order, error) {
	seller, err := requireSeller(p)
	if err != nil {
		return nil, err
	}
	return s.orders.ListBySeller(ctx, seller.SellerID)
}

func (s *OrderService) ListOrdersByStatus(ctx context.Context, p models.Principal, status models.OrderStatus) ([]*models.Order, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, errors.NewValidationError("status", fmt.Sprintf("invalid order status %q", status))
	}
	return s.orders.ListByStatus(ctx, status)
}

func (s *OrderService) GetOrderStatistics(ctx context.Context, p models.Principal) (*models.OrderStatistics, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.orders.Statistics(ctx)
}

// UpdateOrderStatus applies a status and/or payment change under a lock on
// the order row. Moving into cancelled restores stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, p models.Principal, id int64, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	log := s.logger.WithContext(ctx)
	log.Info("Updating order status", logging.Fields{
		"order_id": id,
		"role":     p.Role(),
	})

	if req.Status == nil && req.IsPaid == nil {
		return nil, errors.NewValidationError("status", "status or is_paid is required")
	}

	var previous models.OrderStatus
	var wasPaid bool
	order, err := s.orders.Update(ctx, id, func(o *models.Order) error {
		if !canAccessOrder(p, o) {
			return errors.NewForbiddenError("you do not have access to this order")
		}
		previous, wasPaid = o.Status, o.IsPaid

		status, paid, err := NextState(o.Status, o.IsPaid, req)
		if err != nil {
			return err
		}
		o.Status = status
		o.IsPaid = paid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, order)

	if order.Status == previous {
		return order, nil
	}
	metrics.OrderStatusTransitions.WithLabelValues(string(previous), string(order.Status)).Inc()

	if order.Status == models.OrderStatusCancelled {
		s.afterCancel(ctx, order, previous, wasPaid)
		return order, nil
	}

	if s.eventsEnabled() {
		if err := s.publisher.PublishOrderStatusChanged(ctx, order, previous); err != nil {
			log.Error("Failed to publish status change event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}
	s.notify(ctx, func(ctx context.Context) error {
		return s.notifier.NotifyStatusChanged(ctx, order, previous)
	})

	return order, nil
}

// CancelOrder cancels a pending or paid order and returns its stock to the
// catalog. NeedsRefund is set when the order had already been paid.
func (s *OrderService) CancelOrder(ctx context.Context, p models.Principal, id int64) (*models.CancelResult, error) {
	s.logger.WithContext(ctx).Info("Cancelling order", logging.Fields{
		"order_id": id,
		"role":     p.Role(),
	})

	var previous models.OrderStatus
	var needsRefund bool
	order, err := s.orders.Update(ctx, id, func(o *models.Order) error {
		if !canCancelOrder(p, o) {
			return errors.NewForbiddenError("you do not have access to this order")
		}
		if !o.CanCancel() {
			return errors.NewInvalidTransitionError(
				fmt.Sprintf("order cannot be cancelled in status %s", o.Status))
		}
		previous, needsRefund = o.Status, o.IsPaid
		o.Status = models.OrderStatusCancelled
		o.IsPaid = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, order)
	metrics.OrderStatusTransitions.WithLabelValues(string(previous), string(order.Status)).Inc()
	s.afterCancel(ctx, order, previous, needsRefund)

	result := &models.CancelResult{
		Order:       order,
		NeedsRefund: needsRefund,
		Message:     "Order cancelled",
	}
	if needsRefund {
		result.Message = "Order cancelled, the payment needs to be refunded"
	}
	return result, nil
}

func (s *OrderService) afterCancel(ctx context.Context, order *models.Order, previous models.OrderStatus, needsRefund bool) {
	log := s.logger.WithContext(ctx)

	if s.eventsEnabled() {
		if err := s.publisher.PublishOrderCancelled(ctx, order, previous); err != nil {
			log.Error("Failed to publish order cancelled event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
		if needsRefund {
			if err := s.publisher.PublishRefundRequested(ctx, order); err != nil {
				log.Error("Failed to publish refund requested event", logging.Fields{
					"order_id": order.ID,
					"error":    err.Error(),
				})
			}
		}
	}

	s.notify(ctx, func(ctx context.Context) error {
		if needsRefund {
			return s.notifier.NotifyRefundNeeded(ctx, order)
		}
		return s.notifier.NotifyStatusChanged(ctx, order, previous)
	})
}

// refreshCache writes the committed order through to the cache. If that
// fails the entry is dropped instead, so readers fall back to the store.
func (s *OrderService) refreshCache(ctx context.Context, order *models.Order) {
	if !s.cachingEnabled() {
		return
	}
	log := s.logger.WithContext(ctx)

	if err := s.cache.Set(ctx, order); err != nil {
		log.Error("Failed to refresh cached order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		if err := s.cache.Delete(ctx, order.ID); err != nil {
			log.Error("Failed to evict cached order", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}
	s.invalidateBuyerOrders(ctx, order.BuyerID)
}

func (s *OrderService) invalidateBuyerOrders(ctx context.Context, buyerID int64) {
	if err := s.cache.InvalidateByBuyerID(ctx, buyerID); err != nil {
		s.logger.WithContext(ctx).Error("Failed to invalidate buyer orders", logging.Fields{
			"buyer_id": buyerID,
			"error":    err.Error(),
		})
	}
}

// notify sends a notification in the background, outliving the request but
// keeping its request ID. Failures are logged only.
func (s *OrderService) notify(ctx context.Context, send func(ctx context.Context) error) {
	if s.notifier == nil || !s.config.Features.EnableNotifications {
		return
	}
	timeout := s.config.NotificationService.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	requestID := logging.RequestIDFromContext(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(logging.ContextWithRequestID(context.Background(), requestID), timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.logger.WithContext(ctx).Error("Failed to send notification", logging.Fields{"error": err.Error()})
		}
	}()
}

func (s *OrderService) cachingEnabled() bool {
	return s.cache != nil && s.config.Features.EnableOrderCaching
}

func (s *OrderService) eventsEnabled() bool {
	return s.publisher != nil && s.config.Features.EnableOrderEvents
}
