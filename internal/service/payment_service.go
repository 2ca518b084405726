package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// PaymentService applies payment provider outcomes to orders. It acts as
// the System principal.
type PaymentService struct {
	orders *OrderService
	logger *logging.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(orders *OrderService) *PaymentService {
	return &PaymentService{
		orders: orders,
		logger: logging.NewLogger("payment-service"),
	}
}

// MarkPaid records a completed payment. A pending order becomes paid; an
// order that is already paid or further along is left as it is, so
// redelivered events are harmless.
func (s *PaymentService) MarkPaid(ctx context.Context, orderID int64) (*models.Order, error) {
	paid := true
	order, err := s.orders.UpdateOrderStatus(ctx, models.System{}, orderID, &models.UpdateOrderStatusRequest{IsPaid: &paid})
	if err != nil {
		if errors.KindOf(err) == errors.KindInvalidTransition {
			s.logger.Warn("Ignoring payment for order", logging.Fields{
				"order_id": orderID,
				"reason":   err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Order marked as paid", logging.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return order, nil
}

// HandleFailedPayment cancels an order whose payment failed. Orders that
// can no longer be cancelled are left alone.
func (s *PaymentService) HandleFailedPayment(ctx context.Context, orderID int64, reason string) (*models.CancelResult, error) {
	s.logger.WithContext(ctx).Info("Payment failed", logging.Fields{
		"order_id": orderID,
		"reason":   reason,
	})

	result, err := s.orders.CancelOrder(ctx, models.System{}, orderID)
	if err != nil {
		if errors.KindOf(err) == errors.KindInvalidTransition {
			s.logger.Warn("Order not cancelled after failed payment", logging.Fields{
				"order_id": orderID,
				"reason":   err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}
