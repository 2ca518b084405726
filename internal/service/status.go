package service

import (
	"fmt"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// validTransitions is the order lifecycle. Statuses with no entries are terminal.
var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:      {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
	models.OrderStatusDelivered: {},
	models.OrderStatusCompleted: {},
	models.OrderStatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, status := range validTransitions[from] {
		if status == to {
			return true
		}
	}
	return false
}

// NextState applies a status update request to an order in state
// (current, paid) and returns the resulting status and payment flag.
func NextState(current models.OrderStatus, paid bool, req *models.UpdateOrderStatusRequest) (models.OrderStatus, bool, error) {
	if req.Status == nil && req.IsPaid == nil {
		return current, paid, errors.NewValidationError("status", "status or is_paid is required")
	}
	if req.Status != nil && !req.Status.IsValid() {
		return current, paid, errors.NewValidationError("status", fmt.Sprintf("invalid order status %q", *req.Status))
	}

	if req.Status != nil && current.IsTerminal() {
		return current, paid, errors.NewInvalidTransitionError(
			fmt.Sprintf("order is %s and its status can no longer change", current))
	}

	target := current
	if req.Status != nil {
		target = *req.Status
	}

	if req.IsPaid != nil {
		if *req.IsPaid {
			if target == models.OrderStatusCancelled || current == models.OrderStatusCancelled {
				return current, paid, errors.NewInvalidTransitionError("a cancelled order cannot be marked as paid")
			}
			if target == models.OrderStatusPending {
				target = models.OrderStatusPaid
			}
		} else {
			if current != models.OrderStatusPending {
				return current, paid, errors.NewInvalidTransitionError(
					fmt.Sprintf("is_paid cannot be cleared on a %s order", current))
			}
			if target.ImpliesPaid() {
				return current, paid, errors.NewInvalidTransitionError(
					fmt.Sprintf("a %s order must have is_paid=true", target))
			}
		}
	}

	if target != current && !CanTransition(current, target) {
		return current, paid, errors.NewInvalidTransitionError(
			fmt.Sprintf("invalid status transition from %s to %s", current, target))
	}

	switch {
	case target.ImpliesPaid():
		paid = true
	case target == models.OrderStatusCancelled:
		paid = false
	case req.IsPaid != nil:
		paid = *req.IsPaid
	}

	return target, paid, nil
}

// initialState decides the status and payment flag of a new order.
func initialState(req *models.CreateOrderRequest) (models.OrderStatus, bool, error) {
	status := models.OrderStatusPending
	if req.Status != nil {
		status = *req.Status
	}
	if status != models.OrderStatusPending && status != models.OrderStatusPaid {
		return "", false, errors.NewValidationError("status", "a new order must be pending or paid")
	}

	paid := status == models.OrderStatusPaid
	if req.IsPaid != nil {
		if !*req.IsPaid && paid {
			return "", false, errors.NewValidationError("is_paid", "a paid order must have is_paid=true")
		}
		if *req.IsPaid {
			paid = true
			status = models.OrderStatusPaid
		}
	}

	if req.PaymentMethod == models.PaymentMethodCOD && paid {
		return "", false, errors.NewValidationError("payment_method", "cash on delivery orders must start pending and unpaid")
	}

	return status, paid, nil
}
