package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrder_CalculateTotal(t *testing.T) {
	order := &Order{
		Items: []OrderItem{
			{ProductID: 1, Quantity: 3, Price: decimal.RequireFromString("0.10")},
			{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("19.99")},
		},
	}

	order.CalculateTotal()

	assert.True(t, decimal.RequireFromString("20.29").Equal(order.TotalPrice), "got %s", order.TotalPrice)
}

func TestOrderStatus_Predicates(t *testing.T) {
	tests := []struct {
		status    OrderStatus
		terminal  bool
		completed bool
		paid      bool
	}{
		{OrderStatusPending, false, false, false},
		{OrderStatusPaid, false, false, true},
		{OrderStatusShipped, false, false, true},
		{OrderStatusDelivered, true, true, true},
		{OrderStatusCompleted, true, true, true},
		{OrderStatusCancelled, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.completed, tt.status.IsCompleted())
			assert.Equal(t, tt.paid, tt.status.ImpliesPaid())
		})
	}

	assert.False(t, OrderStatus("refunded").IsValid())
}

func TestOrder_CanCancel(t *testing.T) {
	tests := []struct {
		name     string
		status   OrderStatus
		expected bool
	}{
		{"Pending can cancel", OrderStatusPending, true},
		{"Paid can cancel", OrderStatusPaid, true},
		{"Shipped cannot cancel", OrderStatusShipped, false},
		{"Delivered cannot cancel", OrderStatusDelivered, false},
		{"Cancelled cannot cancel", OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{Status: tt.status}
			assert.Equal(t, tt.expected, order.CanCancel())
		})
	}
}

func TestOrder_CloneDoesNotAliasItems(t *testing.T) {
	order := &Order{ID: 1, Items: []OrderItem{{ProductID: 9, Quantity: 1}}}

	clone := order.Clone()
	clone.Items[0].Quantity = 5

	assert.Equal(t, 1, order.Items[0].Quantity)
	assert.True(t, order.HasProduct(9))
	assert.False(t, order.HasProduct(10))
}

func TestPaymentMethod_IsValid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentMethodCOD, PaymentMethodQRIS, PaymentMethodTransfer, PaymentMethodWallet} {
		assert.True(t, m.IsValid(), string(m))
	}
	assert.False(t, PaymentMethod("crypto").IsValid())
}
