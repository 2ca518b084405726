package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// AllOrderStatuses lists every recognised status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) IsValid() bool {
	for _, status := range AllOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsCompleted reports whether the order has reached the buyer, which is
// what makes it eligible for ratings.
func (s OrderStatus) IsCompleted() bool {
	return s == OrderStatusDelivered || s == OrderStatusCompleted
}

// ImpliesPaid reports whether an order in this status must have is_paid set.
func (s OrderStatus) ImpliesPaid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCompleted:
		return true
	}
	return false
}

// PaymentMethod is how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "cod"
	PaymentMethodQRIS     PaymentMethod = "qris"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodWallet   PaymentMethod = "wallet"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodQRIS, PaymentMethodTransfer, PaymentMethodWallet:
		return true
	}
	return false
}

// Order is a purchase placed by a buyer with a single seller.
type Order struct {
	ID            int64           `json:"id"`
	BuyerID       int64           `json:"buyer_id"`
	SellerID      int64           `json:"seller_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	IsPaid        bool            `json:"is_paid"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem is one product line of an order. Price is the unit price
// captured from the catalog when the order was placed.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal returns price * quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotal sets TotalPrice to the exact sum of the item subtotals.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	o.TotalPrice = total
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPaid
}

// HasProduct reports whether productID is one of the order lines.
func (o *Order) HasProduct(productID int64) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot alias stored state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

// CreateOrderRequest is the buyer's order placement payload.
type CreateOrderRequest struct {
	SellerID      int64             `json:"seller_id" validate:"required,gt=0"`
	PaymentMethod PaymentMethod     `json:"payment_method" validate:"required,oneof=cod qris transfer wallet"`
	Status        *OrderStatus      `json:"status,omitempty"`
	IsPaid        *bool             `json:"is_paid,omitempty"`
	Items         []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItem requests a quantity of one product. Price is accepted on
// the wire only so that it can be rejected: the catalog price always wins.
type CreateOrderItem struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// UpdateOrderStatusRequest changes status and/or the payment flag.
type UpdateOrderStatusRequest struct {
	Status *OrderStatus `json:"status,omitempty"`
	IsPaid *bool        `json:"is_paid,omitempty"`
}

// CancelResult is returned by order cancellation.
type CancelResult struct {
	Order       *Order `json:"order"`
	NeedsRefund bool   `json:"needs_refund"`
	Message     string `json:"message"`
}

// OrderStatistics summarises all orders.
type OrderStatistics struct {
	StatusCounts   map[OrderStatus]int `json:"status_counts"`
	TotalOrders    int                 `json:"total_orders"`
	TotalPaidValue decimal.Decimal     `json:"total_paid_value"`
}
