package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func testOrder() *models.Order {
	return &models.Order{
		ID:            42,
		BuyerID:       7,
		SellerID:      3,
		TotalPrice:    decimal.RequireFromString("25.50"),
		Status:        models.OrderStatusPaid,
		PaymentMethod: models.PaymentMethodQRIS,
		IsPaid:        true,
	}
}

func TestKafkaPublisher_PublishOrderCreated(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaPublisher(writer, "marketplace.orders")
	ctx := logging.ContextWithRequestID(context.Background(), "req-123")

	require.NoError(t, p.PublishOrderCreated(ctx, testOrder()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, "order.created", header(msg, "event_type"))

	var event OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeOrderCreated, event.Type)
	assert.Equal(t, int64(42), event.OrderID)
	assert.Equal(t, int64(7), event.BuyerID)
	assert.Equal(t, int64(3), event.SellerID)
	assert.Equal(t, "req-123", event.CorrelationID)
	assert.Equal(t, "paid", event.Metadata["status"])
	assert.Equal(t, event.ID, header(msg, "event_id"))
	assert.NotEmpty(t, event.ID)

	var order models.Order
	require.NoError(t, json.Unmarshal(event.Data, &order))
	assert.True(t, decimal.RequireFromString("25.50").Equal(order.TotalPrice))
}

func TestKafkaPublisher_PublishStatusChangedAndRefund(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaPublisher(writer, "marketplace.orders")
	ctx := context.Background()
	order := testOrder()

	require.NoError(t, p.PublishOrderStatusChanged(ctx, order, models.OrderStatusPending))
	require.NoError(t, p.PublishRefundRequested(ctx, order))
	require.Len(t, writer.messages, 2)

	var changed OrderEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &changed))
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(changed.Data, &payload))
	assert.Equal(t, "pending", payload["previous_status"])
	assert.Equal(t, "paid", payload["new_status"])

	var refund OrderEvent
	require.NoError(t, json.Unmarshal(writer.messages[1].Value, &refund))
	assert.Equal(t, EventTypeOrderRefundRequested, refund.Type)
	require.NoError(t, json.Unmarshal(refund.Data, &payload))
	assert.Equal(t, "25.50", payload["amount"])
}

func TestKafkaPublisher_PublishRatingCreated(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaPublisher(writer, "marketplace.orders")

	err := p.PublishRatingCreated(context.Background(), &models.Rating{ID: 1, BuyerID: 7, ProductID: 9, OrderID: 42, Rating: 5})
	require.NoError(t, err)

	var event OrderEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &event))
	assert.Equal(t, EventTypeRatingCreated, event.Type)
	assert.Equal(t, "9", event.Metadata["product_id"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &fakeWriter{err: fmt.Errorf("broker unavailable")}
	p := newKafkaPublisher(writer, "marketplace.orders")

	err := p.PublishOrderCreated(context.Background(), testOrder())
	assert.Error(t, err)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

type fakePayments struct {
	mu        sync.Mutex
	paid      []int64
	failed    []int64
	reasons   []string
	requestID string
}

func (f *fakePayments) MarkPaid(ctx context.Context, orderID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, orderID)
	f.requestID = logging.RequestIDFromContext(ctx)
	return &models.Order{ID: orderID, Status: models.OrderStatusPaid, IsPaid: true}, nil
}

func (f *fakePayments) HandleFailedPayment(ctx context.Context, orderID int64, reason string) (*models.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, orderID)
	f.reasons = append(f.reasons, reason)
	return &models.CancelResult{Order: &models.Order{ID: orderID, Status: models.OrderStatusCancelled}}, nil
}

func paymentMessage(t *testing.T, event PaymentEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Topic: "marketplace.payments", Value: data}
}

func TestKafkaConsumer_HandleMessage(t *testing.T) {
	payments := &fakePayments{}
	c := newKafkaConsumer(nil, payments)
	ctx := context.Background()

	c.handleMessage(ctx, paymentMessage(t, PaymentEvent{ID: "evt-1", Type: PaymentEventCompleted, OrderID: 10}))
	c.handleMessage(ctx, paymentMessage(t, PaymentEvent{ID: "evt-2", Type: PaymentEventFailed, OrderID: 11}))
	c.handleMessage(ctx, paymentMessage(t, PaymentEvent{ID: "evt-3", Type: PaymentEventFailed, OrderID: 12, Reason: "expired"}))
	c.handleMessage(ctx, paymentMessage(t, PaymentEvent{ID: "evt-4", Type: PaymentEventRefunded, OrderID: 13}))
	c.handleMessage(ctx, paymentMessage(t, PaymentEvent{ID: "evt-5", Type: "payment.disputed", OrderID: 14}))
	c.handleMessage(ctx, kafka.Message{Value: []byte("not json")})

	assert.Equal(t, []int64{10}, payments.paid)
	assert.Equal(t, []int64{11, 12}, payments.failed)
	assert.Equal(t, []string{"payment failed", "expired"}, payments.reasons)
	assert.Equal(t, "evt-1", payments.requestID)
}

type scriptedReader struct {
	messages chan kafka.Message
	closed   chan struct{}
	once     sync.Once
}

func newScriptedReader(msgs ...kafka.Message) *scriptedReader {
	r := &scriptedReader{
		messages: make(chan kafka.Message, len(msgs)),
		closed:   make(chan struct{}),
	}
	for _, m := range msgs {
		r.messages <- m
	}
	return r
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.closed:
		return kafka.Message{}, fmt.Errorf("reader closed")
	}
}

func (r *scriptedReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestKafkaConsumer_StartAndStop(t *testing.T) {
	payments := &fakePayments{}
	reader := newScriptedReader(paymentMessage(t, PaymentEvent{Type: PaymentEventCompleted, OrderID: 5}))
	c := newKafkaConsumer(reader, payments)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		payments.mu.Lock()
		defer payments.mu.Unlock()
		return len(payments.paid) == 1
	}, time.Second, 10*time.Millisecond)

	c.Stop()
	c.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
