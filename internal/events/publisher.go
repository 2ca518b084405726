package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/service"
)

// Ensure KafkaPublisher implements service.EventPublisher
var _ service.EventPublisher = (*KafkaPublisher)(nil)

// EventType represents the type of marketplace event.
type EventType string

const (
	EventTypeOrderCreated         EventType = "order.created"
	EventTypeOrderStatusChanged   EventType = "order.status_changed"
	EventTypeOrderCancelled       EventType = "order.cancelled"
	EventTypeOrderRefundRequested EventType = "order.refund_requested"
	EventTypeRatingCreated        EventType = "rating.created"
)

// OrderEvent is the envelope written to the orders topic.
type OrderEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	OrderID       int64             `json:"order_id"`
	BuyerID       int64             `json:"buyer_id"`
	SellerID      int64             `json:"seller_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes marketplace events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logging.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, cfg.OrdersTopic)
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logging.NewLogger("event-publisher"),
		now:    time.Now,
	}
}

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.publishOrder(ctx, EventTypeOrderCreated, order, order)
}

// PublishOrderStatusChanged publishes an order status change event.
func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	payload := struct {
		Order          *models.Order      `json:"order"`
		PreviousStatus models.OrderStatus `json:"previous_status"`
		NewStatus      models.OrderStatus `json:"new_status"`
	}{
		Order:          order,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
	}
	return p.publishOrder(ctx, EventTypeOrderStatusChanged, order, payload)
}

// PublishOrderCancelled publishes an order cancellation event.
func (p *KafkaPublisher) PublishOrderCancelled(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	payload := struct {
		Order          *models.Order      `json:"order"`
		PreviousStatus models.OrderStatus `json:"previous_status"`
	}{
		Order:          order,
		PreviousStatus: previousStatus,
	}
	return p.publishOrder(ctx, EventTypeOrderCancelled, order, payload)
}

// PublishRefundRequested signals that a cancelled order had been paid and
// the payment must be returned. Nothing in this service acts on it.
func (p *KafkaPublisher) PublishRefundRequested(ctx context.Context, order *models.Order) error {
	payload := struct {
		OrderID       int64                `json:"order_id"`
		Amount        string               `json:"amount"`
		PaymentMethod models.PaymentMethod `json:"payment_method"`
	}{
		OrderID:       order.ID,
		Amount:        order.TotalPrice.StringFixed(2),
		PaymentMethod: order.PaymentMethod,
	}
	return p.publishOrder(ctx, EventTypeOrderRefundRequested, order, payload)
}

// PublishRatingCreated publishes a new product rating.
func (p *KafkaPublisher) PublishRatingCreated(ctx context.Context, rating *models.Rating) error {
	data, err := json.Marshal(rating)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeRatingCreated, rating.OrderID, data)
	event.BuyerID = rating.BuyerID
	event.Metadata["product_id"] = strconv.FormatInt(rating.ProductID, 10)
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) publishOrder(ctx context.Context, eventType EventType, order *models.Order, payload interface{}) error {
	p.logger.Debug("Publishing order event", logging.Fields{
		"order_id":   order.ID,
		"event_type": eventType,
	})

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, eventType, order.ID, data)
	event.BuyerID = order.BuyerID
	event.SellerID = order.SellerID
	event.Metadata["status"] = string(order.Status)
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, orderID int64, data []byte) *OrderEvent {
	return &OrderEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		OrderID:       orderID,
		Data:          data,
		Metadata:      make(map[string]string),
		Timestamp:     p.now().UTC(),
		CorrelationID: logging.RequestIDFromContext(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
			"error":      err.Error(),
		})
		return err
	}

	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
		"topic":      p.topic,
	})
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}
