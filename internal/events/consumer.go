package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
	PaymentEventRefunded  PaymentEventType = "payment.refunded"
)

// PaymentEvent is published by the payment provider integration.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   int64            `json:"order_id"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// PaymentHandler applies payment outcomes to orders.
type PaymentHandler interface {
	MarkPaid(ctx context.Context, orderID int64) (*models.Order, error)
	HandleFailedPayment(ctx context.Context, orderID int64, reason string) (*models.CancelResult, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer consumes payment events from Kafka.
type KafkaConsumer struct {
	reader   messageReader
	payments PaymentHandler
	logger   *logging.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKafkaConsumer creates a new Kafka-based payment event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, payments PaymentHandler) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newKafkaConsumer(reader, payments)
}

func newKafkaConsumer(reader messageReader, payments PaymentHandler) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   reader,
		payments: payments,
		logger:   logging.NewLogger("payment-consumer"),
		stopCh:   make(chan struct{}),
	}
}

// Start consumes events until ctx is done or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					return nil
				default:
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer. It is safe to call more than once.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close Kafka reader", logging.Fields{"error": err.Error()})
		}
	})
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.EventsConsumed.WithLabelValues("invalid", "error").Inc()
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}
	if event.ID != "" {
		ctx = logging.ContextWithRequestID(ctx, event.ID)
	}

	handled, err := ApplyPaymentEvent(ctx, c.payments, &event)
	if !handled {
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.EventsConsumed.WithLabelValues(string(event.Type), result).Inc()
}

// ApplyPaymentEvent applies a payment outcome to its order. handled is false
// for event types this service does not act on.
func ApplyPaymentEvent(ctx context.Context, payments PaymentHandler, event *PaymentEvent) (handled bool, err error) {
	logger := logging.NewLogger("payment-events").WithContext(ctx)

	switch event.Type {
	case PaymentEventCompleted:
		logger.Info("Handling payment completed event", logging.Fields{
			"payment_id": event.PaymentID,
			"order_id":   event.OrderID,
		})
		if _, err := payments.MarkPaid(ctx, event.OrderID); err != nil {
			logger.Error("Failed to mark order as paid", logging.Fields{
				"order_id": event.OrderID,
				"error":    err.Error(),
			})
			return true, err
		}
		return true, nil

	case PaymentEventFailed:
		logger.Info("Handling payment failed event", logging.Fields{
			"payment_id": event.PaymentID,
			"order_id":   event.OrderID,
		})
		reason := event.Reason
		if reason == "" {
			reason = "payment failed"
		}
		if _, err := payments.HandleFailedPayment(ctx, event.OrderID, reason); err != nil {
			logger.Error("Failed to cancel order", logging.Fields{
				"order_id": event.OrderID,
				"error":    err.Error(),
			})
			return true, err
		}
		return true, nil

	case PaymentEventRefunded:
		logger.Info("Payment refunded", logging.Fields{
			"payment_id": event.PaymentID,
			"order_id":   event.OrderID,
		})
		return true, nil

	default:
		return false, nil
	}
}
