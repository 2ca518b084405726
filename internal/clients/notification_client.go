package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/service"
)

// Ensure HTTPNotificationClient implements service.Notifier
var _ service.Notifier = (*HTTPNotificationClient)(nil)

// NotificationType names the template the notification service renders.
type NotificationType string

const (
	NotificationOrderStatusChanged NotificationType = "order_status_changed"
	NotificationRefundNeeded       NotificationType = "order_refund_needed"
)

// Notification is the payload accepted by the notification service.
type Notification struct {
	UserID  int64             `json:"user_id"`
	Type    NotificationType  `json:"type"`
	Channel string            `json:"channel"`
	Data    map[string]string `json:"data"`
}

// HTTPNotificationClient sends buyer notifications over HTTP.
type HTTPNotificationClient struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	circuit *circuitBreaker
	logger  *logging.Logger
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(0),
		circuit: newCircuitBreaker("notification"),
		logger:  logging.NewLogger("notification-client"),
	}
}

// NotifyStatusChanged tells the buyer that their order moved to a new status.
func (c *HTTPNotificationClient) NotifyStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return c.send(ctx, &Notification{
		UserID:  order.BuyerID,
		Type:    NotificationOrderStatusChanged,
		Channel: "email",
		Data: map[string]string{
			"order_id":        fmt.Sprint(order.ID),
			"previous_status": string(previous),
			"status":          string(order.Status),
		},
	})
}

// NotifyRefundNeeded tells the buyer that a paid order was cancelled and
// the payment will be returned.
func (c *HTTPNotificationClient) NotifyRefundNeeded(ctx context.Context, order *models.Order) error {
	return c.send(ctx, &Notification{
		UserID:  order.BuyerID,
		Type:    NotificationRefundNeeded,
		Channel: "email",
		Data: map[string]string{
			"order_id":       fmt.Sprint(order.ID),
			"amount":         order.TotalPrice.StringFixed(2),
			"payment_method": string(order.PaymentMethod),
		},
	})
}

func (c *HTTPNotificationClient) send(ctx context.Context, notification *Notification) error {
	logger := c.logger.WithContext(ctx)
	logger.Debug("Sending notification", logging.Fields{
		"user_id": notification.UserID,
		"type":    notification.Type,
		"channel": notification.Channel,
	})

	_, err := c.circuit.execute(func() (interface{}, error) {
		req := c.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetBody(notification)
		if c.apiKey != "" {
			req.SetAuthToken(c.apiKey)
		}
		if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
			req.SetHeader(HeaderRequestID, requestID)
		}

		resp, httpErr := req.Post(c.baseURL + "/api/v2/notifications")
		if httpErr != nil {
			return nil, fmt.Errorf("HTTP error: %w", httpErr)
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
			return nil, fmt.Errorf("notification service returned status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		if isBreakerRejection(err) {
			err = fmt.Errorf("%s: %w", breakerMessage("notification", err), err)
		}
		logger.Error("Failed to send notification", logging.Fields{
			"user_id": notification.UserID,
			"type":    notification.Type,
			"error":   err.Error(),
		})
		return err
	}

	logger.Info("Notification sent", logging.Fields{
		"user_id": notification.UserID,
		"type":    notification.Type,
	})
	return nil
}
