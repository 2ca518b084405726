package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
)

// HeaderPaymentSignature carries the hex HMAC-SHA256 of the webhook body.
const HeaderPaymentSignature = "X-Payment-Signature"

// PaymentWebhook handles POST /api/v1/webhooks/payment. It accepts the same
// event body as the payments topic, for providers that call back over HTTP.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	logger := h.logger.WithContext(c.Request.Context())

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Error("Failed to read webhook payload", logging.Fields{"error": err.Error()})
		badRequest(c, "failed to read request body")
		return
	}

	if !validSignature(h.config.Payments.WebhookSecret, payload, c.GetHeader(HeaderPaymentSignature)) {
		logger.Warn("Rejected payment webhook with bad signature")
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Message: "invalid signature"})
		return
	}

	var event events.PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	handled, err := events.ApplyPaymentEvent(c.Request.Context(), h.paymentService, &event)
	if err != nil {
		handleError(c, err)
		return
	}
	if !handled {
		logger.Debug("Ignoring unknown payment event", logging.Fields{"type": event.Type})
	}

	respond(c, http.StatusOK, "Payment event received", gin.H{"handled": handled})
}

func validSignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
