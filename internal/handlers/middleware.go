package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

const (
	HeaderRequestID = "X-Request-ID"
	principalKey    = "principal"
)

// RequestID propagates the caller's request ID, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := logging.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// RequireAuth resolves the bearer token into a principal, or rejects the
// request with 401.
func (h *Handlers) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == header {
			handleError(c, errors.NewUnauthorizedError("missing bearer token"))
			return
		}

		principal, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			handleError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// principal returns the caller set by RequireAuth.
func principal(c *gin.Context) models.Principal {
	if p, ok := c.Get(principalKey); ok {
		if principal, ok := p.(models.Principal); ok {
			return principal
		}
	}
	return nil
}
