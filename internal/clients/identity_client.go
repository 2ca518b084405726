package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

// HeaderRequestID carries the request ID to downstream services.
const HeaderRequestID = "X-Request-ID"

// identityUser is the body of GET /api/v1/auth/me.
type identityUser struct {
	ID       int64       `json:"id"`
	Role     models.Role `json:"role"`
	SellerID int64       `json:"seller_id,omitempty"`
}

// IdentityClient resolves bearer tokens into principals through the identity service.
type IdentityClient struct {
	baseURL string
	client  *resty.Client
	circuit *circuitBreaker
	logger  *logging.Logger
}

// NewIdentityClient creates a new identity service client.
func NewIdentityClient(cfg config.ServiceConfig) *IdentityClient {
	return &IdentityClient{
		baseURL: cfg.BaseURL,
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(0),
		circuit: newCircuitBreaker("identity"),
		logger:  logging.NewLogger("identity-client"),
	}
}

// Authenticate returns the principal owning token. An unknown or expired
// token is Unauthorized; an unreachable identity service is Internal.
func (c *IdentityClient) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	if token == "" {
		return nil, errors.NewUnauthorizedError("missing bearer token")
	}

	result, err := c.circuit.execute(func() (interface{}, error) {
		var user identityUser
		req := c.client.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetAuthToken(token).
			SetResult(&user)
		if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
			req.SetHeader(HeaderRequestID, requestID)
		}

		resp, httpErr := req.Get(c.baseURL + "/api/v1/auth/me")
		if httpErr != nil {
			return nil, fmt.Errorf("HTTP error: %w", httpErr)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			return &user, nil
		case http.StatusUnauthorized, http.StatusForbidden:
			// A rejected token is a healthy answer, not a breaker failure.
			return nil, nil
		default:
			return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode())
		}
	})
	if err != nil {
		c.logger.WithContext(ctx).Error("Identity lookup failed", logging.Fields{
			"error":         err.Error(),
			"circuit_state": c.circuit.state().String(),
		})
		if isBreakerRejection(err) {
			err = fmt.Errorf("%s: %w", breakerMessage("identity", err), err)
		}
		return nil, errors.Internal(err)
	}

	user, _ := result.(*identityUser)
	if user == nil {
		return nil, errors.NewUnauthorizedError("invalid or expired token")
	}
	return toPrincipal(user)
}

func toPrincipal(user *identityUser) (models.Principal, error) {
	switch user.Role {
	case models.RoleBuyer:
		return models.Buyer{ID: user.ID}, nil
	case models.RoleSeller:
		if user.SellerID == 0 {
			return nil, errors.NewUnauthorizedError("seller account has no shop")
		}
		return models.Seller{ID: user.ID, SellerID: user.SellerID}, nil
	case models.RoleAdmin:
		return models.Admin{ID: user.ID}, nil
	default:
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("unsupported role %q", user.Role))
	}
}
