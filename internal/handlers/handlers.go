package handlers

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/service"
)

// Authenticator resolves a bearer token into the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the marketplace service.
type Handlers struct {
	orderService   *service.OrderService
	ratingService  *service.RatingService
	catalogService *service.CatalogService
	paymentService *service.PaymentService
	auth           Authenticator
	checks         map[string]ReadinessCheck
	config         *config.Config
	logger         *logging.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	ratingService *service.RatingService,
	catalogService *service.CatalogService,
	paymentService *service.PaymentService,
	auth Authenticator,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		ratingService:  ratingService,
		catalogService: catalogService,
		paymentService: paymentService,
		auth:           auth,
		checks:         make(map[string]ReadinessCheck),
		config:         cfg,
		logger:         logging.NewLogger("handlers"),
	}
}

// AddReadinessCheck registers a dependency probed by GET /ready.
func (h *Handlers) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}
