package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/metrics"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	http     *http.Server
	logger   *logging.Logger
}

func New(h *handlers.Handlers, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(metrics.PrometheusMiddleware("marketplace-service"))

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		logger:   logging.NewLogger("server"),
	}

	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.Health)
	s.router.GET("/ready", h.Ready)
	s.router.GET("/live", h.Live)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := s.router.Group("/api/v1")
	{
		public.GET("/products", h.ListProducts)
		public.GET("/products/:id", h.GetProduct)
		public.GET("/categories", h.ListCategories)
		public.GET("/categories/:id", h.GetCategory)
		public.GET("/ratings/:id", h.GetRating)
		public.GET("/ratings/product/:product_id", h.ListProductRatings)

		if s.config.Payments.WebhookSecret != "" {
			public.POST("/webhooks/payment", h.PaymentWebhook)
		}
	}

	api := s.router.Group("/api/v1", h.RequireAuth())
	{
		orders := api.Group("/orders")
		orders.POST("", h.CreateOrder)
		orders.GET("/buyer", h.ListBuyerOrders)
		orders.GET("/seller", h.ListSellerOrders)
		orders.GET("/statistics", h.GetOrderStatistics)
		orders.GET("/status/:status", h.ListOrdersByStatus)
		orders.GET("/:id", h.GetOrder)
		orders.PUT("/:id/status", h.UpdateOrderStatus)
		orders.POST("/:id/cancel", h.CancelOrder)

		ratings := api.Group("/ratings")
		ratings.POST("", h.CreateRating)
		ratings.GET("/user", h.ListBuyerRatings)
		ratings.PUT("/:id", h.UpdateRating)
		ratings.DELETE("/:id", h.DeleteRating)

		products := api.Group("/products")
		products.POST("", h.CreateProduct)
		products.PUT("/:id", h.UpdateProduct)
		products.PATCH("/:id/stock", h.AdjustStock)

		categories := api.Group("/categories")
		categories.POST("", h.CreateCategory)
		categories.PUT("/:id", h.UpdateCategory)
		categories.DELETE("/:id", h.DeleteCategory)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", logging.Fields{"addr": s.http.Addr})
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
