package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/service"

	_ "github.com/lib/pq"
)

type stores struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	ratings repository.RatingRepository
	ping    func(ctx context.Context) error
	close   func() error
}

func main() {
	cfg := config.Load()
	logging.Configure(cfg.Log.Level, cfg.Log.Format)

	logger := logging.NewLogger("marketplace-service")
	logger.Info("Starting marketplace-service", logging.Fields{
		"port":   cfg.Server.Port,
		"driver": cfg.Database.Driver,
	})

	st, err := initStores(cfg)
	if err != nil {
		logger.Fatal("Failed to initialise storage", logging.Fields{"error": err.Error()})
	}
	defer st.close()

	var orderCache repository.OrderCache
	var redisCache *repository.RedisOrderCache
	if cfg.Features.EnableOrderCaching {
		redisCache = repository.NewRedisOrderCache(cfg.Redis)
		defer redisCache.Close()
		orderCache = redisCache
	}

	var publisher service.EventPublisher
	if cfg.Features.EnableOrderEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var notifier service.Notifier
	if cfg.Features.EnableNotifications {
		notifier = clients.NewHTTPNotificationClient(cfg.NotificationService)
	}

	orderService := service.NewOrderService(st.orders, orderCache, publisher, notifier, cfg)
	ratingService := service.NewRatingService(st.ratings, st.orders, publisher, cfg)
	catalogService := service.NewCatalogService(st.catalog)
	paymentService := service.NewPaymentService(orderService)

	identityClient := clients.NewIdentityClient(cfg.IdentityService)

	h := handlers.NewHandlers(orderService, ratingService, catalogService, paymentService, identityClient, cfg)
	h.AddReadinessCheck("database", st.ping)
	if redisCache != nil {
		h.AddReadinessCheck("redis", redisCache.Ping)
	}

	srv := server.New(h, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                    cfg.Server.Port,
			"enable_order_events":     cfg.Features.EnableOrderEvents,
			"enable_order_caching":    cfg.Features.EnableOrderCaching,
			"enable_payment_consumer": cfg.Features.EnablePaymentConsumer,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentConsumer {
		consumer = events.NewKafkaConsumer(cfg.Kafka, paymentService)
		go func() {
			if err := consumer.Start(context.Background()); err != nil {
				logger.Error("Payment consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}

func initStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		logging.NewLogger("storage").Warn("Using in-memory storage, data is lost on restart")
		store := repository.NewMemoryStore()
		return &stores{
			orders:  store.Orders(),
			catalog: store.Catalog(),
			ratings: store.Ratings(),
			ping:    func(ctx context.Context) error { return nil },
			close:   func() error { return nil },
		}, nil
	}

	db, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return &stores{
		orders:  repository.NewPostgresOrderRepository(db),
		catalog: repository.NewPostgresCatalogRepository(db),
		ratings: repository.NewPostgresRatingRepository(db),
		ping:    db.PingContext,
		close:   db.Close,
	}, nil
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	logging.NewLogger("storage").Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
