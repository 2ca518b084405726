package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

const (
	orderKeyPrefix    = "order:"
	buyerOrdersPrefix = "buyer_orders:"
	defaultCacheTTL   = 5 * time.Minute
	// Buyer lists are refilled from reads that can race an invalidation,
	// so they live much shorter than single orders.
	defaultListTTL = 30 * time.Second
)

// RedisOrderCache implements OrderCache using Redis.
type RedisOrderCache struct {
	client  *redis.Client
	ttl     time.Duration
	listTTL time.Duration
	logger  *logging.Logger
}

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(cfg config.RedisConfig) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	cache := NewRedisOrderCacheWithClient(client, cfg.TTL)
	if cfg.ListTTL > 0 {
		cache.listTTL = cfg.ListTTL
	}
	return cache
}

// NewRedisOrderCacheWithClient wraps an existing client.
func NewRedisOrderCacheWithClient(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	listTTL := defaultListTTL
	if ttl < listTTL {
		listTTL = ttl
	}
	return &RedisOrderCache{
		client:  client,
		ttl:     ttl,
		listTTL: listTTL,
		logger:  logging.NewLogger("order-cache"),
	}
}

// Ping checks the Redis connection.
func (c *RedisOrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisOrderCache) Close() error {
	return c.client.Close()
}

// Get retrieves an order from cache. A miss returns nil, nil.
func (c *RedisOrderCache) Get(ctx context.Context, id int64) (*models.Order, error) {
	data, err := c.client.Get(ctx, orderKey(id)).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", logging.Fields{"order_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", logging.Fields{"order_id": id})
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, orderKey(order.ID), data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return err
	}

	c.logger.Debug("Order cached", logging.Fields{
		"order_id": order.ID,
		"ttl":      c.ttl.String(),
	})
	return nil
}

// SetIfAbsent caches an order only when no entry exists. Reads use it so
// that an order loaded before a concurrent update cannot replace the
// entry that update wrote.
func (c *RedisOrderCache) SetIfAbsent(ctx context.Context, order *models.Order) (bool, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return false, err
	}

	stored, err := c.client.SetNX(ctx, orderKey(order.ID), data, c.ttl).Result()
	if err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return false, err
	}
	return stored, nil
}

// Delete removes an order from cache.
func (c *RedisOrderCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, orderKey(id)).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// GetByBuyerID retrieves the cached order list of a buyer.
func (c *RedisOrderCache) GetByBuyerID(ctx context.Context, buyerID int64) ([]*models.Order, error) {
	data, err := c.client.Get(ctx, buyerOrdersKey(buyerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var orders []*models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SetByBuyerID caches the order list of a buyer.
func (c *RedisOrderCache) SetByBuyerID(ctx context.Context, buyerID int64, orders []*models.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, buyerOrdersKey(buyerID), data, c.listTTL).Err()
}

// InvalidateByBuyerID removes the cached order list of a buyer.
func (c *RedisOrderCache) InvalidateByBuyerID(ctx context.Context, buyerID int64) error {
	return c.client.Del(ctx, buyerOrdersKey(buyerID)).Err()
}

func orderKey(id int64) string {
	return orderKeyPrefix + strconv.FormatInt(id, 10)
}

func buyerOrdersKey(buyerID int64) string {
	return buyerOrdersPrefix + strconv.FormatInt(buyerID, 10)
}
