package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8082, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, DefaultOrderLimits(), cfg.Orders)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 30*time.Second, cfg.Redis.ListTTL)
	assert.True(t, cfg.Features.EnableOrderEvents)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ENABLE_ORDER_CACHING", "false")
	t.Setenv("ORDER_MAX_TOTAL_QUANTITY", "500")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Features.EnableOrderCaching)
	assert.Equal(t, 500, cfg.Orders.MaxTotalQuantity)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "shop", SSLMode: "require"}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=shop sslmode=require", d.ConnectionString())
}
