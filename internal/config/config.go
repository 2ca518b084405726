package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	IdentityService     ServiceConfig
	NotificationService ServiceConfig
	Payments            PaymentsConfig
	Features            FeatureFlags
	Orders              OrderLimits
	Log                 LogConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	ListTTL  time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	PaymentsTopic string
	ConsumerGroup string
}

type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// PaymentsConfig configures the payment provider webhook. The webhook route
// is only served when WebhookSecret is set.
type PaymentsConfig struct {
	WebhookSecret string
}

type FeatureFlags struct {
	EnableOrderEvents     bool
	EnableOrderCaching    bool
	EnablePaymentConsumer bool
	EnableNotifications   bool
}

// OrderLimits bounds a single order request.
type OrderLimits struct {
	MaxDistinctItems int
	MaxItemQuantity  int
	MaxTotalQuantity int
}

type LogConfig struct {
	Level  string
	Format string
}

// DefaultOrderLimits returns the limits applied when nothing is configured.
func DefaultOrderLimits() OrderLimits {
	return OrderLimits{
		MaxDistinctItems: 50,
		MaxItemQuantity:  100,
		MaxTotalQuantity: 1000,
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	limits := DefaultOrderLimits()

	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8082),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       getEnvString("DATABASE_DRIVER", "postgres"),
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_marketplace"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 300)) * time.Second,
			ListTTL:  time.Duration(getEnvInt("REDIS_LIST_TTL_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "marketplace.orders"),
			PaymentsTopic: getEnvString("KAFKA_PAYMENTS_TOPIC", "payments.events"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "marketplace-service"),
		},
		IdentityService: ServiceConfig{
			BaseURL: getEnvString("IDENTITY_SERVICE_URL", "http://localhost:8081"),
			Timeout: time.Duration(getEnvInt("IDENTITY_SERVICE_TIMEOUT", 5)) * time.Second,
			APIKey:  getEnvString("IDENTITY_SERVICE_API_KEY", ""),
		},
		NotificationService: ServiceConfig{
			BaseURL: getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8085"),
			Timeout: time.Duration(getEnvInt("NOTIFICATION_SERVICE_TIMEOUT", 10)) * time.Second,
			APIKey:  getEnvString("NOTIFICATION_SERVICE_API_KEY", ""),
		},
		Payments: PaymentsConfig{
			WebhookSecret: getEnvString("PAYMENT_WEBHOOK_SECRET", ""),
		},
		Features: FeatureFlags{
			EnableOrderEvents:     getEnvBool("ENABLE_ORDER_EVENTS", true),
			EnableOrderCaching:    getEnvBool("ENABLE_ORDER_CACHING", true),
			EnablePaymentConsumer: getEnvBool("ENABLE_PAYMENT_CONSUMER", true),
			EnableNotifications:   getEnvBool("ENABLE_NOTIFICATIONS", false),
		},
		Orders: OrderLimits{
			MaxDistinctItems: getEnvInt("ORDER_MAX_DISTINCT_ITEMS", limits.MaxDistinctItems),
			MaxItemQuantity:  getEnvInt("ORDER_MAX_ITEM_QUANTITY", limits.MaxItemQuantity),
			MaxTotalQuantity: getEnvInt("ORDER_MAX_TOTAL_QUANTITY", limits.MaxTotalQuantity),
		},
		Log: LogConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
