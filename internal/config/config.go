package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/order-service/internal/repository"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	HTTP struct {
		Port            string
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
	}

	Mongo struct {
		URI    string
		DBName string
	}

	Redis struct {
		Addr     string
		Password string
		CacheTTL time.Duration
	}

	Postgres repository.Credentials

	Kafka struct {
		Brokers       []string
		Topic         string
		PollInterval  time.Duration
		PollBatchSize int
	}

	Catalog struct {
		URL     string
		Timeout time.Duration
	}

	JWTSecret    string
	StatusPolicy string

	Pricing struct {
		TaxRate               decimal.Decimal
		FreeShippingThreshold decimal.Decimal
		ShippingFee           decimal.Decimal
		TaxPlaces             int32
	}

	OTLPEndpoint string
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Load reads an optional .env file at path and then the process environment.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var (
		cfg  Config
		errs []error
	)

	cfg.Env = getEnv("APP_ENV", EnvProduction)

	cfg.HTTP.Port = getEnv("HTTP_PORT", "8080")
	cfg.HTTP.RequestTimeout = getDuration("REQUEST_TIMEOUT", 10*time.Second, &errs)
	cfg.HTTP.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second, &errs)

	cfg.Mongo.URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	cfg.Mongo.DBName = getEnv("MONGO_DB_NAME", "cartdb")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.CacheTTL = getDuration("CART_CACHE_TTL", 15*time.Minute, &errs)

	cfg.Postgres = repository.Credentials{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getInt("DB_PORT", 5432, &errs),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "orders"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),
	}

	cfg.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.Topic = getEnv("ORDER_EVENTS_TOPIC", "order-events")
	cfg.Kafka.PollInterval = getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second, &errs)
	cfg.Kafka.PollBatchSize = getInt("OUTBOX_BATCH_SIZE", 100, &errs)

	cfg.Catalog.URL = getEnv("CATALOG_URL", "http://localhost:8081/api")
	cfg.Catalog.Timeout = getDuration("CATALOG_TIMEOUT", 3*time.Second, &errs)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			errs = append(errs, errors.New("JWT_SECRET is required"))
		}
		cfg.JWTSecret = "development-secret"
	}

	cfg.StatusPolicy = strings.ToLower(getEnv("ORDER_STATUS_POLICY", "free"))
	if cfg.StatusPolicy != "free" && cfg.StatusPolicy != "strict" {
		errs = append(errs, fmt.Errorf("ORDER_STATUS_POLICY must be free or strict, got %q", cfg.StatusPolicy))
	}

	cfg.Pricing.TaxRate = getDecimal("TAX_RATE", "0.10", &errs)
	cfg.Pricing.FreeShippingThreshold = getDecimal("FREE_SHIPPING_THRESHOLD", "100", &errs)
	cfg.Pricing.ShippingFee = getDecimal("SHIPPING_FEE", "10", &errs)
	cfg.Pricing.TaxPlaces = int32(getInt("TAX_DECIMAL_PLACES", 2, &errs))

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	if v <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be positive, got %s", key, raw))
		return defaultValue
	}
	return v
}

func getDecimal(key, defaultValue string, errs *[]error) decimal.Decimal {
	v, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(defaultValue)
	}
	if v.IsNegative() {
		*errs = append(*errs, fmt.Errorf("%s must not be negative", key))
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
