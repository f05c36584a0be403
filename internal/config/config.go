package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Whiteherobot/microservices-project/internal/resilience"
)

// Config is the order service configuration, read from the
// environment. Resilience settings are independent per remote
// operation.
type Config struct {
	Port               string
	PostgresURL        string
	ProductServiceURL  string
	ShippingServiceURL string
	KafkaBrokers       []string

	ProductList   resilience.Config
	StockDecrease resilience.Config
	StockRestore  resilience.Config
	ShippingQuote resilience.Config
}

// Load reads the environment. POSTGRES_URL, PRODUCT_SERVICE_URL and
// SHIPPING_SERVICE_URL are required; everything else has defaults
// matching the original deployment. KAFKA_BROKERS is optional: without
// it, event publishing is disabled.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               envString("PORT", "8080"),
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		ProductServiceURL:  os.Getenv("PRODUCT_SERVICE_URL"),
		ShippingServiceURL: os.Getenv("SHIPPING_SERVICE_URL"),
	}

	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL is required")
	}
	if cfg.ProductServiceURL == "" {
		return nil, fmt.Errorf("PRODUCT_SERVICE_URL is required")
	}
	if cfg.ShippingServiceURL == "" {
		return nil, fmt.Errorf("SHIPPING_SERVICE_URL is required")
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	cfg.ProductList, err = loadResilience("PRODUCT_LIST", resilience.Config{
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		RetryDelay:          100 * time.Millisecond,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	cfg.StockDecrease, err = loadResilience("STOCK_DECREASE", resilience.Config{
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		RetryDelay:          100 * time.Millisecond,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	// Compensation carries a higher retry budget than the forward call.
	cfg.StockRestore, err = loadResilience("STOCK_RESTORE", resilience.Config{
		Timeout:             5 * time.Second,
		MaxRetries:          3,
		RetryDelay:          200 * time.Millisecond,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	cfg.ShippingQuote, err = loadResilience("SHIPPING_QUOTE", resilience.Config{
		Timeout:             3 * time.Second,
		MaxRetries:          0,
		RetryDelay:          100 * time.Millisecond,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadResilience(prefix string, defaults resilience.Config) (resilience.Config, error) {
	cfg := defaults

	var err error
	if cfg.Timeout, err = envDuration(prefix+"_TIMEOUT", defaults.Timeout); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = envUint64(prefix+"_MAX_RETRIES", defaults.MaxRetries); err != nil {
		return cfg, err
	}
	if cfg.RetryDelay, err = envDuration(prefix+"_RETRY_DELAY", defaults.RetryDelay); err != nil {
		return cfg, err
	}
	if cfg.BreakerMinRequests, err = envUint32(prefix+"_BREAKER_MIN_REQUESTS", defaults.BreakerMinRequests); err != nil {
		return cfg, err
	}
	if cfg.BreakerFailureRatio, err = envFloat(prefix+"_BREAKER_FAILURE_RATIO", defaults.BreakerFailureRatio); err != nil {
		return cfg, err
	}
	if cfg.BreakerCooldown, err = envDuration(prefix+"_BREAKER_COOLDOWN", defaults.BreakerCooldown); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envUint64(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envUint32(key string, fallback uint32) (uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(n), nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
