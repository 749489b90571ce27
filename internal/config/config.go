package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceVersion = "0.1.0"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	StoreDriver string
	DatabaseURL string

	// DirectoryURL is the inventory service base URL. Empty runs the in-memory demo directory.
	DirectoryURL     string
	DirectoryTimeout time.Duration

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	OtelEndpoint string
	OtelInsecure bool

	SeedOrders      bool
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment. Every malformed value is
// reported, not just the first.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		ServiceName:  getenvDefault("SERVICE_NAME", "order-service"),
		Env:          getenvDefault("ENV", "dev"),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		StoreDriver:  strings.ToLower(getenvDefault("STORE_DRIVER", StoreMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DirectoryURL: os.Getenv("DIRECTORY_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenvDefault("KAFKA_TOPIC", "order.events"),
		OtelEndpoint: os.Getenv("OTEL_ENDPOINT"),
	}

	timeoutMS, err := getenvInt("DIRECTORY_TIMEOUT_MS", 2500)
	errs = append(errs, err)
	cfg.DirectoryTimeout = time.Duration(timeoutMS) * time.Millisecond

	cfg.IdempotencyTTL, err = getenvDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	errs = append(errs, err)
	cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	errs = append(errs, err)
	cfg.OtelInsecure, err = getenvBool("OTEL_INSECURE", true)
	errs = append(errs, err)
	cfg.SeedOrders, err = getenvBool("SEED_ORDERS", false)
	errs = append(errs, err)

	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, StoreMemory, StorePostgres))
	}
	if cfg.DirectoryTimeout <= 0 {
		errs = append(errs, errors.New("DIRECTORY_TIMEOUT_MS must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
