// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything cmd/product-service needs at start-up.
type Config struct {
	Port               string
	PostgresURL        string
	KafkaBrokers       []string
	SupplierServiceURL string
	OrderServiceURL    string
	OTLPEndpoint       string

	SupplierDeactivatedTopic string
	SupplierEventsGroup      string

	RetryAttempts     int
	RetryDelay        time.Duration
	RetryMultiplier   float64
	HandlerTimeout    time.Duration
	HTTPClientTimeout time.Duration
	ConsumerWorkers   int

	FaultInjectionPrefix string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loader collects parse failures so Load can report all of them at once.
type loader struct {
	errs []error
}

func (l *loader) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		l.errs = append(l.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (l *loader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

// duration accepts Go duration strings ("3s") or a bare number of
// milliseconds ("3000").
func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads the environment. Missing required variables and malformed
// values are all reported in the returned error.
func Load() (Config, error) {
	var l loader

	cfg := Config{
		Port:               getenv("PORT", "8080"),
		PostgresURL:        l.required("POSTGRES_URL"),
		KafkaBrokers:       splitList(l.required("KAFKA_BROKERS")),
		SupplierServiceURL: strings.TrimRight(l.required("SUPPLIER_SERVICE_URL"), "/"),
		OrderServiceURL:    strings.TrimRight(l.required("ORDER_SERVICE_URL"), "/"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		SupplierDeactivatedTopic: getenv("SUPPLIER_DEACTIVATED_TOPIC", "supplier.deactivated"),
		SupplierEventsGroup:      getenv("SUPPLIER_EVENTS_GROUP", "product-service"),

		RetryAttempts:     l.int("RETRY_ATTEMPTS", 3),
		RetryDelay:        l.duration("RETRY_DELAY", 3*time.Second),
		RetryMultiplier:   l.float("RETRY_MULTIPLIER", 2.0),
		HandlerTimeout:    l.duration("HANDLER_TIMEOUT", 10*time.Second),
		HTTPClientTimeout: l.duration("HTTP_CLIENT_TIMEOUT", 5*time.Second),
		ConsumerWorkers:   l.int("CONSUMER_WORKERS", 1),

		FaultInjectionPrefix: getenv("FAULT_INJECTION_PREFIX", "FAIL"),
	}

	if cfg.RetryAttempts < 1 {
		l.errs = append(l.errs, fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", cfg.RetryAttempts))
	}
	if cfg.ConsumerWorkers < 1 {
		l.errs = append(l.errs, fmt.Errorf("CONSUMER_WORKERS must be at least 1, got %d", cfg.ConsumerWorkers))
	}

	if err := errors.Join(l.errs...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
