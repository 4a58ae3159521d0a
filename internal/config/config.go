// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Storage string

const (
	StorageMemory   Storage = "memory"
	StoragePostgres Storage = "postgres"
)

type GatewayMode string

const (
	GatewayFake   GatewayMode = "fake"
	GatewayStripe GatewayMode = "stripe"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	LogLevel    string
	LogFile     string

	Storage     Storage
	DatabaseURL string
	RedisAddr   string

	KafkaBrokers []string
	KafkaTopic   string

	CheckoutFlow          string
	Currency              currency.Unit
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingRate      decimal.Decimal
	RefundWindowDays      int
	CartTTL               time.Duration

	GatewayMode      GatewayMode
	GatewayBaseURL   string
	GatewaySecretKey string
	GatewayTimeout   time.Duration

	WebhookSecret    string
	WebhookTolerance time.Duration
	WebhookDedupeTTL time.Duration

	ShutdownTimeout time.Duration
}

// Load reads the environment. Every problem found is reported, not just the first.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}

	cfg := Config{
		ServiceName: r.str("SERVICE_NAME", "minishop-checkout"),
		Env:         r.str("ENV", "dev"),
		HTTPAddr:    r.str("HTTP_ADDR", ":8080"),
		LogLevel:    r.str("LOG_LEVEL", "info"),
		LogFile:     r.str("LOG_FILE", ""),

		Storage:     Storage(r.str("STORAGE", string(StorageMemory))),
		DatabaseURL: r.str("DATABASE_URL", ""),
		RedisAddr:   r.str("REDIS_ADDR", ""),

		KafkaBrokers: r.list("KAFKA_BROKERS"),
		KafkaTopic:   r.str("KAFKA_TOPIC", "minishop.orders"),

		CheckoutFlow:          r.str("CHECKOUT_FLOW", "payment_gated"),
		Currency:              r.cur("CURRENCY", currency.USD),
		TaxRate:               r.dec("TAX_RATE", "0.08"),
		FreeShippingThreshold: r.dec("FREE_SHIPPING_THRESHOLD", "50"),
		FlatShippingRate:      r.dec("FLAT_SHIPPING_RATE", "5.99"),
		RefundWindowDays:      r.integer("REFUND_WINDOW_DAYS", 30),
		CartTTL:               r.dur("CART_TTL", 7*24*time.Hour),

		GatewayMode:      GatewayMode(r.str("GATEWAY_MODE", string(GatewayFake))),
		GatewayBaseURL:   r.str("GATEWAY_BASE_URL", "https://api.stripe.com"),
		GatewaySecretKey: r.str("GATEWAY_SECRET_KEY", ""),
		GatewayTimeout:   r.dur("GATEWAY_TIMEOUT", 10*time.Second),

		WebhookSecret:    r.str("WEBHOOK_SECRET", ""),
		WebhookTolerance: r.dur("WEBHOOK_TOLERANCE", 5*time.Minute),
		WebhookDedupeTTL: r.dur("WEBHOOK_DEDUPE_TTL", 72*time.Hour),

		ShutdownTimeout: r.dur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	r.check(cfg.Storage == StorageMemory || cfg.Storage == StoragePostgres, "STORAGE must be memory or postgres")
	r.check(cfg.Storage != StoragePostgres || cfg.DatabaseURL != "", "DATABASE_URL is required when STORAGE=postgres")
	r.check(cfg.GatewayMode == GatewayFake || cfg.GatewayMode == GatewayStripe, "GATEWAY_MODE must be fake or stripe")
	r.check(cfg.GatewayMode != GatewayStripe || cfg.GatewaySecretKey != "", "GATEWAY_SECRET_KEY is required when GATEWAY_MODE=stripe")
	r.check(cfg.Env == "dev" || cfg.WebhookSecret != "", "WEBHOOK_SECRET is required outside dev")
	r.check(cfg.CheckoutFlow == "immediate" || cfg.CheckoutFlow == "payment_gated", "CHECKOUT_FLOW must be immediate or payment_gated")
	r.check(!cfg.TaxRate.IsNegative() && cfg.TaxRate.LessThan(decimal.NewFromInt(1)), "TAX_RATE must be in [0, 1)")
	r.check(!cfg.FreeShippingThreshold.IsNegative(), "FREE_SHIPPING_THRESHOLD must not be negative")
	r.check(!cfg.FlatShippingRate.IsNegative(), "FLAT_SHIPPING_RATE must not be negative")
	r.check(cfg.RefundWindowDays > 0, "REFUND_WINDOW_DAYS must be positive")
	r.check(cfg.CartTTL > 0, "CART_TTL must be positive")
	r.check(cfg.GatewayTimeout > 0, "GATEWAY_TIMEOUT must be positive")

	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	return cfg, nil
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) dur(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) dec(key, def string) decimal.Decimal {
	d, err := decimal.NewFromString(r.str(key, def))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(def)
	}
	return d
}

func (r *reader) cur(key string, def currency.Unit) currency.Unit {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	u, err := currency.ParseISO(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return u
}

func (r *reader) check(ok bool, msg string) {
	if !ok {
		r.errs = append(r.errs, errors.New(msg))
	}
}
