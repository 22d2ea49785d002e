// Package config содержит логику чтения конфигурации витрины soapyfy.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/soapyfy/internal/pricing"
	"github.com/mmeshcher/soapyfy/internal/repository"
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress      string   `env:"RUN_ADDRESS"`
	DatabaseURI     string   `env:"DATABASE_URI"`
	RedisAddr       string   `env:"REDIS_ADDR"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string   `env:"KAFKA_TOPIC" envDefault:"soapyfy.orders"`
	OrderWebhookURL string   `env:"ORDER_WEBHOOK_URL"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SecureCookies bool          `env:"SECURE_COOKIES"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	AdminUsername     string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword     string `env:"ADMIN_PASSWORD"`
	OrderStatusPolicy string `env:"ORDER_STATUS_POLICY" envDefault:"permissive"`

	FreeShippingThreshold decimal.Decimal `env:"FREE_SHIPPING_THRESHOLD" envDefault:"30.00"`
	FlatShippingFee       decimal.Decimal `env:"FLAT_SHIPPING_FEE" envDefault:"5.00"`
	TaxRate               decimal.Decimal `env:"TAX_RATE" envDefault:"0.14975"`
	CurrencyLabel         string          `env:"CURRENCY_LABEL" envDefault:"CAD"`

	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	StoreRetries uint64        `env:"STORE_RETRIES" envDefault:"3"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddr := cfg.RedisAddr
	envKafkaBrokers := cfg.KafkaBrokers
	envWebhookURL := cfg.OrderWebhookURL

	var kafkaBrokers string
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (postgres:// or mongodb://)")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "redis address for session storage")
	flag.StringVar(&kafkaBrokers, "k", "", "comma-separated kafka brokers")
	flag.StringVar(&cfg.OrderWebhookURL, "w", "", "order events webhook URL")

	flag.Parse()

	cfg.KafkaBrokers = splitList(kafkaBrokers)

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddr != "" {
		cfg.RedisAddr = envRedisAddr
	}
	if len(envKafkaBrokers) > 0 {
		cfg.KafkaBrokers = envKafkaBrokers
	}
	if envWebhookURL != "" {
		cfg.OrderWebhookURL = envWebhookURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.TaxRate.IsNegative() {
		errs = append(errs, errors.New("TAX_RATE must not be negative"))
	}
	if c.FlatShippingFee.IsNegative() {
		errs = append(errs, errors.New("FLAT_SHIPPING_FEE must not be negative"))
	}
	if c.FreeShippingThreshold.IsNegative() {
		errs = append(errs, errors.New("FREE_SHIPPING_THRESHOLD must not be negative"))
	}
	return errors.Join(errs...)
}

// Pricing возвращает параметры движка цен.
func (c *Config) Pricing() pricing.Config {
	return pricing.Config{
		FreeShippingThreshold: c.FreeShippingThreshold,
		FlatShippingFee:       c.FlatShippingFee,
		TaxRate:               c.TaxRate,
		CurrencyLabel:         c.CurrencyLabel,
	}
}

// Store возвращает параметры обращений к хранилищу.
func (c *Config) Store() repository.Options {
	opts := repository.DefaultOptions()
	if c.StoreTimeout > 0 {
		opts.Timeout = c.StoreTimeout
	}
	opts.Retries = c.StoreRetries
	return opts
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
