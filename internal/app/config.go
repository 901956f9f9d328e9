package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (STORE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Kafka        KafkaConfig
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// KafkaConfig controls the order event fan-out. An empty broker list
// disables Kafka; events then go to the service log.
type KafkaConfig struct {
	Brokers string `default:"" usage:"Comma-separated Kafka brokers (empty disables fan-out)"`
	Topic   string `default:"storefront.orders" usage:"Topic for order events"`
}

// PricingConfig controls the default flat-rate shipping/tax policy.
type PricingConfig struct {
	ShippingCost     string `default:"4.99" usage:"Flat shipping cost" flag:"shipping-cost"`
	FreeShippingOver string `default:"50"   usage:"Subtotal threshold for free shipping (0 disables)" flag:"free-shipping-over"`
	TaxRate          string `default:"0.08" usage:"Tax rate as a fraction of the subtotal" flag:"tax-rate"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.PricingDecimals(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PricingValues is the parsed form of PricingConfig.
type PricingValues struct {
	ShippingCost     decimal.Decimal
	FreeShippingOver decimal.Decimal
	TaxRate          decimal.Decimal
}

// PricingDecimals parses the string pricing fields into decimals.
func (c *Config) PricingDecimals() (PricingValues, error) {
	var (
		v   PricingValues
		err error
	)
	if v.ShippingCost, err = decimal.NewFromString(c.Pricing.ShippingCost); err != nil {
		return v, errors.Wrap(err, "parse shipping cost")
	}
	if v.FreeShippingOver, err = decimal.NewFromString(c.Pricing.FreeShippingOver); err != nil {
		return v, errors.Wrap(err, "parse free shipping threshold")
	}
	if v.TaxRate, err = decimal.NewFromString(c.Pricing.TaxRate); err != nil {
		return v, errors.Wrap(err, "parse tax rate")
	}
	return v, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
