// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"5328"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Upstream UpstreamConfig
	Store    StoreConfig

	MetricsEnabled  bool   `env:"METRICS_ENABLED" envDefault:"false"`
	MetricsToken    string `env:"METRICS_TOKEN"`
	RateLimitPerMin int    `env:"RATE_LIMIT_PER_MIN" envDefault:"0"`
}

type UpstreamConfig struct {
	BaseURL   string        `env:"UPSTREAM_BASE_URL" envDefault:"https://pokeapi.co/api/v2"`
	ImageBase string        `env:"IMAGE_BASE_URL" envDefault:"https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/"`
	Timeout   time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`
}

// StoreConfig selects where the catalog snapshot is persisted.
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"file"`
	Path        string `env:"STORE_PATH" envDefault:"config.json"`
	Key         string `env:"STORE_KEY" envDefault:"pokedex:catalog"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL must be an absolute url, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.Upstream.Timeout)
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative, got %d", c.RateLimitPerMin)
	}
	if c.MetricsEnabled && c.MetricsToken == "" {
		return fmt.Errorf("METRICS_TOKEN is required when METRICS_ENABLED is set")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required for %s store", c.Store.Driver)
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres store")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}
