package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/relaykit/smsrelay/internal/domain"
)

// Config carries every runtime setting the service consumes. Values are
// loaded from the environment once in main and passed down explicitly.
type Config struct {
	Driver               string `env:"SMS_DRIVER,default=log"`
	APIKey               string `env:"SMS_API_KEY"`
	BaseURL              string `env:"SMS_BASE_URL"`
	RequestTimeoutSec    int    `env:"SMS_REQUEST_TIMEOUT_SECONDS,default=10"`
	RetryCount           int    `env:"SMS_RETRY_COUNT,default=2"`
	RetryDelayMillis     int    `env:"SMS_RETRY_DELAY_MILLIS,default=500"`
	PersistenceEnabled   bool   `env:"SMS_PERSISTENCE_ENABLED,default=true"`
	DefaultCountryPrefix string `env:"SMS_DEFAULT_COUNTRY_PREFIX"`
	DatabaseDSN          string `env:"DATABASE_DSN"`
	RedisURL             string `env:"REDIS_URL"`
	CallbackRateLimit    int    `env:"CALLBACK_RATE_LIMIT_PER_SEC,default=100"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on settings that would otherwise only surface
// mid-request.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "log":
	case "http":
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("%w: SMS_API_KEY is required for the http driver", domain.ErrInvalidConfig)
		}
		if strings.TrimSpace(c.BaseURL) == "" {
			return fmt.Errorf("%w: SMS_BASE_URL is required for the http driver", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q (supported: log, http)", domain.ErrInvalidConfig, c.Driver)
	}

	if c.PersistenceEnabled && strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("%w: DATABASE_DSN is required when persistence is enabled", domain.ErrInvalidConfig)
	}

	if prefix := strings.TrimSpace(c.DefaultCountryPrefix); prefix != "" && !strings.HasPrefix(prefix, "+") {
		return fmt.Errorf("%w: SMS_DEFAULT_COUNTRY_PREFIX must start with '+' (got %q)", domain.ErrInvalidConfig, c.DefaultCountryPrefix)
	}

	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	if c.RetryDelayMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}
