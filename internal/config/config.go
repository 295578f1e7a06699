package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Config is read from the environment once at startup. A .env file in the
// working directory is loaded first when present.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBURL    string `env:"DB_URL" envDefault:"openplay.db"`

	SaveInterval    time.Duration `env:"SAVE_INTERVAL" envDefault:"30s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	EndedRetention  time.Duration `env:"ENDED_RETENTION" envDefault:"24h"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"10m"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"10"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"openplay.snapshots"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	ShareBaseURL string `env:"SHARE_BASE_URL" envDefault:"http://localhost:8080"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or pgx, got %q", c.DBDriver)
	}
	if c.Port <= 0 {
		return errors.New("PORT must be positive")
	}
	if c.SaveInterval <= 0 || c.CleanupInterval <= 0 {
		return errors.New("SAVE_INTERVAL and CLEANUP_INTERVAL must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit must allow at least one request per window")
	}
	return nil
}
