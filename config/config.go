package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings. Every field is read from the environment
// variable named in its tag.
type Config struct {
	Port     string `mapstructure:"PORT"`
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	LedgerMaxRetries       int           `mapstructure:"LEDGER_MAX_RETRIES"`
	RecomputeBatchSize     int           `mapstructure:"RECOMPUTE_BATCH_SIZE"`
	RecomputeWorkers       int           `mapstructure:"RECOMPUTE_WORKERS"`
	RecomputeSweepInterval time.Duration `mapstructure:"RECOMPUTE_SWEEP_INTERVAL"`
	RecomputeStaleAfter    time.Duration `mapstructure:"RECOMPUTE_STALE_AFTER"`

	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
}

var defaults = map[string]interface{}{
	"PORT":                     "8080",
	"APP_ENV":                  "development",
	"LOG_LEVEL":                "info",
	"CORS_ORIGINS":             "http://localhost:3000",
	"EVENTS_EXCHANGE":          "loyalty_events",
	"LEDGER_MAX_RETRIES":       3,
	"RECOMPUTE_BATCH_SIZE":     200,
	"RECOMPUTE_WORKERS":        4,
	"RECOMPUTE_SWEEP_INTERVAL": "1m",
	"RECOMPUTE_STALE_AFTER":    "5m",
	"RATE_LIMIT_PER_MINUTE":    120,
}

func LoadEnv() error {
	// A .env file is optional; in deployed environments the variables are
	// set directly.
	_ = godotenv.Load()
	return nil
}

// Load reads Config from the environment, applying defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	// Keys without a default must be bound to show up in Unmarshal.
	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "RABBITMQ_URL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.LedgerMaxRetries < 0 {
		return nil, fmt.Errorf("LEDGER_MAX_RETRIES must not be negative")
	}
	if cfg.RecomputeBatchSize <= 0 {
		return nil, fmt.Errorf("RECOMPUTE_BATCH_SIZE must be positive")
	}
	if cfg.RecomputeWorkers <= 0 {
		return nil, fmt.Errorf("RECOMPUTE_WORKERS must be positive")
	}
	return &cfg, nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if os.Getenv("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	if os.Getenv("RABBITMQ_URL") == "" {
		log.Println("WARNING: RABBITMQ_URL not set - loyalty events will only be logged")
	}
	if os.Getenv("CORS_ORIGINS") == "" {
		log.Println("WARNING: CORS_ORIGINS not set - defaulting to http://localhost:3000")
	}

	return nil
}
