// Package config loads service configuration from environment variables and
// Docker secrets.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full service configuration.
type Config struct {
	// Server settings
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PostgreSQL settings
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Secret field, no envconfig tag
	DBPassword string

	// Redis settings
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int           `envconfig:"REDIS_DB" default:"0"`
	GameCacheTTL time.Duration `envconfig:"GAME_CACHE_TTL" default:"5m"`

	// RabbitMQ settings
	RabbitMQURL      string `envconfig:"RABBITMQ_URL" required:"true"`
	GameUpdatesQueue string `envconfig:"GAME_UPDATES_QUEUE" default:"game_updates"`

	// Stale game sweep
	StaleGameThreshold time.Duration `envconfig:"STALE_GAME_THRESHOLD" default:"72h"`
	StaleSweepInterval time.Duration `envconfig:"STALE_SWEEP_INTERVAL" default:"1h"`

	// JWT verification secret, no envconfig tag
	JWTSecret string
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var loadErr error
	cfg.DBPassword, loadErr = ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.JWTSecret, loadErr = ReadSecret("jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	log.Printf("Configuration loaded (secrets from files):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Game Updates Queue: %s", cfg.GameUpdatesQueue)
	log.Printf("  Stale Game Threshold: %v", cfg.StaleGameThreshold)
	log.Println("  JWT Secret: [LOADED]")

	return &cfg, nil
}
