package dbconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Backend names a document store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// Config holds document store connection settings.
type Config struct {
	Backend Backend

	// Postgres
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	NotifyChannel string

	// Redis
	RedisURL    string
	RedisPrefix string
}

// NewConfigFromEnv reads STORE_BACKEND, DB_* and REDIS_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		Backend:       Backend(strings.ToLower(getEnv("STORE_BACKEND", string(BackendMemory)))),
		Host:          getEnv("DB_HOST", "localhost"),
		Port:          port,
		User:          getEnv("DB_USER", "postgres"),
		Password:      getEnv("DB_PASSWORD", "postgres"),
		Database:      getEnv("DB_NAME", "roomclocks"),
		SSLMode:       getEnv("DB_SSLMODE", "disable"),
		NotifyChannel: getEnv("DB_NOTIFY_CHANNEL", "docstore_changes"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:   getEnv("REDIS_PREFIX", "roomclocks:"),
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
		return nil
	}
	return fmt.Errorf("unknown store backend %q", c.Backend)
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
