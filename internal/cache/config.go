package cache

import "github.com/plagcode-io/plagcode/internal/config"

const defaultRedisURL = "redis://localhost:6379/0"

// Config holds Redis connection configuration.
type Config struct {
	URL string
}

// LoadConfig loads Redis configuration from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		URL: config.GetEnvStr("REDIS_URL", defaultRedisURL),
	}
}
