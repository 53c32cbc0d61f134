package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay.
type Config struct {
	Port string
	Env  string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	return &Config{
		// Default chosen to stay clear of common service ports.
		Port: getEnv("PORT", "8765"),
		Env:  getEnv("ENV", "development"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
