package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// BaseURL is the root of the Genesis backend, e.g. https://portal.example.
	// The /genesis/v1 API prefix is appended by the endpoint clients.
	BaseURL       string
	APIPrefix     string
	ClientID      string
	ClientSecret  string
	RedisURL      string
	StoragePrefix string
	IdpUUID       string
	HTTPTimeout   time.Duration
	ServerPort    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:       getEnv("GENESIS_BASE_URL", ""),
		APIPrefix:     getEnv("GENESIS_API_PREFIX", "/genesis/v1"),
		ClientID:      getEnv("GENESIS_CLIENT_ID", ""),
		ClientSecret:  getEnv("GENESIS_CLIENT_SECRET", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		StoragePrefix: getEnv("STORAGE_PREFIX", "genesis_oidc_ui"),
		IdpUUID:       getEnv("GENESIS_IDP_UUID", ""),
		HTTPTimeout:   getDurationEnv("HTTP_TIMEOUT", 15*time.Second),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
	}

	if cfg.BaseURL == "" {
		return nil, &ConfigError{Message: "GENESIS_BASE_URL must be set"}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
