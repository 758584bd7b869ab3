// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig
	DocDB       DocDBConfig
	Cache       CacheConfig
	Marketplace MarketplaceConfig
	Lease       LeaseConfig
	Chat        ChatConfig
	Hub         HubConfig
	Log         LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host    string
	Port    int
	GinMode string
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DocDBConfig holds the durable store configuration.
type DocDBConfig struct {
	Type     string
	URI      string
	Database string
}

// CacheConfig holds the presence cache configuration.
type CacheConfig struct {
	Type        string
	Host        string
	Port        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

// MarketplaceConfig holds the marketplace core service configuration.
type MarketplaceConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
}

// LeaseConfig holds reservation lease configuration.
type LeaseConfig struct {
	SweepInterval time.Duration
	StoreTimeout  time.Duration
}

// ChatConfig holds conversation session configuration.
type ChatConfig struct {
	StoreTimeout time.Duration
}

// HubConfig holds live delivery configuration.
type HubConfig struct {
	TypingWindow time.Duration
	SendBuffer   int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 8086),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		DocDB: DocDBConfig{
			Type:     getEnv("DOCDB_TYPE", "mongodb"),
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "tradepost_deals"),
		},
		Cache: CacheConfig{
			Type:        getEnv("CACHE_TYPE", "redis"),
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			PresenceTTL: time.Duration(getEnvAsInt("PRESENCE_TTL_SECONDS", 60)) * time.Second,
		},
		Marketplace: MarketplaceConfig{
			URL:        getEnv("MARKETPLACE_SERVICE_URL", "http://localhost:8081"),
			ServiceKey: getEnv("MARKETPLACE_SERVICE_KEY", ""),
			Timeout:    time.Duration(getEnvAsInt("MARKETPLACE_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Lease: LeaseConfig{
			SweepInterval: time.Duration(getEnvAsInt("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
			StoreTimeout:  time.Duration(getEnvAsInt("LEASE_STORE_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Chat: ChatConfig{
			StoreTimeout: time.Duration(getEnvAsInt("CHAT_STORE_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Hub: HubConfig{
			TypingWindow: time.Duration(getEnvAsInt("TYPING_WINDOW_SECONDS", 6)) * time.Second,
			SendBuffer:   getEnvAsInt("HUB_SEND_BUFFER", 256),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
