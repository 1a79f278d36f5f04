// Package config provides configuration management for the teamchat
// standalone server. Settings load from environment variables with sensible
// defaults, following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the teamchat server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chat     ChatConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"SERVER_PORT" default:"8080"`
}

// DatabaseConfig holds database connection configuration. An empty driver
// selects the in-memory message store (no persistence across restarts).
type DatabaseConfig struct {
	Driver   string `envconfig:"DB_DRIVER" default:""` // mysql, postgres, sqlite3, or empty for in-memory
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"teamchat"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	Database string `envconfig:"DB_NAME" default:"teamchat"`
	Prefix   string `envconfig:"DB_PREFIX" default:"teamchat_"`
}

// ChatConfig holds messaging-core tunables.
type ChatConfig struct {
	AllowedOrigins []string      `envconfig:"CHAT_ALLOWED_ORIGINS" default:"*"`
	HistoryLimit   int           `envconfig:"CHAT_HISTORY_LIMIT" default:"50"`
	IdleTimeout    time.Duration `envconfig:"CHAT_IDLE_TIMEOUT" default:"60s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if cfg.Database.Driver != "" && cfg.Database.Driver != "sqlite3" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required for driver %q", cfg.Database.Driver)
	}
	return &cfg, nil
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}
