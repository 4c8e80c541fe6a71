package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	// AI gateway (retrieval API)
	GatewayURL    string `env:"GATEWAY_URL,required"`
	GatewayAPIKey string `env:"GATEWAY_API_KEY"`

	// Server
	Port     int    `env:"PORT" envDefault:"3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// CORS origins allowed to call the API, "*" for any.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Rate limiting: Redis token bucket, disabled when RedisAddr is empty
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RateLimitQPS  int    `env:"RATE_LIMIT_QPS" envDefault:"2"`

	// Usage
	HardQuota bool `env:"USAGE_HARD_QUOTA" envDefault:"true"`

	// Telegram ops logging
	OpsBotToken          string `env:"OPS_BOT_TOKEN"`
	LogTelegramChatID    int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError        int    `env:"LOG_TOPIC_ERROR"`
	LogTopicQuota        int    `env:"LOG_TOPIC_QUOTA"`
	LogTopicRegistration int    `env:"LOG_TOPIC_REGISTRATION"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) RateLimitEnabled() bool {
	return c.RedisAddr != "" && c.RateLimitQPS > 0
}

func (c *Config) OpsLoggingEnabled() bool {
	return c.OpsBotToken != "" && c.LogTelegramChatID != 0
}

// DatabaseConfig is the subset needed by maintenance commands.
type DatabaseConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
}

func LoadDatabase() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
