package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port string `envconfig:"PORT" default:"3000"`
	Env  string `envconfig:"ENV" default:"development"`

	// Product Service base URL. Left empty on purpose when unset: the chat
	// endpoint reports the misconfiguration on every request instead of the
	// process refusing to start.
	BackendURL      string        `envconfig:"BACKEND_URL"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"0s"`

	// Chat UI
	ChatAPIURL   string `envconfig:"CHAT_API_URL"`
	FrontendURL  string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	MaxBodyBytes int64  `envconfig:"MAX_BODY_BYTES" default:"1048576"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ChatAPIURL == "" {
		cfg.ChatAPIURL = fmt.Sprintf("http://127.0.0.1:%s/api/chat", cfg.Port)
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env != "production" && c.Env != "prod"
}
