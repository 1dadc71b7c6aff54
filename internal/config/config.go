// Package config holds runtime configuration and the fixed policy
// constants used by the scoring and suggestion subsystems.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from CIVICVOICE_-prefixed environment variables.
type Config struct {
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:"host=localhost user=user password=password dbname=civicvoice port=5432 sslmode=disable"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	CookieDomain string `envconfig:"COOKIE_DOMAIN" default:""`
	CookieSecure bool   `envconfig:"COOKIE_SECURE" default:"false"`

	// Identity provider (OAuth authorization-code flow).
	OAuthClientID     string `envconfig:"OAUTH_CLIENT_ID" default:""`
	OAuthClientSecret string `envconfig:"OAUTH_CLIENT_SECRET" default:""`
	OAuthAuthURL      string `envconfig:"OAUTH_AUTH_URL" default:""`
	OAuthTokenURL     string `envconfig:"OAUTH_TOKEN_URL" default:""`
	OAuthUserInfoURL  string `envconfig:"OAUTH_USERINFO_URL" default:""`
	OAuthRedirectURL  string `envconfig:"OAUTH_REDIRECT_URL" default:"http://localhost:8080/api/auth/callback"`

	// Generative AI provider.
	AIBaseURL string `envconfig:"AI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	AIAPIKey  string `envconfig:"AI_API_KEY" default:""`
	AIModel   string `envconfig:"AI_MODEL" default:"gemini-1.5-flash"`

	// Optional Telegram mirror for notifications.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
}

// New parses the environment into a Config.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CIVICVOICE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &cfg, nil
}

// HTTPAddr returns the listen address for the HTTP server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// AIConfigured reports whether the generative AI provider is usable.
func (c *Config) AIConfigured() bool {
	return c.AIAPIKey != ""
}
