package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"seva-invoicing/internal/logger"
)

// Config is read from the process environment. A .env file in the working
// directory is loaded first when present.
type Config struct {
	Server struct {
		Port           string `env:"SERVER_PORT"`
		AllowedOrigins string `env:"ALLOWED_ORIGINS"`
		CookieSecure   bool   `env:"COOKIE_SECURE"`
	}

	Auth struct {
		AdminEmail        string `env:"ADMIN_EMAIL"`
		AdminPassword     string `env:"ADMIN_PASSWORD"`
		AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
		JWTSecret         string `env:"JWT_SECRET"`
		SessionDays       int    `env:"SESSION_DAYS"`
	}

	Store struct {
		DatabaseURL string `env:"DATABASE_URL"`
		MockPath    string `env:"MOCK_STORE_PATH"`
	}

	Invoice struct {
		NumberFormat string `env:"INVOICE_NUMBER_FORMAT"`
		Timezone     string `env:"TIMEZONE"`
	}

	Company struct {
		Name    string `env:"COMPANY_NAME"`
		Tagline string `env:"COMPANY_TAGLINE"`
		Address string `env:"COMPANY_ADDRESS"`
		Phone   string `env:"COMPANY_PHONE"`
		Email   string `env:"COMPANY_EMAIL"`
		Logo    string `env:"COMPANY_LOGO"`
	}

	Render struct {
		AssetTimeoutSeconds int `env:"RENDER_ASSET_TIMEOUT_SECONDS"`
	}

	Log struct {
		Level      string `env:"LOG_LEVEL"`
		Format     string `env:"LOG_FORMAT"`
		TimeFormat string `env:"LOG_TIME_FORMAT"`
		Output     string `env:"LOG_OUTPUT"`
	}
}

// Load reads .env (if present) and the environment into a Config and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Without a configured secret, sessions last until the next restart.
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Auth.SessionDays = 30
	cfg.Store.MockPath = "data/invoices.json"
	cfg.Invoice.NumberFormat = "monthly"
	cfg.Invoice.Timezone = "Asia/Kolkata"
	cfg.Company.Name = "Seva Auto Sales"
	cfg.Company.Tagline = "Side Wheels, Side Cars & Vehicle Modifications"
	cfg.Company.Address = "123 Dealer Row, Auto City"
	cfg.Company.Phone = "+91 00000 00000"
	cfg.Render.AssetTimeoutSeconds = 15

	lc := logger.DefaultConfig()
	cfg.Log.Level = lc.Level
	cfg.Log.Format = lc.Format
	cfg.Log.TimeFormat = lc.TimeFormat
	cfg.Log.Output = lc.Output
	return cfg
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Invoice.NumberFormat) {
	case "monthly", "daily":
	default:
		return fmt.Errorf("INVOICE_NUMBER_FORMAT must be monthly or daily, got %q", c.Invoice.NumberFormat)
	}
	if c.Auth.SessionDays <= 0 {
		return errors.New("SESSION_DAYS must be positive")
	}
	if c.Render.AssetTimeoutSeconds <= 0 {
		return errors.New("RENDER_ASSET_TIMEOUT_SECONDS must be positive")
	}
	if _, err := time.LoadLocation(c.Invoice.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Invoice.Timezone, err)
	}
	return nil
}

// MockMode reports whether invoices are kept in the local file store
// because no database is configured.
func (c *Config) MockMode() bool {
	return c.Store.DatabaseURL == ""
}

// AuthConfigured reports whether admin credentials are present.
func (c *Config) AuthConfigured() bool {
	return c.Auth.AdminEmail != "" && (c.Auth.AdminPassword != "" || c.Auth.AdminPasswordHash != "")
}

// Location returns the configured business timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Invoice.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionTTL is how long an admin session cookie stays valid.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionDays) * 24 * time.Hour
}

// AssetTimeout bounds logo loading during PDF rendering.
func (c *Config) AssetTimeout() time.Duration {
	return time.Duration(c.Render.AssetTimeoutSeconds) * time.Second
}

// GetLoggerConfig returns a logger configuration from the main config.
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("seva-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
