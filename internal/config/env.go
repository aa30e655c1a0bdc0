package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func init() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
}

type Config struct {
	// Required
	AnthropicAPIKey       string `mapstructure:"ANTHROPIC_API_KEY"`
	GoogleCredentialsFile string `mapstructure:"GOOGLE_CREDENTIALS_FILE"`
	GoogleCredentialsJSON string `mapstructure:"GOOGLE_CREDENTIALS_JSON"`

	// BaseURL is the public address used for the OAuth redirect
	BaseURL string `mapstructure:"BOOKING_BASE_URL"`

	// Optional with defaults
	Env                string  `mapstructure:"BOOKING_ENV"`
	LogLevel           string  `mapstructure:"BOOKING_LOG_LEVEL"`
	DBPath             string  `mapstructure:"BOOKING_DB_PATH"`
	HTTPPort           int     `mapstructure:"BOOKING_HTTP_PORT"`
	ClaudeModel        string  `mapstructure:"BOOKING_CLAUDE_MODEL"`
	ClaudeTemperature  float64 `mapstructure:"BOOKING_CLAUDE_TEMPERATURE"`
	MessageHistorySize int     `mapstructure:"BOOKING_HISTORY_SIZE"`
	EncryptionKey      string  `mapstructure:"BOOKING_ENCRYPTION_KEY"`

	// General conversation model (Gemini). Falls back to Claude when unset.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"BOOKING_GEMINI_MODEL"`

	// Classify turns on conversations that already hold a confirmed booking
	// before invoking the extractor.
	ClassifyExistingBookingTurns bool `mapstructure:"BOOKING_CLASSIFY_EXISTING"`

	// Email (optional)
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"BOOKING_EMAIL_FROM"`

	// Slot cache. Empty address keeps slots in the main database.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// WhatsApp channel. A zero consultant ID disables it.
	WhatsAppDBPath       string `mapstructure:"BOOKING_WHATSAPP_DB_PATH"`
	WhatsAppConsultantID int64  `mapstructure:"BOOKING_WHATSAPP_CONSULTANT_ID"`

	// Bearer token for the operator API. Empty leaves it open, which is
	// only accepted outside production.
	AdminToken string `mapstructure:"BOOKING_ADMIN_TOKEN"`

	RateLimitPerMinute int    `mapstructure:"BOOKING_RATE_LIMIT_PER_MIN"`
	CleanupSchedule    string `mapstructure:"BOOKING_CLEANUP_SCHEDULE"`
}

var defaults = map[string]any{
	"ANTHROPIC_API_KEY":              "",
	"GOOGLE_CREDENTIALS_FILE":        "./credentials.json",
	"GOOGLE_CREDENTIALS_JSON":        "",
	"BOOKING_BASE_URL":               "",
	"BOOKING_ENV":                    "development",
	"BOOKING_LOG_LEVEL":              "info",
	"BOOKING_DB_PATH":                "./bookingagent.db",
	"BOOKING_HTTP_PORT":              8080,
	"BOOKING_CLAUDE_MODEL":           "claude-sonnet-4-20250514",
	"BOOKING_CLAUDE_TEMPERATURE":     0.1,
	"BOOKING_HISTORY_SIZE":           30,
	"BOOKING_ENCRYPTION_KEY":         "",
	"GEMINI_API_KEY":                 "",
	"BOOKING_GEMINI_MODEL":           "gemini-1.5-pro",
	"BOOKING_CLASSIFY_EXISTING":      false,
	"RESEND_API_KEY":                 "",
	"BOOKING_EMAIL_FROM":             "",
	"REDIS_ADDR":                     "",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"BOOKING_WHATSAPP_DB_PATH":       "./whatsapp.db",
	"BOOKING_WHATSAPP_CONSULTANT_ID": 0,
	"BOOKING_ADMIN_TOKEN":            "",
	"BOOKING_RATE_LIMIT_PER_MIN":     30,
	"BOOKING_CLEANUP_SCHEDULE":       "@every 1h",
}

// Load reads configuration from the environment and an optional
// bookingagent.yaml in the working directory or ./config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("bookingagent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.HTTPPort <= 0 {
		c.HTTPPort = 8080
	}
	if c.MessageHistorySize <= 0 {
		c.MessageHistorySize = 30
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 30
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.HTTPPort)
	}
	if strings.TrimSpace(c.CleanupSchedule) == "" {
		c.CleanupSchedule = "@every 1h"
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.IsProduction() && strings.TrimSpace(c.AdminToken) == "" {
		return errors.New("BOOKING_ADMIN_TOKEN is required in production")
	}
	if c.AnthropicAPIKey == "" && c.GeminiAPIKey == "" {
		return errors.New("ANTHROPIC_API_KEY or GEMINI_API_KEY is required")
	}
	return nil
}

// TokenSecret is the secret stored calendar tokens are sealed with. Without
// BOOKING_ENCRYPTION_KEY it is derived from the Anthropic key.
func (c *Config) TokenSecret() string {
	if c.EncryptionKey != "" {
		return c.EncryptionKey
	}
	if c.AnthropicAPIKey != "" {
		return "bookingagent-encryption-" + c.AnthropicAPIKey
	}
	return ""
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// WhatsAppEnabled reports whether inbound WhatsApp messages should be handled.
func (c *Config) WhatsAppEnabled() bool {
	return c.WhatsAppConsultantID > 0
}
