package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, "./bookingagent.db", cfg.DBPath)
		assert.Equal(t, 30, cfg.MessageHistorySize)
		assert.Equal(t, "@every 1h", cfg.CleanupSchedule)
		assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
		assert.False(t, cfg.WhatsAppEnabled())
		assert.False(t, cfg.IsProduction())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("BOOKING_HTTP_PORT", "9090")
		t.Setenv("BOOKING_ENV", "Production")
		t.Setenv("BOOKING_WHATSAPP_CONSULTANT_ID", "7")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("BOOKING_CLASSIFY_EXISTING", "true")
		t.Setenv("BOOKING_BASE_URL", "https://book.example.com/")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.True(t, cfg.IsProduction())
		assert.True(t, cfg.WhatsAppEnabled())
		assert.Equal(t, int64(7), cfg.WhatsAppConsultantID)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.True(t, cfg.ClassifyExistingBookingTurns)
		assert.Equal(t, "https://book.example.com", cfg.BaseURL)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		t.Setenv("BOOKING_HISTORY_SIZE", "0")
		t.Setenv("BOOKING_RATE_LIMIT_PER_MIN", "-3")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 30, cfg.MessageHistorySize)
		assert.Equal(t, 30, cfg.RateLimitPerMinute)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"development without token", Config{Env: "development", AnthropicAPIKey: "k"}, ""},
		{"production requires token", Config{Env: "production", GeminiAPIKey: "k"}, "BOOKING_ADMIN_TOKEN"},
		{"production with token", Config{Env: "production", AdminToken: "t", GeminiAPIKey: "k"}, ""},
		{"no model key", Config{Env: "development"}, "API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTokenSecret(t *testing.T) {
	assert.Equal(t, "explicit", (&Config{EncryptionKey: "explicit", AnthropicAPIKey: "k"}).TokenSecret())
	assert.Equal(t, "bookingagent-encryption-k", (&Config{AnthropicAPIKey: "k"}).TokenSecret())
	assert.Empty(t, (&Config{GeminiAPIKey: "g"}).TokenSecret())
}
