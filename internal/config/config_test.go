package config_test

import (
	"testing"
	"time"

	"github.com/sitelink/sitelink-api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/sitelink")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.DefaultCheckoutLookupAttempts, cfg.CheckoutLookupAttempts)
	assert.Equal(t, config.DefaultCheckoutLookupDelay, cfg.CheckoutLookupDelay)
	assert.True(t, cfg.RunMigrations)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/sitelink")
	t.Setenv("PORT", "9090")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("CHECKOUT_LOOKUP_ATTEMPTS", "10")
	t.Setenv("CHECKOUT_LOOKUP_DELAY", "250ms")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.sitelink.io, https://admin.sitelink.io")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "whsec_test", cfg.StripeWebhookSecret)
	assert.Equal(t, 10, cfg.CheckoutLookupAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.CheckoutLookupDelay)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, []string{"https://app.sitelink.io", "https://admin.sitelink.io"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric attempts", key: "CHECKOUT_LOOKUP_ATTEMPTS", value: "many"},
		{name: "zero attempts", key: "CHECKOUT_LOOKUP_ATTEMPTS", value: "0"},
		{name: "bad delay", key: "CHECKOUT_LOOKUP_DELAY", value: "soon"},
		{name: "bad migrations flag", key: "RUN_MIGRATIONS", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost:5432/sitelink")
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
