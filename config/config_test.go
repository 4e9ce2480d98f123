package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_URL", "sqlite:dev.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GATEWAY_TIMEOUT", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	assert.False(t, cfg.Paystack.Enabled())
	assert.False(t, cfg.Mpesa.Enabled())
}

func TestFromEnv_GatewaysAndMeta(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/tc")
	t.Setenv("FIREBASE_PROJECT_ID", "tariconnect")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test")
	t.Setenv("MPESA_CONSUMER_KEY", "k")
	t.Setenv("MPESA_CONSUMER_SECRET", "s")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_PASSKEY", "p")
	t.Setenv("META_PAGE_ID", "page-1")
	t.Setenv("RELAY_INTERVAL", "500ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Paystack.Enabled())
	assert.True(t, cfg.Mpesa.Enabled())
	assert.Equal(t, "page-1", cfg.Meta.PageID)
	assert.Equal(t, 500*time.Millisecond, cfg.RelayInterval)
}

func TestFromEnv_Missing(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET or FIREBASE_PROJECT_ID")
}

func TestFromEnv_BadDuration(t *testing.T) {
	t.Setenv("DB_URL", "sqlite:dev.db")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	_, err := FromEnv()
	assert.Error(t, err)
}
