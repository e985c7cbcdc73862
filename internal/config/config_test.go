package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "wallet_sync", cfg.Database.Postgres.Database)
	assert.Equal(t, 10, cfg.Backfill.MaxChunks)
	assert.Equal(t, 5, cfg.Backfill.Workers)
	assert.Equal(t, 3, cfg.Backfill.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Backfill.LeaseDuration)
	assert.Equal(t, 10.0, cfg.Providers.EVM.RatePerSecond)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BACKFILL_MAX_CHUNKS", "25")
	t.Setenv("EVM_PROVIDER_RATE_PER_SECOND", "2.5")
	t.Setenv("BACKFILL_LEASE_DURATION", "90s")
	t.Setenv("WEBHOOK_SHARED_SECRET", "topsecret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Backfill.MaxChunks)
	assert.Equal(t, 2.5, cfg.Providers.EVM.RatePerSecond)
	assert.Equal(t, 90*time.Second, cfg.Backfill.LeaseDuration)
	assert.Equal(t, "topsecret", cfg.Webhook.SharedSecret)
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("BACKFILL_MAX_CHUNKS", "not-a-number")
	t.Setenv("BACKFILL_LEASE_DURATION", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Backfill.MaxChunks)
	assert.Equal(t, 5*time.Minute, cfg.Backfill.LeaseDuration)
}
