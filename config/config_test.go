package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseAndToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CHALLENGE_SERVICE_TOKEN", "")

	_, _, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "CHALLENGE_SERVICE_TOKEN")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/challenge")
	t.Setenv("CHALLENGE_SERVICE_TOKEN", "secret")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example,")
	t.Setenv("SYNC_INTERVAL", "30s")
	t.Setenv("R2_BUCKET_NAME", "")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5300", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.True(t, cfg.ArchiveDisabled)
}

func TestValidate_BadTimezone(t *testing.T) {
	cfg := &Config{DatabaseURL: "x", ServiceToken: "y", DefaultTimezone: "Mars/Olympus"}
	assert.Error(t, cfg.Validate())
}
