package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "kasirku.session_token", cfg.SessionCookie)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionUpdateAge)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.Equal(t, "id", cfg.ReportLocale)
	assert.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsUpdateAgeAboveTTL(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("SESSION_UPDATE_AGE", "2h")

	_, err := LoadConfig()
	assert.EqualError(t, err, "session update age must not exceed session ttl")
}

func TestConfigLocation(t *testing.T) {
	cfg := &Config{ReportTimezone: "Asia/Jakarta"}
	loc := cfg.Location()
	_, offset := time.Date(2026, 3, 5, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*3600, offset)

	cfg.ReportTimezone = "Mars/Olympus"
	assert.Equal(t, time.UTC, cfg.Location())

	var nilCfg *Config
	assert.Equal(t, time.UTC, nilCfg.Location())
	assert.False(t, nilCfg.IsProduction())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	assert.Equal(t, "WARN", parseLevel(&Config{LogLevel: "WARN"}).String())
	assert.Equal(t, "INFO", parseLevel(&Config{LogLevel: "bogus"}).String())
}
