package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "care_planner.db", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "07:00", cfg.DigestTime)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, "whisper-1", cfg.TranscriptionModel)
	assert.Equal(t, time.Local, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CACHE_TTL_SECONDS", "5")
	t.Setenv("REMINDER_INTERVAL_MINUTES", "30")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("DIGEST_TIME", "06:30")
	t.Setenv("TRANSCRIPTION_MODEL", "gpt-4o-mini-transcribe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, "06:30", cfg.DigestTime)
	assert.Equal(t, "gpt-4o-mini-transcribe", cfg.TranscriptionModel)
}

func TestLoad_RequiresACredential(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsBadDigestTime(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DIGEST_TIME", "7am")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 2*time.Hour, parseInterval("2", "h"))
	assert.Equal(t, time.Duration(0), parseInterval("", "m"))
	assert.Equal(t, time.Duration(0), parseInterval("-3", "m"))
	assert.Equal(t, time.Duration(0), parseInterval("soon", "s"))
}
