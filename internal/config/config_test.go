package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MECHCONNECT_API_URL", "GEOGRAPHY_API_URL", "BOT_TOKEN", "BOT_TARGET_GUILD",
		"REDIS_URL", "REQUEST_TIMEOUT", "SESSION_TTL", "DRAFT_TTL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults without .env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MECHCONNECT_API_URL", "http://localhost:8000/api/")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8000/api", cfg.APIURL)
		assert.Equal(t, DefaultGeographyURL, cfg.GeographyURL)
		assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
		assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
		assert.Equal(t, DefaultDraftTTL, cfg.DraftTTL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.NoError(t, cfg.Validate())
	})

	t.Run(".env file fills unset variables", func(t *testing.T) {
		clearEnv(t)
		os.Unsetenv("MECHCONNECT_API_URL")
		os.Unsetenv("REQUEST_TIMEOUT")

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("MECHCONNECT_API_URL=https://api.example.com\nREQUEST_TIMEOUT=3s\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "https://api.example.com", cfg.APIURL)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	})

	t.Run("invalid duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SESSION_TTL", "soon")

		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "SESSION_TTL")
	})

	t.Run("non-positive duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DRAFT_TTL", "-1h")

		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "must be positive")
	})
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrNotConfigured)
	assert.Error(t, (&Config{APIURL: "ftp://example.com"}).Validate())
	assert.NoError(t, (&Config{APIURL: "https://example.com"}).Validate())
}

func TestConfigureLogging(t *testing.T) {
	assert.NoError(t, (&Config{LogLevel: "debug"}).ConfigureLogging())
	assert.Error(t, (&Config{LogLevel: "loud"}).ConfigureLogging())
}
