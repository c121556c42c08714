package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendFirestore, cfg.StoreBackend)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "*", cfg.CORSAllowedOrigin)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, 600, cfg.RateLimitPerMinute)
	assert.Equal(t, 120, cfg.RateLimitBurst)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DOMAIN", "https://stamps.example.com/")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "https://stamps.example.com", cfg.BaseURL)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_RateLimits(t *testing.T) {
	base := Config{Port: 8080, StoreBackend: BackendSQLite}

	tests := []struct {
		name      string
		perMinute int
		burst     int
		wantErr   bool
	}{
		{name: "enabled", perMinute: 60, burst: 10},
		{name: "disabled", perMinute: 0, burst: 0},
		{name: "zero burst", perMinute: 60, burst: 0, wantErr: true},
		{name: "negative", perMinute: -1, burst: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.RateLimitPerMinute = tt.perMinute
			cfg.RateLimitBurst = tt.burst
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLoad_ZeroBurst(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_BadInteger(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FORMSG_WEBHOOK_SECRET=from-file\n"), 0o600))

	// godotenv.Load sets process env; clean it up once the test is done.
	t.Setenv("FORMSG_WEBHOOK_SECRET", "")
	os.Unsetenv("FORMSG_WEBHOOK_SECRET")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.FormSGWebhookSecret)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}
