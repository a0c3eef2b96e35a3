package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_ENV", "PORT", "DB_PATH", "MIGRATIONS_DIR", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"SESSION_SECRET", "LOG_LEVEL", "LOG_FILE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"QUOTE_CACHE_TTL", "BACKFILL_INTERVAL", "BACKFILL_BATCH_SIZE", "STORE_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./dev.db", cfg.DBPath)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Backfill.BatchSize)
	assert.Zero(t, cfg.Backfill.Interval)
	assert.Equal(t, 10*time.Minute, cfg.QuoteCacheTTL)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.True(t, cfg.IsDev())
	assert.Len(t, cfg.Warnings(), 3)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), ".env")
	content := []byte(`
# comment
PORT=7070
export ADMIN_EMAIL=admin@example.com
REDIS_ADDR="localhost:6379"
BACKFILL_INTERVAL=15m
APP_ENV=production
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Backfill.Interval)
	assert.False(t, cfg.IsDev())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"REDIS_DB":            "zero",
		"BACKFILL_BATCH_SIZE": "0",
		"STORE_TIMEOUT":       "-1s",
		"QUOTE_CACHE_TTL":     "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}
