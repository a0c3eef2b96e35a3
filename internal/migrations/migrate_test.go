package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Simplici0/printquote/internal/db"
)

func TestUpIsRepeatable(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate-test.db"))
	require.NoError(t, err)
	defer database.Close()

	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, Up(ctx, database.DB, "../../migrations", zap.New(core)))
	require.NoError(t, Up(ctx, database.DB, "../../migrations", zap.New(core)))
	assert.NotZero(t, logs.Len())

	v, err := Version(database.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	var tables []string
	require.NoError(t, database.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'goose%' AND name NOT LIKE 'sqlite%' ORDER BY name`))
	assert.Equal(t, []string{"activity_log", "preset_versions", "pricing_presets", "products", "users"}, tables)
}

func TestUpMissingDir(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate-test.db"))
	require.NoError(t, err)
	defer database.Close()

	assert.Error(t, Up(context.Background(), database.DB, "does-not-exist", nil))
}
