package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/migrations"
	"github.com/Simplici0/printquote/internal/pricing"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "seed-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, migrations.Up(context.Background(), database.DB, "../../migrations", nil))
	return database
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	cfg := Config{
		AdminEmail:    "admin@printquote.test",
		AdminPassword: "12345",
		DemoCatalog:   true,
	}

	for i := 0; i < 3; i++ {
		stats, err := Run(ctx, database, cfg)
		require.NoError(t, err, "iteration %d", i)
		if i == 0 {
			assert.Equal(t, 1+len(demoPresets)+len(demoProducts), stats.Inserts)
			continue
		}
		assert.Zero(t, stats.Inserts, "iteration %d", i)
	}

	var users int
	require.NoError(t, database.Get(&users, `SELECT COUNT(*) FROM users WHERE email = ?`, cfg.AdminEmail))
	assert.Equal(t, 1, users)

	var hash string
	require.NoError(t, database.Get(&hash, `SELECT password_hash FROM users WHERE email = ?`, cfg.AdminEmail))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("12345")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")))
}

func TestRunWithoutAdminOrDemo(t *testing.T) {
	database := openTestDB(t)

	stats, err := Run(context.Background(), database, Config{})
	require.NoError(t, err)
	assert.Zero(t, stats.Inserts)

	var products int
	require.NoError(t, database.Get(&products, `SELECT COUNT(*) FROM products`))
	assert.Zero(t, products)
}

func TestDemoCatalogIsPriceable(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	_, err := Run(ctx, database, Config{DemoCatalog: true})
	require.NoError(t, err)

	store := catalog.NewStore(database)
	for _, demo := range demoProducts {
		product, err := store.FindProduct(ctx, demo.product.Slug)
		require.NoError(t, err, demo.product.Slug)
		assert.Positive(t, pricing.ComputeFromPrice(product), demo.product.Slug)
	}
}
