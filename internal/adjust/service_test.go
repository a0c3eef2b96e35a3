package adjust

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/migrations"
	"github.com/Simplici0/printquote/internal/pricing"
)

// Stored with irregular whitespace so a rollback must restore the exact text.
const (
	stickerConfig = `{ "tiers": [ {"minQty": 50, "unitPrice": 200},
		{"minQty": 100, "unitPrice": 150} ] }`
	labelConfig = `{"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}], "floor": 1.5},
		"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60},
		"minimumPrice": 2500,
		"materials": {"matte": {"costPerSqft": 300}, "gloss": {"costPerSqft": 200}}}`
	bannerConfig = `{"tiers":[{"minSqft":0,"pricePerSqft":450}]}`
)

type fixture struct {
	db      *sqlx.DB
	service *Service
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(filepath.Join(t.TempDir(), "adjust-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, migrations.Up(ctx, database.DB, "../../migrations", nil))

	for _, p := range []catalog.PresetRecord{
		{Key: "stickers", Name: "Stickers", Category: "stickers", Model: string(pricing.ModelQtyTiered), Config: stickerConfig},
		{Key: "labels", Name: "Labels", Category: "stickers", Model: string(pricing.ModelCostPlus), Config: labelConfig},
		{Key: "banners", Name: "Banners", Category: "large-format", Model: string(pricing.ModelAreaTiered), Config: bannerConfig},
	} {
		_, err := catalog.CreatePreset(ctx, database, p)
		require.NoError(t, err)
	}

	f := &fixture{db: database, clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.service = NewService(database, nil)
	f.service.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) preset(t *testing.T, key string) catalog.PresetRecord {
	t.Helper()
	rec, err := catalog.PresetByKey(context.Background(), f.db, key)
	require.NoError(t, err)
	return rec
}

func TestApplyBulkAdjustment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "stickers", Percent: 10, Actor: "admin@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.AffectedCount)
	assert.NotEmpty(t, res.LogID)

	stickers := f.preset(t, "stickers")
	assert.Equal(t, int64(2), stickers.Version)
	cfg, err := pricing.ParseConfig(pricing.ModelQtyTiered, []byte(stickers.Config))
	require.NoError(t, err)
	assert.Equal(t, int64(220), cfg.(*pricing.QtyTieredConfig).Tiers[0].UnitPrice)
	assert.Equal(t, int64(165), cfg.(*pricing.QtyTieredConfig).Tiers[1].UnitPrice)

	labels := f.preset(t, "labels")
	cfg, err = pricing.ParseConfig(pricing.ModelCostPlus, []byte(labels.Config))
	require.NoError(t, err)
	assert.Equal(t, int64(2750), cfg.(*pricing.CostPlusConfig).MinimumPrice)
	assert.Equal(t, []string{"matte", "gloss"}, cfg.(*pricing.CostPlusConfig).Materials.Keys())

	banners := f.preset(t, "banners")
	assert.Equal(t, bannerConfig, banners.Config)
	assert.Equal(t, int64(1), banners.Version)

	var snapshots int
	require.NoError(t, f.db.Get(&snapshots, `SELECT COUNT(*) FROM preset_versions WHERE log_id = ?`, res.LogID))
	assert.Equal(t, 2, snapshots)

	entries, err := f.service.ListActivity(ctx, ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionBulkAdjust, entries[0].Action)
	assert.Equal(t, "stickers", entries[0].Details.Category)
	assert.Equal(t, 10.0, entries[0].Details.Percent)
	assert.Equal(t, 2, entries[0].Details.AffectedCount)
	assert.True(t, f.clock.Equal(entries[0].CreatedAt))
}

func TestApplyBulkAdjustment_EmptyCategoryStillLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "mugs", Percent: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AffectedCount)

	entries, err := f.service.ListActivity(ctx, ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.LogID, entries[0].ID)
	assert.Empty(t, entries[0].Details.Snapshots)
}

func TestApplyBulkAdjustment_RejectsBadInput(t *testing.T) {
	f := newFixture(t)

	for _, req := range []BulkAdjustment{
		{Category: "", Percent: 10},
		{Category: "stickers", Percent: 0},
		{Category: "stickers", Percent: -100},
	} {
		_, err := f.service.ApplyBulkAdjustment(context.Background(), req)
		require.ErrorIs(t, err, pricing.ErrValidation)
	}

	var count int
	require.NoError(t, f.db.Get(&count, `SELECT COUNT(*) FROM activity_log`))
	assert.Zero(t, count)
}

func TestRollback_RestoresExactBytes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bulk, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "stickers", Percent: -12.5})
	require.NoError(t, err)
	require.NotEqual(t, stickerConfig, f.preset(t, "stickers").Config)

	rb, err := f.service.Rollback(ctx, RollbackRequest{LogID: bulk.LogID, Actor: "admin@example.com"})
	require.NoError(t, err)
	assert.Equal(t, bulk.LogID, rb.RevertedLogID)
	assert.Equal(t, 2, rb.RestoredCount)

	stickers := f.preset(t, "stickers")
	assert.Equal(t, stickerConfig, stickers.Config)
	assert.Equal(t, int64(3), stickers.Version)
	assert.Equal(t, labelConfig, f.preset(t, "labels").Config)

	_, err = f.service.Rollback(ctx, RollbackRequest{LogID: bulk.LogID})
	require.ErrorIs(t, err, ErrAlreadyRolledBack)

	entries, err := f.service.ListActivity(ctx, ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionRollback, entries[0].Action)
	assert.Equal(t, bulk.LogID, entries[0].RevertsLogID)
	assert.Equal(t, rb.LogID, entries[1].RevertedBy)
}

func TestRollback_OfRollbackReappliesMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "stickers", Percent: 10})
	require.NoError(t, err)
	adjusted := f.preset(t, "stickers").Config

	rb, err := f.service.Rollback(ctx, RollbackRequest{})
	require.NoError(t, err)
	require.Equal(t, stickerConfig, f.preset(t, "stickers").Config)

	_, err = f.service.Rollback(ctx, RollbackRequest{LogID: rb.LogID})
	require.NoError(t, err)
	assert.Equal(t, adjusted, f.preset(t, "stickers").Config)
}

func TestRollback_DefaultsToLatestRevertible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bulk, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "stickers", Percent: 10})
	require.NoError(t, err)
	afterBulk := f.preset(t, "stickers").Config

	formulaID, err := f.service.UpdateFormula(ctx, FormulaUpdate{
		PresetKey: "stickers",
		Config:    json.RawMessage(`{"tiers":[{"minQty":1,"unitPrice":99}]}`),
	})
	require.NoError(t, err)

	first, err := f.service.Rollback(ctx, RollbackRequest{})
	require.NoError(t, err)
	assert.Equal(t, formulaID, first.RevertedLogID)
	assert.Equal(t, afterBulk, f.preset(t, "stickers").Config)

	second, err := f.service.Rollback(ctx, RollbackRequest{})
	require.NoError(t, err)
	assert.Equal(t, bulk.LogID, second.RevertedLogID)
	assert.Equal(t, stickerConfig, f.preset(t, "stickers").Config)

	_, err = f.service.Rollback(ctx, RollbackRequest{})
	require.ErrorIs(t, err, ErrLogNotFound)

	_, err = f.service.Rollback(ctx, RollbackRequest{LogID: "7d0b5a3e-0000-4000-8000-000000000000"})
	require.ErrorIs(t, err, ErrLogNotFound)
}

func TestRollback_AfterPruneFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "stickers", Percent: 10})
	require.NoError(t, err)

	f.clock = f.clock.Add(90 * 24 * time.Hour)
	recent, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "large-format", Percent: 10})
	require.NoError(t, err)

	removed, err := f.service.PruneSnapshots(ctx, f.clock.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = f.service.Rollback(ctx, RollbackRequest{LogID: old.LogID})
	require.ErrorIs(t, err, ErrSnapshotUnavailable)

	_, err = f.service.Rollback(ctx, RollbackRequest{LogID: recent.LogID})
	require.NoError(t, err)
	assert.Equal(t, bannerConfig, f.preset(t, "banners").Config)

	var logs int
	require.NoError(t, f.db.Get(&logs, `SELECT COUNT(*) FROM activity_log`))
	assert.Equal(t, 3, logs)
}

func TestUpdateFormula(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.UpdateFormula(ctx, FormulaUpdate{PresetKey: "stickers", Config: json.RawMessage(`{"tiers":[]}`)})
	require.ErrorIs(t, err, pricing.ErrValidation)
	assert.Equal(t, stickerConfig, f.preset(t, "stickers").Config)

	_, err = f.service.UpdateFormula(ctx, FormulaUpdate{PresetKey: "nope", Config: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, catalog.ErrPresetNotFound)

	logID, err := f.service.UpdateFormula(ctx, FormulaUpdate{
		PresetKey: "banners",
		Model:     pricing.ModelQtyTiered,
		Config:    json.RawMessage(`{"tiers":[{"minQty":1,"unitPrice":5000}]}`),
		Actor:     "ops@example.com",
	})
	require.NoError(t, err)
	banners := f.preset(t, "banners")
	assert.Equal(t, string(pricing.ModelQtyTiered), banners.Model)

	_, err = f.service.Rollback(ctx, RollbackRequest{LogID: logID})
	require.NoError(t, err)
	banners = f.preset(t, "banners")
	assert.Equal(t, string(pricing.ModelAreaTiered), banners.Model)
	assert.Equal(t, bannerConfig, banners.Config)

	found, err := f.service.ListActivity(ctx, ActivityQuery{Search: "ops@"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ActionFormulaUpdate, found[0].Action)
	assert.Equal(t, "banners", found[0].Details.PresetKey)
}

func TestConcurrentAdjustmentsAreSerialised(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.ApplyBulkAdjustment(ctx, BulkAdjustment{Category: "large-format", Percent: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(workers+1), f.preset(t, "banners").Version)

	var versions []int64
	require.NoError(t, f.db.Select(&versions, `SELECT version FROM preset_versions ORDER BY id`))
	require.Len(t, versions, workers)
	for i, v := range versions {
		assert.Equal(t, int64(i+1), v, "each snapshot captures the state right before its own write")
	}
}
