package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/pricing"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	// DemoCatalog adds a handful of presets and products covering every pricing model.
	DemoCatalog bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type demoProduct struct {
	preset  string
	product catalog.NewProduct
}

var demoPresets = []catalog.PresetRecord{
	{
		Key:      "stickers",
		Name:     "Die-cut stickers",
		Category: "stickers",
		Model:    string(pricing.ModelQtyTiered),
		Config:   `{"tiers":[{"minQty":50,"unitPrice":200},{"minQty":100,"unitPrice":150},{"minQty":500,"unitPrice":90}]}`,
	},
	{
		Key:      "business-cards",
		Name:     "Business cards",
		Category: "cards",
		Model:    string(pricing.ModelQtyOptions),
		Config:   `{"sizes":[{"label":"Standard","tiers":[{"qty":100,"unitPrice":40},{"qty":250,"unitPrice":30},{"qty":500,"unitPrice":22}]},{"label":"Square","priceByQty":{"100":45,"250":34}}]}`,
	},
	{
		Key:      "banners",
		Name:     "Vinyl banners",
		Category: "large-format",
		Model:    string(pricing.ModelAreaTiered),
		Config:   `{"tiers":[{"upToSqft":10,"pricePerSqft":900},{"upToSqft":50,"pricePerSqft":700},{"upToSqft":1000,"pricePerSqft":500}]}`,
	},
	{
		Key:      "decals",
		Name:     "Cut vinyl decals",
		Category: "large-format",
		Model:    string(pricing.ModelCostPlus),
		Config: `{
	"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}], "b2b": [{"minQty": 1, "multiplier": 1.6}], "floor": 1.5},
	"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60, "setupMinutes": 10},
	"cutting": {"rectangularPerFt": 5, "contourPerSqft": 25, "contourMinimum": 50},
	"waste": {"tiers": [{"minQty": 1, "percent": 10}, {"minQty": 100, "percent": 6}]},
	"qtyEfficiency": {"tiers": [{"minQty": 1, "factor": 1.0}, {"minQty": 100, "factor": 0.95}]},
	"fileFee": 1000,
	"minimumPrice": 2500,
	"materials": {"vinyl": {"name": "Gloss vinyl", "costPerSqft": 200}, "reflective": {"name": "Reflective vinyl", "costPerSqft": 450}}
}`,
	},
}

var demoProducts = []demoProduct{
	{preset: "stickers", product: catalog.NewProduct{
		Slug:          "die-cut-stickers",
		Name:          "Die-cut stickers",
		MinimumPrice:  ptr(int64(2500)),
		OptionsConfig: `{"addons":[{"id":"lamination","name":"Lamination","type":"per_unit","price":4}],"finishings":[{"id":"backing-print","name":"Printed backing","type":"flat","price":500}]}`,
	}},
	{preset: "business-cards", product: catalog.NewProduct{
		Slug:          "business-cards",
		Name:          "Business cards",
		OptionsConfig: `{"sizes":[{"label":"Standard","widthIn":3.5,"heightIn":2},{"label":"Square","widthIn":2.5,"heightIn":2.5}]}`,
	}},
	{preset: "banners", product: catalog.NewProduct{
		Slug:          "vinyl-banner",
		Name:          "Vinyl banner",
		PricingUnit:   pricing.UnitPerSqft,
		OptionsConfig: `{"sizes":[{"label":"2x4 ft","widthIn":24,"heightIn":48}],"finishings":[{"id":"grommets","name":"Grommets","type":"flat","price":800}]}`,
	}},
	{preset: "decals", product: catalog.NewProduct{
		Slug:          "vinyl-decals",
		Name:          "Vinyl decals",
		OptionsConfig: `{"sizes":[{"label":"12x12","widthIn":12,"heightIn":12}],"addons":[{"id":"contour-cut","name":"Contour cut","type":"flat","price":0}],"defaultCut":"rectangular"}`,
	}},
	{product: catalog.NewProduct{
		Slug:      "gift-card",
		Name:      "Gift card",
		BasePrice: ptr(int64(2500)),
	}},
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, database *sqlx.DB, cfg Config) (Stats, error) {
	stats := Stats{}
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		if err := seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
			return err
		}
		if !cfg.DemoCatalog {
			return nil
		}
		return seedCatalog(ctx, tx, &stats)
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func seedAdmin(ctx context.Context, tx *sqlx.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, string(hash)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func seedCatalog(ctx context.Context, tx *sqlx.Tx, stats *Stats) error {
	presetIDs := make(map[string]int64, len(demoPresets))
	for _, rec := range demoPresets {
		existing, err := catalog.PresetByKey(ctx, tx, rec.Key)
		switch {
		case err == nil:
			presetIDs[rec.Key] = existing.ID
			continue
		case !errors.Is(err, catalog.ErrPresetNotFound):
			return err
		}

		id, err := catalog.CreatePreset(ctx, tx, rec)
		if err != nil {
			return fmt.Errorf("seed preset %s: %w", rec.Key, err)
		}
		presetIDs[rec.Key] = id
		stats.Inserts++
	}

	for _, demo := range demoProducts {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE slug = ? LIMIT 1)`, demo.product.Slug); err != nil {
			return fmt.Errorf("check product %s existence: %w", demo.product.Slug, err)
		}
		if exists {
			continue
		}

		p := demo.product
		if demo.preset != "" {
			id := presetIDs[demo.preset]
			p.PresetID = &id
		}
		if _, err := catalog.CreateProduct(ctx, tx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Slug, err)
		}
		stats.Inserts++
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
