package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/pricing"
)

// TimeLayout is the TEXT encoding of every timestamp column.
const TimeLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPresetNotFound  = errors.New("pricing preset not found")
)

// Store is the read side of products and presets plus the from-price write-back.
type Store struct {
	db *sqlx.DB
}

func NewStore(database *sqlx.DB) *Store {
	return &Store{db: database}
}

// DB exposes the handle for callers composing their own transactions.
func (s *Store) DB() *sqlx.DB { return s.db }

// PresetRecord is a pricing_presets row.
type PresetRecord struct {
	ID        int64  `db:"id"`
	Key       string `db:"key"`
	Name      string `db:"name"`
	Category  string `db:"category"`
	Model     string `db:"model"`
	Config    string `db:"config"`
	Version   int64  `db:"version"`
	UpdatedAt string `db:"updated_at"`
}

// Preset parses the stored config into the engine's typed form.
func (r PresetRecord) Preset() (*pricing.Preset, error) {
	cfg, err := pricing.ParseConfig(pricing.Model(r.Model), []byte(r.Config))
	if err != nil {
		return nil, pricing.WithPreset(err, r.Key)
	}
	return &pricing.Preset{
		ID:        r.ID,
		Key:       r.Key,
		Name:      r.Name,
		Category:  r.Category,
		Model:     pricing.Model(r.Model),
		Version:   r.Version,
		Config:    cfg,
		RawConfig: r.Config,
	}, nil
}

// ProductRecord is a products row joined with its preset, if any.
type ProductRecord struct {
	ID            int64         `db:"id"`
	Slug          string        `db:"slug"`
	Name          string        `db:"name"`
	PricingUnit   string        `db:"pricing_unit"`
	BasePrice     sql.NullInt64 `db:"base_price"`
	MinimumPrice  sql.NullInt64 `db:"minimum_price"`
	MinPrice      int64         `db:"min_price"`
	OptionsConfig string        `db:"options_config"`
	PresetID      sql.NullInt64 `db:"preset_id"`
	UpdatedAt     string        `db:"updated_at"`

	PresetKey      sql.NullString `db:"preset_key"`
	PresetName     sql.NullString `db:"preset_name"`
	PresetCategory sql.NullString `db:"preset_category"`
	PresetModel    sql.NullString `db:"preset_model"`
	PresetConfig   sql.NullString `db:"preset_config"`
	PresetVersion  sql.NullInt64  `db:"preset_version"`
}

// Product converts the row into the engine's read-only product view.
func (r ProductRecord) Product() (pricing.Product, error) {
	opts, err := pricing.ParseOptions([]byte(r.OptionsConfig))
	if err != nil {
		return pricing.Product{}, fmt.Errorf("product %s: %w", r.Slug, err)
	}
	p := pricing.Product{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		PricingUnit: pricing.PricingUnit(r.PricingUnit),
		MinPrice:    r.MinPrice,
		Options:     opts,
	}
	if r.BasePrice.Valid {
		v := r.BasePrice.Int64
		p.BasePrice = &v
	}
	if r.MinimumPrice.Valid {
		v := r.MinimumPrice.Int64
		p.MinimumPrice = &v
	}
	if r.PresetID.Valid {
		preset, err := PresetRecord{
			ID:       r.PresetID.Int64,
			Key:      r.PresetKey.String,
			Name:     r.PresetName.String,
			Category: r.PresetCategory.String,
			Model:    r.PresetModel.String,
			Config:   r.PresetConfig.String,
			Version:  r.PresetVersion.Int64,
		}.Preset()
		if err != nil {
			return pricing.Product{}, err
		}
		p.Preset = preset
	}
	return p, nil
}

const productSelect = `
	SELECT p.id, p.slug, p.name, p.pricing_unit, p.base_price, p.minimum_price, p.min_price,
	       p.options_config, p.preset_id, p.updated_at,
	       pp.key AS preset_key, pp.name AS preset_name, pp.category AS preset_category,
	       pp.model AS preset_model, pp.config AS preset_config, pp.version AS preset_version
	FROM products p
	LEFT JOIN pricing_presets pp ON pp.id = p.preset_id`

// FindProduct looks a product up by numeric id or by slug.
func (s *Store) FindProduct(ctx context.Context, ref string) (pricing.Product, error) {
	ref = strings.TrimSpace(ref)
	query := productSelect + ` WHERE p.slug = ? AND p.active = 1`
	var arg any = ref
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		query = productSelect + ` WHERE p.id = ? AND p.active = 1`
		arg = id
	}

	var rec ProductRecord
	if err := s.db.GetContext(ctx, &rec, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pricing.Product{}, ErrProductNotFound
		}
		return pricing.Product{}, fmt.Errorf("query product %q: %w", ref, err)
	}
	return rec.Product()
}

// ProductPage returns up to limit product rows with id > afterID, ordered by id.
func (s *Store) ProductPage(ctx context.Context, afterID int64, limit int) ([]ProductRecord, error) {
	var recs []ProductRecord
	if err := s.db.SelectContext(ctx, &recs, productSelect+` WHERE p.id > ? ORDER BY p.id LIMIT ?`, afterID, limit); err != nil {
		return nil, fmt.Errorf("query product page: %w", err)
	}
	return recs, nil
}

// ProductsByPreset returns every product priced by the preset with presetKey.
func (s *Store) ProductsByPreset(ctx context.Context, presetKey string) ([]ProductRecord, error) {
	if _, err := s.Preset(ctx, presetKey); err != nil {
		return nil, err
	}
	var recs []ProductRecord
	if err := s.db.SelectContext(ctx, &recs, productSelect+` WHERE pp.key = ? ORDER BY p.id`, presetKey); err != nil {
		return nil, fmt.Errorf("query products of preset %q: %w", presetKey, err)
	}
	return recs, nil
}

// MinPriceUpdate is one from-price write-back.
type MinPriceUpdate struct {
	ProductID int64
	MinPrice  int64
}

// UpdateMinPrices writes all updates in a single transaction.
func (s *Store) UpdateMinPrices(ctx context.Context, updates []MinPriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `UPDATE products SET min_price = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare min price update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, u.MinPrice, u.ProductID); err != nil {
				return fmt.Errorf("update min price of product %d: %w", u.ProductID, err)
			}
		}
		return nil
	})
}

// Preset returns the preset with key.
func (s *Store) Preset(ctx context.Context, key string) (PresetRecord, error) {
	return PresetByKey(ctx, s.db, key)
}

// PresetByKey reads one preset through q, which may be a transaction.
func PresetByKey(ctx context.Context, q sqlx.QueryerContext, key string) (PresetRecord, error) {
	var rec PresetRecord
	if err := sqlx.GetContext(ctx, q, &rec, `SELECT * FROM pricing_presets WHERE key = ?`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PresetRecord{}, ErrPresetNotFound
		}
		return PresetRecord{}, fmt.Errorf("query preset %q: %w", key, err)
	}
	return rec, nil
}

// PresetByID reads one preset through q.
func PresetByID(ctx context.Context, q sqlx.QueryerContext, id int64) (PresetRecord, error) {
	var rec PresetRecord
	if err := sqlx.GetContext(ctx, q, &rec, `SELECT * FROM pricing_presets WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PresetRecord{}, ErrPresetNotFound
		}
		return PresetRecord{}, fmt.Errorf("query preset %d: %w", id, err)
	}
	return rec, nil
}

// PresetsByCategory reads the presets of one category, ordered by id.
func PresetsByCategory(ctx context.Context, q sqlx.QueryerContext, category string) ([]PresetRecord, error) {
	var recs []PresetRecord
	if err := sqlx.SelectContext(ctx, q, &recs, `SELECT * FROM pricing_presets WHERE category = ? ORDER BY id`, category); err != nil {
		return nil, fmt.Errorf("query presets of category %q: %w", category, err)
	}
	return recs, nil
}

// WritePresetConfig replaces a preset's model and config and bumps its version.
func WritePresetConfig(ctx context.Context, e sqlx.ExecerContext, id int64, model, config string, now time.Time) error {
	res, err := e.ExecContext(ctx, `
		UPDATE pricing_presets
		SET model = ?, config = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, model, config, now.UTC().Format(TimeLayout), id)
	if err != nil {
		return fmt.Errorf("update preset %d config: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPresetNotFound
	}
	return nil
}

// CreatePreset inserts a preset and returns its id.
func CreatePreset(ctx context.Context, e sqlx.ExecerContext, rec PresetRecord) (int64, error) {
	if _, err := pricing.ParseConfig(pricing.Model(rec.Model), []byte(rec.Config)); err != nil {
		return 0, pricing.WithPreset(err, rec.Key)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO pricing_presets (key, name, category, model, config)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Key, rec.Name, rec.Category, rec.Model, rec.Config)
	if err != nil {
		return 0, fmt.Errorf("insert preset %q: %w", rec.Key, err)
	}
	return res.LastInsertId()
}

// NewProduct is the insert shape of a product.
type NewProduct struct {
	Slug          string
	Name          string
	PricingUnit   pricing.PricingUnit
	BasePrice     *int64
	MinimumPrice  *int64
	OptionsConfig string
	PresetID      *int64
}

// CreateProduct inserts a product and returns its id.
func CreateProduct(ctx context.Context, e sqlx.ExecerContext, p NewProduct) (int64, error) {
	if p.PricingUnit == "" {
		p.PricingUnit = pricing.UnitPerPiece
	}
	if p.OptionsConfig == "" {
		p.OptionsConfig = "{}"
	}
	if _, err := pricing.ParseOptions([]byte(p.OptionsConfig)); err != nil {
		return 0, fmt.Errorf("product %s: %w", p.Slug, err)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO products (slug, name, pricing_unit, base_price, minimum_price, options_config, preset_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Slug, p.Name, string(p.PricingUnit), p.BasePrice, p.MinimumPrice, p.OptionsConfig, p.PresetID)
	if err != nil {
		return 0, fmt.Errorf("insert product %q: %w", p.Slug, err)
	}
	return res.LastInsertId()
}
