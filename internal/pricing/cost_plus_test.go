package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func costPlusProduct(t *testing.T, raw string) Product {
	t.Helper()
	return Product{ID: 7, Slug: "die-cut-stickers", Preset: mustPreset(t, ModelCostPlus, raw)}
}

func TestCostPlus_GoldenTotal(t *testing.T) {
	p := costPlusProduct(t, goldenCostPlus)

	q := mustQuote(t, p, map[string]any{"quantity": 100.0, "widthIn": 12.0, "heightIn": 12.0})

	assert.Equal(t, int64(627), q.UnitPrice)
	assert.Equal(t, int64(62700), q.Subtotal)
	require.Len(t, q.LineItems, 1)
	assert.Equal(t, LineFileFee, q.LineItems[0].Kind)
	assert.Equal(t, int64(1000), q.LineItems[0].Amount)
	assert.Equal(t, int64(63700), q.Total)
	assert.False(t, q.MinimumApplied)
}

func TestCostPlus_StepValues(t *testing.T) {
	p := costPlusProduct(t, goldenCostPlus)
	cfg := p.Preset.Config.(*CostPlusConfig)

	steps, err := cfg.evaluate(p, QuoteInput{Quantity: 100, WidthIn: ptr(12.0), HeightIn: ptr(12.0), Channel: ChannelRetail})
	require.NoError(t, err)

	assert.Equal(t, "vinyl", steps.material)
	assertDecimal(t, "1", steps.area, "area")
	assertDecimal(t, "200", steps.materialInk, "material+ink")
	assertDecimal(t, "0", steps.cutting, "cutting")
	assertDecimal(t, "100", steps.labor, "labor")
	assertDecimal(t, "300", steps.base, "base")
	assertDecimal(t, "330", steps.afterWaste, "after waste")
	assertDecimal(t, "313.5", steps.afterEff, "after efficiency")
	assertDecimal(t, "2", steps.multiplier, "multiplier")
	assertDecimal(t, "627", steps.unitPrice, "unit price")
}

func TestCostPlus_WasteBeforeEfficiencyIsOrderSensitive(t *testing.T) {
	base := decimal.RequireFromString("1.23")

	inOrder := applyEfficiency(applyWaste(base, 10), 0.95)
	reversed := applyWaste(applyEfficiency(base, 0.95), 10)

	assertDecimal(t, "1.28", inOrder, "waste then efficiency")
	assertDecimal(t, "1.29", reversed, "efficiency then waste")
	assert.False(t, inOrder.Equal(reversed))
}

func TestCostPlus_MarkupFloorBeatsLowerTier(t *testing.T) {
	p := costPlusProduct(t, `{
		"markup": {"retail": [{"minQty": 1, "multiplier": 1.2}], "floor": 1.5},
		"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60},
		"waste": {"tiers": [{"minQty": 1, "percent": 10}]},
		"qtyEfficiency": {"tiers": [{"minQty": 100, "factor": 0.95}]},
		"materials": {"vinyl": {"costPerSqft": 200}}
	}`)

	q := mustQuote(t, p, map[string]any{"quantity": 100.0, "widthIn": 12.0, "heightIn": 12.0})
	// 313.50 × 1.5 = 470.25
	assert.Equal(t, int64(470), q.UnitPrice)

	// A tier above the floor is used as is.
	golden := costPlusProduct(t, goldenCostPlus)
	q = mustQuote(t, golden, map[string]any{"quantity": 100.0, "widthIn": 12.0, "heightIn": 12.0})
	assert.Equal(t, int64(627), q.UnitPrice)
}

func TestCostPlus_ChannelSchedules(t *testing.T) {
	p := costPlusProduct(t, `{
		"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}], "b2b": [{"minQty": 1, "multiplier": 1.8}], "floor": 1.5},
		"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60},
		"waste": {"tiers": [{"minQty": 1, "percent": 10}]},
		"qtyEfficiency": {"tiers": [{"minQty": 100, "factor": 0.95}]},
		"materials": {"vinyl": {"costPerSqft": 200}}
	}`)

	retail := mustQuote(t, p, map[string]any{"quantity": 100.0, "widthIn": 12.0, "heightIn": 12.0})
	b2b := mustQuote(t, p, map[string]any{"quantity": 100.0, "widthIn": 12.0, "heightIn": 12.0, "channel": "b2b"})
	assert.Equal(t, int64(627), retail.UnitPrice)
	// 313.50 × 1.8 = 564.30
	assert.Equal(t, int64(564), b2b.UnitPrice)

	// Without a b2b schedule the retail one applies.
	golden := costPlusProduct(t, goldenCostPlus)
	q := mustQuote(t, golden, map[string]any{"quantity": 100.0, "widthIn": 12.0, "heightIn": 12.0, "channel": "b2b"})
	assert.Equal(t, int64(627), q.UnitPrice)
}

func TestCostPlus_MinimumPriceFloor(t *testing.T) {
	p := costPlusProduct(t, goldenCostPlus)

	q := mustQuote(t, p, map[string]any{"quantity": 1.0, "widthIn": 12.0, "heightIn": 12.0})
	assert.Equal(t, int64(660), q.UnitPrice)
	assert.Equal(t, int64(2500), q.Total)
	assert.True(t, q.MinimumApplied)
}

func TestCostPlus_Cutting(t *testing.T) {
	raw := `{
		"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}]},
		"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60},
		"cutting": {"rectangularPerFt": 5, "contourPerSqft": 20, "contourMinimum": 50},
		"materials": {"vinyl": {"costPerSqft": 200}}
	}`
	p := costPlusProduct(t, raw)
	cfg := p.Preset.Config.(*CostPlusConfig)
	in := QuoteInput{Quantity: 10, WidthIn: ptr(12.0), HeightIn: ptr(12.0)}

	cases := []struct {
		name       string
		cut        string
		addons     []string
		defaultCut string
		want       string
	}{
		{name: "rectangular by default", want: "20"},
		{name: "contour requested", cut: CutContour, want: "50"},
		{name: "contour add-on", addons: []string{"contour-cut"}, want: "50"},
		{name: "product default contour", defaultCut: CutContour, want: "50"},
		{name: "explicit rectangular wins", cut: CutRectangular, defaultCut: CutContour, want: "20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prod := p
			prod.Options.DefaultCut = tc.defaultCut
			req := in
			req.Cut = tc.cut
			req.Addons = tc.addons

			steps, err := cfg.evaluate(prod, req)
			require.NoError(t, err)
			assertDecimal(t, tc.want, steps.cutting, "cutting")
		})
	}
}

func TestCostPlus_InkAndAreaLabor(t *testing.T) {
	p := costPlusProduct(t, `{
		"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}]},
		"machineLabor": {"hourlyRate": 6000, "sqftPerHour": 100},
		"inkCosts": {"costPerLiter": 12000, "mlPerSqft": 1.5},
		"materials": {"vinyl": {"costPerSqft": 200}}
	}`)
	cfg := p.Preset.Config.(*CostPlusConfig)

	steps, err := cfg.evaluate(p, QuoteInput{Quantity: 100, WidthIn: ptr(12.0), HeightIn: ptr(12.0)})
	require.NoError(t, err)
	assertDecimal(t, "218", steps.materialInk, "material+ink")
	assertDecimal(t, "60", steps.labor, "labor")
}

func TestCostPlus_AreaFromSizeLabel(t *testing.T) {
	p := costPlusProduct(t, goldenCostPlus)
	p.Options.Sizes = []SizeOption{{Label: "12x12", WidthIn: 12, HeightIn: 12}}

	bySize := mustQuote(t, p, map[string]any{"quantity": 100.0, "sizeLabel": "12x12"})
	assert.Equal(t, int64(63700), bySize.Total)

	_, err := ComputeQuote(p, map[string]any{"quantity": 100.0})
	require.ErrorIs(t, err, ErrValidation)
	require.NotErrorIs(t, err, ErrConfiguration)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "widthIn", verr.Field)

	_, err = ComputeQuote(p, map[string]any{"quantity": 100.0, "sizeLabel": "99x99"})
	require.ErrorIs(t, err, ErrValidation)

	p.Options.Sizes = append(p.Options.Sizes, SizeOption{Label: "blank"})
	_, err = ComputeQuote(p, map[string]any{"quantity": 100.0, "sizeLabel": "blank"})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCostPlus_MaterialSelection(t *testing.T) {
	p := costPlusProduct(t, `{
		"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}]},
		"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60},
		"materials": {"matte": {"costPerSqft": 300}, "gloss": {"costPerSqft": 200}}
	}`)
	raw := map[string]any{"quantity": 60.0, "widthIn": 12.0, "heightIn": 12.0}

	// matte is listed first: (300 + 100) × 2
	q := mustQuote(t, p, raw)
	assert.Equal(t, int64(800), q.UnitPrice)

	raw["material"] = "gloss"
	q = mustQuote(t, p, raw)
	assert.Equal(t, int64(600), q.UnitPrice)

	raw["material"] = "unobtainium"
	_, err := ComputeQuote(p, raw)
	require.ErrorIs(t, err, ErrMaterialNotFound)
	require.ErrorIs(t, err, ErrValidation)
	var mErr *MaterialNotFoundError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "material unobtainium not available for this product", mErr.Error())
}

func TestParseConfig_CostPlusRejectsBrokenPresets(t *testing.T) {
	cases := map[string]string{
		"zero hourly rate":  `{"markup":{"floor":2},"machineLabor":{"hourlyRate":0,"unitsPerHour":60},"materials":{"v":{"costPerSqft":1}}}`,
		"no throughput":     `{"markup":{"floor":2},"machineLabor":{"hourlyRate":10},"materials":{"v":{"costPerSqft":1}}}`,
		"empty materials":   `{"markup":{"floor":2},"machineLabor":{"hourlyRate":10,"unitsPerHour":60},"materials":{}}`,
		"no markup at all":  `{"machineLabor":{"hourlyRate":10,"unitsPerHour":60},"materials":{"v":{"costPerSqft":1}}}`,
		"negative material": `{"markup":{"floor":2},"machineLabor":{"hourlyRate":10,"unitsPerHour":60},"materials":{"v":{"costPerSqft":-1}}}`,
		"not json":          `{"markup":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(ModelCostPlus, []byte(raw))
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestParseConfig_UnknownModel(t *testing.T) {
	_, err := ParseConfig("FLAT_RATE", []byte(`{}`))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseConfig_QtyOptionsDuplicateBreakpoint(t *testing.T) {
	_, err := ParseConfig(ModelQtyOptions, []byte(`{"sizes":[{"label":"2x2","tiers":[{"qty":50,"unitPrice":90}],"priceByQty":{"50":80}}]}`))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseConfig_AreaTieredMixedForms(t *testing.T) {
	_, err := ParseConfig(ModelAreaTiered, []byte(`{"tiers":[{"minSqft":0,"pricePerSqft":4},{"upToSqft":10,"pricePerSqft":3}]}`))
	require.ErrorIs(t, err, ErrConfiguration)
}
