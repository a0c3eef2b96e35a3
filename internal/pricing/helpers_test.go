package pricing

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func mustPreset(t *testing.T, model Model, raw string) *Preset {
	t.Helper()
	cfg, err := ParseConfig(model, []byte(raw))
	require.NoError(t, err)
	return &Preset{
		ID:        1,
		Key:       strings.ToLower(string(model)) + "-test",
		Name:      string(model),
		Category:  "test",
		Model:     model,
		Version:   1,
		Config:    cfg,
		RawConfig: raw,
	}
}

func mustQuote(t *testing.T, p Product, raw map[string]any) Quote {
	t.Helper()
	q, err := ComputeQuote(p, raw)
	require.NoError(t, err)
	return q
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, name string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s = %s, want %s", name, got, want)
}

// goldenCostPlus is the reference Cost-Plus preset: $2.00 material per sqft,
// $1.00 labor per unit, 10% waste, 0.95 efficiency from 100 units, markup 2.0,
// $10 file fee, $25 minimum.
const goldenCostPlus = `{
	"markup": {"retail": [{"minQty": 1, "multiplier": 2.0}], "floor": 1.5},
	"machineLabor": {"hourlyRate": 6000, "unitsPerHour": 60},
	"waste": {"tiers": [{"minQty": 1, "percent": 10}]},
	"qtyEfficiency": {"tiers": [{"minQty": 1, "factor": 1.0}, {"minQty": 100, "factor": 0.95}]},
	"fileFee": 1000,
	"minimumPrice": 2500,
	"materials": {"vinyl": {"name": "Vinyl", "costPerSqft": 200}}
}`

const tieredConfig = `{"tiers": [{"minQty": 100, "unitPrice": 150}, {"minQty": 50, "unitPrice": 200}]}`
