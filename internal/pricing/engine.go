package pricing

import (
	"bytes"
	"encoding/json"
	"math"
)

// ComputeQuote normalizes raw and prices it against product.
func ComputeQuote(product Product, raw map[string]any) (Quote, error) {
	in, err := Normalize(raw)
	if err != nil {
		return Quote{}, err
	}
	return Price(product, in)
}

// Price evaluates an already normalized input. It never falls back to a default
// price on a configuration problem.
func Price(product Product, in QuoteInput) (Quote, error) {
	var (
		res   strategyResult
		model Model
		err   error
	)
	if product.Preset == nil {
		res, err = basePrice(product, in)
	} else {
		model = product.Preset.Model
		res, err = dispatch(product, in)
		err = WithPreset(err, product.Preset.Key)
	}
	if err != nil {
		return Quote{}, err
	}

	addons, err := applyAddons(product.Options, in)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Model:     model,
		UnitPrice: res.unitPrice,
		Quantity:  in.Quantity,
		Subtotal:  res.subtotal,
		LineItems: append(res.lineItems, addons...),
	}
	if q.LineItems == nil {
		q.LineItems = []LineItem{}
	}

	total := q.Subtotal
	for _, li := range q.LineItems {
		total += li.Amount
	}
	floor := res.minimum
	if product.MinimumPrice != nil && *product.MinimumPrice > floor {
		floor = *product.MinimumPrice
	}
	if total < floor {
		total = floor
		q.MinimumApplied = true
	}
	q.Total = total
	return q, nil
}

func dispatch(product Product, in QuoteInput) (strategyResult, error) {
	switch cfg := product.Preset.Config.(type) {
	case *QtyTieredConfig:
		return cfg.price(in)
	case *QtyOptionsConfig:
		return cfg.price(in)
	case *AreaTieredConfig:
		return cfg.price(in)
	case *CostPlusConfig:
		return cfg.price(product, in)
	case nil:
		return strategyResult{}, misconfigured("preset has no parsed config")
	default:
		return strategyResult{}, misconfigured("unknown pricing model %q", product.Preset.Model)
	}
}

// basePrice is the trivial quote for products without a preset.
func basePrice(product Product, in QuoteInput) (strategyResult, error) {
	if product.BasePrice == nil {
		return strategyResult{}, misconfigured("product %q has neither a preset nor a base price", product.Slug)
	}
	unit := *product.BasePrice

	if product.PricingUnit == UnitPerSqft {
		area, err := requiredArea(in)
		if err != nil {
			return strategyResult{}, err
		}
		perPiece := math.Round(float64(unit) * area)
		subtotal := math.Round(float64(unit) * area * float64(in.Quantity))
		if subtotal > math.MaxInt64/2 {
			return strategyResult{}, invalidField("quantity", "is too large")
		}
		return strategyResult{unitPrice: int64(perPiece), subtotal: int64(subtotal)}, nil
	}

	subtotal, err := multiply(unit, in.Quantity)
	if err != nil {
		return strategyResult{}, err
	}
	return strategyResult{unitPrice: unit, subtotal: subtotal}, nil
}

// ParseOptions decodes a product options document. Empty input is an empty option set.
func ParseOptions(raw []byte) (Options, error) {
	var opts Options
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return Options{}, &ConfigurationError{Reason: "decode product options", Err: err}
	}
	for _, group := range [][]AddonOption{opts.Addons, opts.Finishings} {
		for _, a := range group {
			if a.ID == "" {
				return Options{}, misconfigured("add-on without id")
			}
			if a.Type != AddonPerUnit && a.Type != AddonFlat {
				return Options{}, misconfigured("add-on %q has unknown type %q", a.ID, a.Type)
			}
			if a.Price < 0 {
				return Options{}, misconfigured("add-on %q has a negative price", a.ID)
			}
		}
	}
	for _, s := range opts.Sizes {
		if s.Label == "" || s.WidthIn < 0 || s.HeightIn < 0 {
			return Options{}, misconfigured("size %q is malformed", s.Label)
		}
	}
	return opts, nil
}
