package pricing

import "math"

const sqInchesPerSqft = 144.0

func (c *AreaTieredConfig) price(in QuoteInput) (strategyResult, error) {
	area, err := requiredArea(in)
	if err != nil {
		return strategyResult{}, err
	}

	tier, ok := c.tierFor(area)
	if !ok {
		return strategyResult{}, misconfigured("no area tiers")
	}

	unit := math.Round(tier.PricePerSqft * area)
	subtotal := math.Round(tier.PricePerSqft * area * float64(in.Quantity))
	if subtotal > math.MaxInt64/2 {
		return strategyResult{}, invalidField("quantity", "is too large")
	}
	return strategyResult{unitPrice: int64(unit), subtotal: int64(subtotal)}, nil
}

func (c *AreaTieredConfig) tierFor(area float64) (AreaTier, bool) {
	if len(c.Tiers) == 0 {
		return AreaTier{}, false
	}
	if c.upTo {
		for _, t := range c.Tiers {
			if area <= *t.UpToSqft {
				return t, true
			}
		}
		return c.Tiers[len(c.Tiers)-1], true
	}
	return selectTier(c.Tiers, func(t AreaTier) float64 { return *t.MinSqft }, area)
}

// requiredArea returns the area in square feet from the request dimensions.
func requiredArea(in QuoteInput) (float64, error) {
	if in.WidthIn == nil {
		return 0, invalidField("widthIn", "is required")
	}
	if in.HeightIn == nil {
		return 0, invalidField("heightIn", "is required")
	}
	if *in.WidthIn <= 0 {
		return 0, invalidField("widthIn", "must be positive")
	}
	if *in.HeightIn <= 0 {
		return 0, invalidField("heightIn", "must be positive")
	}
	return (*in.WidthIn * *in.HeightIn) / sqInchesPerSqft, nil
}
