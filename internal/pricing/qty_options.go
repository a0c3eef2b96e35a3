package pricing

import "strings"

func (c *QtyOptionsConfig) price(in QuoteInput) (strategyResult, error) {
	if in.SizeLabel == "" {
		return strategyResult{}, invalidField("sizeLabel", "is required")
	}
	size, ok := c.findSize(in.SizeLabel)
	if !ok {
		return strategyResult{}, invalidField("sizeLabel", "does not match an available size")
	}

	// Exact breakpoint first, otherwise floor to the nearest breakpoint below.
	var bp QtyBreakpoint
	exact := false
	for _, t := range size.Tiers {
		if t.Qty == in.Quantity {
			bp, exact = t, true
			break
		}
	}
	if !exact {
		bp, _ = selectTier(size.Tiers, func(t QtyBreakpoint) int { return t.Qty }, in.Quantity)
	}

	subtotal, err := multiply(bp.UnitPrice, in.Quantity)
	if err != nil {
		return strategyResult{}, err
	}
	return strategyResult{unitPrice: bp.UnitPrice, subtotal: subtotal}, nil
}

func (c *QtyOptionsConfig) findSize(label string) (SizeTiers, bool) {
	for _, s := range c.Sizes {
		if s.Label == label {
			return s, true
		}
	}
	for _, s := range c.Sizes {
		if strings.EqualFold(s.Label, label) {
			return s, true
		}
	}
	return SizeTiers{}, false
}

func (c *QtyOptionsConfig) minQuantity() int {
	if len(c.Sizes) == 0 || len(c.Sizes[0].Tiers) == 0 {
		return 1
	}
	return c.Sizes[0].Tiers[0].Qty
}
