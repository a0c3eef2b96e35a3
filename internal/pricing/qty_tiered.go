package pricing

import "math"

// strategyResult is what every pricing model hands back to the dispatcher.
type strategyResult struct {
	unitPrice int64
	subtotal  int64
	lineItems []LineItem
	minimum   int64
}

func (c *QtyTieredConfig) price(in QuoteInput) (strategyResult, error) {
	tier, ok := selectTier(c.Tiers, func(t QtyTier) int { return t.MinQty }, in.Quantity)
	if !ok {
		return strategyResult{}, misconfigured("no quantity tiers")
	}
	subtotal, err := multiply(tier.UnitPrice, in.Quantity)
	if err != nil {
		return strategyResult{}, err
	}
	return strategyResult{unitPrice: tier.UnitPrice, subtotal: subtotal}, nil
}

func (c *QtyTieredConfig) minQuantity() int {
	if len(c.Tiers) == 0 || c.Tiers[0].MinQty < 1 {
		return 1
	}
	return c.Tiers[0].MinQty
}

func multiply(unit int64, qty int) (int64, error) {
	if unit > 0 && int64(qty) > math.MaxInt64/unit {
		return 0, invalidField("quantity", "is too large")
	}
	return unit * int64(qty), nil
}
