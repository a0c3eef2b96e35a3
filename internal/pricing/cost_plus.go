package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Intermediate per-unit costs are kept in hundredths of a cent.
const costPlaces = 2

var (
	one      = decimal.NewFromInt(1)
	sixty    = decimal.NewFromInt(60)
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
	sqInches = decimal.NewFromInt(144)
	inchFoot = decimal.NewFromInt(12)
)

// costSteps records every intermediate value of a Cost-Plus evaluation, in step order.
type costSteps struct {
	material    string
	area        decimal.Decimal
	materialInk decimal.Decimal
	cutting     decimal.Decimal
	labor       decimal.Decimal
	base        decimal.Decimal
	afterWaste  decimal.Decimal
	afterEff    decimal.Decimal
	multiplier  decimal.Decimal
	unitPrice   decimal.Decimal
}

func (c *CostPlusConfig) price(p Product, in QuoteInput) (strategyResult, error) {
	steps, err := c.evaluate(p, in)
	if err != nil {
		return strategyResult{}, err
	}

	// 9. extend by quantity, add the one-time file fee.
	unit := steps.unitPrice.IntPart()
	subtotal, err := multiply(unit, in.Quantity)
	if err != nil {
		return strategyResult{}, err
	}
	res := strategyResult{unitPrice: unit, subtotal: subtotal}
	if c.FileFee > 0 {
		res.lineItems = append(res.lineItems, LineItem{Kind: LineFileFee, ID: "file_fee", Label: "File setup", Amount: c.FileFee})
	}
	// 10. the minimum is enforced as a floor on the final total by the dispatcher.
	res.minimum = c.MinimumPrice
	return res, nil
}

// evaluate runs steps 1 through 8. The order is part of the pricing contract.
func (c *CostPlusConfig) evaluate(p Product, in QuoteInput) (costSteps, error) {
	var s costSteps

	// 1. material
	s.material = in.Material
	if s.material == "" {
		s.material = c.Materials.First()
	}
	material, ok := c.Materials.Get(s.material)
	if !ok {
		return costSteps{}, &MaterialNotFoundError{Material: s.material}
	}

	width, height, err := costPlusDimensions(p, in)
	if err != nil {
		return costSteps{}, err
	}
	s.area = width.Mul(height).Div(sqInches)
	if !s.area.IsPositive() {
		return costSteps{}, misconfigured("computed area must be positive")
	}
	qty := decimal.NewFromInt(int64(in.Quantity))

	// 2. material + ink
	s.materialInk = decimal.NewFromFloat(material.CostPerSqft).Mul(s.area).
		Add(decimal.NewFromFloat(material.CostPerUnit))
	if c.InkCosts != nil {
		ink := decimal.NewFromFloat(c.InkCosts.CostPerLiter).
			Mul(decimal.NewFromFloat(c.InkCosts.MlPerSqft)).
			Div(thousand).
			Mul(s.area)
		s.materialInk = s.materialInk.Add(ink)
	}
	s.materialInk = roundCost(s.materialInk)

	// 3. cutting
	s.cutting = roundCost(c.cuttingCost(isContour(p, in), width, height, s.area))

	// 4. machine labor
	s.labor = roundCost(c.laborTotal(s.area, qty).Div(qty))

	// 5. base unit cost
	s.base = s.materialInk.Add(s.cutting).Add(s.labor)

	// 6. waste, on the cost before any volume discount
	s.afterWaste = applyWaste(s.base, c.wastePercent(in.Quantity))

	// 7. quantity efficiency
	s.afterEff = applyEfficiency(s.afterWaste, c.efficiencyFactor(in.Quantity))

	// 8. markup, floor multiplier wins over a lower tier
	multiplier, err := c.markupMultiplier(in.Channel, in.Quantity)
	if err != nil {
		return costSteps{}, err
	}
	s.multiplier = multiplier
	s.unitPrice = s.afterEff.Mul(multiplier).Round(0)

	return s, nil
}

func (c *CostPlusConfig) cuttingCost(contour bool, width, height, area decimal.Decimal) decimal.Decimal {
	if c.Cutting == nil {
		return decimal.Zero
	}
	if contour {
		cost := decimal.NewFromFloat(c.Cutting.ContourPerSqft).Mul(area)
		return decimal.Max(cost, decimal.NewFromFloat(c.Cutting.ContourMinimum))
	}
	perimeterFt := width.Add(height).Mul(decimal.NewFromInt(2)).Div(inchFoot)
	return decimal.NewFromFloat(c.Cutting.RectangularPerFt).Mul(perimeterFt)
}

// laborTotal is the machine cost of the whole run: hourlyRate × estimated hours.
func (c *CostPlusConfig) laborTotal(area, qty decimal.Decimal) decimal.Decimal {
	rate := decimal.NewFromFloat(c.MachineLabor.HourlyRate)
	var total decimal.Decimal
	if c.MachineLabor.SqftPerHour > 0 {
		total = rate.Mul(area).Mul(qty).Div(decimal.NewFromFloat(c.MachineLabor.SqftPerHour))
	} else {
		total = rate.Mul(qty).Div(decimal.NewFromFloat(c.MachineLabor.UnitsPerHour))
	}
	if c.MachineLabor.SetupMinutes > 0 {
		total = total.Add(rate.Mul(decimal.NewFromFloat(c.MachineLabor.SetupMinutes)).Div(sixty))
	}
	return total
}

func (c *CostPlusConfig) wastePercent(qty int) float64 {
	tier, ok := selectTier(c.Waste.Tiers, func(t WasteTier) int { return t.MinQty }, qty)
	if !ok {
		return 0
	}
	return tier.Percent
}

func (c *CostPlusConfig) efficiencyFactor(qty int) float64 {
	tier, ok := selectTier(c.QtyEfficiency.Tiers, func(t EfficiencyTier) int { return t.MinQty }, qty)
	if !ok {
		return 1
	}
	return tier.Factor
}

func (c *CostPlusConfig) markupMultiplier(channel Channel, qty int) (decimal.Decimal, error) {
	schedule := c.Markup.Retail
	if channel == ChannelB2B && len(c.Markup.B2B) > 0 {
		schedule = c.Markup.B2B
	}
	if len(schedule) == 0 {
		schedule = c.Markup.B2B
	}

	multiplier := 0.0
	if tier, ok := selectTier(schedule, func(t MarkupTier) int { return t.MinQty }, qty); ok {
		multiplier = tier.Multiplier
	}
	if multiplier < c.Markup.Floor {
		multiplier = c.Markup.Floor
	}
	if multiplier <= 0 {
		return decimal.Zero, misconfigured("markup multiplier resolved to zero")
	}
	return decimal.NewFromFloat(multiplier), nil
}

func (c *CostPlusConfig) minQuantity() int {
	schedule := c.Markup.Retail
	if len(schedule) == 0 {
		schedule = c.Markup.B2B
	}
	if len(schedule) == 0 || schedule[0].MinQty < 1 {
		return 1
	}
	return schedule[0].MinQty
}

func applyWaste(cost decimal.Decimal, percent float64) decimal.Decimal {
	return roundCost(cost.Mul(one.Add(decimal.NewFromFloat(percent).Div(hundred))))
}

func applyEfficiency(cost decimal.Decimal, factor float64) decimal.Decimal {
	return roundCost(cost.Mul(decimal.NewFromFloat(factor)))
}

func roundCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(costPlaces)
}

// costPlusDimensions resolves the printed size from the request or, failing that,
// from the product size matching sizeLabel. A request naming neither is invalid.
func costPlusDimensions(p Product, in QuoteInput) (decimal.Decimal, decimal.Decimal, error) {
	if in.WidthIn != nil || in.HeightIn != nil {
		if _, err := requiredArea(in); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return decimal.NewFromFloat(*in.WidthIn), decimal.NewFromFloat(*in.HeightIn), nil
	}
	if in.SizeLabel != "" {
		size, ok := p.Options.size(in.SizeLabel)
		if !ok {
			return decimal.Zero, decimal.Zero, invalidField("sizeLabel", "does not match an available size")
		}
		return decimal.NewFromFloat(size.WidthIn), decimal.NewFromFloat(size.HeightIn), nil
	}
	return decimal.Zero, decimal.Zero, invalidField("widthIn", "is required")
}

func isContour(p Product, in QuoteInput) bool {
	switch in.Cut {
	case CutContour:
		return true
	case CutRectangular:
		return false
	}
	for _, ids := range [][]string{in.Addons, in.Finishings} {
		for _, id := range ids {
			switch strings.ToLower(id) {
			case "contour-cut", "contour_cut":
				return true
			}
		}
	}
	return strings.EqualFold(p.Options.DefaultCut, CutContour)
}
