package pricing

// ComputeFromPrice is the representative "From $X" total: the engine evaluated at
// the product's smart defaults with no add-ons, floored exactly like a quote.
// Any pricing error yields 0.
func ComputeFromPrice(product Product) int64 {
	d := SmartDefaults(product)
	in := QuoteInput{
		Quantity:  d.MinQuantity,
		SizeLabel: d.DefaultSize,
		Material:  d.DefaultMaterial,
		Channel:   ChannelRetail,
	}
	w, h := defaultSideIn, defaultSideIn
	if d.WidthIn != nil && d.HeightIn != nil {
		w, h = *d.WidthIn, *d.HeightIn
	}
	in.WidthIn, in.HeightIn = &w, &h

	q, err := Price(product, in)
	if err != nil {
		return 0
	}
	return q.Total
}
