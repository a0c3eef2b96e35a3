package pricing

// Fallback print size used when a product publishes no dimensions.
const defaultSideIn = 12.0

// SmartDefaults derives the storefront pre-fill and the from-price evaluation point.
func SmartDefaults(product Product) Defaults {
	d := Defaults{MinQuantity: 1}
	if len(product.Options.Materials) > 0 {
		d.DefaultMaterial = product.Options.Materials[0].ID
	}
	if len(product.Options.Sizes) > 0 {
		d.DefaultSize = product.Options.Sizes[0].Label
	}

	if product.Preset != nil {
		switch cfg := product.Preset.Config.(type) {
		case *QtyTieredConfig:
			d.MinQuantity = cfg.minQuantity()
		case *QtyOptionsConfig:
			d.MinQuantity = cfg.minQuantity()
			if len(cfg.Sizes) > 0 {
				d.DefaultSize = cfg.Sizes[0].Label
			}
		case *AreaTieredConfig:
			d.MinQuantity = 1
		case *CostPlusConfig:
			d.MinQuantity = cfg.minQuantity()
			d.DefaultMaterial = cfg.Materials.First()
		}
	}

	if size, ok := product.Options.size(d.DefaultSize); ok && size.WidthIn > 0 && size.HeightIn > 0 {
		w, h := size.WidthIn, size.HeightIn
		d.WidthIn, d.HeightIn = &w, &h
	}
	return d
}
