package pricing

// applyAddons turns the requested add-on and finishing ids into line items.
// Ids the product does not offer are ignored; a repeated id is charged once.
func applyAddons(opts Options, in QuoteInput) ([]LineItem, error) {
	var items []LineItem
	for _, group := range []struct {
		kind      LineItemKind
		offered   []AddonOption
		requested []string
	}{
		{LineAddon, opts.Addons, in.Addons},
		{LineFinishing, opts.Finishings, in.Finishings},
	} {
		seen := make(map[string]struct{}, len(group.requested))
		for _, id := range group.requested {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			opt, ok := findAddon(group.offered, id)
			if !ok {
				continue
			}
			amount := opt.Price
			if opt.Type != AddonFlat {
				var err error
				if amount, err = multiply(opt.Price, in.Quantity); err != nil {
					return nil, err
				}
			}
			label := opt.Name
			if label == "" {
				label = opt.ID
			}
			items = append(items, LineItem{Kind: group.kind, ID: opt.ID, Label: label, Amount: amount})
		}
	}
	return items, nil
}

func findAddon(offered []AddonOption, id string) (AddonOption, bool) {
	for _, opt := range offered {
		if opt.ID == id {
			return opt, true
		}
	}
	return AddonOption{}, false
}
