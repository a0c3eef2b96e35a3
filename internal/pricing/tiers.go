package pricing

// selectTier returns the tier with the greatest threshold not exceeding value.
// tiers must be sorted ascending; a value below the first threshold gets the first tier.
func selectTier[T any, K int | float64](tiers []T, threshold func(T) K, value K) (T, bool) {
	var zero T
	if len(tiers) == 0 {
		return zero, false
	}
	selected := tiers[0]
	for _, t := range tiers[1:] {
		if threshold(t) > value {
			break
		}
		selected = t
	}
	return selected, true
}
