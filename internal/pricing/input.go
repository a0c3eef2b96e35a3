package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize validates and coerces a decoded request body into a QuoteInput.
// It is strict on quantity and permissive on optional fields.
func Normalize(raw map[string]any) (QuoteInput, error) {
	in := QuoteInput{Channel: ChannelRetail}

	rawQty, ok := raw["quantity"]
	if !ok || rawQty == nil {
		return QuoteInput{}, invalidField("quantity", "is required")
	}
	qty, ok := toNumber(rawQty)
	if !ok {
		return QuoteInput{}, invalidField("quantity", "must be numeric")
	}
	qty = math.Floor(qty)
	if qty < 1 {
		return QuoteInput{}, invalidField("quantity", "must be a positive integer")
	}
	if qty > math.MaxInt32 {
		return QuoteInput{}, invalidField("quantity", "is too large")
	}
	in.Quantity = int(qty)

	var err error
	if in.WidthIn, err = optionalNumber(raw, "widthIn"); err != nil {
		return QuoteInput{}, err
	}
	if in.HeightIn, err = optionalNumber(raw, "heightIn"); err != nil {
		return QuoteInput{}, err
	}

	in.SizeLabel = optionalString(raw, "sizeLabel")
	in.Material = optionalString(raw, "material")
	in.Cut = strings.ToLower(optionalString(raw, "cut"))
	if strings.EqualFold(optionalString(raw, "channel"), string(ChannelB2B)) {
		in.Channel = ChannelB2B
	}

	in.Addons = stringList(raw["addons"])
	in.Finishings = stringList(raw["finishings"])

	return in, nil
}

// toNumber mirrors JavaScript Number() for the value kinds a JSON body can carry.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func optionalNumber(raw map[string]any, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := toNumber(v)
	if !ok {
		return nil, invalidField(key, "must be numeric")
	}
	return &f, nil
}

func optionalString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return nil
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s, ok := item.(string)
		if !ok {
			s = fmt.Sprint(item)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
