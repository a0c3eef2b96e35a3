package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates are kept to four decimal places after scaling; cents are whole.
const (
	centPlaces int32 = 0
	ratePlaces int32 = 4
)

// ScaleConfig raises or lowers every price-bearing field of a stored preset
// config by percent and returns the rewritten JSON. Fields it does not price
// with, including the materials catalog order, are carried through untouched.
// Cost-Plus scales every markup multiplier including the floor, so the
// effective multiplier always moves, plus fileFee and minimumPrice.
func ScaleConfig(model Model, raw []byte, percent float64) ([]byte, error) {
	if percent <= -100 {
		return nil, invalidField("percent", "must be greater than -100")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ConfigurationError{Reason: "decode config for scaling", Err: err}
	}
	if doc == nil {
		return nil, misconfigured("config is empty")
	}

	s := &scaler{factor: one.Add(decimal.NewFromFloat(percent).Div(hundred))}
	switch model {
	case ModelQtyTiered:
		s.rewrite(doc, "tiers", func(v any) {
			s.each(v, func(t map[string]any) { s.field(t, "unitPrice", centPlaces) })
		})
	case ModelQtyOptions:
		s.rewrite(doc, "sizes", func(v any) {
			s.each(v, func(size map[string]any) {
				s.each(size["tiers"], func(t map[string]any) { s.field(t, "unitPrice", centPlaces) })
				if byQty, ok := size["priceByQty"].(map[string]any); ok {
					for qty := range byQty {
						s.field(byQty, qty, centPlaces)
					}
				}
			})
		})
	case ModelAreaTiered:
		s.rewrite(doc, "tiers", func(v any) {
			s.each(v, func(t map[string]any) { s.field(t, "pricePerSqft", ratePlaces) })
		})
	case ModelCostPlus:
		s.rewrite(doc, "markup", func(v any) {
			markup, ok := v.(map[string]any)
			if !ok {
				return
			}
			for _, channel := range []string{"retail", "b2b"} {
				s.each(markup[channel], func(t map[string]any) { s.field(t, "multiplier", ratePlaces) })
			}
			s.field(markup, "floor", ratePlaces)
		})
		s.rewriteNumber(doc, "fileFee", centPlaces)
		s.rewriteNumber(doc, "minimumPrice", centPlaces)
	default:
		return nil, misconfigured("unknown pricing model %q", model)
	}
	if s.err != nil {
		return nil, s.err
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode scaled config: %w", err)
	}
	if _, err := ParseConfig(model, out); err != nil {
		return nil, err
	}
	return out, nil
}

type scaler struct {
	factor decimal.Decimal
	err    error
}

func (s *scaler) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// rewrite decodes doc[key], lets walk mutate it in place and stores it back.
func (s *scaler) rewrite(doc map[string]json.RawMessage, key string, walk func(any)) {
	field, ok := doc[key]
	if !ok || s.err != nil {
		return
	}
	v, err := decodeNumbers(field)
	if err != nil {
		s.fail(&ConfigurationError{Reason: "decode " + key, Err: err})
		return
	}
	walk(v)
	out, err := json.Marshal(v)
	if err != nil {
		s.fail(fmt.Errorf("encode %s: %w", key, err))
		return
	}
	doc[key] = out
}

func (s *scaler) rewriteNumber(doc map[string]json.RawMessage, key string, places int32) {
	field, ok := doc[key]
	if !ok || s.err != nil {
		return
	}
	v, err := decodeNumbers(field)
	if err != nil {
		s.fail(&ConfigurationError{Reason: "decode " + key, Err: err})
		return
	}
	if v == nil {
		return
	}
	out, err := json.Marshal(s.scale(key, v, places))
	if err != nil {
		s.fail(fmt.Errorf("encode %s: %w", key, err))
		return
	}
	doc[key] = out
}

func (s *scaler) each(v any, fn func(map[string]any)) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			fn(obj)
		}
	}
}

func (s *scaler) field(obj map[string]any, key string, places int32) {
	if v, ok := obj[key]; ok && v != nil {
		obj[key] = s.scale(key, v, places)
	}
}

func (s *scaler) scale(key string, v any, places int32) any {
	n, ok := v.(json.Number)
	if !ok {
		s.fail(misconfigured("%s is not a number", key))
		return v
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		s.fail(&ConfigurationError{Reason: key, Err: err})
		return v
	}
	return json.Number(d.Mul(s.factor).Round(places).String())
}

func decodeNumbers(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
