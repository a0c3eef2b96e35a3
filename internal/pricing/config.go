package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Model is the operator-entered strategy tag stored on a preset.
type Model string

const (
	ModelQtyTiered  Model = "QTY_TIERED"
	ModelQtyOptions Model = "QTY_OPTIONS"
	ModelAreaTiered Model = "AREA_TIERED"
	ModelCostPlus   Model = "COST_PLUS"
)

// Config is the closed set of typed preset configurations, one per Model.
type Config interface {
	Model() Model
	sealed()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type preparedConfig interface {
	Config
	prepare() error
}

// ParseConfig converts the stored JSON for model into its typed configuration.
// Every failure is a *ConfigurationError.
func ParseConfig(model Model, raw []byte) (Config, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, misconfigured("config is empty")
	}

	var cfg preparedConfig
	switch model {
	case ModelQtyTiered:
		cfg = &QtyTieredConfig{}
	case ModelQtyOptions:
		cfg = &QtyOptionsConfig{}
	case ModelAreaTiered:
		cfg = &AreaTieredConfig{}
	case ModelCostPlus:
		cfg = &CostPlusConfig{}
	default:
		return nil, misconfigured("unknown pricing model %q", model)
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("decode %s config", model), Err: err}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("validate %s config", model), Err: describeValidation(err)}
	}
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", ns, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", ns, fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// QtyTieredConfig prices per piece from quantity tiers.
type QtyTieredConfig struct {
	Tiers []QtyTier `json:"tiers" validate:"required,min=1,dive"`
}

type QtyTier struct {
	MinQty    int   `json:"minQty" validate:"gte=0"`
	UnitPrice int64 `json:"unitPrice" validate:"gte=0"`
}

func (*QtyTieredConfig) Model() Model { return ModelQtyTiered }
func (*QtyTieredConfig) sealed()      {}

func (c *QtyTieredConfig) prepare() error {
	sort.SliceStable(c.Tiers, func(i, j int) bool { return c.Tiers[i].MinQty < c.Tiers[j].MinQty })
	return nil
}

// QtyOptionsConfig prices per piece from discrete quantity breakpoints of a named size.
type QtyOptionsConfig struct {
	Sizes []SizeTiers `json:"sizes" validate:"required,min=1,dive"`
}

type SizeTiers struct {
	Label      string           `json:"label" validate:"required"`
	Tiers      []QtyBreakpoint  `json:"tiers,omitempty" validate:"dive"`
	PriceByQty map[string]int64 `json:"priceByQty,omitempty"`
}

type QtyBreakpoint struct {
	Qty       int   `json:"qty" validate:"gte=1"`
	UnitPrice int64 `json:"unitPrice" validate:"gte=0"`
}

func (*QtyOptionsConfig) Model() Model { return ModelQtyOptions }
func (*QtyOptionsConfig) sealed()      {}

func (c *QtyOptionsConfig) prepare() error {
	seenLabels := make(map[string]struct{}, len(c.Sizes))
	for i := range c.Sizes {
		size := &c.Sizes[i]
		if _, dup := seenLabels[size.Label]; dup {
			return misconfigured("size %q listed twice", size.Label)
		}
		seenLabels[size.Label] = struct{}{}

		seen := make(map[int]struct{}, len(size.Tiers)+len(size.PriceByQty))
		for _, bp := range size.Tiers {
			if _, dup := seen[bp.Qty]; dup {
				return misconfigured("size %q: breakpoint %d listed twice", size.Label, bp.Qty)
			}
			seen[bp.Qty] = struct{}{}
		}
		for key, price := range size.PriceByQty {
			qty, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || qty < 1 {
				return misconfigured("size %q: priceByQty key %q is not a positive quantity", size.Label, key)
			}
			if price < 0 {
				return misconfigured("size %q: priceByQty %d is negative", size.Label, qty)
			}
			if _, dup := seen[qty]; dup {
				return misconfigured("size %q: breakpoint %d listed twice", size.Label, qty)
			}
			seen[qty] = struct{}{}
			size.Tiers = append(size.Tiers, QtyBreakpoint{Qty: qty, UnitPrice: price})
		}
		if len(size.Tiers) == 0 {
			return misconfigured("size %q has no quantity breakpoints", size.Label)
		}
		size.PriceByQty = nil
		sort.SliceStable(size.Tiers, func(a, b int) bool { return size.Tiers[a].Qty < size.Tiers[b].Qty })
	}
	return nil
}

// AreaTieredConfig prices by square foot. Tiers use either minSqft or upToSqft, never both.
type AreaTieredConfig struct {
	Tiers []AreaTier `json:"tiers" validate:"required,min=1,dive"`

	upTo bool
}

type AreaTier struct {
	MinSqft      *float64 `json:"minSqft,omitempty" validate:"omitempty,gte=0"`
	UpToSqft     *float64 `json:"upToSqft,omitempty" validate:"omitempty,gt=0"`
	PricePerSqft float64  `json:"pricePerSqft" validate:"gte=0"`
}

func (*AreaTieredConfig) Model() Model { return ModelAreaTiered }
func (*AreaTieredConfig) sealed()      {}

func (c *AreaTieredConfig) prepare() error {
	c.upTo = c.Tiers[0].UpToSqft != nil
	for i, t := range c.Tiers {
		if (t.MinSqft == nil) == (t.UpToSqft == nil) {
			return misconfigured("area tier %d must set exactly one of minSqft or upToSqft", i)
		}
		if (t.UpToSqft != nil) != c.upTo {
			return misconfigured("area tiers mix minSqft and upToSqft")
		}
	}
	sort.SliceStable(c.Tiers, func(i, j int) bool { return c.Tiers[i].bound() < c.Tiers[j].bound() })
	return nil
}

func (t AreaTier) bound() float64 {
	if t.UpToSqft != nil {
		return *t.UpToSqft
	}
	return *t.MinSqft
}

// CostPlusConfig derives price from modelled production cost plus markup.
type CostPlusConfig struct {
	Markup        Markup             `json:"markup"`
	MachineLabor  MachineLabor       `json:"machineLabor"`
	Cutting       *Cutting           `json:"cutting,omitempty"`
	Waste         WasteSchedule      `json:"waste"`
	QtyEfficiency EfficiencySchedule `json:"qtyEfficiency"`
	FileFee       int64              `json:"fileFee" validate:"gte=0"`
	MinimumPrice  int64              `json:"minimumPrice" validate:"gte=0"`
	InkCosts      *InkCosts          `json:"inkCosts,omitempty"`
	Materials     MaterialCatalog    `json:"materials"`
}

type Markup struct {
	Retail []MarkupTier `json:"retail" validate:"dive"`
	B2B    []MarkupTier `json:"b2b,omitempty" validate:"dive"`
	Floor  float64      `json:"floor" validate:"gte=0"`
}

type MarkupTier struct {
	MinQty     int     `json:"minQty" validate:"gte=0"`
	Multiplier float64 `json:"multiplier" validate:"gt=0"`
}

// MachineLabor carries the hourly rate and the throughput assumption used to estimate hours.
type MachineLabor struct {
	HourlyRate   float64 `json:"hourlyRate" validate:"gte=0"`
	UnitsPerHour float64 `json:"unitsPerHour" validate:"gte=0"`
	SqftPerHour  float64 `json:"sqftPerHour" validate:"gte=0"`
	SetupMinutes float64 `json:"setupMinutes" validate:"gte=0"`
}

type Cutting struct {
	RectangularPerFt float64 `json:"rectangularPerFt" validate:"gte=0"`
	ContourPerSqft   float64 `json:"contourPerSqft" validate:"gte=0"`
	ContourMinimum   float64 `json:"contourMinimum" validate:"gte=0"`
}

type WasteSchedule struct {
	Tiers []WasteTier `json:"tiers" validate:"dive"`
}

type WasteTier struct {
	MinQty  int     `json:"minQty" validate:"gte=0"`
	Percent float64 `json:"percent" validate:"gte=0"`
}

type EfficiencySchedule struct {
	Tiers []EfficiencyTier `json:"tiers" validate:"dive"`
}

type EfficiencyTier struct {
	MinQty int     `json:"minQty" validate:"gte=0"`
	Factor float64 `json:"factor" validate:"gt=0"`
}

type InkCosts struct {
	CostPerLiter float64 `json:"costPerLiter" validate:"gte=0"`
	MlPerSqft    float64 `json:"mlPerSqft" validate:"gte=0"`
}

func (*CostPlusConfig) Model() Model { return ModelCostPlus }
func (*CostPlusConfig) sealed()      {}

func (c *CostPlusConfig) prepare() error {
	if c.MachineLabor.HourlyRate <= 0 {
		return misconfigured("machineLabor.hourlyRate must be positive")
	}
	if c.MachineLabor.UnitsPerHour <= 0 && c.MachineLabor.SqftPerHour <= 0 {
		return misconfigured("machineLabor needs unitsPerHour or sqftPerHour")
	}
	if c.Materials.Len() == 0 {
		return misconfigured("materials catalog is empty")
	}
	for _, id := range c.Materials.keys {
		m := c.Materials.items[id]
		if err := validate.Struct(m); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("material %q", id), Err: describeValidation(err)}
		}
	}
	if len(c.Markup.Retail) == 0 && len(c.Markup.B2B) == 0 && c.Markup.Floor <= 0 {
		return misconfigured("markup needs at least one tier or a floor")
	}
	sort.SliceStable(c.Markup.Retail, func(i, j int) bool { return c.Markup.Retail[i].MinQty < c.Markup.Retail[j].MinQty })
	sort.SliceStable(c.Markup.B2B, func(i, j int) bool { return c.Markup.B2B[i].MinQty < c.Markup.B2B[j].MinQty })
	sort.SliceStable(c.Waste.Tiers, func(i, j int) bool { return c.Waste.Tiers[i].MinQty < c.Waste.Tiers[j].MinQty })
	sort.SliceStable(c.QtyEfficiency.Tiers, func(i, j int) bool {
		return c.QtyEfficiency.Tiers[i].MinQty < c.QtyEfficiency.Tiers[j].MinQty
	})
	return nil
}

// MaterialCost is the consumption data of one material.
type MaterialCost struct {
	Name        string  `json:"name,omitempty"`
	CostPerSqft float64 `json:"costPerSqft" validate:"gte=0"`
	CostPerUnit float64 `json:"costPerUnit" validate:"gte=0"`
}

// MaterialCatalog is a material id → cost map that remembers JSON document order,
// since the first listed material is the default.
type MaterialCatalog struct {
	keys  []string
	items map[string]MaterialCost
}

func (m *MaterialCatalog) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.items = make(map[string]MaterialCost)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("materials must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var cost MaterialCost
		if err := dec.Decode(&cost); err != nil {
			return fmt.Errorf("material %q: %w", id, err)
		}
		if _, exists := m.items[id]; !exists {
			m.keys = append(m.keys, id)
		}
		m.items[id] = cost
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func (m MaterialCatalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.items[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m MaterialCatalog) Len() int { return len(m.keys) }

// Keys returns material ids in document order.
func (m MaterialCatalog) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m MaterialCatalog) Get(id string) (MaterialCost, bool) {
	cost, ok := m.items[id]
	return cost, ok
}

func (m MaterialCatalog) First() string {
	if len(m.keys) == 0 {
		return ""
	}
	return m.keys[0]
}
