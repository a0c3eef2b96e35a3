package pricing

// PricingUnit describes how a preset-less product's base price scales.
type PricingUnit string

const (
	UnitPerPiece PricingUnit = "per_piece"
	UnitPerSqft  PricingUnit = "per_sqft"
)

// Channel selects the Cost-Plus markup schedule.
type Channel string

const (
	ChannelRetail Channel = "retail"
	ChannelB2B    Channel = "b2b"
)

// Cut types understood by the Cost-Plus cutting step.
const (
	CutContour     = "contour"
	CutRectangular = "rectangular"
)

// Product is the read-only catalog view the engine prices.
type Product struct {
	ID           int64
	Slug         string
	Name         string
	PricingUnit  PricingUnit
	BasePrice    *int64
	MinimumPrice *int64
	MinPrice     int64
	Options      Options
	Preset       *Preset
}

// Preset is a parsed pricing preset. RawConfig keeps the stored JSON text verbatim.
type Preset struct {
	ID        int64
	Key       string
	Name      string
	Category  string
	Model     Model
	Version   int64
	Config    Config
	RawConfig string
}

// Options is the product options configuration.
type Options struct {
	Sizes      []SizeOption     `json:"sizes,omitempty"`
	Materials  []MaterialOption `json:"materials,omitempty"`
	Addons     []AddonOption    `json:"addons,omitempty"`
	Finishings []AddonOption    `json:"finishings,omitempty"`
	DefaultCut string           `json:"defaultCut,omitempty"`
}

type SizeOption struct {
	Label    string  `json:"label"`
	WidthIn  float64 `json:"widthIn,omitempty"`
	HeightIn float64 `json:"heightIn,omitempty"`
}

type MaterialOption struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// AddonType is either per_unit or flat.
type AddonType string

const (
	AddonPerUnit AddonType = "per_unit"
	AddonFlat    AddonType = "flat"
)

type AddonOption struct {
	ID    string    `json:"id"`
	Name  string    `json:"name,omitempty"`
	Type  AddonType `json:"type"`
	Price int64     `json:"price"`
}

// QuoteInput is the normalized request. Build it with Normalize.
type QuoteInput struct {
	Quantity   int
	WidthIn    *float64
	HeightIn   *float64
	SizeLabel  string
	Material   string
	Addons     []string
	Finishings []string
	Cut        string
	Channel    Channel
}

// LineItemKind classifies additive charges on a quote.
type LineItemKind string

const (
	LineAddon     LineItemKind = "addon"
	LineFinishing LineItemKind = "finishing"
	LineFileFee   LineItemKind = "file_fee"
)

type LineItem struct {
	Kind   LineItemKind `json:"kind"`
	ID     string       `json:"id"`
	Label  string       `json:"label,omitempty"`
	Amount int64        `json:"amount"`
}

// Quote is the engine output. All amounts are cents.
type Quote struct {
	Model          Model      `json:"model,omitempty"`
	UnitPrice      int64      `json:"unitPrice"`
	Quantity       int        `json:"quantity"`
	Subtotal       int64      `json:"subtotal"`
	LineItems      []LineItem `json:"lineItems"`
	MinimumApplied bool       `json:"minimumApplied"`
	Total          int64      `json:"total"`
}

// Defaults is the smart-defaults result used to pre-fill the storefront and price the cache.
type Defaults struct {
	MinQuantity     int      `json:"minQuantity"`
	DefaultMaterial string   `json:"defaultMaterial,omitempty"`
	DefaultSize     string   `json:"defaultSize,omitempty"`
	WidthIn         *float64 `json:"widthIn,omitempty"`
	HeightIn        *float64 `json:"heightIn,omitempty"`
}

func (o Options) size(label string) (SizeOption, bool) {
	for _, s := range o.Sizes {
		if s.Label == label {
			return s, true
		}
	}
	return SizeOption{}, false
}
