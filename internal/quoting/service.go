package quoting

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/cache"
	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/metrics"
	"github.com/Simplici0/printquote/internal/pricing"
)

const (
	defaultStoreTimeout = 3 * time.Second
	defaultBatchSize    = 500
)

// ProductStore is the catalog surface the service needs.
type ProductStore interface {
	FindProduct(ctx context.Context, ref string) (pricing.Product, error)
	ProductPage(ctx context.Context, afterID int64, limit int) ([]catalog.ProductRecord, error)
	ProductsByPreset(ctx context.Context, presetKey string) ([]catalog.ProductRecord, error)
	UpdateMinPrices(ctx context.Context, updates []catalog.MinPriceUpdate) error
}

// QuoteCache is an optional store of computed quotes.
type QuoteCache interface {
	Get(ctx context.Context, key string) (pricing.Quote, bool, error)
	Set(ctx context.Context, key string, q pricing.Quote) error
}

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	Cache        QuoteCache
	StoreTimeout time.Duration
	BatchSize    int
}

// Service resolves products from the catalog and runs them through the engine.
type Service struct {
	store        ProductStore
	cache        QuoteCache
	logger       *zap.Logger
	storeTimeout time.Duration
	batchSize    int
}

func NewService(store ProductStore, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Service{
		store:        store,
		cache:        opts.Cache,
		logger:       logger,
		storeTimeout: opts.StoreTimeout,
		batchSize:    opts.BatchSize,
	}
}

// Quote prices the raw request body for the product identified by ref (id or slug).
func (s *Service) Quote(ctx context.Context, ref string, raw map[string]any) (pricing.Quote, error) {
	start := time.Now()

	product, err := s.findProduct(ctx, ref)
	if err != nil {
		s.observe("unknown", start, err)
		return pricing.Quote{}, err
	}
	model := modelLabel(product)

	in, err := pricing.Normalize(raw)
	if err != nil {
		s.observe(model, start, err)
		return pricing.Quote{}, err
	}

	var key string
	if s.cache != nil {
		key = cache.QuoteKey(product, in)
		q, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("quote cache read failed", zap.Error(err))
		} else if ok {
			metrics.QuoteCacheHits.Inc()
			s.observe(model, start, nil)
			return q, nil
		}
	}

	q, err := pricing.Price(product, in)
	s.observe(model, start, err)
	if err != nil {
		if errors.Is(err, pricing.ErrConfiguration) {
			s.logger.Error("pricing configuration error",
				zap.Int64("product_id", product.ID),
				zap.String("product", product.Slug),
				zap.Error(err),
			)
		}
		return pricing.Quote{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, q); err != nil {
			s.logger.Warn("quote cache write failed", zap.Error(err))
		}
	}
	return q, nil
}

// ProductDefaults is the smart-defaults view plus the product's from-price.
type ProductDefaults struct {
	pricing.Defaults
	FromPrice      int64  `json:"fromPrice"`
	FromPriceLabel string `json:"fromPriceLabel"`
}

// Defaults returns the storefront pre-fill for a product.
func (s *Service) Defaults(ctx context.Context, ref string) (ProductDefaults, error) {
	product, err := s.findProduct(ctx, ref)
	if err != nil {
		return ProductDefaults{}, err
	}
	from := pricing.ComputeFromPrice(product)
	return ProductDefaults{
		Defaults:       pricing.SmartDefaults(product),
		FromPrice:      from,
		FromPriceLabel: pricing.FromPriceLabel(from),
	}, nil
}

func (s *Service) findProduct(ctx context.Context, ref string) (pricing.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	product, err := s.store.FindProduct(ctx, ref)
	if err != nil && errors.Is(err, pricing.ErrConfiguration) {
		s.logger.Error("product has an unusable pricing configuration",
			zap.String("product", ref),
			zap.Error(err),
		)
	}
	return product, err
}

func (s *Service) observe(model string, start time.Time, err error) {
	metrics.QuotesTotal.WithLabelValues(model, outcome(err)).Inc()
	metrics.QuoteDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

func modelLabel(p pricing.Product) string {
	if p.Preset == nil {
		return "BASE"
	}
	return string(p.Preset.Model)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, pricing.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, catalog.ErrProductNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, pricing.ErrConfiguration):
		return metrics.OutcomeMisconfigured
	default:
		return metrics.OutcomeError
	}
}
