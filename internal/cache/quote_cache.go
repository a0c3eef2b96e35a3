package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Simplici0/printquote/internal/pricing"
)

const quoteKeyPrefix = "quote:"

// QuoteCache stores computed quotes in Redis. Keys embed the preset version,
// so a config mutation makes older entries unreachable until they expire.
type QuoteCache struct {
	redis *RedisClient
	ttl   time.Duration
}

func NewQuoteCache(redis *RedisClient, ttl time.Duration) *QuoteCache {
	return &QuoteCache{redis: redis, ttl: ttl}
}

// pricedProduct is every product field that can change a quote.
type pricedProduct struct {
	ID           int64               `json:"id"`
	PricingUnit  pricing.PricingUnit `json:"pricingUnit"`
	BasePrice    *int64              `json:"basePrice"`
	MinimumPrice *int64              `json:"minimumPrice"`
	Options      pricing.Options     `json:"options"`
}

// QuoteKey identifies a quote by the product's priced fields, the preset
// version and the normalized input. Editing any of them yields a new key.
func QuoteKey(product pricing.Product, in pricing.QuoteInput) string {
	presetKey, version := "-", int64(0)
	if product.Preset != nil {
		presetKey, version = product.Preset.Key, product.Preset.Version
	}
	priced, _ := json.Marshal(pricedProduct{
		ID:           product.ID,
		PricingUnit:  product.PricingUnit,
		BasePrice:    product.BasePrice,
		MinimumPrice: product.MinimumPrice,
		Options:      product.Options,
	})
	body, _ := json.Marshal(in)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", presetKey, version)
	h.Write(priced)
	h.Write([]byte{'|'})
	h.Write(body)
	return quoteKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached quote; ok is false on a miss.
func (c *QuoteCache) Get(ctx context.Context, key string) (pricing.Quote, bool, error) {
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pricing.Quote{}, false, nil
		}
		return pricing.Quote{}, false, fmt.Errorf("get cached quote: %w", err)
	}
	var q pricing.Quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return pricing.Quote{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return q, true, nil
}

// Set stores a quote for the configured TTL.
func (c *QuoteCache) Set(ctx context.Context, key string, q pricing.Quote) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.redis.Set(ctx, key, string(body), c.ttl); err != nil {
		return fmt.Errorf("cache quote: %w", err)
	}
	return nil
}
