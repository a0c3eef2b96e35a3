package quoting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/metrics"
	"github.com/Simplici0/printquote/internal/pricing"
)

// BackfillStats summarises one from-price backfill run.
type BackfillStats struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration"`
}

// Backfill recomputes min_price for every product, one transaction per batch.
// Products whose configuration cannot be read are written as 0.
func (s *Service) Backfill(ctx context.Context) (BackfillStats, error) {
	start := time.Now()
	var (
		stats   BackfillStats
		afterID int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := s.store.ProductPage(ctx, afterID, s.batchSize)
		if err != nil {
			return stats, err
		}
		if len(page) == 0 {
			break
		}

		updates := make([]catalog.MinPriceUpdate, 0, len(page))
		for _, rec := range page {
			price, ok := s.fromPrice(rec)
			if !ok {
				stats.Failed++
			}
			updates = append(updates, catalog.MinPriceUpdate{ProductID: rec.ID, MinPrice: price})
		}
		if err := s.store.UpdateMinPrices(ctx, updates); err != nil {
			return stats, fmt.Errorf("backfill batch after product %d: %w", afterID, err)
		}

		stats.Processed += len(page)
		stats.Batches++
		afterID = page[len(page)-1].ID
		if len(page) < s.batchSize {
			break
		}
	}

	stats.Duration = time.Since(start)
	metrics.BackfillRuns.Inc()
	s.logger.Info("from-price backfill finished",
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
		zap.Int("batches", stats.Batches),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// RecomputeMinPrice refreshes min_price for the products of one preset and
// returns how many were written.
func (s *Service) RecomputeMinPrice(ctx context.Context, presetKey string) (int, error) {
	recs, err := s.store.ProductsByPreset(ctx, presetKey)
	if err != nil {
		return 0, err
	}
	updates := make([]catalog.MinPriceUpdate, 0, len(recs))
	for _, rec := range recs {
		price, _ := s.fromPrice(rec)
		updates = append(updates, catalog.MinPriceUpdate{ProductID: rec.ID, MinPrice: price})
	}
	if err := s.store.UpdateMinPrices(ctx, updates); err != nil {
		return 0, err
	}
	s.logger.Info("min prices recomputed", zap.String("preset", presetKey), zap.Int("updated", len(updates)))
	return len(updates), nil
}

// fromPrice is ComputeFromPrice for a stored row; ok is false when the row
// could not be turned into a product.
func (s *Service) fromPrice(rec catalog.ProductRecord) (int64, bool) {
	product, err := rec.Product()
	if err != nil {
		metrics.BackfillProducts.WithLabelValues("failed").Inc()
		s.logger.Warn("from-price set to 0",
			zap.Int64("product_id", rec.ID),
			zap.String("product", rec.Slug),
			zap.Error(err),
		)
		return 0, false
	}
	metrics.BackfillProducts.WithLabelValues("ok").Inc()
	return pricing.ComputeFromPrice(product), true
}
