package backfill

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/quoting"
)

// Runner performs one from-price backfill pass.
type Runner interface {
	Backfill(ctx context.Context) (quoting.BackfillStats, error)
}

// Worker periodically refreshes every product's from-price.
type Worker struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(runner Runner, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{runner: runner, interval: interval, logger: logger}
}

// Start runs a pass immediately, then every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting backfill worker", zap.Duration("interval", w.interval))

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			w.logger.Info("backfill worker stopped")
			return
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	stats, err := w.runner.Backfill(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("from-price backfill failed", zap.Int("processed", stats.Processed), zap.Error(err))
		return
	}
	w.logger.Debug("from-price backfill pass done", zap.Int("processed", stats.Processed))
}
