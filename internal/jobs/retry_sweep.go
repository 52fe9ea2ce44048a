package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/store"
)

// retrySweepBatch bounds how many reset deliveries one sweep picks up.
const retrySweepBatch = 100

// Redeliverer re-runs delivery for a single record. The orchestrator
// implements it.
type Redeliverer interface {
	Redeliver(ctx context.Context, d *core.Delivery) error
}

// RetrySweepArgs is the periodic job that re-delivers records a manual retry
// reset to pending.
type RetrySweepArgs struct{}

// Kind returns the job kind identifier for the retry sweep.
func (RetrySweepArgs) Kind() string { return "delivery_retry_sweep" }

// InsertOpts ensures at most one sweep is enqueued per period.
func (RetrySweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Minute,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// RetrySweepWorker picks up reset deliveries and pushes them back through
// their channel adapters. Individual redelivery failures move the record back
// to failed and do not fail the sweep.
type RetrySweepWorker struct {
	river.WorkerDefaults[RetrySweepArgs]
	deliveries  store.DeliveryStore
	redeliverer Redeliverer
}

// NewRetrySweepWorker creates the sweep worker.
func NewRetrySweepWorker(deliveries store.DeliveryStore, redeliverer Redeliverer) *RetrySweepWorker {
	return &RetrySweepWorker{deliveries: deliveries, redeliverer: redeliverer}
}

// Work re-delivers every retryable record found.
func (w *RetrySweepWorker) Work(ctx context.Context, _ *river.Job[RetrySweepArgs]) error {
	if w == nil || w.deliveries == nil || w.redeliverer == nil {
		return fmt.Errorf("retry sweep worker is not initialized")
	}

	pending, err := w.deliveries.ListRetryable(ctx, retrySweepBatch)
	if err != nil {
		return fmt.Errorf("list retryable deliveries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	redelivered := 0
	for _, d := range pending {
		if err := w.redeliverer.Redeliver(ctx, d); err != nil {
			logger.Warn("redelivery failed",
				zap.String("deliveryID", d.ID),
				zap.String("channel", string(d.Channel)),
				zap.Error(err),
			)
			continue
		}
		redelivered++
	}

	logger.Info("retry sweep completed",
		zap.Int("picked_up", len(pending)),
		zap.Int("redelivered", redelivered),
	)
	return nil
}
