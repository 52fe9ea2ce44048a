// Package jobs defines the River periodic maintenance jobs: the expiry sweep
// that enforces retention and the retry sweep that re-delivers reset
// deliveries.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/store"
)

// DefaultRetention is how long notifications without an explicit expiry are
// kept.
const DefaultRetention = 90 * 24 * time.Hour

// ExpirySweepArgs is the periodic job that removes expired and
// past-retention notifications.
type ExpirySweepArgs struct{}

// Kind returns the job kind identifier for the expiry sweep.
func (ExpirySweepArgs) Kind() string { return "notification_expiry_sweep" }

// InsertOpts ensures at most one sweep is enqueued per period.
func (ExpirySweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// ExpirySweepWorker deletes notifications whose expiry has passed or whose
// age exceeds the retention window. Deliveries and audits cascade with them.
type ExpirySweepWorker struct {
	river.WorkerDefaults[ExpirySweepArgs]
	notifications store.NotificationStore
	retention     time.Duration
}

// NewExpirySweepWorker creates the sweep worker. Non-positive retention falls
// back to the 90-day default.
func NewExpirySweepWorker(notifications store.NotificationStore, retention time.Duration) *ExpirySweepWorker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &ExpirySweepWorker{notifications: notifications, retention: retention}
}

// Work removes expired rows.
func (w *ExpirySweepWorker) Work(ctx context.Context, _ *river.Job[ExpirySweepArgs]) error {
	if w == nil || w.notifications == nil {
		return fmt.Errorf("expiry sweep worker is not initialized")
	}

	now := time.Now().UTC()
	cutoff := now.Add(-w.retention)
	deleted, err := w.notifications.DeleteExpired(ctx, now, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired notifications before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("expiry sweep completed",
		zap.Int("deleted_rows", deleted),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("retention", w.retention),
	)
	return nil
}
