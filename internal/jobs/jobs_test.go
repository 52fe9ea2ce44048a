package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/store/memory"
)

func TestExpirySweepArgsKind(t *testing.T) {
	t.Parallel()

	if got := (ExpirySweepArgs{}).Kind(); got != "notification_expiry_sweep" {
		t.Fatalf("Kind() = %q, want %q", got, "notification_expiry_sweep")
	}
}

func TestExpirySweepArgsInsertOpts(t *testing.T) {
	t.Parallel()

	opts := (ExpirySweepArgs{}).InsertOpts()
	if opts.Queue != river.QueueDefault {
		t.Fatalf("Queue = %q, want %q", opts.Queue, river.QueueDefault)
	}
	if opts.MaxAttempts != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", opts.MaxAttempts)
	}
	if opts.UniqueOpts.ByPeriod != time.Hour {
		t.Fatalf("UniqueOpts.ByPeriod = %s, want %s", opts.UniqueOpts.ByPeriod, time.Hour)
	}
}

func TestNewExpirySweepWorkerRetention(t *testing.T) {
	t.Parallel()

	t.Run("defaults to ninety days when non-positive", func(t *testing.T) {
		w := NewExpirySweepWorker(nil, 0)
		if w.retention != DefaultRetention {
			t.Fatalf("retention = %s, want %s", w.retention, DefaultRetention)
		}
	})

	t.Run("uses explicit retention when provided", func(t *testing.T) {
		want := 7 * 24 * time.Hour
		w := NewExpirySweepWorker(nil, want)
		if w.retention != want {
			t.Fatalf("retention = %s, want %s", w.retention, want)
		}
	})
}

func TestExpirySweepWorkerWork_Uninitialized(t *testing.T) {
	t.Parallel()

	var w *ExpirySweepWorker
	err := w.Work(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("Work() = %v, want not-initialized error", err)
	}
}

func TestExpirySweepWorkerWork(t *testing.T) {
	t.Parallel()

	stores := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()
	expired := now.Add(-time.Hour)

	mk := func(expiresAt *time.Time, createdAt time.Time) string {
		n := &core.Notification{
			ID:        uuid.NewString(),
			UserID:    "u1",
			Type:      core.TypeFileUploaded,
			Priority:  core.PriorityMedium,
			ExpiresAt: expiresAt,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		if err := stores.Notifications.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
		return n.ID
	}

	expiredID := mk(&expired, now)
	ancientID := mk(nil, now.Add(-100*24*time.Hour))
	keptID := mk(nil, now)

	w := NewExpirySweepWorker(stores.Notifications, 90*24*time.Hour)
	if err := w.Work(ctx, nil); err != nil {
		t.Fatalf("Work() = %v", err)
	}

	for _, id := range []string{expiredID, ancientID} {
		if _, err := stores.Notifications.Get(ctx, id, "u1"); err == nil {
			t.Fatalf("notification %s survived the sweep", id)
		}
	}
	if _, err := stores.Notifications.Get(ctx, keptID, "u1"); err != nil {
		t.Fatalf("kept notification was deleted: %v", err)
	}
}

func TestRetrySweepArgsKind(t *testing.T) {
	t.Parallel()

	if got := (RetrySweepArgs{}).Kind(); got != "delivery_retry_sweep" {
		t.Fatalf("Kind() = %q, want %q", got, "delivery_retry_sweep")
	}
}

type fakeRedeliverer struct {
	seen []string
	fail map[string]bool
}

func (f *fakeRedeliverer) Redeliver(_ context.Context, d *core.Delivery) error {
	f.seen = append(f.seen, d.ID)
	if f.fail[d.ID] {
		return errors.New("transport down")
	}
	return nil
}

func TestRetrySweepWorkerWork(t *testing.T) {
	t.Parallel()

	stores := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	mkDelivery := func(status core.DeliveryStatus, attempts int) *core.Delivery {
		d := &core.Delivery{
			ID:             uuid.NewString(),
			NotificationID: uuid.NewString(),
			Channel:        core.ChannelEmail,
			Status:         status,
			Attempts:       attempts,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := stores.Deliveries.Create(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
		return d
	}

	reset := mkDelivery(core.DeliveryPending, 2)
	resetFailing := mkDelivery(core.DeliveryPending, 1)
	mkDelivery(core.DeliveryPending, 0)  // fresh, not retryable
	mkDelivery(core.DeliveryFailed, 3)   // terminal
	mkDelivery(core.DeliveryDelivered, 1)

	redeliverer := &fakeRedeliverer{fail: map[string]bool{resetFailing.ID: true}}
	w := NewRetrySweepWorker(stores.Deliveries, redeliverer)
	if err := w.Work(ctx, nil); err != nil {
		t.Fatalf("Work() = %v", err)
	}

	if len(redeliverer.seen) != 2 {
		t.Fatalf("redelivered %d records, want 2: %v", len(redeliverer.seen), redeliverer.seen)
	}
	want := map[string]bool{reset.ID: true, resetFailing.ID: true}
	for _, id := range redeliverer.seen {
		if !want[id] {
			t.Fatalf("unexpected redelivery of %s", id)
		}
	}
}

func TestRetrySweepWorkerWork_Uninitialized(t *testing.T) {
	t.Parallel()

	var w *RetrySweepWorker
	err := w.Work(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("Work() = %v, want not-initialized error", err)
	}
}
