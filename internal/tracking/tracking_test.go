package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/store"
	"fileops.io/notifyd/internal/store/memory"
)

func seedNotification(t *testing.T, stores *store.Stores, userID string, createdAt time.Time) *core.Notification {
	t.Helper()
	n := &core.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      core.TypeFileUploaded,
		Title:     "x",
		Priority:  core.PriorityMedium,
		Channels:  []core.Channel{core.ChannelEmail},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, stores.Notifications.Create(context.Background(), n))
	return n
}

func seedDelivery(t *testing.T, stores *store.Stores, n *core.Notification, ch core.Channel, status core.DeliveryStatus, attempts int, deliveredAfter time.Duration) *core.Delivery {
	t.Helper()
	d := &core.Delivery{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		Channel:        ch,
		Status:         status,
		Attempts:       attempts,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.CreatedAt,
	}
	if status == core.DeliveryDelivered {
		at := n.CreatedAt.Add(deliveredAfter)
		d.DeliveredAt = &at
	}
	if status == core.DeliveryFailed {
		at := n.CreatedAt.Add(deliveredAfter)
		d.FailedAt = &at
		d.ErrorMessage = "transport down"
	}
	require.NoError(t, stores.Deliveries.Create(context.Background(), d))
	return d
}

func TestDeliveryStats(t *testing.T) {
	stores := memory.New()
	s := NewService(stores)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	n1 := seedNotification(t, stores, "u1", base)
	seedDelivery(t, stores, n1, core.ChannelEmail, core.DeliveryDelivered, 1, 100*time.Millisecond)
	seedDelivery(t, stores, n1, core.ChannelInApp, core.DeliveryDelivered, 1, 300*time.Millisecond)

	n2 := seedNotification(t, stores, "u1", base.Add(time.Minute))
	seedDelivery(t, stores, n2, core.ChannelWebhook, core.DeliveryFailed, 3, 0)

	// Another user's rows stay out of the stats.
	other := seedNotification(t, stores, "u2", base)
	seedDelivery(t, stores, other, core.ChannelEmail, core.DeliveryDelivered, 1, time.Second)

	stats, err := s.DeliveryStats(ctx, "u1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[core.DeliveryDelivered])
	assert.Equal(t, 1, stats.ByStatus[core.DeliveryFailed])
	assert.Equal(t, 1, stats.ByChannel[core.ChannelEmail])
	assert.Equal(t, int64(200), stats.AvgLatencyMS)
}

func TestDeliveryStatsRange(t *testing.T) {
	stores := memory.New()
	s := NewService(stores)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	early := seedNotification(t, stores, "u1", base)
	seedDelivery(t, stores, early, core.ChannelEmail, core.DeliveryDelivered, 1, 100*time.Millisecond)

	late := seedNotification(t, stores, "u1", base.Add(time.Minute))
	seedDelivery(t, stores, late, core.ChannelWebhook, core.DeliveryFailed, 3, 0)

	from := base.Add(30 * time.Second)
	stats, err := s.DeliveryStats(ctx, "u1", &from, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByChannel[core.ChannelWebhook])
	assert.Zero(t, stats.ByChannel[core.ChannelEmail])

	to := base.Add(30 * time.Second)
	stats, err = s.DeliveryStats(ctx, "u1", nil, &to)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByChannel[core.ChannelEmail])
}

func TestHistoryOwnership(t *testing.T) {
	stores := memory.New()
	s := NewService(stores)
	ctx := context.Background()

	n := seedNotification(t, stores, "u1", time.Now().UTC())
	seedDelivery(t, stores, n, core.ChannelEmail, core.DeliveryDelivered, 1, time.Second)

	dels, err := s.History(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, dels, 1)

	_, err = s.History(ctx, n.ID, "intruder")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.AuditTrail(ctx, n.ID, "intruder")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRetryAllFailed(t *testing.T) {
	stores := memory.New()
	s := NewService(stores)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	n := seedNotification(t, stores, "u1", base)
	retryable := seedDelivery(t, stores, n, core.ChannelEmail, core.DeliveryFailed, 2, 0)
	exhausted := seedDelivery(t, stores, n, core.ChannelWebhook, core.DeliveryFailed, 3, 0)
	delivered := seedDelivery(t, stores, n, core.ChannelInApp, core.DeliveryDelivered, 1, time.Second)

	reset, err := s.RetryAllFailed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := stores.Deliveries.Get(ctx, retryable.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryPending, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.Nil(t, got.FailedAt)

	got, err = stores.Deliveries.Get(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryFailed, got.Status)

	got, err = stores.Deliveries.Get(ctx, delivered.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryDelivered, got.Status)

	// The reset record now shows up for the redelivery sweep.
	pending, err := stores.Deliveries.ListRetryable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, retryable.ID, pending[0].ID)

	// And a retried audit entry exists.
	audits, err := stores.Audits.ListByNotification(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, core.AuditRetried, audits[0].Action)
}
