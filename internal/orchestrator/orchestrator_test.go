package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileops.io/notifyd/internal/channel"
	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/events"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/preference"
	"fileops.io/notifyd/internal/store"
	"fileops.io/notifyd/internal/store/memory"
	"fileops.io/notifyd/internal/template"
)

// fakeAdapter records calls and fails a configurable number of times before
// succeeding. failuresLeft < 0 fails forever.
type fakeAdapter struct {
	ch           core.Channel
	mu           sync.Mutex
	calls        int
	failuresLeft int
	panics       bool
}

func (a *fakeAdapter) Channel() core.Channel { return a.ch }

func (a *fakeAdapter) Deliver(context.Context, *core.Notification, *core.Preferences) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.panics {
		panic("adapter exploded")
	}
	if a.failuresLeft != 0 {
		if a.failuresLeft > 0 {
			a.failuresLeft--
		}
		return errors.New("transport down")
	}
	return nil
}

type fixture struct {
	orch    *Orchestrator
	stores  *store.Stores
	bus     *events.Bus
	inApp   *fakeAdapter
	email   *fakeAdapter
	webhook *fakeAdapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := memory.New()
	inApp := &fakeAdapter{ch: core.ChannelInApp}
	email := &fakeAdapter{ch: core.ChannelEmail}
	wh := &fakeAdapter{ch: core.ChannelWebhook}
	bus := events.NewBus()

	retry := channel.RetryPolicy{MaxAttempts: 3, Base: time.Second}.
		WithSleeper(func(context.Context, time.Duration) error { return nil })

	orch := New(stores, preference.NewResolver(stores.Preferences), template.NewRegistry(),
		channel.NewRegistry(inApp, email, wh), retry, bus)
	return &fixture{orch: orch, stores: stores, bus: bus, inApp: inApp, email: email, webhook: wh}
}

func TestSendHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var published []events.Kind
	f.bus.Subscribe(nil, func(_ context.Context, ev events.Event) {
		published = append(published, ev.Kind)
	})

	res, err := f.orch.Send(ctx, SendInput{
		UserID:  "u1",
		Type:    core.TypeFileUploaded,
		Title:   "File uploaded",
		Message: "report.pdf is ready",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Equal(t, core.PriorityMedium, res.Notification.Priority)
	assert.Equal(t, []core.Channel{core.ChannelInApp}, res.Notification.Channels)
	assert.True(t, res.Results[core.ChannelInApp].Success)

	// Delivery record reached its terminal state.
	dels, err := f.stores.Deliveries.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	require.Len(t, dels, 1)
	assert.Equal(t, core.DeliveryDelivered, dels[0].Status)
	assert.Equal(t, 1, dels[0].Attempts)

	// Audit trail: created then delivered.
	audits, err := f.stores.Audits.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, core.AuditCreated, audits[0].Action)
	assert.Equal(t, core.AuditDelivered, audits[1].Action)

	assert.Equal(t, []events.Kind{events.KindCreated, events.KindDelivered}, published)
}

func TestSendRejectsDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := core.DefaultPreferences("u1")
	p.Enabled = false
	require.NoError(t, f.stores.Preferences.Put(ctx, p))

	_, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotificationsDisabled, appErr.Code)

	// Nothing was persisted for the rejected send.
	page, err := f.orch.List(ctx, "u1", store.NotificationFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Send(ctx, SendInput{Type: core.TypeFileUploaded})
	require.Error(t, err)

	_, err = f.orch.Send(ctx, SendInput{UserID: "u1", Type: "bogus"})
	require.Error(t, err)

	_, err = f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Priority: "asap"})
	require.Error(t, err)

	_, err = f.orch.Send(ctx, SendInput{
		UserID: "u1", Type: core.TypeFileUploaded,
		Channels: []core.Channel{"pigeon"},
	})
	require.Error(t, err)
}

func TestSendChannelFailureDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.email.failuresLeft = -1
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{
		UserID:   "u1",
		Type:     core.TypeFileUploaded,
		Title:    "x",
		Channels: []core.Channel{core.ChannelInApp, core.ChannelEmail},
	})
	require.NoError(t, err)
	assert.True(t, res.Results[core.ChannelInApp].Success)
	assert.False(t, res.Results[core.ChannelEmail].Success)
	assert.NotEmpty(t, res.Results[core.ChannelEmail].Error)

	dels, err := f.stores.Deliveries.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	byChannel := map[core.Channel]*core.Delivery{}
	for _, d := range dels {
		byChannel[d.Channel] = d
	}
	assert.Equal(t, core.DeliveryDelivered, byChannel[core.ChannelInApp].Status)
	assert.Equal(t, core.DeliveryFailed, byChannel[core.ChannelEmail].Status)
	assert.Equal(t, 3, byChannel[core.ChannelEmail].Attempts)
	assert.NotEmpty(t, byChannel[core.ChannelEmail].ErrorMessage)
}

func TestSendRetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	f.email.failuresLeft = 2
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{
		UserID: "u1", Type: core.TypeFileUploaded, Title: "x",
		Channels: []core.Channel{core.ChannelEmail},
	})
	require.NoError(t, err)
	assert.True(t, res.Results[core.ChannelEmail].Success)
	assert.Equal(t, 3, f.email.calls)

	dels, err := f.stores.Deliveries.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	require.Len(t, dels, 1)
	assert.Equal(t, core.DeliveryDelivered, dels[0].Status)
	assert.Equal(t, 3, dels[0].Attempts)
}

func TestSendAdapterPanicIsConfined(t *testing.T) {
	f := newFixture(t)
	f.webhook.panics = true
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{
		UserID: "u1", Type: core.TypeFileUploaded, Title: "x",
		Channels: []core.Channel{core.ChannelInApp, core.ChannelWebhook},
	})
	require.NoError(t, err)
	assert.True(t, res.Results[core.ChannelInApp].Success)
	assert.False(t, res.Results[core.ChannelWebhook].Success)
	assert.Contains(t, res.Results[core.ChannelWebhook].Error, "panic")
}

func TestSendEmptyChannelSetStillRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := core.DefaultPreferences("u1")
	p.Channels[core.ChannelInApp] = core.ChannelPreference{Enabled: false}
	require.NoError(t, f.stores.Preferences.Put(ctx, p))

	res, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, res.Notification.Channels)
	assert.Empty(t, res.Results)

	got, err := f.orch.Get(ctx, res.Notification.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, res.Notification.ID, got.ID)

	dels, err := f.stores.Deliveries.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	assert.Empty(t, dels)
}

func TestSendTemplateRendering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("explicit template id renders over raw text", func(t *testing.T) {
		res, err := f.orch.Send(ctx, SendInput{
			UserID:     "u1",
			Type:       core.TypeFileUploaded,
			Title:      "ignored",
			TemplateID: "default-file-uploaded",
			Data:       map[string]interface{}{"fileName": "report.pdf", "fileSize": "2 MB"},
		})
		require.NoError(t, err)
		assert.Equal(t, "File uploaded: report.pdf", res.Notification.Title)
		assert.Contains(t, res.Notification.Message, "report.pdf (2 MB)")
	})

	t.Run("raw text wins without a template id", func(t *testing.T) {
		res, err := f.orch.Send(ctx, SendInput{
			UserID: "u1", Type: core.TypeFileUploaded,
			Title: "Custom title", Message: "Custom body",
		})
		require.NoError(t, err)
		assert.Equal(t, "Custom title", res.Notification.Title)
		assert.Equal(t, "Custom body", res.Notification.Message)
	})

	t.Run("type default fills empty text", func(t *testing.T) {
		res, err := f.orch.Send(ctx, SendInput{
			UserID: "u1", Type: core.TypeFileUploaded,
			Data: map[string]interface{}{"fileName": "a.txt", "fileSize": "1 KB"},
		})
		require.NoError(t, err)
		assert.Equal(t, "File uploaded: a.txt", res.Notification.Title)
	})
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
	require.NoError(t, err)

	readEvents := 0
	f.bus.Subscribe(events.KindIs(events.KindRead), func(context.Context, events.Event) {
		readEvents++
	})

	n, err := f.orch.MarkRead(ctx, res.Notification.ID, "u1")
	require.NoError(t, err)
	assert.True(t, n.Read)
	require.NotNil(t, n.ReadAt)
	firstReadAt := *n.ReadAt

	n, err = f.orch.MarkRead(ctx, res.Notification.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, firstReadAt, *n.ReadAt)
	assert.Equal(t, 1, readEvents)

	_, err = f.orch.MarkRead(ctx, res.Notification.ID, "intruder")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
	require.NoError(t, err)

	require.NoError(t, f.orch.Delete(ctx, res.Notification.ID, "u1"))
	_, err = f.orch.Get(ctx, res.Notification.ID, "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	audits, err := f.stores.Audits.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	assert.Equal(t, core.AuditDeleted, audits[len(audits)-1].Action)
}

func TestUnreadCountTracksReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
		require.NoError(t, err)
	}

	count, err := f.orch.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	marked, err := f.orch.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	count, err = f.orch.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

// hangUpAdapter simulates the caller disconnecting while delivery is in
// flight: it cancels the request context and reports whether the delivery
// context noticed.
type hangUpAdapter struct {
	cancel context.CancelFunc
}

func (a *hangUpAdapter) Channel() core.Channel { return core.ChannelEmail }

func (a *hangUpAdapter) Deliver(ctx context.Context, _ *core.Notification, _ *core.Preferences) error {
	a.cancel()
	return ctx.Err()
}

func TestSendContinuesAfterCallerHangsUp(t *testing.T) {
	stores := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &hangUpAdapter{cancel: cancel}
	retry := channel.RetryPolicy{MaxAttempts: 3, Base: time.Second}.
		WithSleeper(func(context.Context, time.Duration) error { return nil })
	orch := New(stores, preference.NewResolver(stores.Preferences), template.NewRegistry(),
		channel.NewRegistry(adapter), retry, events.NewBus())

	res, err := orch.Send(ctx, SendInput{
		UserID: "u1", Type: core.TypeFileUploaded, Title: "x",
		Channels: []core.Channel{core.ChannelEmail},
	})
	require.NoError(t, err)
	assert.True(t, res.Results[core.ChannelEmail].Success)

	dels, err := stores.Deliveries.ListByNotification(context.Background(), res.Notification.ID)
	require.NoError(t, err)
	require.Len(t, dels, 1)
	assert.Equal(t, core.DeliveryDelivered, dels[0].Status)
}

func TestSendRejectsEmptyText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The system-alert default template renders title/message from the data
	// bag, so an empty bag leaves nothing to deliver.
	_, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeSystemAlert})
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeMissingField, appErr.Code)

	page, err := f.orch.List(ctx, "u1", store.NotificationFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestMarkAllReadAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
	require.NoError(t, err)
	second, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "y"})
	require.NoError(t, err)

	marked, err := f.orch.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, marked)

	for _, n := range []*core.Notification{first.Notification, second.Notification} {
		audits, err := f.stores.Audits.ListByNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, core.AuditRead, audits[len(audits)-1].Action)
	}
}

func TestDeleteAllAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{UserID: "u1", Type: core.TypeFileUploaded, Title: "x"})
	require.NoError(t, err)

	deleted, err := f.orch.DeleteAll(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	audits, err := f.stores.Audits.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	assert.Equal(t, core.AuditDeleted, audits[len(audits)-1].Action)
}

func TestSendBulkContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := core.DefaultPreferences("u2")
	p.Enabled = false
	require.NoError(t, f.stores.Preferences.Put(ctx, p))

	res, err := f.orch.SendBulk(ctx, []string{"u1", "u2", "u3"}, SendInput{
		Type: core.TypeSystemAlert, Title: "Maintenance window",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)

	byUser := map[string]BulkItem{}
	for _, item := range res.Items {
		byUser[item.UserID] = item
	}
	assert.NotEmpty(t, byUser["u1"].NotificationID)
	assert.NotEmpty(t, byUser["u2"].Error)
	assert.NotEmpty(t, byUser["u3"].NotificationID)
}

func TestRedeliverContinuesAttemptLineage(t *testing.T) {
	f := newFixture(t)
	f.email.failuresLeft = -1
	ctx := context.Background()

	res, err := f.orch.Send(ctx, SendInput{
		UserID: "u1", Type: core.TypeFileUploaded, Title: "x",
		Channels: []core.Channel{core.ChannelEmail},
	})
	require.NoError(t, err)

	dels, err := f.stores.Deliveries.ListByNotification(ctx, res.Notification.ID)
	require.NoError(t, err)
	require.Len(t, dels, 1)
	d := dels[0]
	require.Equal(t, core.DeliveryFailed, d.Status)
	require.Equal(t, 3, d.Attempts)

	// Manual retry resets to pending; the sweep then redelivers.
	d.Status = core.DeliveryPending
	require.NoError(t, f.stores.Deliveries.Update(ctx, d))

	f.email.mu.Lock()
	f.email.failuresLeft = 0
	f.email.mu.Unlock()

	require.NoError(t, f.orch.Redeliver(ctx, d))
	got, err := f.stores.Deliveries.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryDelivered, got.Status)
	assert.Equal(t, 4, got.Attempts)
}
