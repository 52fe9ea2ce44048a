package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/store/memory"
	"fileops.io/notifyd/internal/webhook"
)

func testNotification(userID string) *core.Notification {
	return &core.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      core.TypeFileUploaded,
		Title:     "File uploaded",
		Message:   "report.pdf finished uploading",
		Priority:  core.PriorityMedium,
		CreatedAt: time.Now().UTC(),
	}
}

type fakeMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func TestEmailAdapterSends(t *testing.T) {
	mailer := &fakeMailer{}
	a := NewEmailAdapter(mailer)

	prefs := core.DefaultPreferences("u1")
	prefs.Channels[core.ChannelEmail] = core.ChannelPreference{Enabled: true, Address: "u1@example.com"}

	n := testNotification("u1")
	require.NoError(t, a.Deliver(context.Background(), n, prefs))
	assert.Equal(t, "u1@example.com", mailer.to)
	assert.Equal(t, n.Title, mailer.subject)
	assert.Equal(t, n.Message, mailer.body)
}

func TestEmailAdapterMissingAddressIsPermanent(t *testing.T) {
	a := NewEmailAdapter(&fakeMailer{})
	prefs := core.DefaultPreferences("u1")

	err := a.Deliver(context.Background(), testNotification("u1"), prefs)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoRecipientAddress)

	// The retry loop must not burn attempts on it.
	attempts, err := DefaultRetryPolicy().
		WithSleeper(func(context.Context, time.Duration) error { return nil }).
		Do(context.Background(), func(ctx context.Context) error {
			return a.Deliver(ctx, testNotification("u1"), prefs)
		})
	assert.ErrorIs(t, err, apperrors.ErrNoRecipientAddress)
	assert.Equal(t, 1, attempts)
}

type countPusher struct {
	calls int
}

func (p *countPusher) Push(_ context.Context, _ string, _ *core.Notification) int {
	p.calls++
	return 2
}

func TestInAppAdapterNeverFails(t *testing.T) {
	ctx := context.Background()
	n := testNotification("u1")
	prefs := core.DefaultPreferences("u1")

	assert.NoError(t, NewInAppAdapter(nil).Deliver(ctx, n, prefs))

	pusher := &countPusher{}
	assert.NoError(t, NewInAppAdapter(pusher).Deliver(ctx, n, prefs))
	assert.Equal(t, 1, pusher.calls)
}

func newWebhookFixture(t *testing.T, urls ...string) (*webhook.Service, *core.Notification) {
	t.Helper()
	svc := webhook.NewService(memory.New().Webhooks, nil)
	for _, u := range urls {
		_, err := svc.Create(context.Background(), "u1", webhook.CreateInput{
			URL:    u,
			Events: []core.Type{core.TypeFileUploaded},
		})
		require.NoError(t, err)
	}
	return svc, testNotification("u1")
}

// fastRetry keeps per-registration backoff out of the test clock.
func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: time.Millisecond}
}

func TestWebhookAdapterZeroMatchesIsSuccess(t *testing.T) {
	svc, n := newWebhookFixture(t)
	a := NewWebhookAdapter(svc, nil, nil)
	assert.NoError(t, a.Deliver(context.Background(), n, nil))
}

func TestWebhookAdapterSignsAndPosts(t *testing.T) {
	var gotSig atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig.Store(r.Header.Get(webhook.SignatureHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, n := newWebhookFixture(t, srv.URL)
	a := NewWebhookAdapter(svc, srv.Client(), nil)

	require.NoError(t, a.Deliver(context.Background(), n, nil))
	sig, _ := gotSig.Load().(string)
	assert.Contains(t, sig, "sha256=")
}

func TestWebhookAdapterPartialSuccessIsSuccess(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	svc, n := newWebhookFixture(t, ok.URL, bad.URL)
	a := NewWebhookAdapter(svc, http.DefaultClient, nil).WithRetry(fastRetry())

	require.NoError(t, a.Deliver(context.Background(), n, nil))

	// The failing registration's counter moved once despite its internal
	// retries; the succeeding one's did not.
	hooks, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	var failures []int
	for _, h := range hooks {
		failures = append(failures, h.FailureCount)
	}
	assert.ElementsMatch(t, []int{0, 1}, failures)
}

func TestWebhookAdapterAllFailuresIsError(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	svc, n := newWebhookFixture(t, bad.URL)
	a := NewWebhookAdapter(svc, http.DefaultClient, nil).WithRetry(fastRetry())

	// The adapter already retried each registration itself, so the error is
	// permanent and an outer retry policy must not re-run the fan-out.
	err := a.Deliver(context.Background(), n, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*permanentError)))
}

func TestWebhookAdapterAutoDisable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	svc, n := newWebhookFixture(t, bad.URL)
	a := NewWebhookAdapter(svc, http.DefaultClient, nil).WithRetry(fastRetry())
	ctx := context.Background()

	for i := 0; i < core.WebhookDisableThreshold; i++ {
		require.Error(t, a.Deliver(ctx, n, nil))
	}

	hooks, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.False(t, hooks[0].Active)

	// Disabled registration no longer matches, so the channel now trivially
	// succeeds.
	assert.NoError(t, a.Deliver(ctx, n, nil))
}

func TestWebhookAdapterCountsOneFailurePerLineage(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	ctx := context.Background()
	stores := memory.New()
	svc := webhook.NewService(stores.Webhooks, nil)
	h, err := svc.Create(ctx, "u1", webhook.CreateInput{
		URL:    bad.URL,
		Events: []core.Type{core.TypeFileUploaded},
	})
	require.NoError(t, err)
	h.FailureCount = core.WebhookDisableThreshold - 1
	require.NoError(t, stores.Webhooks.Update(ctx, h))

	n := testNotification("u1")
	a := NewWebhookAdapter(svc, http.DefaultClient, nil).WithRetry(fastRetry())

	// Drive the adapter the way the delivery pipeline does: through an outer
	// retry policy. The channel must end failed, after one outer attempt,
	// with the failure counter moved exactly once.
	attempts, err := DefaultRetryPolicy().
		WithSleeper(func(context.Context, time.Duration) error { return nil }).
		Do(ctx, func(ctx context.Context) error {
			return a.Deliver(ctx, n, nil)
		})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	got, err := svc.Get(ctx, h.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.WebhookDisableThreshold, got.FailureCount)
	assert.False(t, got.Active)
}

func TestWebhookAdapterWireFormat(t *testing.T) {
	type received struct {
		headers http.Header
		body    []byte
	}
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(received{headers: r.Header.Clone(), body: body})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, n := newWebhookFixture(t, srv.URL)
	a := NewWebhookAdapter(svc, srv.Client(), nil)

	ctx := WithDeliveryID(context.Background(), "d-123")
	require.NoError(t, a.Deliver(ctx, n, nil))

	rec, ok := got.Load().(received)
	require.True(t, ok)
	assert.NotEmpty(t, rec.headers.Get("X-Webhook-Id"))
	assert.Equal(t, "d-123", rec.headers.Get("X-Delivery-Id"))
	assert.Equal(t, string(core.TypeFileUploaded), rec.headers.Get("X-Event-Type"))

	var payload struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
		Data      struct {
			NotificationID string `json:"notificationId"`
			Title          string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &payload))
	assert.NotEmpty(t, payload.ID)
	assert.NotEmpty(t, payload.Timestamp)
	assert.Equal(t, n.ID, payload.Data.NotificationID)
	assert.Equal(t, n.Title, payload.Data.Title)
}
