package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/pkg/worker"
	"fileops.io/notifyd/internal/webhook"
)

// callTimeout bounds each outbound webhook call.
const callTimeout = 30 * time.Second

// WebhookAdapter posts signed JSON payloads to every active registration
// matching the notification. Registrations are called in parallel, each with
// its own retry lineage; the channel succeeds when at least one registration
// lands, and trivially when no registrations match.
type WebhookAdapter struct {
	service *webhook.Service
	client  *http.Client
	pool    *worker.Pool
	retry   RetryPolicy
}

// NewWebhookAdapter builds the adapter. A nil pool falls back to plain
// goroutines, which the tests use.
func NewWebhookAdapter(service *webhook.Service, client *http.Client, pool *worker.Pool) *WebhookAdapter {
	if client == nil {
		client = &http.Client{Timeout: callTimeout}
	}
	return &WebhookAdapter{service: service, client: client, pool: pool, retry: DefaultRetryPolicy()}
}

// WithRetry replaces the per-registration retry policy.
func (a *WebhookAdapter) WithRetry(p RetryPolicy) *WebhookAdapter {
	a.retry = p
	return a
}

func (a *WebhookAdapter) Channel() core.Channel { return core.ChannelWebhook }

func (a *WebhookAdapter) Deliver(ctx context.Context, n *core.Notification, _ *core.Preferences) error {
	hooks, err := a.service.ActiveMatching(ctx, n)
	if err != nil {
		return fmt.Errorf("list matching webhooks: %w", err)
	}
	if len(hooks) == 0 {
		return nil
	}

	payload, err := json.Marshal(webhookPayload(n))
	if err != nil {
		return Permanent(fmt.Errorf("marshal webhook payload: %w", err))
	}

	eventType := string(n.Type)
	deliveryID := DeliveryIDFrom(ctx)

	results := make([]error, len(hooks))
	var wg sync.WaitGroup
	for i, h := range hooks {
		wg.Add(1)
		i, h := i, h
		call := func(ctx context.Context) {
			defer wg.Done()
			_, err := a.retry.Do(ctx, func(ctx context.Context) error {
				return a.post(ctx, h, payload, eventType, deliveryID)
			})
			results[i] = err
		}
		if a.pool != nil {
			if err := a.pool.Submit(ctx, call); err == nil {
				continue
			}
			// Pool rejected the task; run inline rather than dropping the hook.
		}
		go call(ctx)
	}
	wg.Wait()

	// One failure count per exhausted registration lineage, not per attempt.
	succeeded := 0
	var lastErr error
	for i, h := range hooks {
		if results[i] == nil {
			succeeded++
			if err := a.service.RecordSuccess(ctx, h); err != nil {
				logger.Warn("record webhook success", zap.String("webhookID", h.ID), zap.Error(err))
			}
			continue
		}
		lastErr = results[i]
		logger.Warn("webhook delivery exhausted retries",
			zap.String("webhookID", h.ID),
			zap.String("notificationID", n.ID),
			zap.Error(results[i]))
		if err := a.service.RecordFailure(ctx, h); err != nil {
			logger.Warn("record webhook failure", zap.String("webhookID", h.ID), zap.Error(err))
		}
	}

	if succeeded > 0 {
		return nil
	}
	// Every registration already ran its own retries; the caller's policy
	// must not re-run the fan-out.
	return Permanent(fmt.Errorf("all %d webhook calls failed: %w", len(hooks), lastErr))
}

func (a *WebhookAdapter) post(ctx context.Context, h *core.Webhook, payload []byte, eventType, deliveryID string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(h.Secret, payload))
	req.Header.Set("X-Webhook-Id", h.ID)
	req.Header.Set("X-Event-Type", eventType)
	if deliveryID != "" {
		req.Header.Set("X-Delivery-Id", deliveryID)
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// webhookPayload is the envelope third parties receive. The top-level id
// identifies this event, not the notification; the notification ID lives in
// data.notificationId.
func webhookPayload(n *core.Notification) map[string]any {
	eventID, _ := uuid.NewV7()
	return map[string]any{
		"id":        eventID.String(),
		"type":      n.Type,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"notificationId": n.ID,
			"title":          n.Title,
			"message":        n.Message,
			"priority":       n.Priority,
			"payload":        n.Data,
		},
	}
}
