package webhook

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/store"
)

// maxPerUser caps registrations per user.
const maxPerUser = 20

// testTimeout bounds the /test probe; shorter than delivery because a human
// is waiting on the response.
const testTimeout = 10 * time.Second

// CreateInput is the caller-supplied part of a registration.
type CreateInput struct {
	URL      string            `json:"url"`
	Events   []core.Type       `json:"events"`
	TenantID string            `json:"tenantId,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// UpdateInput carries optional field changes; nil means leave as is.
type UpdateInput struct {
	URL     *string            `json:"url,omitempty"`
	Events  *[]core.Type       `json:"events,omitempty"`
	Active  *bool              `json:"active,omitempty"`
	Headers *map[string]string `json:"headers,omitempty"`
}

// TestResult is the outcome of probing an endpoint. Transport failures are
// reported inside the result, not as an error, so the handler always gets a
// 200 with the diagnosis.
type TestResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Service owns webhook registrations.
type Service struct {
	webhooks store.WebhookStore
	client   *http.Client
}

func NewService(webhooks store.WebhookStore, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: testTimeout}
	}
	return &Service{webhooks: webhooks, client: client}
}

// Create registers a new endpoint and returns it with the generated secret
// populated. This is the only time the secret is handed back in full.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*core.Webhook, error) {
	if err := validateTarget(in.URL, in.Events); err != nil {
		return nil, err
	}
	existing, err := s.webhooks.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for %s: %w", userID, err)
	}
	if len(existing) >= maxPerUser {
		return nil, apperrors.BadRequest(apperrors.CodeWebhookLimitReached,
			fmt.Sprintf("webhook limit of %d reached", maxPerUser))
	}

	now := time.Now().UTC()
	w := &core.Webhook{
		ID:        uuid.NewString(),
		UserID:    userID,
		TenantID:  in.TenantID,
		URL:       in.URL,
		Secret:    newSecret(),
		Events:    in.Events,
		Active:    true,
		Headers:   in.Headers,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.webhooks.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	logger.Info("webhook registered",
		zap.String("webhookID", w.ID), zap.String("userID", userID))
	return w, nil
}

// Get returns one registration owned by userID.
func (s *Service) Get(ctx context.Context, id, userID string) (*core.Webhook, error) {
	return s.webhooks.Get(ctx, id, userID)
}

// List returns the user's registrations.
func (s *Service) List(ctx context.Context, userID string) ([]*core.Webhook, error) {
	return s.webhooks.ListByUser(ctx, userID)
}

// Update applies field changes. Re-activating a registration clears its
// failure count so the circuit breaker starts fresh.
func (s *Service) Update(ctx context.Context, id, userID string, in UpdateInput) (*core.Webhook, error) {
	w, err := s.webhooks.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if in.URL != nil {
		if err := validateURL(*in.URL); err != nil {
			return nil, err
		}
		w.URL = *in.URL
	}
	if in.Events != nil {
		if err := validateEvents(*in.Events); err != nil {
			return nil, err
		}
		w.Events = *in.Events
	}
	if in.Active != nil {
		if *in.Active && !w.Active {
			w.FailureCount = 0
		}
		w.Active = *in.Active
	}
	if in.Headers != nil {
		w.Headers = *in.Headers
	}
	w.UpdatedAt = time.Now().UTC()
	if err := s.webhooks.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("update webhook %s: %w", id, err)
	}
	return w, nil
}

// Delete removes a registration.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.webhooks.Delete(ctx, id, userID)
}

// RegenerateSecret rotates the signing secret and returns the registration
// with the new secret populated.
func (s *Service) RegenerateSecret(ctx context.Context, id, userID string) (*core.Webhook, error) {
	w, err := s.webhooks.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	w.Secret = newSecret()
	w.UpdatedAt = time.Now().UTC()
	if err := s.webhooks.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("rotate webhook secret %s: %w", id, err)
	}
	logger.Info("webhook secret rotated", zap.String("webhookID", id))
	return w, nil
}

// Test sends a signed synthetic payload to the endpoint and reports the
// outcome without touching the failure counter.
func (s *Service) Test(ctx context.Context, id, userID string) (*TestResult, error) {
	w, err := s.webhooks.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"type":      "webhook_test",
		"webhookId": w.ID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal test payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return &TestResult{Success: false, Error: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(w.Secret, payload))
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &TestResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return &TestResult{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}, nil
}

// RecordSuccess resets the failure counter after a delivered callback.
func (s *Service) RecordSuccess(ctx context.Context, w *core.Webhook) error {
	now := time.Now().UTC()
	w.FailureCount = 0
	w.LastDeliveryAt = &now
	w.LastDeliveryStatus = "success"
	w.UpdatedAt = now
	return s.webhooks.Update(ctx, w)
}

// RecordFailure bumps the failure counter and force-disables the registration
// once it crosses the threshold.
func (s *Service) RecordFailure(ctx context.Context, w *core.Webhook) error {
	now := time.Now().UTC()
	w.FailureCount++
	w.LastDeliveryAt = &now
	w.LastDeliveryStatus = "failed"
	w.UpdatedAt = now
	if w.FailureCount >= core.WebhookDisableThreshold && w.Active {
		w.Active = false
		logger.Warn("webhook auto-disabled after consecutive failures",
			zap.String("webhookID", w.ID), zap.Int("failureCount", w.FailureCount))
	}
	return s.webhooks.Update(ctx, w)
}

// ActiveMatching returns active registrations subscribed to the
// notification's type for its user or tenant.
func (s *Service) ActiveMatching(ctx context.Context, n *core.Notification) ([]*core.Webhook, error) {
	return s.webhooks.ListActiveMatching(ctx, n.UserID, n.TenantID, n.Type)
}

func newSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return "whsec_" + hex.EncodeToString(buf)
}

func validateTarget(rawURL string, events []core.Type) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	return validateEvents(events)
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.BadRequest(apperrors.CodeInvalidRequestField,
			"webhook url must be an absolute http(s) URL")
	}
	return nil
}

func validateEvents(events []core.Type) error {
	if len(events) == 0 {
		return apperrors.BadRequest(apperrors.CodeMissingField,
			"webhook must subscribe to at least one event type")
	}
	for _, t := range events {
		if !t.Valid() {
			return apperrors.BadRequest(apperrors.CodeInvalidRequestField,
				fmt.Sprintf("unknown event type %q", t))
		}
	}
	return nil
}
