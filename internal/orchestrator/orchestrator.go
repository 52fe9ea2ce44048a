// Package orchestrator is the send pipeline: validate, resolve channels,
// render, persist, dispatch to channel adapters concurrently and report the
// per-channel outcome.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/channel"
	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/events"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/preference"
	"fileops.io/notifyd/internal/store"
	"fileops.io/notifyd/internal/template"
)

// SendInput is one send request.
type SendInput struct {
	UserID     string                 `json:"userId"`
	TenantID   string                 `json:"tenantId,omitempty"`
	Type       core.Type              `json:"type"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Priority   core.Priority          `json:"priority,omitempty"`
	Channels   []core.Channel         `json:"channels,omitempty"`
	TemplateID string                 `json:"templateId,omitempty"`
	ExpiresAt  *time.Time             `json:"expiresAt,omitempty"`
}

// SendResult is the synchronous outcome of a send: the persisted notification
// plus one result per resolved channel. Channel failures do not fail the send.
type SendResult struct {
	Notification *core.Notification                  `json:"notification"`
	Results      map[core.Channel]core.ChannelResult `json:"results"`
}

// Orchestrator coordinates the delivery pipeline.
type Orchestrator struct {
	stores    *store.Stores
	resolver  *preference.Resolver
	templates *template.Registry
	adapters  channel.Registry
	retry     channel.RetryPolicy
	bus       *events.Bus

	now func() time.Time
}

// New assembles the orchestrator.
func New(stores *store.Stores, resolver *preference.Resolver, templates *template.Registry, adapters channel.Registry, retry channel.RetryPolicy, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		stores:    stores,
		resolver:  resolver,
		templates: templates,
		adapters:  adapters,
		retry:     retry,
		bus:       bus,
		now:       time.Now,
	}
}

// WithClock replaces the wall clock. Test hook.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Send runs the full pipeline. It returns an error only when the send itself
// is rejected (validation, disabled user, storage failure); individual
// channel failures are reported in the result map.
func (o *Orchestrator) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if err := validateSend(&in); err != nil {
		return nil, err
	}

	prefs, err := o.resolver.Load(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !prefs.Enabled {
		return nil, apperrors.Forbidden(apperrors.CodeNotificationsDisabled,
			"user has notifications disabled").WithParams(map[string]interface{}{"userId": in.UserID})
	}

	channels := o.resolver.ResolveWith(prefs, in.Type, in.Priority, in.Channels)
	title, message := o.render(in)
	if title == "" && message == "" {
		return nil, apperrors.BadRequest(apperrors.CodeMissingField,
			"title or message is required when no template text renders")
	}

	now := o.now().UTC()
	n := &core.Notification{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		TenantID:   in.TenantID,
		Type:       in.Type,
		Title:      title,
		Message:    message,
		Data:       in.Data,
		Priority:   in.Priority,
		Channels:   channels,
		TemplateID: in.TemplateID,
		ExpiresAt:  in.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.stores.Notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	o.audit(ctx, n, core.AuditCreated, "", map[string]interface{}{
		"channels": channels,
	})
	o.bus.Publish(ctx, events.Event{Kind: events.KindCreated, Notification: n})

	// Delivery is fire-and-continue once the notification is persisted; the
	// caller hanging up must not abort in-flight channel work.
	results := o.dispatch(context.WithoutCancel(ctx), n, prefs)
	return &SendResult{Notification: n, Results: results}, nil
}

// dispatch runs every resolved channel concurrently and waits for all of
// them. A panicking adapter is confined to its channel's result.
func (o *Orchestrator) dispatch(ctx context.Context, n *core.Notification, prefs *core.Preferences) map[core.Channel]core.ChannelResult {
	results := make(map[core.Channel]core.ChannelResult, len(n.Channels))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ch := range n.Channels {
		wg.Add(1)
		go func(ch core.Channel) {
			defer wg.Done()
			res := o.deliverChannel(ctx, n, prefs, ch, nil)
			mu.Lock()
			results[ch] = res
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return results
}

// deliverChannel runs one channel's delivery with retries, maintaining the
// delivery record through the attempt lineage. When existing is non-nil the
// attempts continue an earlier record instead of starting a new one; the
// redelivery sweep uses that path.
func (o *Orchestrator) deliverChannel(ctx context.Context, n *core.Notification, prefs *core.Preferences, ch core.Channel, existing *core.Delivery) (res core.ChannelResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("channel adapter panicked",
				zap.String("channel", string(ch)),
				zap.String("notificationID", n.ID),
				zap.Any("panic", r),
			)
			res = core.ChannelResult{Success: false, Error: fmt.Sprintf("adapter panic: %v", r)}
		}
	}()

	now := o.now().UTC()
	d := existing
	if d == nil {
		d = &core.Delivery{
			ID:             uuid.NewString(),
			NotificationID: n.ID,
			Channel:        ch,
			Status:         core.DeliveryPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if ch == core.ChannelEmail {
			d.RecipientAddress = prefs.ChannelAddress(core.ChannelEmail)
		}
		if err := o.stores.Deliveries.Create(ctx, d); err != nil {
			logger.Error("persist delivery record",
				zap.String("notificationID", n.ID), zap.Error(err))
			return core.ChannelResult{Success: false, Error: "persist delivery record failed"}
		}
	}

	adapter, ok := o.adapters[ch]
	if !ok {
		o.finishDelivery(ctx, n, d, fmt.Errorf("no adapter for channel %s", ch))
		return core.ChannelResult{Success: false, Error: "channel not configured"}
	}

	attempts, err := o.retry.Do(channel.WithDeliveryID(ctx, d.ID), func(ctx context.Context) error {
		return adapter.Deliver(ctx, n, prefs)
	})
	d.Attempts += attempts

	o.finishDelivery(ctx, n, d, err)
	if err != nil {
		return core.ChannelResult{Success: false, Error: err.Error()}
	}
	return core.ChannelResult{Success: true}
}

// finishDelivery moves the record to its terminal state and writes the
// matching audit entry.
func (o *Orchestrator) finishDelivery(ctx context.Context, n *core.Notification, d *core.Delivery, deliverErr error) {
	now := o.now().UTC()
	d.LastAttemptAt = &now
	d.UpdatedAt = now

	if deliverErr == nil {
		d.Status = core.DeliveryDelivered
		d.DeliveredAt = &now
		d.ErrorMessage = ""
		d.FailedAt = nil
	} else {
		d.Status = core.DeliveryFailed
		d.FailedAt = &now
		d.ErrorMessage = deliverErr.Error()
	}

	if err := o.stores.Deliveries.Update(ctx, d); err != nil {
		logger.Error("update delivery record",
			zap.String("deliveryID", d.ID), zap.Error(err))
	}

	if deliverErr == nil {
		o.audit(ctx, n, core.AuditDelivered, d.Channel, map[string]interface{}{
			"attempts": d.Attempts,
		})
		o.bus.Publish(ctx, events.Event{Kind: events.KindDelivered, Notification: n, Channel: d.Channel})
		return
	}

	logger.Warn("channel delivery failed",
		zap.String("notificationID", n.ID),
		zap.String("channel", string(d.Channel)),
		zap.Int("attempts", d.Attempts),
		zap.Error(deliverErr),
	)
	o.audit(ctx, n, core.AuditFailed, d.Channel, map[string]interface{}{
		"attempts": d.Attempts,
		"error":    deliverErr.Error(),
	})
	o.bus.Publish(ctx, events.Event{Kind: events.KindFailed, Notification: n, Channel: d.Channel})
}

// Redeliver re-runs delivery for a record reset to pending by a manual retry.
// The background sweep calls it.
func (o *Orchestrator) Redeliver(ctx context.Context, d *core.Delivery) error {
	n, err := o.stores.Notifications.GetAny(ctx, d.NotificationID)
	if err != nil {
		return fmt.Errorf("load notification %s: %w", d.NotificationID, err)
	}
	prefs, err := o.resolver.Load(ctx, n.UserID)
	if err != nil {
		return err
	}
	res := o.deliverChannel(ctx, n, prefs, d.Channel, d)
	if !res.Success {
		return fmt.Errorf("redeliver %s over %s: %s", n.ID, d.Channel, res.Error)
	}
	return nil
}

// render picks the notification text. An explicit template id always renders;
// otherwise raw title/message win and the type default fills in only when
// both are empty.
func (o *Orchestrator) render(in SendInput) (title, message string) {
	title, message = in.Title, in.Message
	if in.TemplateID == "" && (title != "" || message != "") {
		return title, message
	}
	tpl, ok := o.templates.Resolve(in.TemplateID, in.Type)
	if !ok {
		return title, message
	}
	rendered := template.Render(tpl, in.Data)
	if rendered.Subject != "" {
		title = rendered.Subject
	}
	if rendered.Body != "" {
		message = rendered.Body
	}
	return title, message
}

// audit appends a log entry, best effort.
func (o *Orchestrator) audit(ctx context.Context, n *core.Notification, action core.AuditAction, ch core.Channel, details map[string]interface{}) {
	a := &core.Audit{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		Action:         action,
		Channel:        ch,
		UserID:         n.UserID,
		TenantID:       n.TenantID,
		Details:        details,
		Timestamp:      o.now().UTC(),
	}
	if err := o.stores.Audits.Append(ctx, a); err != nil {
		logger.Warn("append audit entry",
			zap.String("notificationID", n.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func validateSend(in *SendInput) error {
	if in.UserID == "" {
		return apperrors.BadRequest(apperrors.CodeMissingField, "userId is required")
	}
	if !in.Type.Valid() {
		return apperrors.BadRequest(apperrors.CodeInvalidRequestField,
			fmt.Sprintf("unknown notification type %q", in.Type))
	}
	if in.Priority == "" {
		in.Priority = core.PriorityMedium
	}
	if !in.Priority.Valid() {
		return apperrors.BadRequest(apperrors.CodeInvalidRequestField,
			fmt.Sprintf("unknown priority %q", in.Priority))
	}
	for _, ch := range in.Channels {
		if !ch.Valid() {
			return apperrors.BadRequest(apperrors.CodeInvalidRequestField,
				fmt.Sprintf("unknown channel %q", ch))
		}
	}
	return nil
}
