// Package store defines the persistence contracts of the notification engine.
//
// Two implementations exist: postgres (pgxpool-backed, the production path)
// and memory (mutex-guarded maps, used by tests and standalone wiring).
package store

import (
	"context"
	"time"

	"fileops.io/notifyd/internal/core"
)

// NotificationFilter narrows List results.
type NotificationFilter struct {
	UnreadOnly bool
	Type       core.Type
	Page       int
	PerPage    int
}

// Normalize applies pagination defaults.
func (f *NotificationFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
}

// NotificationStore persists notifications. All user-scoped operations check
// ownership: a notification belonging to another user behaves as absent.
type NotificationStore interface {
	Create(ctx context.Context, n *core.Notification) error
	Get(ctx context.Context, id, userID string) (*core.Notification, error)
	// GetAny fetches by id without an ownership check. System-scoped; only
	// background redelivery uses it.
	GetAny(ctx context.Context, id string) (*core.Notification, error)
	List(ctx context.Context, userID string, f NotificationFilter) ([]*core.Notification, int, error)
	// ListRecent returns the newest notifications for a user, newest first,
	// bounded by limit. Used by the retry scanner and delivery stats.
	ListRecent(ctx context.Context, userID string, limit int) ([]*core.Notification, error)
	// MarkRead flips the read flag. Returns true when the notification was
	// previously unread; marking an already-read row is a no-op success.
	MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error)
	// MarkAllRead flips every unread row and returns the ids it touched, so
	// the caller can audit each one.
	MarkAllRead(ctx context.Context, userID string, at time.Time) ([]string, error)
	Delete(ctx context.Context, id, userID string) error
	// DeleteAll removes every row for the user and returns the removed ids.
	DeleteAll(ctx context.Context, userID string) ([]string, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// DeleteExpired removes rows whose expires_at has passed or whose
	// created_at predates the retention cutoff.
	DeleteExpired(ctx context.Context, now, retentionCutoff time.Time) (int, error)
}

// DeliveryStore persists per-channel delivery records.
type DeliveryStore interface {
	Create(ctx context.Context, d *core.Delivery) error
	Get(ctx context.Context, id string) (*core.Delivery, error)
	Update(ctx context.Context, d *core.Delivery) error
	ListByNotification(ctx context.Context, notificationID string) ([]*core.Delivery, error)
	// ListRetryable returns pending deliveries that have prior attempts,
	// i.e. rows reset by a manual retry and awaiting the redelivery sweep.
	ListRetryable(ctx context.Context, limit int) ([]*core.Delivery, error)
}

// AuditStore is append-only.
type AuditStore interface {
	Append(ctx context.Context, a *core.Audit) error
	ListByNotification(ctx context.Context, notificationID string) ([]*core.Audit, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*core.Audit, error)
}

// PreferenceStore persists one record per user. Get returns
// errors.ErrNotFound when no record exists; callers default-construct.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*core.Preferences, error)
	Put(ctx context.Context, p *core.Preferences) error
	Delete(ctx context.Context, userID string) error
}

// WebhookStore persists webhook registrations.
type WebhookStore interface {
	Create(ctx context.Context, w *core.Webhook) error
	Get(ctx context.Context, id, userID string) (*core.Webhook, error)
	Update(ctx context.Context, w *core.Webhook) error
	Delete(ctx context.Context, id, userID string) error
	ListByUser(ctx context.Context, userID string) ([]*core.Webhook, error)
	// ListActiveMatching returns active registrations subscribed to t that
	// belong to the user or (when tenantID is non-empty) the tenant.
	ListActiveMatching(ctx context.Context, userID, tenantID string, t core.Type) ([]*core.Webhook, error)
}

// Stores bundles all store interfaces for injection.
type Stores struct {
	Notifications NotificationStore
	Deliveries    DeliveryStore
	Audits        AuditStore
	Preferences   PreferenceStore
	Webhooks      WebhookStore
}
