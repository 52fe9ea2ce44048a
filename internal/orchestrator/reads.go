package orchestrator

import (
	"context"
	"fmt"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/events"
	"fileops.io/notifyd/internal/store"
)

// ListPage is one page of a user's notifications.
type ListPage struct {
	Notifications []*core.Notification `json:"notifications"`
	Total         int                  `json:"total"`
	Page          int                  `json:"page"`
	PerPage       int                  `json:"perPage"`
}

// List returns a page of the user's notifications, newest first.
func (o *Orchestrator) List(ctx context.Context, userID string, f store.NotificationFilter) (*ListPage, error) {
	f.Normalize()
	rows, total, err := o.stores.Notifications.List(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", userID, err)
	}
	return &ListPage{Notifications: rows, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// Get returns one notification owned by userID.
func (o *Orchestrator) Get(ctx context.Context, id, userID string) (*core.Notification, error) {
	return o.stores.Notifications.Get(ctx, id, userID)
}

// MarkRead flips the read flag. Marking an already-read notification is a
// no-op success; only the first transition audits and publishes.
func (o *Orchestrator) MarkRead(ctx context.Context, id, userID string) (*core.Notification, error) {
	flipped, err := o.stores.Notifications.MarkRead(ctx, id, userID, o.now().UTC())
	if err != nil {
		return nil, err
	}
	n, err := o.stores.Notifications.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if flipped {
		o.audit(ctx, n, core.AuditRead, "", nil)
		o.bus.Publish(ctx, events.Event{Kind: events.KindRead, Notification: n})
	}
	return n, nil
}

// MarkAllRead marks every unread notification read and returns the count.
// Each affected notification gets its own read audit entry.
func (o *Orchestrator) MarkAllRead(ctx context.Context, userID string) (int, error) {
	ids, err := o.stores.Notifications.MarkAllRead(ctx, userID, o.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all read for %s: %w", userID, err)
	}
	for _, id := range ids {
		o.audit(ctx, &core.Notification{ID: id, UserID: userID}, core.AuditRead, "", nil)
	}
	return len(ids), nil
}

// Delete removes a notification. Deliveries cascade; the audit trail keeps
// its entries plus a final deleted record.
func (o *Orchestrator) Delete(ctx context.Context, id, userID string) error {
	n, err := o.stores.Notifications.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := o.stores.Notifications.Delete(ctx, id, userID); err != nil {
		return err
	}
	o.audit(ctx, n, core.AuditDeleted, "", nil)
	return nil
}

// DeleteAll removes every notification belonging to the user, leaving a
// deleted audit entry per removed notification.
func (o *Orchestrator) DeleteAll(ctx context.Context, userID string) (int, error) {
	ids, err := o.stores.Notifications.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all notifications for %s: %w", userID, err)
	}
	for _, id := range ids {
		o.audit(ctx, &core.Notification{ID: id, UserID: userID}, core.AuditDeleted, "", nil)
	}
	return len(ids), nil
}

// UnreadCount returns the user's unread total.
func (o *Orchestrator) UnreadCount(ctx context.Context, userID string) (int, error) {
	return o.stores.Notifications.UnreadCount(ctx, userID)
}
