// Package memory implements the store contracts with mutex-guarded maps.
// Tests construct fresh instances per case; nothing here is process-global.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/store"
)

// New returns a fully wired in-memory store bundle.
func New() *store.Stores {
	return &store.Stores{
		Notifications: NewNotificationStore(),
		Deliveries:    NewDeliveryStore(),
		Audits:        NewAuditStore(),
		Preferences:   NewPreferenceStore(),
		Webhooks:      NewWebhookStore(),
	}
}

// --- notifications ---

// NotificationStore is the in-memory NotificationStore.
type NotificationStore struct {
	mu   sync.RWMutex
	rows map[string]*core.Notification
}

// NewNotificationStore creates an empty notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{rows: map[string]*core.Notification{}}
}

func (s *NotificationStore) Create(_ context.Context, n *core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.rows[n.ID] = &cp
	return nil
}

func (s *NotificationStore) Get(_ context.Context, id, userID string) (*core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.rows[id]
	if !ok || n.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *NotificationStore) GetAny(_ context.Context, id string) (*core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *NotificationStore) List(_ context.Context, userID string, f store.NotificationFilter) ([]*core.Notification, int, error) {
	f.Normalize()

	s.mu.RLock()
	var all []*core.Notification
	for _, n := range s.rows {
		if n.UserID != userID {
			continue
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		cp := *n
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := (f.Page - 1) * f.PerPage
	if start >= total {
		return []*core.Notification{}, total, nil
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *NotificationStore) ListRecent(ctx context.Context, userID string, limit int) ([]*core.Notification, error) {
	rows, _, err := s.List(ctx, userID, store.NotificationFilter{Page: 1, PerPage: limit})
	return rows, err
}

func (s *NotificationStore) MarkRead(_ context.Context, id, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.UserID != userID {
		return false, apperrors.ErrNotFound
	}
	if n.Read {
		return false, nil
	}
	n.Read = true
	n.ReadAt = &at
	n.UpdatedAt = at
	return true, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, userID string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, n := range s.rows {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &at
			n.UpdatedAt = at
			ids = append(ids, n.ID)
		}
	}
	return ids, nil
}

func (s *NotificationStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *NotificationStore) DeleteAll(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, n := range s.rows {
		if n.UserID == userID {
			delete(s.rows, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *NotificationStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	for _, n := range s.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) DeleteExpired(_ context.Context, now, retentionCutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	for id, n := range s.rows {
		if n.Expired(now) || n.CreatedAt.Before(retentionCutoff) {
			delete(s.rows, id)
			count++
		}
	}
	return count, nil
}

// --- deliveries ---

// DeliveryStore is the in-memory DeliveryStore.
type DeliveryStore struct {
	mu   sync.RWMutex
	rows map[string]*core.Delivery
}

// NewDeliveryStore creates an empty delivery store.
func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{rows: map[string]*core.Delivery{}}
}

func (s *DeliveryStore) Create(_ context.Context, d *core.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.rows[d.ID] = &cp
	return nil
}

func (s *DeliveryStore) Get(_ context.Context, id string) (*core.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *DeliveryStore) Update(_ context.Context, d *core.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[d.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *d
	cp.UpdatedAt = time.Now().UTC()
	s.rows[d.ID] = &cp
	return nil
}

func (s *DeliveryStore) ListByNotification(_ context.Context, notificationID string) ([]*core.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Delivery
	for _, d := range s.rows {
		if d.NotificationID == notificationID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *DeliveryStore) ListRetryable(_ context.Context, limit int) ([]*core.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Delivery
	for _, d := range s.rows {
		if d.Status == core.DeliveryPending && d.Attempts > 0 {
			cp := *d
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// --- audits ---

// AuditStore is the in-memory AuditStore.
type AuditStore struct {
	mu   sync.RWMutex
	rows []*core.Audit
}

// NewAuditStore creates an empty audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(_ context.Context, a *core.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.rows = append(s.rows, &cp)
	return nil
}

func (s *AuditStore) ListByNotification(_ context.Context, notificationID string) ([]*core.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Audit
	for _, a := range s.rows {
		if a.NotificationID == notificationID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *AuditStore) ListByUser(_ context.Context, userID string, limit int) ([]*core.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Audit
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == userID {
			cp := *s.rows[i]
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// --- preferences ---

// PreferenceStore is the in-memory PreferenceStore.
type PreferenceStore struct {
	mu   sync.RWMutex
	rows map[string]*core.Preferences
}

// NewPreferenceStore creates an empty preference store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{rows: map[string]*core.Preferences{}}
}

func (s *PreferenceStore) Get(_ context.Context, userID string) (*core.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clonePreferences(p), nil
}

func (s *PreferenceStore) Put(_ context.Context, p *core.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.UserID] = clonePreferences(p)
	return nil
}

func (s *PreferenceStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, userID)
	return nil
}

func clonePreferences(p *core.Preferences) *core.Preferences {
	cp := *p
	cp.Channels = make(map[core.Channel]core.ChannelPreference, len(p.Channels))
	for k, v := range p.Channels {
		cp.Channels[k] = v
	}
	cp.Types = make(map[core.Type]core.TypePreference, len(p.Types))
	for k, v := range p.Types {
		cp.Types[k] = v
	}
	if p.Quiet != nil {
		q := *p.Quiet
		cp.Quiet = &q
	}
	if p.Digest != nil {
		d := *p.Digest
		cp.Digest = &d
	}
	return &cp
}

// --- webhooks ---

// WebhookStore is the in-memory WebhookStore.
type WebhookStore struct {
	mu   sync.RWMutex
	rows map[string]*core.Webhook
}

// NewWebhookStore creates an empty webhook store.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{rows: map[string]*core.Webhook{}}
}

func (s *WebhookStore) Create(_ context.Context, w *core.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.rows[w.ID] = &cp
	return nil
}

func (s *WebhookStore) Get(_ context.Context, id, userID string) (*core.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.rows[id]
	if !ok || w.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *WebhookStore) Update(_ context.Context, w *core.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[w.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *w
	cp.UpdatedAt = time.Now().UTC()
	s.rows[w.ID] = &cp
	return nil
}

func (s *WebhookStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok || w.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *WebhookStore) ListByUser(_ context.Context, userID string) ([]*core.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Webhook
	for _, w := range s.rows {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *WebhookStore) ListActiveMatching(_ context.Context, userID, tenantID string, t core.Type) ([]*core.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Webhook
	for _, w := range s.rows {
		if !w.Active || !w.SubscribedTo(t) {
			continue
		}
		if w.UserID == userID || (tenantID != "" && w.TenantID == tenantID) {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ store.NotificationStore = (*NotificationStore)(nil)
	_ store.DeliveryStore     = (*DeliveryStore)(nil)
	_ store.AuditStore        = (*AuditStore)(nil)
	_ store.PreferenceStore   = (*PreferenceStore)(nil)
	_ store.WebhookStore      = (*WebhookStore)(nil)
)
