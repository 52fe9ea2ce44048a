package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/store"
)

func TestNotificationOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewNotificationStore()

	n := &core.Notification{ID: "n1", UserID: "u1", Title: "t", CreatedAt: time.Now()}
	if err := s.Create(ctx, n); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "n1", "u2"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("cross-user Get should be not-found, got %v", err)
	}
	if err := s.Delete(ctx, "n1", "u2"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("cross-user Delete should be not-found, got %v", err)
	}
	if _, err := s.Get(ctx, "n1", "u1"); err != nil {
		t.Errorf("owner Get failed: %v", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewNotificationStore()
	_ = s.Create(ctx, &core.Notification{ID: "n1", UserID: "u1"})

	now := time.Now()
	flipped, err := s.MarkRead(ctx, "n1", "u1", now)
	if err != nil || !flipped {
		t.Fatalf("first MarkRead = (%v, %v), want (true, nil)", flipped, err)
	}

	flipped, err = s.MarkRead(ctx, "n1", "u1", now.Add(time.Second))
	if err != nil || flipped {
		t.Fatalf("second MarkRead = (%v, %v), want (false, nil)", flipped, err)
	}

	n, _ := s.Get(ctx, "n1", "u1")
	if !n.Read || n.ReadAt == nil || !n.ReadAt.Equal(now) {
		t.Errorf("second MarkRead must not rewrite ReadAt: %+v", n)
	}
}

func TestListPaginationAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewNotificationStore()

	base := time.Now()
	for i := 0; i < 5; i++ {
		read := i%2 == 0
		_ = s.Create(ctx, &core.Notification{
			ID:        string(rune('a' + i)),
			UserID:    "u1",
			Type:      core.TypeFileUploaded,
			Read:      read,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	rows, total, err := s.List(ctx, "u1", store.NotificationFilter{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(rows) != 2 {
		t.Errorf("total=%d len=%d, want 5 and 2", total, len(rows))
	}
	// Newest first.
	if rows[0].CreatedAt.Before(rows[1].CreatedAt) {
		t.Error("List should order newest first")
	}

	rows, total, _ = s.List(ctx, "u1", store.NotificationFilter{UnreadOnly: true})
	if total != 2 {
		t.Errorf("unread total = %d, want 2", total)
	}
	for _, n := range rows {
		if n.Read {
			t.Error("UnreadOnly filter returned a read notification")
		}
	}
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewNotificationStore()

	now := time.Now()
	past := now.Add(-time.Hour)
	_ = s.Create(ctx, &core.Notification{ID: "expired", UserID: "u1", ExpiresAt: &past, CreatedAt: now})
	_ = s.Create(ctx, &core.Notification{ID: "ancient", UserID: "u1", CreatedAt: now.Add(-100 * 24 * time.Hour)})
	_ = s.Create(ctx, &core.Notification{ID: "fresh", UserID: "u1", CreatedAt: now})

	deleted, err := s.DeleteExpired(ctx, now, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, err := s.Get(ctx, "fresh", "u1"); err != nil {
		t.Error("fresh notification should survive the sweep")
	}
}

func TestDeliveryRetryable(t *testing.T) {
	ctx := context.Background()
	s := NewDeliveryStore()

	_ = s.Create(ctx, &core.Delivery{ID: "d1", Status: core.DeliveryPending, Attempts: 0})
	_ = s.Create(ctx, &core.Delivery{ID: "d2", Status: core.DeliveryPending, Attempts: 2})
	_ = s.Create(ctx, &core.Delivery{ID: "d3", Status: core.DeliveryFailed, Attempts: 3})

	rows, err := s.ListRetryable(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "d2" {
		t.Errorf("ListRetryable = %+v, want only d2", rows)
	}
}

func TestWebhookActiveMatching(t *testing.T) {
	ctx := context.Background()
	s := NewWebhookStore()

	_ = s.Create(ctx, &core.Webhook{ID: "w1", UserID: "u1", Active: true, Events: []core.Type{core.TypeFileUploaded}})
	_ = s.Create(ctx, &core.Webhook{ID: "w2", UserID: "u1", Active: false, Events: []core.Type{core.TypeFileUploaded}})
	_ = s.Create(ctx, &core.Webhook{ID: "w3", UserID: "u2", TenantID: "t1", Active: true, Events: []core.Type{core.TypeFileUploaded}})

	rows, err := s.ListActiveMatching(ctx, "u1", "t1", core.TypeFileUploaded)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("matching = %d rows, want 2 (own active + tenant)", len(rows))
	}
}

func TestPreferencesCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewPreferenceStore()

	p := core.DefaultPreferences("u1")
	if err := s.Put(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	got.Channels[core.ChannelEmail] = core.ChannelPreference{Enabled: false}

	again, _ := s.Get(ctx, "u1")
	if !again.ChannelEnabled(core.ChannelEmail) {
		t.Error("mutating a returned record must not affect the stored one")
	}
}
