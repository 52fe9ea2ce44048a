// Package tracking answers the reporting questions: what was delivered,
// where, how fast, and what failed. It also owns the manual retry path that
// resets failed deliveries for the background sweep to pick up.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/store"
)

// recentScanLimit bounds how many recent notifications stats and retries
// consider.
const recentScanLimit = 50

// maxRetryAttempts caps the attempt lineage a manual retry may extend.
const maxRetryAttempts = 3

// Stats summarizes recent delivery activity for one user.
type Stats struct {
	Total        int                         `json:"total"`
	ByStatus     map[core.DeliveryStatus]int `json:"byStatus"`
	ByChannel    map[core.Channel]int        `json:"byChannel"`
	AvgLatencyMS int64                       `json:"avgLatencyMs"`
}

// Service reads delivery and audit records.
type Service struct {
	stores *store.Stores
	now    func() time.Time
}

func NewService(stores *store.Stores) *Service {
	return &Service{stores: stores, now: time.Now}
}

// DeliveryStats aggregates the user's recent deliveries. A nil from/to leaves
// that side of the range open; otherwise only deliveries created inside the
// range count. Latency is measured from notification creation to delivery
// confirmation, averaged over delivered records only.
func (s *Service) DeliveryStats(ctx context.Context, userID string, from, to *time.Time) (*Stats, error) {
	notifications, err := s.stores.Notifications.ListRecent(ctx, userID, recentScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent notifications: %w", err)
	}

	stats := &Stats{
		ByStatus:  map[core.DeliveryStatus]int{},
		ByChannel: map[core.Channel]int{},
	}
	var latencySum time.Duration
	var delivered int

	for _, n := range notifications {
		dels, err := s.stores.Deliveries.ListByNotification(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("list deliveries for %s: %w", n.ID, err)
		}
		for _, d := range dels {
			if from != nil && d.CreatedAt.Before(*from) {
				continue
			}
			if to != nil && d.CreatedAt.After(*to) {
				continue
			}
			stats.Total++
			stats.ByStatus[d.Status]++
			stats.ByChannel[d.Channel]++
			if d.Status == core.DeliveryDelivered && d.DeliveredAt != nil {
				latencySum += d.DeliveredAt.Sub(n.CreatedAt)
				delivered++
			}
		}
	}
	if delivered > 0 {
		stats.AvgLatencyMS = (latencySum / time.Duration(delivered)).Milliseconds()
	}
	return stats, nil
}

// History returns the delivery records for one notification, after an
// ownership check.
func (s *Service) History(ctx context.Context, notificationID, userID string) ([]*core.Delivery, error) {
	if _, err := s.stores.Notifications.Get(ctx, notificationID, userID); err != nil {
		return nil, err
	}
	return s.stores.Deliveries.ListByNotification(ctx, notificationID)
}

// AuditTrail returns the audit entries for one notification, after an
// ownership check.
func (s *Service) AuditTrail(ctx context.Context, notificationID, userID string) ([]*core.Audit, error) {
	if _, err := s.stores.Notifications.Get(ctx, notificationID, userID); err != nil {
		return nil, err
	}
	return s.stores.Audits.ListByNotification(ctx, notificationID)
}

// UserAuditTrail returns the user's recent audit entries across all their
// notifications.
func (s *Service) UserAuditTrail(ctx context.Context, userID string, limit int) ([]*core.Audit, error) {
	if limit < 1 || limit > 200 {
		limit = 100
	}
	return s.stores.Audits.ListByUser(ctx, userID, limit)
}

// RetryAllFailed resets the user's recent failed deliveries to pending so the
// redelivery sweep re-attempts them. Records that already exhausted the
// attempt cap stay failed. Returns how many were reset.
func (s *Service) RetryAllFailed(ctx context.Context, userID string) (int, error) {
	notifications, err := s.stores.Notifications.ListRecent(ctx, userID, recentScanLimit)
	if err != nil {
		return 0, fmt.Errorf("list recent notifications: %w", err)
	}

	reset := 0
	for _, n := range notifications {
		dels, err := s.stores.Deliveries.ListByNotification(ctx, n.ID)
		if err != nil {
			return reset, fmt.Errorf("list deliveries for %s: %w", n.ID, err)
		}
		for _, d := range dels {
			if d.Status != core.DeliveryFailed || d.Attempts >= maxRetryAttempts {
				continue
			}
			now := s.now().UTC()
			d.Status = core.DeliveryPending
			d.ErrorMessage = ""
			d.FailedAt = nil
			d.UpdatedAt = now
			if err := s.stores.Deliveries.Update(ctx, d); err != nil {
				return reset, fmt.Errorf("reset delivery %s: %w", d.ID, err)
			}
			reset++

			audit := &core.Audit{
				ID:             uuid.NewString(),
				NotificationID: n.ID,
				Action:         core.AuditRetried,
				Channel:        d.Channel,
				UserID:         userID,
				TenantID:       n.TenantID,
				Details:        map[string]interface{}{"attempts": d.Attempts},
				Timestamp:      now,
			}
			if err := s.stores.Audits.Append(ctx, audit); err != nil {
				logger.Warn("append retry audit",
					zap.String("deliveryID", d.ID), zap.Error(err))
			}
		}
	}

	if reset > 0 {
		logger.Info("failed deliveries reset for retry",
			zap.String("userID", userID), zap.Int("count", reset))
	}
	return reset, nil
}
