package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/core"
)

// AuditStore is the pgx-backed AuditStore. Append-only: no update or delete
// statements exist in this file on purpose.
type AuditStore struct {
	db *pgxpool.Pool
}

const auditColumns = `
	id, notification_id, action, channel, user_id, tenant_id, details,
	ip_address, user_agent, created_at`

func scanAudit(row pgx.Row) (*core.Audit, error) {
	var (
		a        core.Audit
		channel  *string
		tenantID *string
		ip       *string
		ua       *string
	)
	err := row.Scan(
		&a.ID, &a.NotificationID, &a.Action, &channel, &a.UserID, &tenantID,
		&a.Details, &ip, &ua, &a.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if channel != nil {
		a.Channel = core.Channel(*channel)
	}
	if tenantID != nil {
		a.TenantID = *tenantID
	}
	if ip != nil {
		a.IPAddress = *ip
	}
	if ua != nil {
		a.UserAgent = *ua
	}
	return &a, nil
}

func (s *AuditStore) Append(ctx context.Context, a *core.Audit) error {
	query := `
		INSERT INTO notification_audits (` + auditColumns + `)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10)
	`
	_, err := s.db.Exec(ctx, query,
		a.ID, a.NotificationID, a.Action, string(a.Channel), a.UserID,
		a.TenantID, a.Details, a.IPAddress, a.UserAgent, a.Timestamp,
	)
	return err
}

func (s *AuditStore) ListByNotification(ctx context.Context, notificationID string) ([]*core.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM notification_audits
		WHERE notification_id = $1 ORDER BY created_at ASC`
	return s.queryAudits(ctx, query, notificationID)
}

func (s *AuditStore) ListByUser(ctx context.Context, userID string, limit int) ([]*core.Audit, error) {
	if limit < 1 {
		limit = 100
	}
	query := `SELECT ` + auditColumns + ` FROM notification_audits
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return s.queryAudits(ctx, query, userID, limit)
}

func (s *AuditStore) queryAudits(ctx context.Context, query string, args ...interface{}) ([]*core.Audit, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
