package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/core"
)

// WebhookStore is the pgx-backed WebhookStore.
type WebhookStore struct {
	db *pgxpool.Pool
}

const webhookColumns = `
	id, user_id, tenant_id, url, secret, events, active, headers,
	failure_count, last_delivery_at, last_delivery_status, created_at, updated_at`

func scanWebhook(row pgx.Row) (*core.Webhook, error) {
	var (
		w          core.Webhook
		tenantID   *string
		events     []string
		lastStatus *string
	)
	err := row.Scan(
		&w.ID, &w.UserID, &tenantID, &w.URL, &w.Secret, &events, &w.Active,
		&w.Headers, &w.FailureCount, &w.LastDeliveryAt, &lastStatus,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tenantID != nil {
		w.TenantID = *tenantID
	}
	if lastStatus != nil {
		w.LastDeliveryStatus = *lastStatus
	}
	w.Events = toTypes(events)
	return &w, nil
}

func (s *WebhookStore) Create(ctx context.Context, w *core.Webhook) error {
	query := `
		INSERT INTO notification_webhooks (` + webhookColumns + `)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)
	`
	_, err := s.db.Exec(ctx, query,
		w.ID, w.UserID, w.TenantID, w.URL, w.Secret, typeStrings(w.Events),
		w.Active, w.Headers, w.FailureCount, w.LastDeliveryAt,
		w.LastDeliveryStatus, w.CreatedAt, w.UpdatedAt,
	)
	return err
}

func (s *WebhookStore) Get(ctx context.Context, id, userID string) (*core.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM notification_webhooks WHERE id = $1 AND user_id = $2`
	w, err := scanWebhook(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return w, nil
}

func (s *WebhookStore) Update(ctx context.Context, w *core.Webhook) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE notification_webhooks SET
			url = $2, secret = $3, events = $4, active = $5, headers = $6,
			failure_count = $7, last_delivery_at = $8,
			last_delivery_status = NULLIF($9, ''), updated_at = $10
		WHERE id = $1`,
		w.ID, w.URL, w.Secret, typeStrings(w.Events), w.Active, w.Headers,
		w.FailureCount, w.LastDeliveryAt, w.LastDeliveryStatus, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return mapNotFound(pgx.ErrNoRows)
	}
	return nil
}

func (s *WebhookStore) Delete(ctx context.Context, id, userID string) error {
	ct, err := s.db.Exec(ctx,
		`DELETE FROM notification_webhooks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return mapNotFound(pgx.ErrNoRows)
	}
	return nil
}

func (s *WebhookStore) ListByUser(ctx context.Context, userID string) ([]*core.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM notification_webhooks
		WHERE user_id = $1 ORDER BY created_at ASC`
	return s.queryWebhooks(ctx, query, userID)
}

func (s *WebhookStore) ListActiveMatching(ctx context.Context, userID, tenantID string, t core.Type) ([]*core.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM notification_webhooks
		WHERE active = true AND $3 = ANY(events)
		  AND (user_id = $1 OR (NULLIF($2, '') IS NOT NULL AND tenant_id = $2))`
	return s.queryWebhooks(ctx, query, userID, tenantID, string(t))
}

func (s *WebhookStore) queryWebhooks(ctx context.Context, query string, args ...interface{}) ([]*core.Webhook, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
