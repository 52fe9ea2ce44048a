package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/core"
)

// DeliveryStore is the pgx-backed DeliveryStore.
type DeliveryStore struct {
	db *pgxpool.Pool
}

const deliveryColumns = `
	id, notification_id, channel, status, recipient_address, attempts,
	last_attempt_at, delivered_at, failed_at, error_message, metadata,
	created_at, updated_at`

func scanDelivery(row pgx.Row) (*core.Delivery, error) {
	var (
		d         core.Delivery
		recipient *string
		errMsg    *string
	)
	err := row.Scan(
		&d.ID, &d.NotificationID, &d.Channel, &d.Status, &recipient,
		&d.Attempts, &d.LastAttemptAt, &d.DeliveredAt, &d.FailedAt,
		&errMsg, &d.Metadata, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recipient != nil {
		d.RecipientAddress = *recipient
	}
	if errMsg != nil {
		d.ErrorMessage = *errMsg
	}
	return &d, nil
}

func (s *DeliveryStore) Create(ctx context.Context, d *core.Delivery) error {
	query := `
		INSERT INTO notification_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
	`
	_, err := s.db.Exec(ctx, query,
		d.ID, d.NotificationID, d.Channel, d.Status, d.RecipientAddress,
		d.Attempts, d.LastAttemptAt, d.DeliveredAt, d.FailedAt,
		d.ErrorMessage, d.Metadata, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (*core.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries WHERE id = $1`
	d, err := scanDelivery(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return d, nil
}

func (s *DeliveryStore) Update(ctx context.Context, d *core.Delivery) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE notification_deliveries SET
			status = $2, recipient_address = NULLIF($3, ''), attempts = $4,
			last_attempt_at = $5, delivered_at = $6, failed_at = $7,
			error_message = NULLIF($8, ''), metadata = $9, updated_at = $10
		WHERE id = $1`,
		d.ID, d.Status, d.RecipientAddress, d.Attempts, d.LastAttemptAt,
		d.DeliveredAt, d.FailedAt, d.ErrorMessage, d.Metadata, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return mapNotFound(pgx.ErrNoRows)
	}
	return nil
}

func (s *DeliveryStore) ListByNotification(ctx context.Context, notificationID string) ([]*core.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries
		WHERE notification_id = $1 ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, notificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DeliveryStore) ListRetryable(ctx context.Context, limit int) ([]*core.Delivery, error) {
	if limit < 1 {
		limit = 100
	}
	// attempts > 0 distinguishes rows reset by a manual retry from rows the
	// original adapter has not picked up yet.
	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries
		WHERE status = 'pending' AND attempts > 0
		ORDER BY updated_at ASC LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
