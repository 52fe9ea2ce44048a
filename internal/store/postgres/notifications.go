package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/store"
)

// NotificationStore is the pgx-backed NotificationStore.
type NotificationStore struct {
	db *pgxpool.Pool
}

const notificationColumns = `
	id, user_id, tenant_id, type, title, message, data, priority,
	channels, template_id, read, read_at, expires_at, created_at, updated_at`

func scanNotification(row pgx.Row) (*core.Notification, error) {
	var (
		n        core.Notification
		channels []string
		tenantID *string
		tplID    *string
	)
	err := row.Scan(
		&n.ID, &n.UserID, &tenantID, &n.Type, &n.Title, &n.Message, &n.Data,
		&n.Priority, &channels, &tplID, &n.Read, &n.ReadAt, &n.ExpiresAt,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tenantID != nil {
		n.TenantID = *tenantID
	}
	if tplID != nil {
		n.TemplateID = *tplID
	}
	n.Channels = toChannels(channels)
	return &n, nil
}

func (s *NotificationStore) Create(ctx context.Context, n *core.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15)
	`
	_, err := s.db.Exec(ctx, query,
		n.ID, n.UserID, n.TenantID, n.Type, n.Title, n.Message, n.Data,
		n.Priority, channelStrings(n.Channels), n.TemplateID, n.Read,
		n.ReadAt, n.ExpiresAt, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (s *NotificationStore) Get(ctx context.Context, id, userID string) (*core.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND user_id = $2`
	n, err := scanNotification(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return n, nil
}

func (s *NotificationStore) GetAny(ctx context.Context, id string) (*core.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return n, nil
}

func (s *NotificationStore) List(ctx context.Context, userID string, f store.NotificationFilter) ([]*core.Notification, int, error) {
	f.Normalize()

	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if f.UnreadOnly {
		where += ` AND read = false`
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where += ` AND type = $2`
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where +
		` ORDER BY created_at DESC LIMIT ` + itoa(f.PerPage) + ` OFFSET ` + itoa((f.Page-1)*f.PerPage)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*core.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (s *NotificationStore) ListRecent(ctx context.Context, userID string, limit int) ([]*core.Notification, error) {
	if limit < 1 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	// Guarding on read = false makes the second call a no-op without
	// rewriting read_at.
	ct, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = true, read_at = $3, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND read = false`,
		id, userID, at,
	)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish already-read (no-op success) from not-found/not-owned.
	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
		id, userID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, mapNotFound(pgx.ErrNoRows)
	}
	return false, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string, at time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE notifications SET read = true, read_at = $2, updated_at = $2
		WHERE user_id = $1 AND read = false
		RETURNING id`,
		userID, at,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *NotificationStore) Delete(ctx context.Context, id, userID string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return mapNotFound(pgx.ErrNoRows)
	}
	return nil
}

func (s *NotificationStore) DeleteAll(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `DELETE FROM notifications WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`,
		userID,
	).Scan(&count)
	return count, err
}

func (s *NotificationStore) DeleteExpired(ctx context.Context, now, retentionCutoff time.Time) (int, error) {
	ct, err := s.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE (expires_at IS NOT NULL AND expires_at < $1) OR created_at < $2`,
		now, retentionCutoff,
	)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func itoa(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}
