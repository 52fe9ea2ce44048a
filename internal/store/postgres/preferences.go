package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/core"
)

// PreferenceStore is the pgx-backed PreferenceStore.
//
// The whole preference record is stored as a single jsonb document per user.
// Sections are read and replaced wholesale by the merge layer, so row-level
// column granularity buys nothing here.
type PreferenceStore struct {
	db *pgxpool.Pool
}

func (s *PreferenceStore) Get(ctx context.Context, userID string) (*core.Preferences, error) {
	var (
		doc       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT doc, created_at, updated_at FROM notification_preferences WHERE user_id = $1`,
		userID,
	).Scan(&doc, &createdAt, &updatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}

	var p core.Preferences
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode preferences for user %s: %w", userID, err)
	}
	p.UserID = userID
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return &p, nil
}

func (s *PreferenceStore) Put(ctx context.Context, p *core.Preferences) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences for user %s: %w", p.UserID, err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		p.UserID, doc, now,
	)
	return err
}

func (s *PreferenceStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM notification_preferences WHERE user_id = $1`, userID)
	return err
}
