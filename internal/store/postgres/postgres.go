// Package postgres implements the store contracts on a shared pgxpool.
//
// Queries are hand-written SQL scanned into core types; DDL lives in
// schema.sql next to this file.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/store"
)

// New returns the full store bundle backed by pool.
func New(pool *pgxpool.Pool) *store.Stores {
	return &store.Stores{
		Notifications: &NotificationStore{db: pool},
		Deliveries:    &DeliveryStore{db: pool},
		Audits:        &AuditStore{db: pool},
		Preferences:   &PreferenceStore{db: pool},
		Webhooks:      &WebhookStore{db: pool},
	}
}

// mapNotFound converts pgx.ErrNoRows to the engine's sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return err
}

// channelStrings converts the channel slice for a text[] column.
func channelStrings(channels []core.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}

func toChannels(raw []string) []core.Channel {
	out := make([]core.Channel, len(raw))
	for i, s := range raw {
		out[i] = core.Channel(s)
	}
	return out
}

func typeStrings(types []core.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func toTypes(raw []string) []core.Type {
	out := make([]core.Type, len(raw))
	for i, s := range raw {
		out[i] = core.Type(s)
	}
	return out
}
