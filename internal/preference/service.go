package preference

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/store"
)

// Service is the read/write surface behind the preference HTTP handlers.
type Service struct {
	prefs    store.PreferenceStore
	resolver *Resolver
}

func NewService(prefs store.PreferenceStore, resolver *Resolver) *Service {
	return &Service{prefs: prefs, resolver: resolver}
}

// Get returns the user's preferences, defaulted when nothing is stored.
func (s *Service) Get(ctx context.Context, userID string) (*core.Preferences, error) {
	return s.resolver.Load(ctx, userID)
}

// Update applies a partial change and persists the result.
func (s *Service) Update(ctx context.Context, userID string, u Update) (*core.Preferences, error) {
	if err := validateUpdate(u); err != nil {
		return nil, err
	}
	prev, err := s.resolver.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := Apply(prev, u)
	if err := s.prefs.Put(ctx, next); err != nil {
		return nil, fmt.Errorf("save preferences for %s: %w", userID, err)
	}
	logger.Debug("preferences updated", zap.String("userID", userID))
	return next, nil
}

// Reset deletes the stored record, returning the user to defaults.
func (s *Service) Reset(ctx context.Context, userID string) (*core.Preferences, error) {
	if err := s.prefs.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("reset preferences for %s: %w", userID, err)
	}
	return core.DefaultPreferences(userID), nil
}

// SetChannelEnabled flips one channel's opt-in state, keeping its address.
func (s *Service) SetChannelEnabled(ctx context.Context, userID string, ch core.Channel, enabled bool) (*core.Preferences, error) {
	if !ch.Valid() {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown channel %q", ch))
	}
	prev, err := s.resolver.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	channels := make(map[core.Channel]core.ChannelPreference, len(prev.Channels)+1)
	for c, cp := range prev.Channels {
		channels[c] = cp
	}
	cp := channels[ch]
	cp.Enabled = enabled
	channels[ch] = cp
	return s.Update(ctx, userID, Update{Channels: channels})
}

// SetQuietHours replaces the quiet-hours window. Urgent notifications are
// never silenced by the window, whatever the stored override flag says.
func (s *Service) SetQuietHours(ctx context.Context, userID string, q core.QuietHours) (*core.Preferences, error) {
	if q.Enabled {
		if !validClock(q.Start) || !validClock(q.End) {
			return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestField, "quiet hours start/end must be HH:MM")
		}
		if q.Timezone != "" {
			if _, err := time.LoadLocation(q.Timezone); err != nil {
				return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown timezone %q", q.Timezone))
			}
		}
	}
	return s.Update(ctx, userID, Update{Quiet: &q})
}

// SetDigest replaces digest settings. They are stored for future use and do
// not alter the delivery path.
func (s *Service) SetDigest(ctx context.Context, userID string, d core.DigestSettings) (*core.Preferences, error) {
	switch d.Frequency {
	case "", "daily", "weekly":
	default:
		return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown digest frequency %q", d.Frequency))
	}
	if d.Hour < 0 || d.Hour > 23 {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestField, "digest hour must be 0-23")
	}
	return s.Update(ctx, userID, Update{Digest: &d})
}

func validateUpdate(u Update) error {
	for ch := range u.Channels {
		if !ch.Valid() {
			return apperrors.BadRequest(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown channel %q", ch))
		}
	}
	for t, tp := range u.Types {
		if !t.Valid() {
			return apperrors.BadRequest(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown notification type %q", t))
		}
		for _, ch := range tp.Channels {
			if !ch.Valid() {
				return apperrors.BadRequest(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown channel %q for type %q", ch, t))
			}
		}
	}
	if u.Quiet != nil && u.Quiet.Enabled {
		if !validClock(u.Quiet.Start) || !validClock(u.Quiet.End) {
			return apperrors.BadRequest(apperrors.CodeInvalidRequestField, "quiet hours start/end must be HH:MM")
		}
	}
	return nil
}
