// Package preference resolves which channels a notification actually goes to,
// applying per-user opt-outs, per-type narrowing and quiet-hours suppression.
package preference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/store"
)

// defaultChannels is the global fallback when neither the caller nor the
// type preferences name a channel set.
var defaultChannels = []core.Channel{core.ChannelInApp}

// Resolver computes the effective channel set for a send.
type Resolver struct {
	prefs store.PreferenceStore

	// now is injectable for quiet-hours tests.
	now func() time.Time
}

// NewResolver creates a Resolver over the given preference store.
func NewResolver(prefs store.PreferenceStore) *Resolver {
	return &Resolver{prefs: prefs, now: time.Now}
}

// WithClock replaces the wall clock. Test hook.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Load returns the user's stored preferences, default-constructing a record
// when none exists yet. The default is not persisted on read.
func (r *Resolver) Load(ctx context.Context, userID string) (*core.Preferences, error) {
	p, err := r.prefs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return core.DefaultPreferences(userID), nil
		}
		return nil, fmt.Errorf("load preferences for %s: %w", userID, err)
	}
	return p, nil
}

// Resolve returns the final channel set for a notification.
//
// An empty result is valid: the notification is recorded but delivered
// nowhere. A globally disabled user is an error, not an empty set, so the
// caller rejects the whole send before persisting anything.
func (r *Resolver) Resolve(ctx context.Context, userID string, t core.Type, priority core.Priority, override []core.Channel) ([]core.Channel, error) {
	p, err := r.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.resolveWith(p, t, priority, override), nil
}

// ResolveWith is Resolve against already-loaded preferences; the orchestrator
// uses it to avoid a second store read after the disabled check.
func (r *Resolver) ResolveWith(p *core.Preferences, t core.Type, priority core.Priority, override []core.Channel) []core.Channel {
	return r.resolveWith(p, t, priority, override)
}

func (r *Resolver) resolveWith(p *core.Preferences, t core.Type, priority core.Priority, override []core.Channel) []core.Channel {
	// 1. Candidate set: explicit caller override wins, then enabled type
	// preferences, then the global default.
	candidates := defaultChannels
	if len(override) > 0 {
		candidates = override
	} else if tp, ok := p.Types[t]; ok && tp.Enabled && len(tp.Channels) > 0 {
		candidates = tp.Channels
		// A priority floor suppresses external channels for quieter
		// notifications; the in-app record still lands.
		if tp.MinPriority != "" && !priority.AtLeast(tp.MinPriority) {
			candidates = defaultChannels
		}
	}

	// 2. Quiet hours collapse everything to in-app. Urgent notifications
	// keep the full set; the window never silences them.
	if priority != core.PriorityUrgent && r.inQuietHours(p.Quiet) {
		candidates = defaultChannels
	}

	// 3. Drop channels the user explicitly opted out of.
	out := make([]core.Channel, 0, len(candidates))
	seen := map[core.Channel]bool{}
	for _, ch := range candidates {
		if seen[ch] || !ch.Valid() {
			continue
		}
		seen[ch] = true
		if p.ChannelEnabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// inQuietHours evaluates the window against the preference's stored timezone
// when it loads, falling back to the server's local clock. Start/End are
// zero-padded "HH:MM" so lexicographic comparison is chronological; a start
// after the end means the window wraps midnight.
func (r *Resolver) inQuietHours(q *core.QuietHours) bool {
	if q == nil || !q.Enabled || !validClock(q.Start) || !validClock(q.End) {
		return false
	}

	now := r.now()
	if q.Timezone != "" {
		if loc, err := time.LoadLocation(q.Timezone); err == nil {
			now = now.In(loc)
		}
	}

	if len(q.Weekdays) > 0 {
		match := false
		for _, wd := range q.Weekdays {
			if now.Weekday() == wd {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	hhmm := now.Format("15:04")
	if q.Start <= q.End {
		return hhmm >= q.Start && hhmm < q.End
	}
	// Overnight window, e.g. 22:00 → 07:00.
	return hhmm >= q.Start || hhmm < q.End
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
