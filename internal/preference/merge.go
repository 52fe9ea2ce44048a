package preference

import (
	"time"

	"fileops.io/notifyd/internal/core"
)

// Update is a partial preference change. Nil sections are left untouched;
// non-nil sections replace their counterpart wholesale. There is no deep
// per-key merging: callers send the complete section they intend to have.
type Update struct {
	Enabled  *bool                                   `json:"enabled,omitempty"`
	Channels map[core.Channel]core.ChannelPreference `json:"channels,omitempty"`
	Types    map[core.Type]core.TypePreference       `json:"types,omitempty"`
	Quiet    *core.QuietHours                        `json:"quietHours,omitempty"`
	Digest   *core.DigestSettings                    `json:"digest,omitempty"`
}

// Apply merges u onto prev and returns the resulting record. prev is not
// mutated.
func Apply(prev *core.Preferences, u Update) *core.Preferences {
	next := clone(prev)
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.Channels != nil {
		next.Channels = make(map[core.Channel]core.ChannelPreference, len(u.Channels))
		for ch, cp := range u.Channels {
			next.Channels[ch] = cp
		}
	}
	if u.Types != nil {
		next.Types = make(map[core.Type]core.TypePreference, len(u.Types))
		for t, tp := range u.Types {
			next.Types[t] = tp
		}
	}
	if u.Quiet != nil {
		q := *u.Quiet
		next.Quiet = &q
	}
	if u.Digest != nil {
		d := *u.Digest
		next.Digest = &d
	}
	next.UpdatedAt = time.Now().UTC()
	return next
}

func clone(p *core.Preferences) *core.Preferences {
	out := *p
	out.Channels = make(map[core.Channel]core.ChannelPreference, len(p.Channels))
	for ch, cp := range p.Channels {
		out.Channels[ch] = cp
	}
	out.Types = make(map[core.Type]core.TypePreference, len(p.Types))
	for t, tp := range p.Types {
		out.Types[t] = tp
	}
	if p.Quiet != nil {
		q := *p.Quiet
		out.Quiet = &q
	}
	if p.Digest != nil {
		d := *p.Digest
		out.Digest = &d
	}
	return &out
}
